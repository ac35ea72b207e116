package store

import (
	"context"
	"sync"

	"logworker/pkg/models"
)

const BackendMemory = "memory"

// MemoryStore keeps records in process. Used for local runs and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]models.ProcessedRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]models.ProcessedRecord)}
}

func (s *MemoryStore) Put(ctx context.Context, tenantID, logID string, rec models.ProcessedRecord) error {
	key := Key{TenantID: tenantID, LogID: logID}
	if err := key.Validate(); err != nil {
		return newError(BackendMemory, "put", KindInvalidKey, err)
	}
	if err := ctx.Err(); err != nil {
		return newError(BackendMemory, "put", classifyCommon(err), err)
	}

	s.mu.Lock()
	s.records[key.Path()] = rec
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, tenantID, logID string) (models.ProcessedRecord, error) {
	key := Key{TenantID: tenantID, LogID: logID}
	if err := key.Validate(); err != nil {
		return models.ProcessedRecord{}, newError(BackendMemory, "get", KindInvalidKey, err)
	}
	if err := ctx.Err(); err != nil {
		return models.ProcessedRecord{}, newError(BackendMemory, "get", classifyCommon(err), err)
	}

	s.mu.RLock()
	rec, ok := s.records[key.Path()]
	s.mu.RUnlock()
	if !ok {
		return models.ProcessedRecord{}, ErrNotFound
	}
	return rec, nil
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
