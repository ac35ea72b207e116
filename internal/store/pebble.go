package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/cockroachdb/pebble"

	"logworker/pkg/models"
)

const BackendPebble = "pebble"

// PebbleStore is an embedded single-node backend. Writes are synced before Put returns.
type PebbleStore struct {
	db *pebble.DB
}

func NewPebbleStore(db *pebble.DB) *PebbleStore {
	return &PebbleStore{db: db}
}

func (s *PebbleStore) Put(ctx context.Context, tenantID, logID string, rec models.ProcessedRecord) (err error) {
	defer recoverClosed("put", &err)

	key := Key{TenantID: tenantID, LogID: logID}
	if err := key.Validate(); err != nil {
		return newError(BackendPebble, "put", KindInvalidKey, err)
	}
	if err := ctx.Err(); err != nil {
		return newError(BackendPebble, "put", classifyCommon(err), err)
	}

	body, err := json.Marshal(newDocument(key, rec))
	if err != nil {
		return newError(BackendPebble, "put", KindEncoding, err)
	}

	if err := s.db.Set([]byte(key.Path()), body, pebble.Sync); err != nil {
		return newError(BackendPebble, "put", classifyPebble(err), err)
	}
	return nil
}

func (s *PebbleStore) Get(ctx context.Context, tenantID, logID string) (_ models.ProcessedRecord, err error) {
	defer recoverClosed("get", &err)

	key := Key{TenantID: tenantID, LogID: logID}
	if err := key.Validate(); err != nil {
		return models.ProcessedRecord{}, newError(BackendPebble, "get", KindInvalidKey, err)
	}
	if err := ctx.Err(); err != nil {
		return models.ProcessedRecord{}, newError(BackendPebble, "get", classifyCommon(err), err)
	}

	value, closer, err := s.db.Get([]byte(key.Path()))
	if errors.Is(err, pebble.ErrNotFound) {
		return models.ProcessedRecord{}, ErrNotFound
	}
	if err != nil {
		return models.ProcessedRecord{}, newError(BackendPebble, "get", classifyPebble(err), err)
	}

	var doc document
	decodeErr := json.Unmarshal(value, &doc)
	_ = closer.Close()
	if decodeErr != nil {
		return models.ProcessedRecord{}, newError(BackendPebble, "get", KindEncoding, decodeErr)
	}

	rec, err := doc.record()
	if err != nil {
		return models.ProcessedRecord{}, newError(BackendPebble, "get", KindEncoding, err)
	}
	return rec, nil
}

// recoverClosed converts the panic pebble raises on a closed DB into an Error.
func recoverClosed(op string, err *error) {
	r := recover()
	if r == nil {
		return
	}
	if e, ok := r.(error); ok && errors.Is(e, pebble.ErrClosed) {
		*err = newError(BackendPebble, op, KindUnavailable, e)
		return
	}
	panic(r)
}

func classifyPebble(err error) ErrorKind {
	switch {
	case errors.Is(err, pebble.ErrClosed):
		return KindUnavailable
	case errors.Is(err, pebble.ErrReadOnly):
		return KindPermission
	default:
		return KindUnknown
	}
}
