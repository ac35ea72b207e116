package store

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"logworker/pkg/models"
)

const BackendRedis = "redis"

// RedisStore writes each record as a JSON string at its namespace path.
type RedisStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisStore returns a store whose keys expire after ttl; zero keeps them forever.
func NewRedisStore(client redis.UniversalClient, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Put(ctx context.Context, tenantID, logID string, rec models.ProcessedRecord) error {
	key := Key{TenantID: tenantID, LogID: logID}
	if err := key.Validate(); err != nil {
		return newError(BackendRedis, "put", KindInvalidKey, err)
	}

	body, err := json.Marshal(newDocument(key, rec))
	if err != nil {
		return newError(BackendRedis, "put", KindEncoding, err)
	}

	if err := s.client.Set(ctx, key.Path(), body, s.ttl).Err(); err != nil {
		return newError(BackendRedis, "put", classifyRedis(err), err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, tenantID, logID string) (models.ProcessedRecord, error) {
	key := Key{TenantID: tenantID, LogID: logID}
	if err := key.Validate(); err != nil {
		return models.ProcessedRecord{}, newError(BackendRedis, "get", KindInvalidKey, err)
	}

	body, err := s.client.Get(ctx, key.Path()).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.ProcessedRecord{}, ErrNotFound
	}
	if err != nil {
		return models.ProcessedRecord{}, newError(BackendRedis, "get", classifyRedis(err), err)
	}

	var doc document
	if err := json.Unmarshal(body, &doc); err != nil {
		return models.ProcessedRecord{}, newError(BackendRedis, "get", KindEncoding, err)
	}
	rec, err := doc.record()
	if err != nil {
		return models.ProcessedRecord{}, newError(BackendRedis, "get", KindEncoding, err)
	}
	return rec, nil
}

func classifyRedis(err error) ErrorKind {
	if kind := classifyCommon(err); kind != "" {
		return kind
	}

	if errors.Is(err, redis.ErrClosed) {
		return KindUnavailable
	}

	msg := err.Error()
	switch {
	case strings.HasPrefix(msg, "NOAUTH"), strings.HasPrefix(msg, "NOPERM"), strings.HasPrefix(msg, "WRONGPASS"):
		return KindPermission
	case strings.HasPrefix(msg, "OOM"):
		return KindQuota
	case strings.HasPrefix(msg, "LOADING"), strings.HasPrefix(msg, "READONLY"),
		strings.HasPrefix(msg, "CLUSTERDOWN"), strings.HasPrefix(msg, "MASTERDOWN"):
		return KindUnavailable
	default:
		return KindUnknown
	}
}
