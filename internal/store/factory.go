package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"logworker/internal/config"
	"logworker/internal/constants"
)

// Clients carries the connections bootstrap opened; only the one the backend needs is required.
type Clients struct {
	Mongo    *mongo.Database
	Postgres *sql.DB
	Redis    redis.UniversalClient
	Pebble   *pebble.DB
}

// New builds the configured backend wrapped in the circuit breaker and instrumentation.
func New(cfg config.StorageConfig, cb config.CircuitBreakerConfig, clients Clients) (Store, error) {
	if cfg.Backend == "" {
		cfg.Backend = constants.StorageBackendMemory
	}

	backend, err := newBackend(cfg, clients)
	if err != nil {
		return nil, err
	}

	var s Store = backend
	if cfg.Backend != constants.StorageBackendMemory {
		s = NewCircuitBreakerStore(s, cfg.Backend, cb)
	}
	return NewInstrumentedStore(s, cfg.Backend), nil
}

func newBackend(cfg config.StorageConfig, clients Clients) (Store, error) {
	switch cfg.Backend {
	case constants.StorageBackendMemory:
		return NewMemoryStore(), nil
	case constants.StorageBackendMongoDB:
		if clients.Mongo == nil {
			return nil, fmt.Errorf("storage backend %q requires a mongodb connection", cfg.Backend)
		}
		collection := cfg.Collection
		if collection == "" {
			collection = constants.DefaultCollection
		}
		return NewMongoStore(clients.Mongo, collection), nil
	case constants.StorageBackendPostgres:
		if clients.Postgres == nil {
			return nil, fmt.Errorf("storage backend %q requires a postgres connection", cfg.Backend)
		}
		return NewPostgresStore(clients.Postgres), nil
	case constants.StorageBackendRedis:
		if clients.Redis == nil {
			return nil, fmt.Errorf("storage backend %q requires a redis connection", cfg.Backend)
		}
		return NewRedisStore(clients.Redis, time.Duration(cfg.RedisTTLSeconds)*time.Second), nil
	case constants.StorageBackendPebble:
		if clients.Pebble == nil {
			return nil, fmt.Errorf("storage backend %q requires an open pebble db", cfg.Backend)
		}
		return NewPebbleStore(clients.Pebble), nil
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Backend)
	}
}
