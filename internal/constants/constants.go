package constants

import "time"

const (
	ServiceName    = "worker-service"
	ServiceVersion = "1.0.0"
)

const (
	KafkaBatchTimeout = 10 * time.Millisecond
	KafkaWriteTimeout = 10 * time.Second
	// AckTimeout bounds a commit or XACK, which still runs after shutdown begins.
	AckTimeout = 5 * time.Second
)

const (
	DefaultDelayPerChar   = 50 * time.Millisecond
	DefaultMaxConcurrency = 64
)

const (
	DefaultMongoDBName     = "logworker"
	DefaultCollection      = "processed_logs"
	DefaultPebbleDir       = "data/pebble"
	DefaultStreamBlockTime = 5 * time.Second
	DefaultStreamMinIdle   = time.Minute
	DefaultMaxDeliveries   = 5
)

const (
	BrokerTypePush  = "push"
	BrokerTypeKafka = "kafka"
	BrokerTypeRedis = "redis"
)

const (
	StorageBackendMemory   = "memory"
	StorageBackendMongoDB  = "mongodb"
	StorageBackendPostgres = "postgres"
	StorageBackendRedis    = "redis"
	StorageBackendPebble   = "pebble"
)

const (
	DeadLetterNone  = "none"
	DeadLetterKafka = "kafka"
	DeadLetterRedis = "redis"
)

const (
	ShutdownTimeout    = 5 * time.Second
	HealthCheckTimeout = 5 * time.Second
	InitTimeout        = 30 * time.Second
)
