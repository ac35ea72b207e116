package config

import (
	"errors"
	"fmt"
	"strings"

	"logworker/internal/constants"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// ValidateStatic checks cfg without touching the network. All failures are
// joined so each can be recovered with errors.As.
func ValidateStatic(cfg *Config) error {
	var errs []error

	validators := []func(*Config) error{
		func(c *Config) error { return validateServer(c.Server) },
		func(c *Config) error { return validateDatabase(c.Database) },
		validateBroker,
		func(c *Config) error { return validateProcessing(c.Processing) },
		validateStorage,
		validateDeadLetter,
		func(c *Config) error { return validateRateLimit(c.Ingress.RateLimit) },
	}

	for _, validate := range validators {
		if err := validate(cfg); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func validateServer(cfg ServerConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.ReadTimeout <= 0 {
		return &ValidationError{
			Field:   "server.read_timeout",
			Message: "read timeout must be positive",
		}
	}

	if cfg.WriteTimeout <= 0 {
		return &ValidationError{
			Field:   "server.write_timeout",
			Message: "write timeout must be positive",
		}
	}

	if cfg.RequestTimeout < 0 {
		return &ValidationError{
			Field:   "server.request_timeout",
			Message: "request timeout must be non-negative",
		}
	}

	return nil
}

func validateBroker(cfg *Config) error {
	switch cfg.Broker.Type {
	case constants.BrokerTypePush:
		return nil
	case constants.BrokerTypeKafka:
		return validateKafka(cfg.Broker.Kafka)
	case constants.BrokerTypeRedis:
		if err := requireRedis(cfg.Database.Redis, "broker.type"); err != nil {
			return err
		}
		return validateRedisStream(cfg.Broker.Redis)
	default:
		return &ValidationError{
			Field:   "broker.type",
			Message: fmt.Sprintf("unknown broker type: %s (supported: push, kafka, redis)", cfg.Broker.Type),
		}
	}
}

func validateKafka(cfg KafkaConfig) error {
	if err := validateKafkaBrokers(cfg.Brokers, "broker.kafka.brokers"); err != nil {
		return err
	}

	if cfg.GroupID == "" {
		return &ValidationError{
			Field:   "broker.kafka.group_id",
			Message: "Kafka consumer group ID is required",
		}
	}

	if cfg.InputTopic == "" {
		return &ValidationError{
			Field:   "broker.kafka.input_topic",
			Message: "Kafka input topic is required",
		}
	}

	return validateRetry(cfg.Retry)
}

func validateKafkaBrokers(brokers []string, field string) error {
	if len(brokers) == 0 {
		return &ValidationError{
			Field:   field,
			Message: "at least one Kafka broker is required",
		}
	}

	for i, broker := range brokers {
		if broker == "" {
			return &ValidationError{
				Field:   fmt.Sprintf("%s[%d]", field, i),
				Message: "broker address cannot be empty",
			}
		}
	}

	return nil
}

func validateRetry(cfg RetryConfig) error {
	if cfg.MaxAttempts < 0 {
		return &ValidationError{
			Field:   "broker.kafka.retry.max_attempts",
			Message: "max_attempts must be non-negative",
		}
	}

	if cfg.InitialInterval < 0 || cfg.MaxInterval < 0 {
		return &ValidationError{
			Field:   "broker.kafka.retry",
			Message: "retry intervals must be non-negative",
		}
	}

	if cfg.MaxInterval > 0 && cfg.InitialInterval > 0 && cfg.MaxInterval < cfg.InitialInterval {
		return &ValidationError{
			Field:   "broker.kafka.retry.max_interval",
			Message: "max_interval must be greater than or equal to initial_interval",
		}
	}

	if cfg.Multiplier <= 0 {
		return &ValidationError{
			Field:   "broker.kafka.retry.multiplier",
			Message: "multiplier must be positive",
		}
	}

	return nil
}

func validateRedisStream(cfg RedisStreamConfig) error {
	if cfg.Stream == "" {
		return &ValidationError{Field: "broker.redis.stream", Message: "stream name is required"}
	}

	if cfg.Group == "" {
		return &ValidationError{Field: "broker.redis.group", Message: "consumer group is required"}
	}

	if cfg.BatchSize < 1 {
		return &ValidationError{Field: "broker.redis.batch_size", Message: "batch size must be at least 1"}
	}

	if cfg.MinIdle <= 0 {
		return &ValidationError{Field: "broker.redis.min_idle", Message: "min idle must be positive"}
	}

	if cfg.MaxDeliveries < 1 {
		return &ValidationError{Field: "broker.redis.max_deliveries", Message: "max deliveries must be at least 1"}
	}

	return nil
}

func validateProcessing(cfg ProcessingConfig) error {
	if cfg.DelayPerChar < 0 {
		return &ValidationError{
			Field:   "processing.delay_per_char",
			Message: "delay per character must be non-negative",
		}
	}

	if cfg.MaxConcurrency < 1 {
		return &ValidationError{
			Field:   "processing.max_concurrency",
			Message: fmt.Sprintf("max concurrency must be at least 1, got %d", cfg.MaxConcurrency),
		}
	}

	if cfg.Timeout < 0 {
		return &ValidationError{
			Field:   "processing.timeout",
			Message: "timeout must be non-negative",
		}
	}

	return nil
}

func validateStorage(cfg *Config) error {
	if cfg.Storage.RedisTTLSeconds < 0 {
		return &ValidationError{
			Field:   "storage.redis_ttl_seconds",
			Message: "TTL must be non-negative",
		}
	}

	switch cfg.Storage.Backend {
	case constants.StorageBackendMemory:
		return nil
	case constants.StorageBackendMongoDB:
		if cfg.Database.MongoDB.URI == "" {
			return &ValidationError{Field: "database.mongodb.uri", Message: "required by storage.backend=mongodb"}
		}
	case constants.StorageBackendPostgres:
		if cfg.Database.Postgres.Host == "" {
			return &ValidationError{Field: "database.postgres.host", Message: "required by storage.backend=postgres"}
		}
	case constants.StorageBackendRedis:
		return requireRedis(cfg.Database.Redis, "storage.backend")
	case constants.StorageBackendPebble:
		if cfg.Storage.Pebble.Dir == "" {
			return &ValidationError{Field: "storage.pebble.dir", Message: "required by storage.backend=pebble"}
		}
	default:
		return &ValidationError{
			Field:   "storage.backend",
			Message: fmt.Sprintf("unknown storage backend: %s (supported: memory, mongodb, postgres, redis, pebble)", cfg.Storage.Backend),
		}
	}

	return nil
}

func validateDeadLetter(cfg *Config) error {
	switch cfg.DeadLetter.Type {
	case "", constants.DeadLetterNone:
		return nil
	case constants.DeadLetterKafka:
		if cfg.DeadLetter.Topic == "" {
			return &ValidationError{Field: "dead_letter.topic", Message: "topic is required for kafka dead letters"}
		}
		return validateKafkaBrokers(cfg.Broker.Kafka.Brokers, "broker.kafka.brokers")
	case constants.DeadLetterRedis:
		if cfg.DeadLetter.Stream == "" {
			return &ValidationError{Field: "dead_letter.stream", Message: "stream is required for redis dead letters"}
		}
		return requireRedis(cfg.Database.Redis, "dead_letter.type")
	default:
		return &ValidationError{
			Field:   "dead_letter.type",
			Message: fmt.Sprintf("unknown dead letter type: %s (supported: none, kafka, redis)", cfg.DeadLetter.Type),
		}
	}
}

func validateRateLimit(cfg RateLimitConfig) error {
	if !cfg.Enabled {
		return nil
	}

	if cfg.RPS <= 0 {
		return &ValidationError{Field: "ingress.rate_limit.rps", Message: "rps must be positive"}
	}

	if cfg.Burst < 1 {
		return &ValidationError{Field: "ingress.rate_limit.burst", Message: "burst must be at least 1"}
	}

	return nil
}

func requireRedis(cfg RedisConfig, requiredBy string) error {
	if cfg.Host == "" {
		return &ValidationError{
			Field:   "database.redis.host",
			Message: fmt.Sprintf("Redis host is required by %s", requiredBy),
		}
	}
	return nil
}

func validateDatabase(cfg DatabaseConfig) error {
	if cfg.Postgres.Host != "" || cfg.Postgres.Port > 0 {
		if err := validatePostgres(cfg.Postgres); err != nil {
			return err
		}
	}

	if cfg.Redis.Host != "" || cfg.Redis.Port > 0 {
		if err := validateRedis(cfg.Redis); err != nil {
			return err
		}
	}

	if cfg.MongoDB.URI != "" {
		if err := validateMongoDB(cfg.MongoDB); err != nil {
			return err
		}
	}

	return nil
}

func validatePostgres(cfg PostgresConfig) error {
	if cfg.Host == "" {
		return &ValidationError{
			Field:   "database.postgres.host",
			Message: "PostgreSQL host is required",
		}
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "database.postgres.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.User == "" {
		return &ValidationError{
			Field:   "database.postgres.user",
			Message: "PostgreSQL user is required",
		}
	}

	if cfg.DBName == "" {
		return &ValidationError{
			Field:   "database.postgres.dbname",
			Message: "PostgreSQL database name is required",
		}
	}

	validSSLModes := map[string]bool{
		"disable": true, "allow": true, "prefer": true,
		"require": true, "verify-ca": true, "verify-full": true,
	}
	if cfg.SSLMode != "" && !validSSLModes[strings.ToLower(cfg.SSLMode)] {
		return &ValidationError{
			Field:   "database.postgres.sslmode",
			Message: fmt.Sprintf("invalid SSL mode: %s", cfg.SSLMode),
		}
	}

	return nil
}

func validateRedis(cfg RedisConfig) error {
	if cfg.Host == "" {
		return &ValidationError{
			Field:   "database.redis.host",
			Message: "Redis host is required",
		}
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "database.redis.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	return nil
}

func validateMongoDB(cfg MongoDBConfig) error {
	if !strings.HasPrefix(cfg.URI, "mongodb://") && !strings.HasPrefix(cfg.URI, "mongodb+srv://") {
		return &ValidationError{
			Field:   "database.mongodb.uri",
			Message: "MongoDB URI must start with mongodb:// or mongodb+srv://",
		}
	}

	return nil
}
