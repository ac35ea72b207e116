package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"logworker/internal/constants"
)

func LoadConfig(configFile string) (*Config, error) {
	viper.Reset()

	viper.SetConfigType("yaml")
	viper.SetConfigFile(configFile)

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEnvOverrides(&cfg)

	if err := ValidateStatic(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "600s")
	viper.SetDefault("server.request_timeout", "540s")

	viper.SetDefault("broker.type", constants.BrokerTypePush)
	viper.SetDefault("broker.kafka.input_topic", "log-ingestion")
	viper.SetDefault("broker.kafka.retry.max_attempts", 3)
	viper.SetDefault("broker.kafka.retry.initial_interval", "1s")
	viper.SetDefault("broker.kafka.retry.max_interval", "30s")
	viper.SetDefault("broker.kafka.retry.multiplier", 2.0)
	viper.SetDefault("broker.redis.stream", "log-ingestion")
	viper.SetDefault("broker.redis.group", "worker")
	viper.SetDefault("broker.redis.batch_size", 10)
	viper.SetDefault("broker.redis.block_time", constants.DefaultStreamBlockTime.String())
	viper.SetDefault("broker.redis.min_idle", constants.DefaultStreamMinIdle.String())
	viper.SetDefault("broker.redis.max_deliveries", constants.DefaultMaxDeliveries)

	viper.SetDefault("processing.delay_per_char", constants.DefaultDelayPerChar.String())
	viper.SetDefault("processing.max_concurrency", constants.DefaultMaxConcurrency)

	viper.SetDefault("storage.backend", constants.StorageBackendMemory)
	viper.SetDefault("storage.collection", constants.DefaultCollection)
	viper.SetDefault("storage.pebble.dir", constants.DefaultPebbleDir)

	viper.SetDefault("dead_letter.type", constants.DeadLetterNone)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
}

func bindEnvVariables() {
	viper.BindEnv("broker.type", "BROKER_TYPE")
	viper.BindEnv("broker.kafka.brokers", "BROKER_KAFKA_BROKERS")
	viper.BindEnv("broker.kafka.group_id", "BROKER_KAFKA_GROUP_ID")
	viper.BindEnv("broker.kafka.input_topic", "BROKER_KAFKA_INPUT_TOPIC")
	viper.BindEnv("broker.redis.stream", "BROKER_REDIS_STREAM")
	viper.BindEnv("broker.redis.group", "BROKER_REDIS_GROUP")
	viper.BindEnv("broker.redis.consumer", "BROKER_REDIS_CONSUMER")

	viper.BindEnv("database.postgres.host", "DATABASE_POSTGRES_HOST")
	viper.BindEnv("database.postgres.port", "DATABASE_POSTGRES_PORT")
	viper.BindEnv("database.postgres.user", "DATABASE_POSTGRES_USER")
	viper.BindEnv("database.postgres.password", "DATABASE_POSTGRES_PASSWORD")
	viper.BindEnv("database.postgres.dbname", "DATABASE_POSTGRES_DBNAME")
	viper.BindEnv("database.postgres.sslmode", "DATABASE_POSTGRES_SSLMODE")

	viper.BindEnv("database.redis.host", "DATABASE_REDIS_HOST")
	viper.BindEnv("database.redis.port", "DATABASE_REDIS_PORT")
	viper.BindEnv("database.redis.password", "DATABASE_REDIS_PASSWORD")
	viper.BindEnv("database.redis.db", "DATABASE_REDIS_DB")

	viper.BindEnv("database.mongodb.uri", "DATABASE_MONGODB_URI")
	viper.BindEnv("database.mongodb.database", "DATABASE_MONGODB_DATABASE")

	viper.BindEnv("server.port", "SERVER_PORT", "PORT")
	viper.BindEnv("server.request_timeout", "SERVER_REQUEST_TIMEOUT")

	viper.BindEnv("processing.delay_per_char", "PROCESSING_DELAY_PER_CHAR")
	viper.BindEnv("processing.max_concurrency", "PROCESSING_MAX_CONCURRENCY")
	viper.BindEnv("processing.timeout", "PROCESSING_TIMEOUT")

	viper.BindEnv("storage.backend", "STORAGE_BACKEND")
	viper.BindEnv("storage.pebble.dir", "STORAGE_PEBBLE_DIR")

	viper.BindEnv("dead_letter.type", "DEAD_LETTER_TYPE")
	viper.BindEnv("dead_letter.topic", "DEAD_LETTER_TOPIC")
	viper.BindEnv("dead_letter.stream", "DEAD_LETTER_STREAM")

	viper.BindEnv("logging.level", "LOGGING_LEVEL", "LOG_LEVEL")
	viper.BindEnv("logging.format", "LOGGING_FORMAT")

	viper.BindEnv("tracing.otlp.endpoint", "TRACING_OTLP_ENDPOINT")
	viper.BindEnv("tracing.otlp.insecure", "TRACING_OTLP_INSECURE")
	viper.BindEnv("tracing.enabled", "TRACING_ENABLED")
	viper.BindEnv("tracing.service_name", "TRACING_SERVICE_NAME")
}

func applyEnvOverrides(cfg *Config) {
	if brokersEnv := viper.GetString("BROKER_KAFKA_BROKERS"); brokersEnv != "" {
		brokers := strings.Split(brokersEnv, ",")
		for i := range brokers {
			brokers[i] = strings.TrimSpace(brokers[i])
		}
		if len(brokers) > 0 && brokers[0] != "" {
			cfg.Broker.Kafka.Brokers = brokers
		}
	}

	cfg.Storage.Backend = strings.ToLower(cfg.Storage.Backend)
	cfg.Broker.Type = strings.ToLower(cfg.Broker.Type)
	cfg.DeadLetter.Type = strings.ToLower(cfg.DeadLetter.Type)
}
