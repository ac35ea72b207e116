package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "worker.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "logging:\n  level: debug\n"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "push", cfg.Broker.Type)
	assert.Equal(t, 50*time.Millisecond, cfg.Processing.DelayPerChar)
	assert.Equal(t, 64, cfg.Processing.MaxConcurrency)
	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.Equal(t, "none", cfg.DeadLetter.Type)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_ExampleFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join("..", "..", "configs", "worker.yaml"))
	require.NoError(t, err)

	assert.Equal(t, []string{"localhost:9092"}, cfg.Broker.Kafka.Brokers)
	assert.Equal(t, 60*time.Second, cfg.Broker.Redis.MinIdle)
	assert.True(t, cfg.CircuitBreaker.Enabled)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PROCESSING_DELAY_PER_CHAR", "10ms")
	t.Setenv("STORAGE_BACKEND", "PEBBLE")
	t.Setenv("BROKER_KAFKA_BROKERS", "k1:9092, k2:9092")

	cfg, err := LoadConfig(writeConfig(t, "server:\n  port: 9090\n"))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 10*time.Millisecond, cfg.Processing.DelayPerChar)
	assert.Equal(t, "pebble", cfg.Storage.Backend)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Broker.Kafka.Brokers)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080, ReadTimeout: time.Second, WriteTimeout: time.Second},
		Broker: BrokerConfig{Type: "push"},
		Processing: ProcessingConfig{
			DelayPerChar:   50 * time.Millisecond,
			MaxConcurrency: 4,
		},
		Storage: StorageConfig{Backend: "memory"},
	}
}

func TestValidateStatic(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "zero delay is legal", mutate: func(c *Config) { c.Processing.DelayPerChar = 0 }},
		{name: "negative delay", mutate: func(c *Config) { c.Processing.DelayPerChar = -time.Millisecond }, field: "processing.delay_per_char"},
		{name: "zero concurrency", mutate: func(c *Config) { c.Processing.MaxConcurrency = 0 }, field: "processing.max_concurrency"},
		{name: "bad port", mutate: func(c *Config) { c.Server.Port = 0 }, field: "server.port"},
		{name: "unknown broker", mutate: func(c *Config) { c.Broker.Type = "rabbitmq" }, field: "broker.type"},
		{name: "kafka without brokers", mutate: func(c *Config) { c.Broker.Type = "kafka" }, field: "broker.kafka.brokers"},
		{name: "redis broker without redis", mutate: func(c *Config) { c.Broker.Type = "redis" }, field: "database.redis.host"},
		{name: "unknown backend", mutate: func(c *Config) { c.Storage.Backend = "firestore" }, field: "storage.backend"},
		{name: "mongodb backend without uri", mutate: func(c *Config) { c.Storage.Backend = "mongodb" }, field: "database.mongodb.uri"},
		{name: "pebble backend without dir", mutate: func(c *Config) { c.Storage.Backend = "pebble" }, field: "storage.pebble.dir"},
		{name: "kafka dead letter without topic", mutate: func(c *Config) { c.DeadLetter.Type = "kafka" }, field: "dead_letter.topic"},
		{name: "rate limit without rps", mutate: func(c *Config) { c.Ingress.RateLimit.Enabled = true }, field: "ingress.rate_limit.rps"},
		{name: "bad mongodb uri", mutate: func(c *Config) { c.Database.MongoDB.URI = "http://mongo" }, field: "database.mongodb.uri"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := ValidateStatic(cfg)
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}

			var vErr *ValidationError
			require.True(t, errors.As(err, &vErr), "expected ValidationError, got %v", err)
			assert.Equal(t, tt.field, vErr.Field)
		})
	}
}
