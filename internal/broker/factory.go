package broker

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"logworker/internal/config"
	"logworker/internal/constants"
	"logworker/internal/deadletter"
	"logworker/internal/logger"
)

// NewProducer returns a producer for the configured pull transport. Push mode has none.
func NewProducer(cfg config.BrokerConfig, rdb redis.UniversalClient, log logger.Logger) (Producer, error) {
	switch cfg.Type {
	case constants.BrokerTypeKafka:
		return NewKafkaProducer(cfg.Kafka, log), nil
	case constants.BrokerTypeRedis:
		if rdb == nil {
			return nil, fmt.Errorf("broker type redis requires a redis connection")
		}
		return NewRedisStreamProducer(rdb), nil
	default:
		return nil, fmt.Errorf("broker type %q has no producer", cfg.Type)
	}
}

// NewConsumer returns nil, nil in push mode.
func NewConsumer(cfg config.BrokerConfig, maxConcurrency int, rdb redis.UniversalClient, sink deadletter.Sink, log logger.Logger) (Consumer, error) {
	switch cfg.Type {
	case constants.BrokerTypePush, "":
		return nil, nil
	case constants.BrokerTypeKafka:
		return NewKafkaConsumer(cfg.Kafka, maxConcurrency, sink, log), nil
	case constants.BrokerTypeRedis:
		if rdb == nil {
			return nil, fmt.Errorf("broker type redis requires a redis connection")
		}
		return NewRedisStreamConsumer(rdb, cfg.Redis, maxConcurrency, sink, log), nil
	default:
		return nil, fmt.Errorf("unknown broker type: %s", cfg.Type)
	}
}

// Destination is the topic or stream the configured transport consumes.
func Destination(cfg config.BrokerConfig) string {
	if cfg.Type == constants.BrokerTypeRedis {
		return cfg.Redis.Stream
	}
	return cfg.Kafka.InputTopic
}
