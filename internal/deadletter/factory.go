package deadletter

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"logworker/internal/config"
	"logworker/internal/constants"
)

func New(cfg config.DeadLetterConfig, kafkaBrokers []string, rdb redis.UniversalClient) (Sink, error) {
	switch cfg.Type {
	case constants.DeadLetterNone, "":
		return NoopSink{}, nil
	case constants.DeadLetterKafka:
		if len(kafkaBrokers) == 0 {
			return nil, fmt.Errorf("dead_letter type kafka requires broker.kafka.brokers")
		}
		return Instrumented{Sink: NewKafkaSink(kafkaBrokers, cfg.Topic)}, nil
	case constants.DeadLetterRedis:
		if rdb == nil {
			return nil, fmt.Errorf("dead_letter type redis requires a redis connection")
		}
		return Instrumented{Sink: NewRedisSink(rdb, cfg.Stream, cfg.MaxLen)}, nil
	default:
		return nil, fmt.Errorf("unknown dead_letter type: %s", cfg.Type)
	}
}
