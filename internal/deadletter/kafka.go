package deadletter

import (
	"context"
	"fmt"

	"github.com/segmentio/kafka-go"

	"logworker/internal/constants"
	"logworker/pkg/metrics"
	"logworker/pkg/tracing"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes entries as JSON, keyed by message id so retries of one delivery share a partition.
type KafkaSink struct {
	writer messageWriter
	topic  string
}

func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	return newKafkaSink(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		BatchTimeout: constants.KafkaBatchTimeout,
		WriteTimeout: constants.KafkaWriteTimeout,
		RequiredAcks: kafka.RequireAll,
	}, topic)
}

func newKafkaSink(w messageWriter, topic string) *KafkaSink {
	return &KafkaSink{writer: w, topic: topic}
}

func (s *KafkaSink) Send(ctx context.Context, entry Entry) error {
	body, err := entry.Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal dead-letter entry: %w", err)
	}

	headers := []kafka.Header{{Key: "dlq_reason", Value: []byte(entry.Reason)}}
	headers = tracing.InjectTraceContext(ctx, headers)

	err = s.writer.WriteMessages(ctx, kafka.Message{
		Topic:   s.topic,
		Key:     []byte(entry.MessageID),
		Value:   body,
		Headers: headers,
		Time:    entry.FailedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to write dead-letter message to %s: %w", s.topic, err)
	}
	metrics.IncKafkaMessagesWritten(s.topic)
	return nil
}

func (s *KafkaSink) Enabled() bool { return true }
func (s *KafkaSink) Name() string  { return "kafka" }

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
