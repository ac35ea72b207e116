package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"golang.org/x/sync/errgroup"

	"logworker/internal/config"
	"logworker/internal/constants"
	"logworker/internal/deadletter"
	"logworker/internal/logger"
	pkgerrors "logworker/pkg/errors"
	"logworker/pkg/logging"
	"logworker/pkg/metrics"
	"logworker/pkg/models"
	"logworker/pkg/retry"
	"logworker/pkg/tracing"
)

type KafkaProducer struct {
	writer *kafka.Writer
	logger logger.Logger
}

func NewKafkaProducer(cfg config.KafkaConfig, log logger.Logger) *KafkaProducer {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		BatchTimeout:           constants.KafkaBatchTimeout,
		WriteTimeout:           constants.KafkaWriteTimeout,
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &KafkaProducer{writer: w, logger: log}
}

func (p *KafkaProducer) Publish(ctx context.Context, topic string, msg Message) error {
	headers := tracing.InjectTraceContext(ctx, headersFromAttributes(msg.Attributes))

	err := p.writer.WriteMessages(ctx, kafka.Message{
		Topic:   topic,
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: headers,
		Time:    time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to write kafka message: %w", err)
	}

	metrics.IncKafkaMessagesWritten(topic)
	return nil
}

func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}

type kafkaReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConsumer reads one topic in a consumer group and handles up to maxConcurrency
// messages at once. Offsets are committed through an offsetTracker.
type KafkaConsumer struct {
	cfg            config.KafkaConfig
	maxConcurrency int
	sink           deadletter.Sink
	logger         logger.Logger

	mu      sync.Mutex
	reader  kafkaReader
	tracker *offsetTracker

	// commitMu orders commits so a partition's committed offset never moves backwards.
	commitMu  sync.Mutex
	committed map[int]int64
}

func NewKafkaConsumer(cfg config.KafkaConfig, maxConcurrency int, sink deadletter.Sink, log logger.Logger) *KafkaConsumer {
	if maxConcurrency <= 0 {
		maxConcurrency = constants.DefaultMaxConcurrency
	}
	if sink == nil {
		sink = deadletter.NoopSink{}
	}
	return &KafkaConsumer{
		cfg:            cfg,
		maxConcurrency: maxConcurrency,
		sink:           sink,
		logger:         log,
		tracker:        newOffsetTracker(),
		committed:      make(map[int]int64),
	}
}

func (c *KafkaConsumer) Consume(ctx context.Context, handler HandlerFunc) error {
	c.logger.Infow("Creating Kafka reader",
		"topic", c.cfg.InputTopic,
		"brokers", c.cfg.Brokers,
		"group_id", c.cfg.GroupID,
		"max_concurrency", c.maxConcurrency,
	)

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  c.cfg.Brokers,
		GroupID:  c.cfg.GroupID,
		Topic:    c.cfg.InputTopic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	c.mu.Lock()
	c.reader = reader
	c.mu.Unlock()

	return c.consume(ctx, reader, handler)
}

func (c *KafkaConsumer) consume(ctx context.Context, reader kafkaReader, handler HandlerFunc) error {
	consumeCtx := logging.WithServiceName(ctx, constants.ServiceName)
	c.logger.InfowCtx(consumeCtx, "Started consuming", "topic", c.cfg.InputTopic)

	g := new(errgroup.Group)
	g.SetLimit(c.maxConcurrency)

	for {
		fetchStart := time.Now()
		m, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.InfowCtx(consumeCtx, "Stopped consuming",
					"topic", c.cfg.InputTopic,
					"reason", "context canceled",
				)
				break
			}
			c.logger.ErrorwCtx(consumeCtx, "Error fetching kafka message",
				"error", err,
				"topic", c.cfg.InputTopic,
			)
			if !sleepCtx(ctx, time.Second) {
				break
			}
			continue
		}
		metrics.IncKafkaMessagesRead(m.Topic)
		metrics.ObserveKafkaReadDuration(m.Topic, time.Since(fetchStart))

		c.tracker.Track(m.Partition, m.Offset)
		// Go blocks while maxConcurrency messages are in flight.
		g.Go(func() error {
			if c.deliver(ctx, m, handler) {
				c.commit(ctx, reader, m)
			}
			return nil
		})
	}

	_ = g.Wait()
	return ctx.Err()
}

// deliver reports whether m may be committed: handled, or parked in the dead-letter sink.
func (c *KafkaConsumer) deliver(ctx context.Context, m kafka.Message, handler HandlerFunc) bool {
	env := envelopeFromKafka(m, c.cfg.GroupID)

	msgCtx, span := tracing.StartSpanFromKafkaMessage(ctx, "kafka.consume", m.Headers)
	defer span.End()
	msgCtx = logging.WithMessageID(msgCtx, env.MessageID())
	msgCtx = logging.WithServiceName(msgCtx, constants.ServiceName)

	policy := c.retryPolicy()
	for round := 1; ; round++ {
		err := c.handleWithRetry(msgCtx, env, handler, policy)
		if err == nil {
			return true
		}
		if ctx.Err() != nil {
			return false
		}

		c.logger.ErrorwCtx(msgCtx, "Failed to process message after retries",
			"error", err,
			"topic", m.Topic,
			"round", round,
		)

		if c.sink.Enabled() {
			entry := deadletter.NewEntry(env, deadletter.ReasonMaxRetriesExceeded, err.Error(), time.Now())
			sendErr := c.sink.Send(msgCtx, entry)
			if sendErr == nil {
				c.logger.InfowCtx(msgCtx, "Message sent to DLQ",
					"source_topic", m.Topic,
					"sink", c.sink.Name(),
					"entry_id", entry.ID,
				)
				return true
			}
			c.logger.ErrorwCtx(msgCtx, "Failed to send message to DLQ",
				"error", sendErr,
				"topic", m.Topic,
			)
		}

		// Nothing parked the message, so the offset stays uncommitted and another round begins.
		if !sleepCtx(ctx, policy.Ceiling()) {
			return false
		}
	}
}

func (c *KafkaConsumer) handleWithRetry(ctx context.Context, env models.PushEnvelope, handler HandlerFunc, policy retry.Policy) error {
	return retry.RetryWithCallback(ctx, policy, func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = pkgerrors.RecoverPanic(r)
				c.logger.ErrorwCtx(ctx, "Panic recovered during message processing",
					"error", err,
					"topic", c.cfg.InputTopic,
				)
			}
		}()
		return handler(ctx, env)
	}, func(attempt int, err error, nextDelay time.Duration) {
		metrics.RetryAttemptsTotal.WithLabelValues(constants.ServiceName, c.cfg.InputTopic).Inc()
		c.logger.WarnwCtx(ctx, "Retrying message processing",
			"attempt", attempt,
			"max_attempts", policy.MaxAttempts,
			"next_delay", nextDelay,
			"error", err,
			"topic", c.cfg.InputTopic,
		)
	})
}

func (c *KafkaConsumer) commit(ctx context.Context, reader kafkaReader, m kafka.Message) {
	offset, ok := c.tracker.Done(m.Partition, m.Offset)
	if !ok {
		return
	}
	c.commitOffset(ctx, reader, m.Topic, m.Partition, offset)
}

// commitOffset skips offsets at or below the last one committed on the partition.
func (c *KafkaConsumer) commitOffset(ctx context.Context, reader kafkaReader, topic string, partition int, offset int64) {
	c.commitMu.Lock()
	defer c.commitMu.Unlock()

	if last, ok := c.committed[partition]; ok && offset <= last {
		return
	}

	// Commits go out even during shutdown so finished work is not redelivered.
	commitCtx := context.WithoutCancel(ctx)
	commitCtx, cancel := context.WithTimeout(commitCtx, constants.AckTimeout)
	defer cancel()

	err := reader.CommitMessages(commitCtx, kafka.Message{Topic: topic, Partition: partition, Offset: offset})
	if err != nil {
		c.logger.ErrorwCtx(ctx, "Failed to commit message",
			"error", err,
			"topic", topic,
			"partition", partition,
			"offset", offset,
		)
		return
	}
	c.committed[partition] = offset
	metrics.SetKafkaCommittedOffset(topic, partition, offset)
}

func (c *KafkaConsumer) retryPolicy() retry.Policy {
	policy := retry.DefaultPolicy()
	policy.MaxElapsedTime = 0

	r := c.cfg.Retry
	if r.MaxAttempts > 0 {
		policy.MaxAttempts = r.MaxAttempts
	}
	if r.InitialInterval > 0 {
		policy.InitialInterval = r.InitialInterval
	}
	if r.MaxInterval > 0 {
		policy.MaxInterval = r.MaxInterval
	}
	if r.Multiplier > 0 {
		policy.Multiplier = r.Multiplier
	}
	if r.MaxElapsedTime > 0 {
		policy.MaxElapsedTime = r.MaxElapsedTime
	}
	return policy
}

func (c *KafkaConsumer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.reader == nil {
		return nil
	}
	return c.reader.Close()
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
