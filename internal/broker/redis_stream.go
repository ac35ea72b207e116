package broker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"logworker/internal/config"
	"logworker/internal/constants"
	"logworker/internal/deadletter"
	"logworker/internal/logger"
	pkgerrors "logworker/pkg/errors"
	"logworker/pkg/logging"
	"logworker/pkg/metrics"
	"logworker/pkg/models"
	"logworker/pkg/tracing"
)

// RedisStreamProducer appends records to a stream with the payload under PayloadField.
type RedisStreamProducer struct {
	client redis.UniversalClient
}

func NewRedisStreamProducer(client redis.UniversalClient) *RedisStreamProducer {
	return &RedisStreamProducer{client: client}
}

func (p *RedisStreamProducer) Publish(ctx context.Context, stream string, msg Message) error {
	values := make(map[string]interface{}, len(msg.Attributes)+1)
	for k, v := range tracing.InjectIntoAttributes(ctx, copyAttributes(msg.Attributes)) {
		values[k] = v
	}
	values[PayloadField] = string(msg.Value)

	if err := p.client.XAdd(ctx, &redis.XAddArgs{Stream: stream, Values: values}).Err(); err != nil {
		return fmt.Errorf("failed to add stream entry to %s: %w", stream, err)
	}
	return nil
}

// Close is a no-op; the client belongs to bootstrap.
func (p *RedisStreamProducer) Close() error {
	return nil
}

// RedisStreamConsumer reads a stream through a consumer group. Acked entries are XACKed;
// nacked entries stay pending and are reclaimed once idle for MinIdle. Entries this
// consumer still holds are heartbeated so their idle time stays below MinIdle.
type RedisStreamConsumer struct {
	client         redis.UniversalClient
	cfg            config.RedisStreamConfig
	maxConcurrency int
	sink           deadletter.Sink
	logger         logger.Logger
	inflight       *inflightSet
}

func NewRedisStreamConsumer(client redis.UniversalClient, cfg config.RedisStreamConfig, maxConcurrency int, sink deadletter.Sink, log logger.Logger) *RedisStreamConsumer {
	if maxConcurrency <= 0 {
		maxConcurrency = constants.DefaultMaxConcurrency
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.BlockTime <= 0 {
		cfg.BlockTime = constants.DefaultStreamBlockTime
	}
	if cfg.MinIdle <= 0 {
		cfg.MinIdle = constants.DefaultStreamMinIdle
	}
	if sink == nil {
		sink = deadletter.NoopSink{}
	}
	return &RedisStreamConsumer{
		client:         client,
		cfg:            cfg,
		maxConcurrency: maxConcurrency,
		sink:           sink,
		logger:         log,
		inflight:       newInflightSet(),
	}
}

// EnsureGroup creates the stream and group when missing.
func (c *RedisStreamConsumer) EnsureGroup(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, c.cfg.Stream, c.cfg.Group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group %s on %s: %w", c.cfg.Group, c.cfg.Stream, err)
	}
	return nil
}

func (c *RedisStreamConsumer) Consume(ctx context.Context, handler HandlerFunc) error {
	if err := c.EnsureGroup(ctx); err != nil {
		return err
	}

	consumeCtx := logging.WithServiceName(ctx, constants.ServiceName)
	c.logger.InfowCtx(consumeCtx, "Started consuming",
		"stream", c.cfg.Stream,
		"group", c.cfg.Group,
		"consumer", c.cfg.Consumer,
		"max_concurrency", c.maxConcurrency,
	)

	workers := new(errgroup.Group)
	workers.SetLimit(c.maxConcurrency)

	loops, loopCtx := errgroup.WithContext(ctx)
	loops.Go(func() error {
		return c.readLoop(loopCtx, workers, handler)
	})
	loops.Go(func() error {
		return c.reclaimLoop(loopCtx, workers, handler)
	})
	loops.Go(func() error {
		return c.heartbeatLoop(loopCtx)
	})

	err := loops.Wait()
	_ = workers.Wait()

	c.logger.InfowCtx(consumeCtx, "Stopped consuming", "stream", c.cfg.Stream)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (c *RedisStreamConsumer) readLoop(ctx context.Context, workers *errgroup.Group, handler HandlerFunc) error {
	for {
		streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    c.cfg.Group,
			Consumer: c.cfg.Consumer,
			Streams:  []string{c.cfg.Stream, ">"},
			Count:    c.cfg.BatchSize,
			Block:    c.cfg.BlockTime,
		}).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, redis.Nil) {
				continue
			}
			c.logger.ErrorwCtx(ctx, "Error reading redis stream",
				"error", err,
				"stream", c.cfg.Stream,
			)
			if !sleepCtx(ctx, time.Second) {
				return nil
			}
			continue
		}

		for _, s := range streams {
			metrics.IncStreamMessagesRead(s.Stream, "new", len(s.Messages))
			for _, m := range s.Messages {
				// Held from read time so entries queued behind a full pool are heartbeated too.
				if !c.inflight.acquire(m.ID) {
					continue
				}
				workers.Go(func() error {
					defer c.inflight.release(m.ID)
					c.deliver(ctx, m, handler)
					return nil
				})
			}
		}
	}
}

// reclaimLoop takes over entries left pending longer than MinIdle, by this or a dead consumer.
// Entries still held by this consumer are skipped.
func (c *RedisStreamConsumer) reclaimLoop(ctx context.Context, workers *errgroup.Group, handler HandlerFunc) error {
	interval := c.cfg.MinIdle / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		start := "0-0"
		for {
			msgs, next, err := c.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
				Stream:   c.cfg.Stream,
				Group:    c.cfg.Group,
				Consumer: c.cfg.Consumer,
				MinIdle:  c.cfg.MinIdle,
				Start:    start,
				Count:    c.cfg.BatchSize,
			}).Result()
			if err != nil {
				if ctx.Err() == nil {
					c.logger.ErrorwCtx(ctx, "Error reclaiming pending entries",
						"error", err,
						"stream", c.cfg.Stream,
					)
				}
				break
			}

			reclaimed := 0
			for _, m := range msgs {
				if !c.inflight.acquire(m.ID) {
					continue
				}
				reclaimed++
				workers.Go(func() error {
					defer c.inflight.release(m.ID)
					c.redeliver(ctx, m, handler)
					return nil
				})
			}
			metrics.IncStreamMessagesRead(c.cfg.Stream, "reclaimed", reclaimed)

			if next == "0-0" || next == "" {
				break
			}
			start = next
		}
	}
}

// heartbeatLoop re-claims held entries with JUSTID, which resets their idle time
// without counting a delivery.
func (c *RedisStreamConsumer) heartbeatLoop(ctx context.Context) error {
	ticker := time.NewTicker(c.heartbeatInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		ids := c.inflight.ids()
		if len(ids) == 0 {
			continue
		}
		err := c.client.XClaimJustID(ctx, &redis.XClaimArgs{
			Stream:   c.cfg.Stream,
			Group:    c.cfg.Group,
			Consumer: c.cfg.Consumer,
			Messages: ids,
		}).Err()
		if err != nil && ctx.Err() == nil {
			c.logger.WarnwCtx(ctx, "Failed to refresh in-flight entries",
				"error", err,
				"stream", c.cfg.Stream,
				"entries", len(ids),
			)
		}
	}
}

func (c *RedisStreamConsumer) heartbeatInterval() time.Duration {
	interval := c.cfg.MinIdle / 3
	if interval < 10*time.Millisecond {
		interval = 10 * time.Millisecond
	}
	return interval
}

// redeliver parks entries that have used up MaxDeliveries instead of handling them again.
func (c *RedisStreamConsumer) redeliver(ctx context.Context, m redis.XMessage, handler HandlerFunc) {
	if c.cfg.MaxDeliveries > 0 {
		deliveries, err := c.deliveryCount(ctx, m.ID)
		switch {
		case err != nil:
			c.logger.WarnwCtx(ctx, "Failed to read delivery count", "error", err, "entry_id", m.ID)
		case deliveries > c.cfg.MaxDeliveries && c.sink.Enabled():
			c.park(ctx, m, deliveries)
			return
		case deliveries > c.cfg.MaxDeliveries:
			c.logger.WarnwCtx(ctx, "Entry exceeded max deliveries but no dead-letter sink is configured",
				"entry_id", m.ID,
				"deliveries", deliveries,
				"max_deliveries", c.cfg.MaxDeliveries,
			)
		}
	}
	c.deliver(ctx, m, handler)
}

func (c *RedisStreamConsumer) park(ctx context.Context, m redis.XMessage, deliveries int64) {
	env := envelopeFromStream(m.ID, m.Values, c.cfg.Group)
	msgCtx := logging.WithMessageID(ctx, m.ID)

	detail := fmt.Sprintf("delivered %d times", deliveries)
	entry := deadletter.NewEntry(env, deadletter.ReasonMaxDeliveriesExceeded, detail, time.Now())
	if err := c.sink.Send(msgCtx, entry); err != nil {
		c.logger.ErrorwCtx(msgCtx, "Failed to send message to DLQ", "error", err, "stream", c.cfg.Stream)
		return
	}
	c.logger.InfowCtx(msgCtx, "Message sent to DLQ",
		"stream", c.cfg.Stream,
		"sink", c.sink.Name(),
		"deliveries", deliveries,
		"entry_id", entry.ID,
	)
	c.ack(msgCtx, m.ID)
}

func (c *RedisStreamConsumer) deliveryCount(ctx context.Context, id string) (int64, error) {
	pending, err := c.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: c.cfg.Stream,
		Group:  c.cfg.Group,
		Start:  id,
		End:    id,
		Count:  1,
	}).Result()
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}
	return pending[0].RetryCount, nil
}

func (c *RedisStreamConsumer) deliver(ctx context.Context, m redis.XMessage, handler HandlerFunc) {
	env := envelopeFromStream(m.ID, m.Values, c.cfg.Group)
	msgCtx, span := tracing.StartSpanFromAttributes(ctx, "redis.consume", env.Message.Attributes)
	defer span.End()
	msgCtx = logging.WithMessageID(msgCtx, m.ID)
	msgCtx = logging.WithServiceName(msgCtx, constants.ServiceName)

	c.deliverEnvelope(msgCtx, m.ID, env, handler)
}

func (c *RedisStreamConsumer) deliverEnvelope(ctx context.Context, id string, env models.PushEnvelope, handler HandlerFunc) {
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = pkgerrors.RecoverPanic(r)
			}
		}()
		return handler(ctx, env)
	}()
	if err != nil {
		// Left pending; reclaimLoop redelivers it after MinIdle.
		c.logger.WarnwCtx(ctx, "Message nacked, leaving entry pending",
			"error", err,
			"stream", c.cfg.Stream,
		)
		return
	}
	c.ack(ctx, id)
}

func (c *RedisStreamConsumer) ack(ctx context.Context, id string) {
	ackCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), constants.AckTimeout)
	defer cancel()

	if err := c.client.XAck(ackCtx, c.cfg.Stream, c.cfg.Group, id).Err(); err != nil {
		c.logger.ErrorwCtx(ctx, "Failed to ack stream entry",
			"error", err,
			"stream", c.cfg.Stream,
			"entry_id", id,
		)
	}
}

// Close is a no-op; the client belongs to bootstrap.
func (c *RedisStreamConsumer) Close() error {
	return nil
}

func copyAttributes(attrs map[string]string) map[string]string {
	out := make(map[string]string, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}

// inflightSet holds the entry IDs this consumer has read or claimed and not yet finished.
type inflightSet struct {
	mu  sync.Mutex
	set map[string]struct{}
}

func newInflightSet() *inflightSet {
	return &inflightSet{set: make(map[string]struct{})}
}

// acquire reports false when id is already held.
func (s *inflightSet) acquire(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.set[id]; ok {
		return false
	}
	s.set[id] = struct{}{}
	return true
}

func (s *inflightSet) release(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.set, id)
}

func (s *inflightSet) ids() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, len(s.set))
	for id := range s.set {
		out = append(out, id)
	}
	return out
}
