package broker

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"logworker/internal/codec"
	"logworker/internal/config"
	"logworker/internal/deadletter"
	"logworker/internal/logger"
	"logworker/pkg/models"
)

func TestOffsetTracker_CommitsContiguousPrefix(t *testing.T) {
	tr := newOffsetTracker()
	for _, off := range []int64{10, 11, 12, 14} {
		tr.Track(0, off)
	}

	_, ok := tr.Done(0, 12)
	assert.False(t, ok)
	_, ok = tr.Done(0, 14)
	assert.False(t, ok)

	off, ok := tr.Done(0, 10)
	require.True(t, ok)
	assert.Equal(t, int64(10), off)

	off, ok = tr.Done(0, 11)
	require.True(t, ok)
	assert.Equal(t, int64(14), off, "gaps in offsets do not block the prefix")
	assert.Equal(t, 0, tr.Pending(0))
}

func TestOffsetTracker_PartitionsAreIndependent(t *testing.T) {
	tr := newOffsetTracker()
	tr.Track(0, 1)
	tr.Track(1, 1)

	off, ok := tr.Done(1, 1)
	require.True(t, ok)
	assert.Equal(t, int64(1), off)
	assert.Equal(t, 1, tr.Pending(0))

	_, ok = tr.Done(7, 1)
	assert.False(t, ok)
}

func validPayload(t *testing.T, logID string) []byte {
	t.Helper()
	return []byte(`{"tenant_id":"acme","log_id":"` + logID + `","text":"hi","source":"json_upload","ingested_at":"2024-01-15T10:30:00Z"}`)
}

func TestEnvelopeFromKafka(t *testing.T) {
	m := kafka.Message{
		Topic:     "log-ingestion",
		Partition: 3,
		Offset:    42,
		Key:       []byte("acme"),
		Value:     validPayload(t, "log_1"),
		Headers:   []kafka.Header{{Key: "origin", Value: []byte("api")}},
		Time:      time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
	}

	env := envelopeFromKafka(m, "workers")
	assert.Equal(t, "kafka:log-ingestion/3/42", env.MessageID())
	assert.Equal(t, "workers", env.Subscription)
	assert.Equal(t, map[string]string{"origin": "api", "kafka_key": "acme"}, env.Message.Attributes)
	assert.Equal(t, "2024-01-15T10:30:00Z", env.Message.PublishTime)

	msg, err := codec.Decode(env)
	require.NoError(t, err)
	assert.Equal(t, "acme", msg.TenantID)
	assert.Equal(t, "log_1", msg.LogID)
}

func TestEnvelopeFromStream(t *testing.T) {
	values := map[string]interface{}{
		PayloadField: string(validPayload(t, "log_2")),
		"origin":     "api",
	}
	env := envelopeFromStream("1700000000000-0", values, "workers")

	assert.Equal(t, "1700000000000-0", env.MessageID())
	assert.Equal(t, map[string]string{"origin": "api"}, env.Message.Attributes)

	raw, err := base64.StdEncoding.DecodeString(env.Message.Data)
	require.NoError(t, err)
	assert.JSONEq(t, string(validPayload(t, "log_2")), string(raw))
}

func TestEnvelopeFromStream_MissingPayloadIsPoison(t *testing.T) {
	env := envelopeFromStream("1-0", map[string]interface{}{"origin": "api"}, "workers")
	_, err := codec.Decode(env)

	var decodeErr *codec.DecodeError
	require.ErrorAs(t, err, &decodeErr)
}

func TestHeadersFromAttributes_SortedByKey(t *testing.T) {
	headers := headersFromAttributes(map[string]string{"b": "2", "a": "1"})
	require.Len(t, headers, 2)
	assert.Equal(t, "a", headers[0].Key)
	assert.Equal(t, "b", headers[1].Key)
}

type fakeReader struct {
	msgs chan kafka.Message

	mu        sync.Mutex
	committed []kafka.Message
}

func newFakeReader(msgs ...kafka.Message) *fakeReader {
	ch := make(chan kafka.Message, len(msgs))
	for _, m := range msgs {
		ch <- m
	}
	return &fakeReader{msgs: ch}
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-r.msgs:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) Close() error { return nil }

func (r *fakeReader) lastCommitted() (int64, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.committed) == 0 {
		return -1, 0
	}
	return r.committed[len(r.committed)-1].Offset, len(r.committed)
}

func kafkaConfig() config.KafkaConfig {
	return config.KafkaConfig{
		GroupID:    "workers",
		InputTopic: "log-ingestion",
		Retry: config.RetryConfig{
			MaxAttempts:     2,
			InitialInterval: time.Millisecond,
			MaxInterval:     5 * time.Millisecond,
			Multiplier:      2,
		},
	}
}

func partitionMessages(t *testing.T, n int) []kafka.Message {
	msgs := make([]kafka.Message, n)
	for i := range msgs {
		msgs[i] = kafka.Message{Topic: "log-ingestion", Partition: 0, Offset: int64(i), Value: validPayload(t, "log_x")}
	}
	return msgs
}

func TestKafkaConsumer_CommitsAfterOutOfOrderCompletion(t *testing.T) {
	reader := newFakeReader(partitionMessages(t, 3)...)
	c := NewKafkaConsumer(kafkaConfig(), 3, nil, logger.NopLogger())

	release := make(chan struct{})
	var finished atomic.Int32
	handler := func(ctx context.Context, env models.PushEnvelope) error {
		if env.MessageID() == "kafka:log-ingestion/0/0" {
			<-release
			return nil
		}
		finished.Add(1)
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.consume(ctx, reader, handler) }()

	require.Eventually(t, func() bool { return finished.Load() == 2 }, time.Second, time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	off, _ := reader.lastCommitted()
	assert.Equal(t, int64(-1), off, "nothing commits while offset 0 is in flight")
	assert.Equal(t, 3, c.tracker.Pending(0))

	close(release)
	require.Eventually(t, func() bool {
		off, _ := reader.lastCommitted()
		return off == 2
	}, time.Second, time.Millisecond)
	_, commits := reader.lastCommitted()
	assert.Equal(t, 1, commits)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestKafkaConsumer_CommittedOffsetNeverMovesBackwards(t *testing.T) {
	reader := newFakeReader()
	c := NewKafkaConsumer(kafkaConfig(), 2, nil, logger.NopLogger())
	ctx := context.Background()

	c.commitOffset(ctx, reader, "log-ingestion", 0, 7)
	c.commitOffset(ctx, reader, "log-ingestion", 0, 5)
	c.commitOffset(ctx, reader, "log-ingestion", 0, 7)

	off, commits := reader.lastCommitted()
	assert.Equal(t, int64(7), off)
	assert.Equal(t, 1, commits, "stale offsets are not sent")

	c.commitOffset(ctx, reader, "log-ingestion", 1, 3)
	c.commitOffset(ctx, reader, "log-ingestion", 0, 9)
	off, commits = reader.lastCommitted()
	assert.Equal(t, int64(9), off)
	assert.Equal(t, 3, commits)
}

func TestInflightSet(t *testing.T) {
	s := newInflightSet()

	assert.True(t, s.acquire("1-0"))
	assert.False(t, s.acquire("1-0"), "held entries are not handed out twice")
	assert.True(t, s.acquire("2-0"))
	assert.ElementsMatch(t, []string{"1-0", "2-0"}, s.ids())

	s.release("1-0")
	assert.Equal(t, []string{"2-0"}, s.ids())
	assert.True(t, s.acquire("1-0"))
}

func TestRedisStreamConsumer_HeartbeatBeatsMinIdle(t *testing.T) {
	for _, minIdle := range []time.Duration{time.Minute, time.Second, 50 * time.Millisecond} {
		c := NewRedisStreamConsumer(nil, config.RedisStreamConfig{MinIdle: minIdle}, 1, nil, logger.NopLogger())
		interval := c.heartbeatInterval()
		assert.Positive(t, interval)
		assert.Less(t, interval, minIdle, "min_idle=%s", minIdle)
	}
}

func TestKafkaConsumer_RetriesNackThenCommits(t *testing.T) {
	reader := newFakeReader(partitionMessages(t, 1)...)
	c := NewKafkaConsumer(kafkaConfig(), 1, nil, logger.NopLogger())

	var calls atomic.Int32
	handler := func(context.Context, models.PushEnvelope) error {
		if calls.Add(1) == 1 {
			return errors.New("store unavailable")
		}
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = c.consume(ctx, reader, handler) }()

	require.Eventually(t, func() bool {
		off, _ := reader.lastCommitted()
		return off == 0
	}, time.Second, time.Millisecond)
	assert.Equal(t, int32(2), calls.Load())
}

type memorySink struct {
	mu      sync.Mutex
	entries []deadletter.Entry
}

func (s *memorySink) Send(_ context.Context, e deadletter.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	return nil
}

func (s *memorySink) Enabled() bool { return true }
func (s *memorySink) Name() string  { return "memory" }
func (s *memorySink) Close() error  { return nil }

func (s *memorySink) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func TestKafkaConsumer_DeadLettersAfterRetriesExhausted(t *testing.T) {
	reader := newFakeReader(partitionMessages(t, 1)...)
	sink := &memorySink{}
	c := NewKafkaConsumer(kafkaConfig(), 1, sink, logger.NopLogger())

	var calls atomic.Int32
	handler := func(context.Context, models.PushEnvelope) error {
		calls.Add(1)
		return errors.New("always failing")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = c.consume(ctx, reader, handler) }()

	require.Eventually(t, func() bool {
		off, _ := reader.lastCommitted()
		return off == 0
	}, time.Second, time.Millisecond)
	assert.Equal(t, int32(2), calls.Load())
	require.Equal(t, 1, sink.len())
	assert.Equal(t, deadletter.ReasonMaxRetriesExceeded, sink.entries[0].Reason)
	assert.Equal(t, "kafka:log-ingestion/0/0", sink.entries[0].MessageID)
}

func TestKafkaConsumer_NoSinkKeepsOffsetUncommitted(t *testing.T) {
	reader := newFakeReader(partitionMessages(t, 1)...)
	c := NewKafkaConsumer(kafkaConfig(), 1, nil, logger.NopLogger())

	var calls atomic.Int32
	handler := func(context.Context, models.PushEnvelope) error {
		calls.Add(1)
		return errors.New("always failing")
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = c.consume(ctx, reader, handler)
		close(done)
	}()

	require.Eventually(t, func() bool { return calls.Load() >= 4 }, time.Second, time.Millisecond)
	cancel()
	<-done

	_, commits := reader.lastCommitted()
	assert.Equal(t, 0, commits)
}

func TestKafkaConsumer_RecoversHandlerPanic(t *testing.T) {
	reader := newFakeReader(partitionMessages(t, 1)...)
	c := NewKafkaConsumer(kafkaConfig(), 1, nil, logger.NopLogger())

	var calls atomic.Int32
	handler := func(context.Context, models.PushEnvelope) error {
		if calls.Add(1) == 1 {
			panic("boom")
		}
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = c.consume(ctx, reader, handler) }()

	require.Eventually(t, func() bool {
		off, _ := reader.lastCommitted()
		return off == 0
	}, time.Second, time.Millisecond)
}

func TestFactory(t *testing.T) {
	consumer, err := NewConsumer(config.BrokerConfig{Type: "push"}, 1, nil, nil, logger.NopLogger())
	require.NoError(t, err)
	assert.Nil(t, consumer)

	consumer, err = NewConsumer(config.BrokerConfig{Type: "kafka", Kafka: kafkaConfig()}, 1, nil, nil, logger.NopLogger())
	require.NoError(t, err)
	assert.IsType(t, &KafkaConsumer{}, consumer)

	_, err = NewConsumer(config.BrokerConfig{Type: "redis"}, 1, nil, nil, logger.NopLogger())
	assert.Error(t, err)

	_, err = NewConsumer(config.BrokerConfig{Type: "amqp"}, 1, nil, nil, logger.NopLogger())
	assert.ErrorContains(t, err, "unknown broker type")

	_, err = NewProducer(config.BrokerConfig{Type: "push"}, nil, logger.NopLogger())
	assert.Error(t, err)

	assert.Equal(t, "log-ingestion", Destination(config.BrokerConfig{Type: "kafka", Kafka: kafkaConfig()}))
	assert.Equal(t, "logs", Destination(config.BrokerConfig{Type: "redis", Redis: config.RedisStreamConfig{Stream: "logs"}}))
}
