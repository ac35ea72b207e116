package deadletter

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"logworker/internal/config"
	"logworker/pkg/models"
)

var failedAt = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

func poisonEnvelope() models.PushEnvelope {
	return models.NewPushEnvelopeBuilder().
		WithMessageID("msg-42").
		WithData("not-base64!!").
		WithAttribute("origin", "test").
		WithSubscription("projects/p/subscriptions/logs").
		Build()
}

func TestNewEntry(t *testing.T) {
	e := NewEntry(poisonEnvelope(), ReasonDecodeFailed, "bad_encoding", failedAt)

	_, err := ulid.ParseStrict(e.ID)
	require.NoError(t, err)
	assert.Equal(t, "msg-42", e.MessageID)
	assert.Equal(t, "not-base64!!", e.Data)
	assert.Equal(t, "projects/p/subscriptions/logs", e.Subscription)
	assert.Equal(t, map[string]string{"origin": "test"}, e.Attributes)
	assert.Equal(t, failedAt, e.FailedAt)
}

func TestNoopSink(t *testing.T) {
	var s Sink = NoopSink{}
	assert.NoError(t, s.Send(context.Background(), Entry{}))
	assert.False(t, s.Enabled())
	assert.Equal(t, "none", s.Name())
}

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestKafkaSink_Send(t *testing.T) {
	w := &fakeWriter{}
	s := newKafkaSink(w, "logs-dlq")

	entry := NewEntry(poisonEnvelope(), ReasonDecodeFailed, "bad_encoding", failedAt)
	require.NoError(t, s.Send(context.Background(), entry))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "logs-dlq", msg.Topic)
	assert.Equal(t, []byte("msg-42"), msg.Key)

	var decoded Entry
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, entry, decoded)
}

func TestKafkaSink_SendError(t *testing.T) {
	s := newKafkaSink(&fakeWriter{err: errors.New("leader not available")}, "logs-dlq")
	err := s.Send(context.Background(), NewEntry(poisonEnvelope(), ReasonDecodeFailed, "", failedAt))
	assert.ErrorContains(t, err, "leader not available")
}

type fakeStream struct {
	args []*redis.XAddArgs
	err  error
}

func (f *fakeStream) XAdd(_ context.Context, a *redis.XAddArgs) *redis.StringCmd {
	f.args = append(f.args, a)
	return redis.NewStringResult("1700000000000-0", f.err)
}

func TestRedisSink_Send(t *testing.T) {
	fake := &fakeStream{}
	s := &RedisSink{client: fake, stream: "logs:dlq", maxLen: 1000}

	entry := NewEntry(poisonEnvelope(), ReasonMaxDeliveriesExceeded, "", failedAt)
	require.NoError(t, s.Send(context.Background(), entry))
	require.Len(t, fake.args, 1)

	args := fake.args[0]
	assert.Equal(t, "logs:dlq", args.Stream)
	assert.Equal(t, int64(1000), args.MaxLen)
	assert.True(t, args.Approx)

	values := args.Values.(map[string]interface{})
	assert.Equal(t, "msg-42", values["message_id"])
	assert.Equal(t, ReasonMaxDeliveriesExceeded, values["reason"])
}

func TestRedisSink_SendError(t *testing.T) {
	s := &RedisSink{client: &fakeStream{err: errors.New("OOM")}, stream: "logs:dlq"}
	err := s.Send(context.Background(), NewEntry(poisonEnvelope(), ReasonDecodeFailed, "", failedAt))
	assert.ErrorContains(t, err, "OOM")
}

func TestNew(t *testing.T) {
	s, err := New(config.DeadLetterConfig{}, nil, nil)
	require.NoError(t, err)
	assert.False(t, s.Enabled())

	s, err = New(config.DeadLetterConfig{Type: "kafka", Topic: "dlq"}, []string{"localhost:9092"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "kafka", s.Name())
	assert.NoError(t, s.Close())

	_, err = New(config.DeadLetterConfig{Type: "kafka", Topic: "dlq"}, nil, nil)
	assert.Error(t, err)

	_, err = New(config.DeadLetterConfig{Type: "redis", Stream: "dlq"}, nil, nil)
	assert.Error(t, err)

	_, err = New(config.DeadLetterConfig{Type: "sqs"}, nil, nil)
	assert.ErrorContains(t, err, "unknown dead_letter type")
}
