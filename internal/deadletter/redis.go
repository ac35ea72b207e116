package deadletter

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

type streamAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// RedisSink appends entries to a stream, trimmed approximately to maxLen when maxLen > 0.
type RedisSink struct {
	client streamAdder
	stream string
	maxLen int64
}

func NewRedisSink(client redis.UniversalClient, stream string, maxLen int64) *RedisSink {
	return &RedisSink{client: client, stream: stream, maxLen: maxLen}
}

func (s *RedisSink) Send(ctx context.Context, entry Entry) error {
	body, err := entry.Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal dead-letter entry: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]interface{}{
			"id":         entry.ID,
			"message_id": entry.MessageID,
			"reason":     entry.Reason,
			"entry":      string(body),
		},
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}

	if err := s.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("failed to add dead-letter entry to %s: %w", s.stream, err)
	}
	return nil
}

func (s *RedisSink) Enabled() bool { return true }
func (s *RedisSink) Name() string  { return "redis" }

// Close is a no-op; the client belongs to bootstrap.
func (s *RedisSink) Close() error { return nil }
