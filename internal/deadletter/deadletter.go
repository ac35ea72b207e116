// Package deadletter parks deliveries the worker will not process any further.
package deadletter

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"

	"logworker/pkg/metrics"
	"logworker/pkg/models"
)

const (
	ReasonDecodeFailed          = "decode_failed"
	ReasonMaxRetriesExceeded    = "max_retries_exceeded"
	ReasonMaxDeliveriesExceeded = "max_deliveries_exceeded"
)

// Entry is what a sink stores. Data is the envelope payload as received, never decoded.
type Entry struct {
	ID           string            `json:"id"`
	MessageID    string            `json:"message_id"`
	Subscription string            `json:"subscription"`
	Attributes   map[string]string `json:"attributes,omitempty"`
	Data         string            `json:"data"`
	Reason       string            `json:"reason"`
	Detail       string            `json:"detail,omitempty"`
	FailedAt     time.Time         `json:"failed_at"`
}

func NewEntry(env models.PushEnvelope, reason, detail string, now time.Time) Entry {
	return Entry{
		ID:           ulid.MustNew(ulid.Timestamp(now), rand.Reader).String(),
		MessageID:    env.Message.MessageID,
		Subscription: env.Subscription,
		Attributes:   env.Message.Attributes,
		Data:         env.Message.Data,
		Reason:       reason,
		Detail:       detail,
		FailedAt:     now.UTC(),
	}
}

func (e Entry) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

type Sink interface {
	Send(ctx context.Context, entry Entry) error
	// Enabled is false for the noop sink; callers use it to tell "parked" from "dropped".
	Enabled() bool
	Name() string
	Close() error
}

// NoopSink drops entries. Poison messages are then only visible in the logs.
type NoopSink struct{}

func (NoopSink) Send(context.Context, Entry) error { return nil }
func (NoopSink) Enabled() bool                     { return false }
func (NoopSink) Name() string                      { return "none" }
func (NoopSink) Close() error                      { return nil }

// Instrumented counts successful sends in dlq_messages_total.
type Instrumented struct {
	Sink
}

func (s Instrumented) Send(ctx context.Context, entry Entry) error {
	if err := s.Sink.Send(ctx, entry); err != nil {
		return err
	}
	if s.Sink.Enabled() {
		metrics.IncDeadLetter(s.Sink.Name(), entry.Reason)
	}
	return nil
}
