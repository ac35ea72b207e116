// Package broker connects pull transports to the worker. Consumers turn records into
// PushEnvelopes so every transport shares one decode path.
package broker

import (
	"context"

	"logworker/pkg/models"
)

// Message is a record to publish. Value is the InternalMessage JSON; Attributes become
// Kafka headers or extra stream fields.
type Message struct {
	Key        []byte
	Value      []byte
	Attributes map[string]string
}

type Producer interface {
	Publish(ctx context.Context, topic string, msg Message) error
	Close() error
}

type Consumer interface {
	// Consume blocks until ctx is done; in-flight deliveries finish before it returns.
	Consume(ctx context.Context, handler HandlerFunc) error
	Close() error
}

// HandlerFunc returns nil to acknowledge and an error to request redelivery.
type HandlerFunc func(ctx context.Context, env models.PushEnvelope) error
