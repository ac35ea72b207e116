package orchestrator

import (
	"context"
	"errors"

	"logworker/internal/codec"
	"logworker/internal/processing"
	"logworker/internal/store"
)

type State string

const (
	StateReceived     State = "received"
	StateDecoded      State = "decoded"
	StateProcessed    State = "processed"
	StateStored       State = "stored"
	StateAcknowledged State = "acknowledged"
	StateFailed       State = "failed"
)

// Stage names where a Failed delivery stopped.
type Stage string

const (
	StageNone    Stage = ""
	StageDecode  Stage = "decode"
	StageProcess Stage = "process"
	StageStore   Stage = "store"
)

type Decision int

const (
	// Nack asks the transport to redeliver. It is the zero value so an unset decision never drops a message.
	Nack Decision = iota
	Ack
)

func (d Decision) String() string {
	if d == Ack {
		return "ack"
	}
	return "nack"
}

// Result is the outcome of one delivery. TenantID and LogID are empty when decoding failed.
type Result struct {
	Decision     Decision
	State        State
	Stage        Stage
	MessageID    string
	TenantID     string
	LogID        string
	Err          error
	DeadLettered bool
}

func (r Result) Acked() bool {
	return r.Decision == Ack
}

// Poison reports an acknowledged decode failure.
func (r Result) Poison() bool {
	return r.Decision == Ack && r.Stage == StageDecode
}

// Outcome is the metric label for r.
func (r Result) Outcome() string {
	switch {
	case r.Err == nil:
		return "success"
	case r.Poison():
		return "poison"
	case r.Stage == StageDecode:
		return "dead_letter_failed"
	case r.Stage == StageStore:
		return "store_failed"
	default:
		return "process_failed"
	}
}

// decide is the only place an error is turned into an acknowledgment decision.
func decide(err error) Decision {
	var (
		decodeErr *codec.DecodeError
		fault     *processing.Fault
		storeErr  *store.Error
	)

	switch {
	case err == nil:
		return Ack
	case errors.As(err, &decodeErr):
		return Ack
	case errors.As(err, &fault):
		return Nack
	case errors.As(err, &storeErr):
		return Nack
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return Nack
	default:
		return Nack
	}
}
