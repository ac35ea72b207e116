// Package processing runs the simulated heavy work and PII redaction for one message.
package processing

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"logworker/internal/logger"
	"logworker/internal/redaction"
	pkgerrors "logworker/pkg/errors"
	"logworker/pkg/metrics"
	"logworker/pkg/models"
	"logworker/pkg/tracing"
)

type FaultReason string

const (
	ReasonDeadline FaultReason = "deadline"
	ReasonCanceled FaultReason = "canceled"
	ReasonPanic    FaultReason = "panic"
)

// Fault is a processing failure. All faults are treated as transient.
type Fault struct {
	Reason FaultReason
	Err    error
}

func (f *Fault) Error() string {
	return fmt.Sprintf("processing fault (%s): %v", f.Reason, f.Err)
}

func (f *Fault) Unwrap() error {
	return f.Err
}

func (f *Fault) IsRetryable() bool {
	return true
}

type redactionCounter interface {
	RedactCount(text string) (string, map[string]int)
}

type Processor struct {
	simulator *Simulator
	redactor  redaction.Redactor
	logger    logger.Logger
}

func NewProcessor(simulator *Simulator, redactor redaction.Redactor, log logger.Logger) *Processor {
	return &Processor{
		simulator: simulator,
		redactor:  redactor,
		logger:    log,
	}
}

// Process returns the redacted form of msg.Text after the simulated delay.
func (p *Processor) Process(ctx context.Context, msg models.InternalMessage) (modified string, err error) {
	ctx, span := tracing.GetTracer("worker-processing").Start(ctx, "processing.process")
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			err = &Fault{Reason: ReasonPanic, Err: pkgerrors.RecoverPanic(r)}
		}
	}()

	length := utf8.RuneCountInString(msg.Text)
	estimated := p.simulator.Estimate(length)

	p.logger.InfowCtx(ctx, "processing_started",
		"text_length", length,
		"estimated_duration_ms", estimated.Milliseconds(),
	)

	start := time.Now()
	if err := p.simulator.Simulate(ctx, length); err != nil {
		reason := ReasonCanceled
		if errors.Is(err, context.DeadlineExceeded) {
			reason = ReasonDeadline
		}
		return "", &Fault{Reason: reason, Err: err}
	}

	if counter, ok := p.redactor.(redactionCounter); ok {
		var counts map[string]int
		modified, counts = counter.RedactCount(msg.Text)
		metrics.AddRedactions(counts)
	} else {
		modified = p.redactor.Redact(msg.Text)
	}

	p.logger.InfowCtx(ctx, "processing_completed",
		"duration_ms", time.Since(start).Milliseconds(),
		"redacted", modified != msg.Text,
	)

	return modified, nil
}
