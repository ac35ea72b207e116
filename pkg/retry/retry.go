// Package retry runs an operation under an exponential backoff policy.
//
// Errors implementing FatalError stop the loop immediately; everything else is retried
// until the policy's attempt or elapsed-time budget runs out.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

type RetryableError interface {
	error
	IsRetryable() bool
}

type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	return e.err.Error()
}

func (e *retryableError) IsRetryable() bool {
	return true
}

func (e *retryableError) Unwrap() error {
	return e.err
}

func NewRetryableError(err error) RetryableError {
	if err == nil {
		return nil
	}
	return &retryableError{err: err}
}

type FatalError interface {
	error
	IsFatal() bool
}

type fatalError struct {
	err error
}

func (e *fatalError) Error() string {
	return e.err.Error()
}

func (e *fatalError) IsFatal() bool {
	return true
}

func (e *fatalError) Unwrap() error {
	return e.err
}

func NewFatalError(err error) FatalError {
	if err == nil {
		return nil
	}
	return &fatalError{err: err}
}

type Policy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	MaxElapsedTime  time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     3,
		InitialInterval: 1 * time.Second,
		MaxInterval:     30 * time.Second,
		Multiplier:      2.0,
		MaxElapsedTime:  5 * time.Minute,
	}
}

func Retry(ctx context.Context, policy Policy, fn func() error) error {
	return RetryWithCallback(ctx, policy, fn, nil)
}

// RetryWithCallback calls onRetry before every sleep, never after the last attempt.
// The returned error is the last one fn produced, unwrapped from any retry marker.
func RetryWithCallback(ctx context.Context, policy Policy, fn func() error, onRetry func(attempt int, err error, nextDelay time.Duration)) error {
	b := policy.BackOff(ctx)

	var lastErr error
	notify := func(err error, next time.Duration) {
		if onRetry != nil {
			onRetry(attemptOf(err), lastErr, next)
		}
	}

	attempt := 0
	operation := func() error {
		attempt++
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		var fatalErr FatalError
		if errors.As(err, &fatalErr) && fatalErr.IsFatal() {
			return backoff.Permanent(err)
		}
		return &attemptError{attempt: attempt, err: err}
	}

	err := backoff.RetryNotify(operation, b, notify)
	if err == nil {
		return nil
	}
	var ae *attemptError
	if errors.As(err, &ae) {
		return ae.err
	}
	if lastErr != nil && ctx.Err() != nil {
		return lastErr
	}
	return err
}

type attemptError struct {
	attempt int
	err     error
}

func (e *attemptError) Error() string {
	return e.err.Error()
}

func (e *attemptError) Unwrap() error {
	return e.err
}

func (e *attemptError) IsRetryable() bool {
	return true
}

func attemptOf(err error) int {
	var ae *attemptError
	if errors.As(err, &ae) {
		return ae.attempt
	}
	return 0
}
