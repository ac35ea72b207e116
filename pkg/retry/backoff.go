package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// BackOff builds the schedule RetryWithCallback follows: exponential with jitter, at most
// MaxAttempts-1 sleeps, and stopped early when ctx is done or MaxElapsedTime passes.
func (p Policy) BackOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		exp.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		exp.MaxInterval = p.MaxInterval
	}
	if p.Multiplier > 0 {
		exp.Multiplier = p.Multiplier
	}
	exp.MaxElapsedTime = p.MaxElapsedTime
	exp.Reset()

	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultPolicy().MaxAttempts
	}
	return backoff.WithMaxRetries(backoff.WithContext(exp, ctx), uint64(attempts-1))
}

// Ceiling is the longest single sleep the policy can produce.
func (p Policy) Ceiling() time.Duration {
	if p.MaxInterval > 0 {
		return p.MaxInterval
	}
	return DefaultPolicy().MaxInterval
}
