package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy(attempts int) Policy {
	return Policy{
		MaxAttempts:     attempts,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		Multiplier:      2.0,
	}
}

func TestRetry_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastPolicy(5), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_ReturnsLastErrorWhenExhausted(t *testing.T) {
	calls := 0
	boom := errors.New("still down")
	err := Retry(context.Background(), fastPolicy(3), func() error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, calls)
}

func TestRetry_FatalStopsImmediately(t *testing.T) {
	calls := 0
	fatal := NewFatalError(errors.New("bad input"))
	err := Retry(context.Background(), fastPolicy(5), func() error {
		calls++
		return fatal
	})
	assert.ErrorIs(t, err, fatal)
	assert.Equal(t, 1, calls)
}

func TestRetryWithCallback_ReportsEachRetry(t *testing.T) {
	var attempts []int
	_ = RetryWithCallback(context.Background(), fastPolicy(3), func() error {
		return errors.New("down")
	}, func(attempt int, err error, next time.Duration) {
		attempts = append(attempts, attempt)
		assert.EqualError(t, err, "down")
		assert.Greater(t, next, time.Duration(0))
	})
	assert.Equal(t, []int{1, 2}, attempts)
}

func TestRetry_StopsOnCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Retry(ctx, fastPolicy(5), func() error {
		calls++
		return errors.New("down")
	})
	require.Error(t, err)
	assert.LessOrEqual(t, calls, 1)
}

func TestPolicy_BackOffStopsAfterMaxAttempts(t *testing.T) {
	b := Policy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond, Multiplier: 2}.BackOff(context.Background())

	assert.NotEqual(t, backoff.Stop, b.NextBackOff())
	assert.NotEqual(t, backoff.Stop, b.NextBackOff())
	assert.Equal(t, backoff.Stop, b.NextBackOff())
}

func TestPolicy_Ceiling(t *testing.T) {
	assert.Equal(t, 5*time.Second, Policy{MaxInterval: 5 * time.Second}.Ceiling())
	assert.Equal(t, DefaultPolicy().MaxInterval, Policy{}.Ceiling())
}

func TestNewRetryableError_Nil(t *testing.T) {
	assert.Nil(t, NewRetryableError(nil))
	assert.Nil(t, NewFatalError(nil))
}
