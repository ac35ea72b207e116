package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errIgnored = errors.New("ignored")

func TestWrapper_OpensAfterFailures(t *testing.T) {
	w := NewWrapper(Config{
		Name:        "test-open",
		MaxRequests: 1,
		Timeout:     time.Minute,
		ReadyToTrip: RatioTrip(2, 0.5),
	})

	fail := func() (interface{}, error) { return nil, errors.New("down") }
	_, _ = w.Execute(fail)
	assert.True(t, w.IsClosed())
	_, _ = w.Execute(fail)
	assert.True(t, w.IsOpen())

	called := false
	_, err := w.Execute(func() (interface{}, error) {
		called = true
		return nil, nil
	})
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.False(t, called)
}

func TestWrapper_IsSuccessfulExcludesErrors(t *testing.T) {
	w := NewWrapper(Config{
		Name:         "test-excluded",
		MaxRequests:  1,
		Timeout:      time.Minute,
		ReadyToTrip:  RatioTrip(1, 0.1),
		IsSuccessful: func(err error) bool { return err == nil || errors.Is(err, errIgnored) },
	})

	for i := 0; i < 5; i++ {
		_, err := w.Execute(func() (interface{}, error) { return nil, errIgnored })
		assert.ErrorIs(t, err, errIgnored)
	}
	assert.True(t, w.IsClosed())
	assert.Equal(t, uint32(0), w.Counts().TotalFailures)
}

func TestWrapper_ExecuteWithContextSkipsDoneContext(t *testing.T) {
	w := NewWrapper(DefaultConfig("test-ctx"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	_, err := w.ExecuteWithContext(ctx, func() (interface{}, error) {
		called = true
		return nil, nil
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
	assert.Equal(t, uint32(0), w.Counts().Requests)
}

func TestRatioTrip(t *testing.T) {
	trip := RatioTrip(3, 0.5)
	assert.False(t, trip(gobreaker.Counts{}))
	assert.False(t, trip(gobreaker.Counts{Requests: 2, TotalFailures: 2}))
	assert.True(t, trip(gobreaker.Counts{Requests: 4, TotalFailures: 2}))
	assert.False(t, trip(gobreaker.Counts{Requests: 4, TotalFailures: 1}))
}
