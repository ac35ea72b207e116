package processing

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"logworker/internal/logger"
	"logworker/internal/redaction"
	"logworker/pkg/models"
)

func TestSimulator_Estimate(t *testing.T) {
	s := NewSimulator(50 * time.Millisecond)
	assert.Equal(t, time.Duration(0), s.Estimate(0))
	assert.Equal(t, 500*time.Millisecond, s.Estimate(10))

	assert.Equal(t, time.Duration(0), NewSimulator(-time.Second).Estimate(10))
}

func TestSimulator_ScalesWithLength(t *testing.T) {
	s := NewSimulator(2 * time.Millisecond)

	start := time.Now()
	require.NoError(t, s.Simulate(context.Background(), 50))
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
	assert.Less(t, elapsed, time.Second)
}

func TestSimulator_ZeroDelayReturnsImmediately(t *testing.T) {
	s := NewSimulator(0)

	start := time.Now()
	require.NoError(t, s.Simulate(context.Background(), 1_000_000))
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestSimulator_ConcurrentWaitsOverlap(t *testing.T) {
	s := NewSimulator(2 * time.Millisecond)

	var wg sync.WaitGroup
	start := time.Now()
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Simulate(context.Background(), 100))
		}()
	}
	wg.Wait()

	// eight sequential 200ms waits would take 1.6s
	assert.Less(t, time.Since(start), 800*time.Millisecond)
}

func TestSimulator_StopsOnDeadline(t *testing.T) {
	s := NewSimulator(time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := s.Simulate(ctx, 10)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func testMessage(text string) models.InternalMessage {
	return models.InternalMessage{
		TenantID:   "acme",
		LogID:      "log_1",
		Text:       text,
		Source:     models.SourceTextUpload,
		IngestedAt: "2024-01-15T10:00:00Z",
	}
}

func TestProcessor_Process(t *testing.T) {
	p := NewProcessor(NewSimulator(0), redaction.New(), logger.NopLogger())

	got, err := p.Process(context.Background(), testMessage("User 555-0199 accessed the system"))
	require.NoError(t, err)
	assert.Equal(t, "User [REDACTED] accessed the system", got)
}

func TestProcessor_DeadlineIsFault(t *testing.T) {
	p := NewProcessor(NewSimulator(time.Second), redaction.New(), logger.NopLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := p.Process(ctx, testMessage(strings.Repeat("a", 10)))

	var fault *Fault
	require.True(t, errors.As(err, &fault))
	assert.Equal(t, ReasonDeadline, fault.Reason)
	assert.True(t, fault.IsRetryable())
}

type panickingRedactor struct{}

func (panickingRedactor) Redact(string) string {
	panic("regex engine exploded")
}

func TestProcessor_PanicIsFault(t *testing.T) {
	p := NewProcessor(NewSimulator(0), panickingRedactor{}, logger.NopLogger())

	_, err := p.Process(context.Background(), testMessage("hello"))

	var fault *Fault
	require.True(t, errors.As(err, &fault))
	assert.Equal(t, ReasonPanic, fault.Reason)
	assert.Contains(t, err.Error(), "regex engine exploded")
}
