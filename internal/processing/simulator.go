package processing

import (
	"context"
	"time"
)

// Simulator models work whose cost grows linearly with the payload size.
type Simulator struct {
	delayPerChar time.Duration
}

func NewSimulator(delayPerChar time.Duration) *Simulator {
	if delayPerChar < 0 {
		delayPerChar = 0
	}
	return &Simulator{delayPerChar: delayPerChar}
}

func (s *Simulator) Estimate(textLength int) time.Duration {
	if textLength <= 0 {
		return 0
	}
	return time.Duration(textLength) * s.delayPerChar
}

// Simulate blocks the calling goroutine only. It returns the context error if
// ctx ends before the wait completes.
func (s *Simulator) Simulate(ctx context.Context, textLength int) error {
	d := s.Estimate(textLength)
	if d == 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
