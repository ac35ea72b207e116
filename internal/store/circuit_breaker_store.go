package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/sony/gobreaker"

	"logworker/internal/config"
	"logworker/pkg/circuitbreaker"
	"logworker/pkg/models"
)

// CircuitBreakerStore fails fast with KindUnavailable while the breaker is open.
// ErrNotFound passes through without counting as a failure.
type CircuitBreakerStore struct {
	store   Store
	backend string
	cb      *circuitbreaker.Wrapper
}

func NewCircuitBreakerStore(store Store, backend string, cfg config.CircuitBreakerConfig) *CircuitBreakerStore {
	if !cfg.Enabled {
		return &CircuitBreakerStore{store: store, backend: backend}
	}

	cbConfig := circuitbreaker.DefaultConfig("store-" + backend)
	if cfg.MaxRequests > 0 {
		cbConfig.MaxRequests = cfg.MaxRequests
	}
	if cfg.Interval > 0 {
		cbConfig.Interval = cfg.Interval
	}
	if cfg.Timeout > 0 {
		cbConfig.Timeout = cfg.Timeout
	}
	if cfg.FailureRatio > 0 && cfg.MinRequests > 0 {
		cbConfig.ReadyToTrip = circuitbreaker.RatioTrip(cfg.MinRequests, cfg.FailureRatio)
	}
	cbConfig.IsSuccessful = func(err error) bool {
		return err == nil || errors.Is(err, ErrNotFound) || isInvalidKey(err)
	}

	return &CircuitBreakerStore{
		store:   store,
		backend: backend,
		cb:      circuitbreaker.NewWrapper(cbConfig),
	}
}

func (s *CircuitBreakerStore) Put(ctx context.Context, tenantID, logID string, rec models.ProcessedRecord) error {
	if s.cb == nil {
		return s.store.Put(ctx, tenantID, logID, rec)
	}

	_, err := s.cb.ExecuteWithContext(ctx, func() (interface{}, error) {
		return nil, s.store.Put(ctx, tenantID, logID, rec)
	})
	return s.translate("put", err)
}

func (s *CircuitBreakerStore) Get(ctx context.Context, tenantID, logID string) (models.ProcessedRecord, error) {
	if s.cb == nil {
		return s.store.Get(ctx, tenantID, logID)
	}

	result, err := s.cb.ExecuteWithContext(ctx, func() (interface{}, error) {
		return s.store.Get(ctx, tenantID, logID)
	})
	if err := s.translate("get", err); err != nil {
		return models.ProcessedRecord{}, err
	}

	rec, ok := result.(models.ProcessedRecord)
	if !ok {
		return models.ProcessedRecord{}, newError(s.backend, "get", KindUnknown, fmt.Errorf("store returned %T", result))
	}
	return rec, nil
}

func (s *CircuitBreakerStore) State() string {
	if s.cb == nil {
		return "disabled"
	}
	return s.cb.State().String()
}

// translate maps breaker rejections and bare context errors onto *Error.
func (s *CircuitBreakerStore) translate(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return newError(s.backend, op, KindUnavailable, fmt.Errorf("circuit breaker %s: %w", s.cb.Name(), err))
	}

	var storeErr *Error
	if errors.As(err, &storeErr) || errors.Is(err, ErrNotFound) {
		return err
	}
	if kind := classifyCommon(err); kind != "" {
		return newError(s.backend, op, kind, err)
	}
	return newError(s.backend, op, KindUnknown, err)
}

func isInvalidKey(err error) bool {
	var storeErr *Error
	return errors.As(err, &storeErr) && storeErr.Kind == KindInvalidKey
}
