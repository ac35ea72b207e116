package store

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"logworker/pkg/metrics"
	"logworker/pkg/models"
	"logworker/pkg/tracing"
)

// InstrumentedStore records a span and store_operations_total for every call.
type InstrumentedStore struct {
	store   Store
	backend string
	tracer  trace.Tracer
}

func NewInstrumentedStore(store Store, backend string) *InstrumentedStore {
	return &InstrumentedStore{
		store:   store,
		backend: backend,
		tracer:  tracing.GetTracer("logworker-store"),
	}
}

func (s *InstrumentedStore) Put(ctx context.Context, tenantID, logID string, rec models.ProcessedRecord) error {
	ctx, span := s.start(ctx, "store.put", tenantID, logID)
	defer span.End()

	start := time.Now()
	err := s.store.Put(ctx, tenantID, logID, rec)
	s.finish(span, "put", start, err)
	return err
}

func (s *InstrumentedStore) Get(ctx context.Context, tenantID, logID string) (models.ProcessedRecord, error) {
	ctx, span := s.start(ctx, "store.get", tenantID, logID)
	defer span.End()

	start := time.Now()
	rec, err := s.store.Get(ctx, tenantID, logID)
	s.finish(span, "get", start, err)
	return rec, err
}

func (s *InstrumentedStore) start(ctx context.Context, name, tenantID, logID string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("store.backend", s.backend),
		attribute.String("tenant.id", tenantID),
		attribute.String("log.id", logID),
	))
}

func (s *InstrumentedStore) finish(span trace.Span, op string, start time.Time, err error) {
	status := "success"
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		status = "not_found"
	default:
		status = "error"
		var storeErr *Error
		if errors.As(err, &storeErr) {
			span.SetAttributes(attribute.String("store.error_kind", string(storeErr.Kind)))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	metrics.ObserveStoreOperation(s.backend, op, status, time.Since(start))
}
