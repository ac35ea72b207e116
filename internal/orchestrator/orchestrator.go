// Package orchestrator drives one delivery from envelope to stored record and decides
// whether the transport should acknowledge it.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"logworker/internal/codec"
	"logworker/internal/constants"
	"logworker/internal/deadletter"
	"logworker/internal/logger"
	"logworker/internal/processing"
	"logworker/internal/store"
	"logworker/pkg/logging"
	"logworker/pkg/metrics"
	"logworker/pkg/models"
	"logworker/pkg/tracing"
)

type Processor interface {
	Process(ctx context.Context, msg models.InternalMessage) (string, error)
}

type Options struct {
	// MaxConcurrency bounds deliveries holding a worker slot; <= 0 uses the default.
	MaxConcurrency int
	// Timeout is the per-delivery deadline once a slot is held; 0 disables it.
	Timeout time.Duration
}

type Orchestrator struct {
	processor Processor
	store     store.Store
	sink      deadletter.Sink
	logger    logger.Logger
	tracer    trace.Tracer

	slots   *semaphore.Weighted
	timeout time.Duration
	now     func() time.Time
}

func New(proc Processor, st store.Store, sink deadletter.Sink, log logger.Logger, opts Options) *Orchestrator {
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = constants.DefaultMaxConcurrency
	}
	if sink == nil {
		sink = deadletter.NoopSink{}
	}

	return &Orchestrator{
		processor: proc,
		store:     st,
		sink:      sink,
		logger:    log,
		tracer:    tracing.GetTracer("logworker-orchestrator"),
		slots:     semaphore.NewWeighted(int64(opts.MaxConcurrency)),
		timeout:   opts.Timeout,
		now:       time.Now,
	}
}

// Handle runs decode, process and store for env. It never panics and always returns a decision.
func (o *Orchestrator) Handle(ctx context.Context, env models.PushEnvelope) Result {
	start := time.Now()
	messageID := env.MessageID()
	transport := TransportFromContext(ctx)

	ctx = logging.WithMessageID(ctx, messageID)
	ctx, span := o.tracer.Start(ctx, "orchestrator.handle", trace.WithAttributes(
		attribute.String("messaging.message.id", messageID),
		attribute.String("messaging.transport", transport),
	))
	defer span.End()
	if traceID := tracing.SpanTraceID(ctx); traceID != "" {
		ctx = logging.WithTraceID(ctx, traceID)
	}

	res := o.handle(ctx, env)

	metrics.IncMessage(transport, res.Outcome())
	metrics.ObserveProcessingDuration(time.Since(start), res.Outcome())
	span.SetAttributes(
		attribute.String("worker.decision", res.Decision.String()),
		attribute.String("worker.state", string(res.State)),
	)
	if res.Err != nil && !res.Acked() {
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, string(res.Stage))
	}
	return res
}

func (o *Orchestrator) handle(ctx context.Context, env models.PushEnvelope) Result {
	res := Result{State: StateReceived, MessageID: env.MessageID()}

	o.logger.InfowCtx(ctx, "message_received",
		"subscription", env.Subscription,
		"data_length", len(env.Message.Data),
	)

	msg, err := codec.Decode(env)
	if err != nil {
		return o.poison(ctx, env, res, err)
	}
	res.State = StateDecoded
	res.TenantID = msg.TenantID
	res.LogID = msg.LogID

	ctx = logging.WithRecordKey(ctx, msg.TenantID, msg.LogID)
	o.logger.InfowCtx(ctx, "processing_message",
		"source", string(msg.Source),
		"ingested_at", msg.IngestedAt,
	)

	release, err := o.acquire(ctx)
	if err != nil {
		return o.fail(ctx, res, StageProcess, err)
	}
	defer release()

	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	modified, err := o.processor.Process(ctx, msg)
	if err != nil {
		return o.fail(ctx, res, StageProcess, err)
	}
	// A deadline that fired after processing must not turn into a write.
	if err := ctx.Err(); err != nil {
		return o.fail(ctx, res, StageProcess, &processing.Fault{Reason: faultReason(err), Err: err})
	}
	res.State = StateProcessed

	rec := models.ProcessedRecord{
		Source:       msg.Source,
		OriginalText: msg.Text,
		ModifiedData: modified,
		IngestedAt:   msg.IngestedAt,
		ProcessedAt:  o.now().UTC(),
		MessageID:    res.MessageID,
	}
	if err := o.store.Put(ctx, msg.TenantID, msg.LogID, rec); err != nil {
		return o.fail(ctx, res, StageStore, err)
	}
	res.State = StateStored

	o.logger.InfowCtx(ctx, "document_saved",
		"path", store.Key{TenantID: msg.TenantID, LogID: msg.LogID}.Path(),
	)

	res.Decision = decide(nil)
	res.State = StateAcknowledged
	o.logger.InfowCtx(ctx, "message_processed_successfully",
		"modified", modified != msg.Text,
	)
	return res
}

func (o *Orchestrator) acquire(ctx context.Context) (func(), error) {
	waitStart := time.Now()
	if err := o.slots.Acquire(ctx, 1); err != nil {
		return nil, &processing.Fault{Reason: faultReason(err), Err: fmt.Errorf("waiting for worker slot: %w", err)}
	}
	metrics.ObserveSlotWait(time.Since(waitStart))
	metrics.InflightMessages.Inc()

	return func() {
		metrics.InflightMessages.Dec()
		o.slots.Release(1)
	}, nil
}

// poison acknowledges an undecodable delivery, parking it first when a sink is configured.
func (o *Orchestrator) poison(ctx context.Context, env models.PushEnvelope, res Result, err error) Result {
	res.State = StateFailed
	res.Stage = StageDecode
	res.Err = err
	res.Decision = decide(err)

	o.logger.ErrorwCtx(ctx, "message_decode_failed",
		"error", err.Error(),
		"decision", res.Decision.String(),
	)

	if !o.sink.Enabled() {
		return res
	}

	entry := deadletter.NewEntry(env, deadletter.ReasonDecodeFailed, decodeDetail(err), o.now())
	if sendErr := o.sink.Send(ctx, entry); sendErr != nil {
		res.Decision = Nack
		res.Err = errors.Join(err, fmt.Errorf("dead-letter %s: %w", o.sink.Name(), sendErr))
		o.logger.ErrorwCtx(ctx, "dead_letter_failed",
			"error", sendErr.Error(),
			"sink", o.sink.Name(),
		)
		return res
	}

	res.DeadLettered = true
	o.logger.WarnwCtx(ctx, "message_dead_lettered",
		"sink", o.sink.Name(),
		"entry_id", entry.ID,
	)
	return res
}

func (o *Orchestrator) fail(ctx context.Context, res Result, stage Stage, err error) Result {
	res.State = StateFailed
	res.Stage = stage
	res.Err = err
	res.Decision = decide(err)

	event := "processing_failed"
	if stage == StageStore {
		event = "storage_failed"
	}

	fields := []interface{}{
		"error", err.Error(),
		"decision", res.Decision.String(),
	}
	var storeErr *store.Error
	if errors.As(err, &storeErr) {
		fields = append(fields, "backend", storeErr.Backend, "error_kind", string(storeErr.Kind))
	}
	var fault *processing.Fault
	if errors.As(err, &fault) {
		fields = append(fields, "reason", string(fault.Reason))
	}

	o.logger.ErrorwCtx(ctx, event, fields...)
	return res
}

func faultReason(err error) processing.FaultReason {
	if errors.Is(err, context.DeadlineExceeded) {
		return processing.ReasonDeadline
	}
	return processing.ReasonCanceled
}

func decodeDetail(err error) string {
	var decodeErr *codec.DecodeError
	if !errors.As(err, &decodeErr) {
		return err.Error()
	}
	if len(decodeErr.Fields) == 0 {
		return string(decodeErr.Kind)
	}
	return string(decodeErr.Kind) + ":" + strings.Join(decodeErr.Fields, ",")
}

type transportKey struct{}

// WithTransport labels deliveries handled with ctx; the default is "push".
func WithTransport(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, transportKey{}, name)
}

func TransportFromContext(ctx context.Context) string {
	if name, ok := ctx.Value(transportKey{}).(string); ok && name != "" {
		return name
	}
	return constants.BrokerTypePush
}

// Func adapts Handle to transports that only need ack (nil) or nack (non-nil).
func (o *Orchestrator) Func() func(ctx context.Context, env models.PushEnvelope) error {
	return func(ctx context.Context, env models.PushEnvelope) error {
		res := o.Handle(ctx, env)
		if res.Acked() {
			return nil
		}
		return &NackError{Result: res}
	}
}

// NackError carries a Nack result through error-returning transport handlers.
// It does not unwrap, so retry helpers never see the fatal DecodeError of a poison
// message whose dead-letter send failed.
type NackError struct {
	Result Result
}

func (e *NackError) Error() string {
	return fmt.Sprintf("nack at %s: %v", e.Result.Stage, e.Result.Err)
}

func (e *NackError) IsRetryable() bool {
	return true
}
