package tracing

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"logworker/internal/config"
)

func withPropagator(t *testing.T) *sdktrace.TracerProvider {
	t.Helper()
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() {
		otel.SetTextMapPropagator(prev)
		_ = tp.Shutdown(context.Background())
	})
	return tp
}

func TestKafkaHeaders_RoundTripTraceContext(t *testing.T) {
	tp := withPropagator(t)
	ctx, span := tp.Tracer("test").Start(context.Background(), "produce")
	defer span.End()

	headers := InjectTraceContext(ctx, []kafka.Header{{Key: "tenant", Value: []byte("acme")}})
	require.Len(t, headers, 2)

	extracted := ExtractTraceContext(context.Background(), headers)
	assert.Equal(t, SpanTraceID(ctx), SpanTraceID(extracted))
}

func TestAttributes_RoundTripTraceContext(t *testing.T) {
	tp := withPropagator(t)
	ctx, span := tp.Tracer("test").Start(context.Background(), "publish")
	defer span.End()

	attrs := InjectIntoAttributes(ctx, nil)
	assert.Contains(t, attrs, "traceparent")

	extracted := ExtractFromAttributes(context.Background(), attrs)
	assert.Equal(t, span.SpanContext().TraceID().String(), SpanTraceID(extracted))
}

func TestSpanTraceID_EmptyWithoutSpan(t *testing.T) {
	assert.Empty(t, SpanTraceID(context.Background()))
	assert.Equal(t, context.Background(), ExtractFromAttributes(context.Background(), nil))
}

func TestInit_DisabledReturnsProvider(t *testing.T) {
	tp, err := Init(config.TracingConfig{Enabled: false}, "")
	require.NoError(t, err)
	assert.NotNil(t, tp.Tracer("x"))
	assert.NoError(t, tp.Shutdown(context.Background()))
}

func TestCreateSampler(t *testing.T) {
	assert.Equal(t, sdktrace.NeverSample().Description(), createSampler(config.SamplerConfig{Type: "always_off"}).Description())
	assert.Equal(t, sdktrace.AlwaysSample().Description(), createSampler(config.SamplerConfig{}).Description())
	assert.Equal(t, sdktrace.TraceIDRatioBased(0.25).Description(),
		createSampler(config.SamplerConfig{Type: "traceidratio", Param: 0.25}).Description())
}

func TestPickServiceName(t *testing.T) {
	assert.Equal(t, "explicit", pickServiceName("explicit", "configured"))
	assert.Equal(t, "configured", pickServiceName("", "configured"))
	assert.Equal(t, "worker-service", pickServiceName("", ""))
}
