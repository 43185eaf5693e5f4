package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// installRecorder swaps in a recording tracer provider and restores the
// previous one when the test ends.
func installRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() { otel.SetTracerProvider(previous) })
	return recorder
}

func TestStartJobSpan_RecordsTaskAttributes(t *testing.T) {
	recorder := installRecorder(t)

	ctx, span := StartJobSpan(context.Background(), "promote-base-package", 42)
	span.End()

	// The span context is threaded so downstream work nests under the job.
	assert.True(t, trace.SpanContextFromContext(ctx).IsValid())

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "promote-base-package", spans[0].Name())
	assert.Contains(t, spans[0].Attributes(), attribute.String("task.type", "promote-base-package"))
	assert.Contains(t, spans[0].Attributes(), attribute.Int64("job.key", 42))
}

func TestStartJobSpan_NoopWithoutProvider(t *testing.T) {
	// With no registered provider the global default is a no-op tracer;
	// spans are safe to start and end but never recorded.
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(noop.NewTracerProvider())
	t.Cleanup(func() { otel.SetTracerProvider(previous) })

	ctx, span := StartJobSpan(context.Background(), "price-catalog-option", 7)
	span.End()

	assert.NotNil(t, ctx)
	assert.False(t, span.SpanContext().IsValid())
}

func TestNewTracing_EmptyEndpointIsNoop(t *testing.T) {
	tr := NewTracing("pricing-manager", "")
	require.NotNil(t, tr)
	tr.Shutdown()
}
