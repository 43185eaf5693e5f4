package observability

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "homebuilder-pricing/workers"

type Tracing struct {
	provider *sdktrace.TracerProvider
}

// NewTracing configures a Jaeger-exported tracer provider and registers it as
// the global provider StartJobSpan reads from. An empty endpoint leaves the
// default no-op provider in place, so worker code can always call
// StartJobSpan.
func NewTracing(serviceName, jaegerEndpoint string) *Tracing {
	if jaegerEndpoint == "" {
		return &Tracing{}
	}

	exporter, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(jaegerEndpoint)))
	if err != nil {
		log.Printf("Failed to create Jaeger exporter: %v", err)
		return &Tracing{}
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
		)),
	)
	otel.SetTracerProvider(provider)

	return &Tracing{provider: provider}
}

// StartJobSpan opens a span covering one service-task execution. Handlers call
// this with the job's deadline context and pass the returned context down, so
// child spans (cascade recomputes, store calls) nest under the job span.
func StartJobSpan(ctx context.Context, taskType string, jobKey int64) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, taskType, trace.WithAttributes(
		attribute.String("task.type", taskType),
		attribute.Int64("job.key", jobKey),
	))
}

// StartSpan opens a child span under whatever span the context carries.
func StartSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name)
}

func (t *Tracing) Shutdown() {
	if t.provider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = t.provider.Shutdown(ctx)
	}
}
