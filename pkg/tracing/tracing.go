// Package tracing wires OpenTelemetry spans around the Analysis Pipeline
// stages and TGE's UpdateStatus hot path (ambient stack addition).
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace/noop"
	oteltrace "go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/taskforge/orchestrator"

// NewNoop returns a TracerProvider that discards every span, for tests
// and environments without a configured exporter.
func NewNoop() oteltrace.TracerProvider {
	return noop.NewTracerProvider()
}

// NewSDK returns a real SDK-backed TracerProvider using the given span
// processors (e.g. a batch processor wrapping an OTLP exporter).
func NewSDK(processors ...trace.SpanProcessor) *trace.TracerProvider {
	opts := make([]trace.TracerProviderOption, 0, len(processors))
	for _, p := range processors {
		opts = append(opts, trace.WithSpanProcessor(p))
	}
	return trace.NewTracerProvider(opts...)
}

// StartSpan begins a span named name under tp's tracer.
func StartSpan(ctx context.Context, tp oteltrace.TracerProvider, name string) (context.Context, oteltrace.Span) {
	tracer := tp.Tracer(tracerName)
	return tracer.Start(ctx, name)
}

// SetGlobal installs tp as the process-wide default, so library code that
// calls otel.Tracer(...) directly (rather than taking a TracerProvider
// dependency) still gets real spans when one is configured.
func SetGlobal(tp oteltrace.TracerProvider) {
	otel.SetTracerProvider(tp)
}
