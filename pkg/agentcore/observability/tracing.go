package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope used for agentcore spans.
const TracerName = "agentcore"

// SpanManager handles trace span lifecycle.
// Use NewSpanManager() for OTel tracing or NoopSpanManager{} when disabled.
type SpanManager interface {
	// StartTickSpan starts a span around one scheduler tick.
	StartTickSpan(ctx context.Context, scheduler string, tick int64) (context.Context, trace.Span)

	// StartEmitSpan starts a span around one emit fan-out.
	StartEmitSpan(ctx context.Context, eventType, eventID string) (context.Context, trace.Span)

	// StartBatchSpan starts a span around one loader chunk.
	StartBatchSpan(ctx context.Context, batch, size int) (context.Context, trace.Span)

	// EndSpanWithError completes a span, optionally recording an error.
	EndSpanWithError(span trace.Span, err error)
}

// otelSpanManager implements SpanManager using OpenTelemetry.
type otelSpanManager struct {
	tracer trace.Tracer
}

// NewSpanManager returns a SpanManager that uses the global tracer provider.
// The tracer is resolved at construction time, so configure the provider first:
//
//	otel.SetTracerProvider(yourProvider)
func NewSpanManager() SpanManager {
	return NewSpanManagerFor(otel.GetTracerProvider())
}

// NewSpanManagerFor returns a SpanManager bound to an explicit provider.
func NewSpanManagerFor(provider trace.TracerProvider) SpanManager {
	return &otelSpanManager{tracer: provider.Tracer(TracerName)}
}

// StartTickSpan starts a tick span.
func (m *otelSpanManager) StartTickSpan(ctx context.Context, scheduler string, tick int64) (context.Context, trace.Span) {
	return m.tracer.Start(ctx, "agentcore.tick",
		trace.WithAttributes(
			attribute.String("scheduler.name", scheduler),
			attribute.Int64("tick.number", tick),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// StartEmitSpan starts an emit span.
func (m *otelSpanManager) StartEmitSpan(ctx context.Context, eventType, eventID string) (context.Context, trace.Span) {
	return m.tracer.Start(ctx, "agentcore.emit "+eventType,
		trace.WithAttributes(
			attribute.String("event.type", eventType),
			attribute.String("event.id", eventID),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// StartBatchSpan starts a loader chunk span.
func (m *otelSpanManager) StartBatchSpan(ctx context.Context, batch, size int) (context.Context, trace.Span) {
	return m.tracer.Start(ctx, "agentcore.load.batch",
		trace.WithAttributes(
			attribute.Int("batch.index", batch),
			attribute.Int("batch.size", size),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// EndSpanWithError completes a span, optionally recording an error.
func (m *otelSpanManager) EndSpanWithError(span trace.Span, err error) {
	EndSpanWithError(span, err)
}

// EndSpanWithError completes a span, optionally recording an error.
func EndSpanWithError(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// AddSpanEvent adds an event to the current span in context.
func AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.AddEvent(name, trace.WithAttributes(attrs...))
}
