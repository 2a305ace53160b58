package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// NoopMetrics is a MetricsRecorder that does nothing.
type NoopMetrics struct{}

var _ MetricsRecorder = NoopMetrics{}

// RecordTick does nothing.
func (NoopMetrics) RecordTick(context.Context, string, time.Duration, time.Duration, error) {}

// RecordEmit does nothing.
func (NoopMetrics) RecordEmit(context.Context, string, int, int) {}

// RecordCacheLookup does nothing.
func (NoopMetrics) RecordCacheLookup(context.Context, CacheOutcome) {}

// RecordBatchItem does nothing.
func (NoopMetrics) RecordBatchItem(context.Context, time.Duration, error) {}

// NoopSpanManager is a SpanManager that does nothing.
type NoopSpanManager struct{}

var _ SpanManager = NoopSpanManager{}

var noopSpan = noop.Span{}

// StartTickSpan returns the context unchanged and a no-op span.
func (NoopSpanManager) StartTickSpan(ctx context.Context, _ string, _ int64) (context.Context, trace.Span) {
	return ctx, noopSpan
}

// StartEmitSpan returns the context unchanged and a no-op span.
func (NoopSpanManager) StartEmitSpan(ctx context.Context, _, _ string) (context.Context, trace.Span) {
	return ctx, noopSpan
}

// StartBatchSpan returns the context unchanged and a no-op span.
func (NoopSpanManager) StartBatchSpan(ctx context.Context, _, _ int) (context.Context, trace.Span) {
	return ctx, noopSpan
}

// EndSpanWithError does nothing.
func (NoopSpanManager) EndSpanWithError(trace.Span, error) {}

// OrNoopMetrics returns m, or NoopMetrics when m is nil.
func OrNoopMetrics(m MetricsRecorder) MetricsRecorder {
	if m == nil {
		return NoopMetrics{}
	}
	return m
}

// OrNoopSpans returns s, or NoopSpanManager when s is nil.
func OrNoopSpans(s SpanManager) SpanManager {
	if s == nil {
		return NoopSpanManager{}
	}
	return s
}
