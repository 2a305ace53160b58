package observability

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MeterName is the instrumentation scope used for agentcore metrics.
const MeterName = "agentcore"

// CacheOutcome classifies a coordinator cache lookup.
type CacheOutcome string

// Cache lookup outcomes.
const (
	CacheHit     CacheOutcome = "hit"
	CacheMiss    CacheOutcome = "miss"
	CacheDedup   CacheOutcome = "dedup"
	CacheBatched CacheOutcome = "batched"
)

// MetricsRecorder records agentcore metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordTick records one scheduler tick with its duration, error status,
	// and the adaptive interval chosen afterwards.
	RecordTick(ctx context.Context, scheduler string, duration, nextInterval time.Duration, err error)

	// RecordEmit records one emit fan-out.
	RecordEmit(ctx context.Context, eventType string, notified, failed int)

	// RecordCacheLookup records how a coordinator lookup was satisfied.
	RecordCacheLookup(ctx context.Context, outcome CacheOutcome)

	// RecordBatchItem records a single batch loader item.
	RecordBatchItem(ctx context.Context, duration time.Duration, err error)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	ticks          metric.Int64Counter
	tickLatency    metric.Float64Histogram
	tickErrors     metric.Int64Counter
	tickInterval   metric.Float64Gauge
	emits          metric.Int64Counter
	handlerErrors  metric.Int64Counter
	handlersCalled metric.Int64Counter
	cacheLookups   metric.Int64Counter
	batchItems     metric.Int64Counter
	batchLatency   metric.Float64Histogram
}

// newOtelMetrics creates instruments on the given meter provider.
func newOtelMetrics(provider metric.MeterProvider) (*otelMetrics, error) {
	meter := provider.Meter(MeterName)
	m := &otelMetrics{}
	var err error

	if m.ticks, err = meter.Int64Counter("agentcore.scheduler.ticks",
		metric.WithDescription("Number of scheduler ticks executed"),
	); err != nil {
		return nil, err
	}
	if m.tickLatency, err = meter.Float64Histogram("agentcore.scheduler.tick_latency_ms",
		metric.WithDescription("Tick handler latency in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}
	if m.tickErrors, err = meter.Int64Counter("agentcore.scheduler.tick_errors",
		metric.WithDescription("Number of failed ticks"),
	); err != nil {
		return nil, err
	}
	if m.tickInterval, err = meter.Float64Gauge("agentcore.scheduler.interval_ms",
		metric.WithDescription("Adaptive tick interval in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}
	if m.emits, err = meter.Int64Counter("agentcore.event.emits",
		metric.WithDescription("Number of emit fan-outs"),
	); err != nil {
		return nil, err
	}
	if m.handlersCalled, err = meter.Int64Counter("agentcore.event.handlers_notified",
		metric.WithDescription("Number of handler invocations"),
	); err != nil {
		return nil, err
	}
	if m.handlerErrors, err = meter.Int64Counter("agentcore.event.handler_errors",
		metric.WithDescription("Number of failed handler invocations"),
	); err != nil {
		return nil, err
	}
	if m.cacheLookups, err = meter.Int64Counter("agentcore.coord.lookups",
		metric.WithDescription("Coordinator lookups by outcome"),
	); err != nil {
		return nil, err
	}
	if m.batchItems, err = meter.Int64Counter("agentcore.loader.items",
		metric.WithDescription("Number of batch loader items processed"),
	); err != nil {
		return nil, err
	}
	if m.batchLatency, err = meter.Float64Histogram("agentcore.loader.item_latency_ms",
		metric.WithDescription("Batch loader item latency in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses the global
// OpenTelemetry meter provider. If instrument creation fails, it logs a
// warning and returns a no-op recorder.
//
// Configure the provider before calling this function:
//
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	return NewMetricsRecorderFor(otel.GetMeterProvider())
}

// NewMetricsRecorderFor is NewMetricsRecorder with an explicit provider.
func NewMetricsRecorderFor(provider metric.MeterProvider) MetricsRecorder {
	m, err := newOtelMetrics(provider)
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// RecordTick records a tick.
func (m *otelMetrics) RecordTick(ctx context.Context, scheduler string, duration, nextInterval time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.String("scheduler", scheduler))

	m.ticks.Add(ctx, 1, attrs)
	m.tickLatency.Record(ctx, ms(duration), attrs)
	m.tickInterval.Record(ctx, ms(nextInterval), attrs)
	if err != nil {
		m.tickErrors.Add(ctx, 1, attrs)
	}
}

// RecordEmit records an emit fan-out.
func (m *otelMetrics) RecordEmit(ctx context.Context, eventType string, notified, failed int) {
	attrs := metric.WithAttributes(attribute.String("event_type", eventType))

	m.emits.Add(ctx, 1, attrs)
	m.handlersCalled.Add(ctx, int64(notified), attrs)
	if failed > 0 {
		m.handlerErrors.Add(ctx, int64(failed), attrs)
	}
}

// RecordCacheLookup records a coordinator lookup.
func (m *otelMetrics) RecordCacheLookup(ctx context.Context, outcome CacheOutcome) {
	m.cacheLookups.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", string(outcome))))
}

// RecordBatchItem records a batch loader item.
func (m *otelMetrics) RecordBatchItem(ctx context.Context, duration time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.Bool("success", err == nil))
	m.batchItems.Add(ctx, 1, attrs)
	m.batchLatency.Record(ctx, ms(duration), attrs)
}
