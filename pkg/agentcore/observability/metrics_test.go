package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// setupMetricsTest creates a meter provider backed by a manual reader.
func setupMetricsTest(t *testing.T) (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			t.Logf("Error shutting down meter provider: %v", err)
		}
	})
	return reader, provider
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) *metricdata.ResourceMetrics {
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	return &rm
}

func findMetric(rm *metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func sumValue(t *testing.T, m *metricdata.Metrics) int64 {
	t.Helper()
	require.NotNil(t, m)
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "expected Sum[int64], got %T", m.Data)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestNewMetricsRecorderFor(t *testing.T) {
	_, provider := setupMetricsTest(t)

	recorder := NewMetricsRecorderFor(provider)
	require.NotNil(t, recorder)

	_, isNoop := recorder.(NoopMetrics)
	assert.False(t, isNoop, "Expected real metrics recorder, got noop")
}

func TestRecordTick(t *testing.T) {
	reader, provider := setupMetricsTest(t)
	m, err := newOtelMetrics(provider)
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordTick(ctx, "scout", 120*time.Millisecond, time.Second, nil)
	m.RecordTick(ctx, "scout", 80*time.Millisecond, 1500*time.Millisecond, errors.New("down"))

	rm := collectMetrics(t, reader)
	assert.Equal(t, int64(2), sumValue(t, findMetric(rm, "agentcore.scheduler.ticks")))
	assert.Equal(t, int64(1), sumValue(t, findMetric(rm, "agentcore.scheduler.tick_errors")))

	latency := findMetric(rm, "agentcore.scheduler.tick_latency_ms")
	require.NotNil(t, latency)
	hist, ok := latency.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(2), hist.DataPoints[0].Count)

	interval := findMetric(rm, "agentcore.scheduler.interval_ms")
	require.NotNil(t, interval)
	gauge, ok := interval.Data.(metricdata.Gauge[float64])
	require.True(t, ok)
	require.Len(t, gauge.DataPoints, 1)
	assert.Equal(t, 1500.0, gauge.DataPoints[0].Value)
}

func TestRecordEmit(t *testing.T) {
	reader, provider := setupMetricsTest(t)
	m, err := newOtelMetrics(provider)
	require.NoError(t, err)

	m.RecordEmit(context.Background(), "agent.tick", 3, 1)
	m.RecordEmit(context.Background(), "agent.tick", 2, 0)

	rm := collectMetrics(t, reader)
	assert.Equal(t, int64(2), sumValue(t, findMetric(rm, "agentcore.event.emits")))
	assert.Equal(t, int64(5), sumValue(t, findMetric(rm, "agentcore.event.handlers_notified")))
	assert.Equal(t, int64(1), sumValue(t, findMetric(rm, "agentcore.event.handler_errors")))
}

func TestRecordCacheLookup(t *testing.T) {
	reader, provider := setupMetricsTest(t)
	m, err := newOtelMetrics(provider)
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordCacheLookup(ctx, CacheMiss)
	m.RecordCacheLookup(ctx, CacheDedup)
	m.RecordCacheLookup(ctx, CacheHit)
	m.RecordCacheLookup(ctx, CacheHit)

	rm := collectMetrics(t, reader)
	lookups := findMetric(rm, "agentcore.coord.lookups")
	require.NotNil(t, lookups)
	sum, ok := lookups.Data.(metricdata.Sum[int64])
	require.True(t, ok)

	byOutcome := map[string]int64{}
	for _, dp := range sum.DataPoints {
		v, _ := dp.Attributes.Value(attribute.Key("outcome"))
		byOutcome[v.AsString()] = dp.Value
	}
	assert.Equal(t, map[string]int64{"hit": 2, "miss": 1, "dedup": 1}, byOutcome)
}

func TestRecordBatchItem(t *testing.T) {
	reader, provider := setupMetricsTest(t)
	m, err := newOtelMetrics(provider)
	require.NoError(t, err)

	m.RecordBatchItem(context.Background(), 5*time.Millisecond, nil)
	m.RecordBatchItem(context.Background(), 7*time.Millisecond, errors.New("bad yaml"))

	rm := collectMetrics(t, reader)
	assert.Equal(t, int64(2), sumValue(t, findMetric(rm, "agentcore.loader.items")))
	assert.NotNil(t, findMetric(rm, "agentcore.loader.item_latency_ms"))
}
