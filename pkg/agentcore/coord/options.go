package coord

import (
	"log/slog"
	"time"

	"github.com/randalmurphal/agentcore/pkg/agentcore/observability"
)

// Defaults used when options are not given.
const (
	DefaultTTL         = 5 * time.Minute
	DefaultBatchWindow = time.Millisecond
)

type config struct {
	defaultTTL  time.Duration
	batchWindow time.Duration
	logger      *slog.Logger
	metrics     observability.MetricsRecorder
	now         func() time.Time
}

// Option configures a Coordinator.
type Option func(*config)

// WithDefaultTTL sets the TTL used when WithCache gets ttl <= 0.
// Default: 5m. Non-positive values are ignored.
func WithDefaultTTL(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.defaultTTL = d
		}
	}
}

// WithBatchWindow sets how long a batch collects callers before it runs.
// Default: 1ms. Zero means only callers that arrive before the scheduler
// next runs the flush goroutine join the batch.
func WithBatchWindow(d time.Duration) Option {
	return func(c *config) {
		if d >= 0 {
			c.batchWindow = d
		}
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithMetrics records cache hits, misses, and shared results.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(c *config) {
		c.metrics = m
	}
}

// WithClock replaces the clock used for entry expiry.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		if now != nil {
			c.now = now
		}
	}
}
