package scheduler

import (
	"log/slog"
	"time"

	"github.com/randalmurphal/agentcore/pkg/agentcore/observability"
)

// DefaultInterval is the base interval when WithInterval is not given.
const DefaultInterval = time.Second

// config holds scheduler construction settings.
type config struct {
	name     string
	interval time.Duration
	adaptive bool
	logger   *slog.Logger
	metrics  observability.MetricsRecorder
	spans    observability.SpanManager
	now      func() time.Time
}

func defaultConfig() config {
	return config{
		name:     "scheduler",
		interval: DefaultInterval,
		adaptive: true,
		now:      time.Now,
	}
}

// Option configures a Scheduler.
type Option func(*config)

// WithInterval sets the base tick interval.
// Default: 1s. Non-positive values are ignored.
func WithInterval(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithName labels the scheduler in logs, metrics, and spans.
func WithName(name string) Option {
	return func(c *config) {
		if name != "" {
			c.name = name
		}
	}
}

// WithAdaptive enables or disables interval adaptation.
// Default: true. When disabled the scheduler always waits the base interval.
func WithAdaptive(enabled bool) Option {
	return func(c *config) {
		c.adaptive = enabled
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithMetrics records tick counts, latency, and the chosen interval.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(c *config) {
		c.metrics = m
	}
}

// WithTracing wraps each tick in a span.
func WithTracing(s observability.SpanManager) Option {
	return func(c *config) {
		c.spans = s
	}
}

// WithClock replaces the clock used to measure tick duration.
//
// Example:
//
//	clock := time.Now()
//	s := scheduler.New(fn, scheduler.WithClock(func() time.Time { return clock }))
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		if now != nil {
			c.now = now
		}
	}
}
