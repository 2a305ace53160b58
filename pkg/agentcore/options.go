package agentcore

import (
	"log/slog"
	"time"

	"github.com/randalmurphal/agentcore/pkg/agentcore/agentdef"
	"github.com/randalmurphal/agentcore/pkg/agentcore/config"
	"github.com/randalmurphal/agentcore/pkg/agentcore/coord"
	"github.com/randalmurphal/agentcore/pkg/agentcore/event"
	"github.com/randalmurphal/agentcore/pkg/agentcore/observability"
)

// runtimeConfig holds Runtime construction settings.
type runtimeConfig struct {
	settings config.Settings
	logger   *slog.Logger
	bus      *event.Bus
	coord    *coord.Coordinator
	store    agentdef.Store
	metrics  observability.MetricsRecorder
	spans    observability.SpanManager
}

// Option configures a Runtime.
type Option func(*runtimeConfig)

// WithSettings replaces the runtime settings. Options that adjust a single
// setting (WithTickInterval, WithBatchSize) must come after it.
func WithSettings(s config.Settings) Option {
	return func(c *runtimeConfig) {
		c.settings = s
	}
}

// WithLogger sets the runtime logger. It is shared with every component the
// runtime creates.
func WithLogger(logger *slog.Logger) Option {
	return func(c *runtimeConfig) {
		c.logger = logger
	}
}

// WithBus uses an existing event bus instead of creating one.
func WithBus(bus *event.Bus) Option {
	return func(c *runtimeConfig) {
		c.bus = bus
	}
}

// WithCoordinator uses an existing coordinator instead of creating one.
func WithCoordinator(co *coord.Coordinator) Option {
	return func(c *runtimeConfig) {
		c.coord = co
	}
}

// WithStore persists every loaded definition to store.
func WithStore(store agentdef.Store) Option {
	return func(c *runtimeConfig) {
		c.store = store
	}
}

// WithTickInterval sets the default base interval for agents whose
// definition does not set one. Non-positive values are ignored.
func WithTickInterval(d time.Duration) Option {
	return func(c *runtimeConfig) {
		if d > 0 {
			c.settings.TickInterval = d
		}
	}
}

// WithBatchSize sets how many definition files load concurrently.
// Non-positive values are ignored.
func WithBatchSize(n int) Option {
	return func(c *runtimeConfig) {
		if n > 0 {
			c.settings.BatchSize = n
		}
	}
}

// WithMetrics sets the metrics recorder for every component.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(c *runtimeConfig) {
		c.metrics = m
	}
}

// WithTracing sets the span manager for every component.
func WithTracing(s observability.SpanManager) Option {
	return func(c *runtimeConfig) {
		c.spans = s
	}
}
