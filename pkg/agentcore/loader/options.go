package loader

import (
	"log/slog"

	acerrors "github.com/randalmurphal/agentcore/pkg/agentcore/errors"
	"github.com/randalmurphal/agentcore/pkg/agentcore/observability"
)

// Option configures a Loader.
type Option func(*Loader)

// WithBatchSize sets how many items load concurrently.
// Default: 10. Non-positive values select the default.
func WithBatchSize(n int) Option {
	return func(l *Loader) {
		if n <= 0 {
			n = DefaultBatchSize
		}
		l.batchSize = n
	}
}

// WithRetry retries transient item failures. Default: no retries.
//
// Example:
//
//	l := loader.New(loader.WithRetry(errors.DefaultRetry))
func WithRetry(cfg acerrors.RetryConfig) Option {
	return func(l *Loader) {
		l.retry = cfg
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		l.logger = logger
	}
}

// WithMetrics records per-item latency and outcome.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(l *Loader) {
		l.metrics = m
	}
}

// WithTracing wraps each chunk in a span.
func WithTracing(s observability.SpanManager) Option {
	return func(l *Loader) {
		l.spans = s
	}
}
