// Package observability provides structured logging, metrics, and tracing
// for the agentcore runtime.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// LevelTrace is a log level below Debug for very verbose tick diagnostics.
const LevelTrace = slog.Level(-8)

// NewLogger builds a logger writing to stdout.
// Supported levels (case-insensitive): ERROR, WARN, INFO, DEBUG, TRACE;
// anything else means INFO. Format is "json" or "text" (default).
func NewLogger(level, format string) *slog.Logger {
	return NewLoggerTo(os.Stdout, level, format)
}

// NewLoggerTo is NewLogger with an explicit writer.
func NewLoggerTo(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// ParseLevel converts a level name to a slog.Level.
func ParseLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "ERROR":
		return slog.LevelError
	case "WARNING", "WARN":
		return slog.LevelWarn
	case "DEBUG":
		return slog.LevelDebug
	case "TRACE":
		return LevelTrace
	default:
		return slog.LevelInfo
	}
}

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// EnrichLogger adds agent context to a logger.
//
// Example:
//
//	enriched := EnrichLogger(logger, "scout", 42)
//	enriched.Info("thinking") // includes agent and tick
func EnrichLogger(logger *slog.Logger, agent string, tick int64) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("agent", agent),
		slog.Int64("tick", tick),
	)
}

// LogTickComplete logs a finished tick along with the interval chosen for the next one.
func LogTickComplete(logger *slog.Logger, scheduler string, tick int64, elapsed, next time.Duration) {
	if logger == nil {
		return
	}
	logger.Log(context.Background(), LevelTrace, "tick completed",
		slog.String("scheduler", scheduler),
		slog.Int64("tick", tick),
		slog.Float64("duration_ms", ms(elapsed)),
		slog.Float64("next_interval_ms", ms(next)),
	)
}

// LogTickError logs a failed tick. The scheduler keeps running.
func LogTickError(logger *slog.Logger, scheduler string, tick int64, err error, next time.Duration) {
	if logger == nil {
		return
	}
	logger.Warn("tick failed",
		slog.String("scheduler", scheduler),
		slog.Int64("tick", tick),
		slog.String("error", err.Error()),
		slog.Float64("next_interval_ms", ms(next)),
	)
}

// LogTickSkipped logs a timer firing that found a tick still in flight.
func LogTickSkipped(logger *slog.Logger, scheduler string) {
	if logger == nil {
		return
	}
	logger.Debug("tick skipped, previous tick still running",
		slog.String("scheduler", scheduler),
	)
}

// LogHandlerError logs an event handler failure isolated during emit.
func LogHandlerError(logger *slog.Logger, eventType, eventID, handler string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("event handler failed",
		slog.String("event_type", eventType),
		slog.String("event_id", eventID),
		slog.String("handler", handler),
		slog.String("error", err.Error()),
	)
}

// LogBatchComplete logs the outcome of a batched load.
func LogBatchComplete(logger *slog.Logger, loaded, failed, batches int, total time.Duration) {
	if logger == nil {
		return
	}
	level := slog.LevelInfo
	if failed > 0 {
		level = slog.LevelWarn
	}
	logger.Log(context.Background(), level, "batch load completed",
		slog.Int("loaded", loaded),
		slog.Int("failed", failed),
		slog.Int("batches", batches),
		slog.Float64("duration_ms", ms(total)),
	)
}

// LogLoadError logs a single item failure during a batched load.
func LogLoadError(logger *slog.Logger, index int, err error) {
	if logger == nil {
		return
	}
	logger.Warn("item load failed",
		slog.Int("index", index),
		slog.String("error", err.Error()),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time.
//
// Example:
//
//	done := TimedOperation()
//	// ... do work ...
//	elapsed := done()
func TimedOperation() func() time.Duration {
	start := time.Now()
	return func() time.Duration {
		return time.Since(start)
	}
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
