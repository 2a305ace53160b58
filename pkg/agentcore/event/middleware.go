package event

import (
	"context"
	"log/slog"
	"time"

	acerrors "github.com/randalmurphal/agentcore/pkg/agentcore/errors"
)

// RecoveryMiddleware turns a handler panic into an error.
//
// Emit already recovers panics at the handler boundary; this is for handlers
// invoked outside a Bus, or to recover beneath other middleware.
func RecoveryMiddleware() Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, evt Event) (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = acerrors.Recover("event handler", r)
				}
			}()
			return next(ctx, evt)
		}
	}
}

// LoggingMiddleware logs every handler invocation at debug level.
func LoggingMiddleware(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next Handler) Handler {
		return func(ctx context.Context, evt Event) error {
			start := time.Now()
			err := next(ctx, evt)
			attrs := []any{
				slog.String("event_type", evt.Type),
				slog.String("event_id", evt.ID),
				slog.Duration("duration", time.Since(start)),
			}
			if err != nil {
				attrs = append(attrs, slog.String("error", err.Error()))
			}
			logger.DebugContext(ctx, "event handled", attrs...)
			return err
		}
	}
}

// TypeFilter only passes events whose type is in types to the next handler.
// Other events are skipped without error.
func TypeFilter(types ...string) Middleware {
	allowed := make(map[string]struct{}, len(types))
	for _, t := range types {
		allowed[t] = struct{}{}
	}
	return func(next Handler) Handler {
		return func(ctx context.Context, evt Event) error {
			if _, ok := allowed[evt.Type]; !ok {
				return nil
			}
			return next(ctx, evt)
		}
	}
}
