package scheduler

import (
	"context"
	"fmt"
	"time"
)

// State is the scheduler lifecycle state.
type State int

const (
	// StateStopped means no ticks will start.
	StateStopped State = iota
	// StateRunning means the timer is armed.
	StateRunning
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	default:
		return "stopped"
	}
}

// Metrics is a snapshot of tick statistics.
type Metrics struct {
	// TotalTicks counts ticks whose handler ran, failed or not.
	TotalTicks int64
	// AvgDuration is the running mean handler duration.
	AvgDuration time.Duration
	// MaxDuration is the slowest handler run seen.
	MaxDuration time.Duration
	// ErrorCount counts ticks whose handler returned an error or panicked.
	ErrorCount int64
	// SkippedTicks counts firings dropped because the scheduler was stopped
	// or a tick was already in flight. Skips never touch the other counters.
	SkippedTicks int64
	// CurrentInterval is the adaptive interval used for the next tick.
	CurrentInterval time.Duration
}

// AvgDurationMs returns AvgDuration in milliseconds.
func (m Metrics) AvgDurationMs() float64 {
	return float64(m.AvgDuration) / float64(time.Millisecond)
}

// MaxDurationMs returns MaxDuration in milliseconds.
func (m Metrics) MaxDurationMs() float64 {
	return float64(m.MaxDuration) / float64(time.Millisecond)
}

// TickError is returned by Tick when the handler fails.
type TickError struct {
	Scheduler string
	Tick      int64
	Err       error
}

// Error implements error.
func (e *TickError) Error() string {
	return fmt.Sprintf("%s tick %d: %v", e.Scheduler, e.Tick, e.Err)
}

// Unwrap returns the handler error.
func (e *TickError) Unwrap() error {
	return e.Err
}

// TickInfo describes the tick a handler is running in.
type TickInfo struct {
	// Number counts executed ticks, starting at 1.
	Number int64
	// ID is a ULID unique to this tick.
	ID string
	// Scheduler is the scheduler's name.
	Scheduler string
	// Started is when the handler was invoked.
	Started time.Time
	// Interval is the adaptive interval in effect when the tick started.
	Interval time.Duration
}

type tickKey struct{}

// WithTickInfo returns a context carrying info.
func WithTickInfo(ctx context.Context, info TickInfo) context.Context {
	return context.WithValue(ctx, tickKey{}, info)
}

// TickFromContext returns the TickInfo set by the scheduler, if any.
func TickFromContext(ctx context.Context) (TickInfo, bool) {
	info, ok := ctx.Value(tickKey{}).(TickInfo)
	return info, ok
}
