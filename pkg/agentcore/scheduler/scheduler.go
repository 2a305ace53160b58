package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	acerrors "github.com/randalmurphal/agentcore/pkg/agentcore/errors"
	"github.com/randalmurphal/agentcore/pkg/agentcore/observability"
)

// TickFunc is the work performed on every tick.
type TickFunc func(ctx context.Context) error

// Adaptation thresholds and factors, relative to the current interval and
// clamped relative to the base interval.
const (
	slowThreshold = 0.8
	fastThreshold = 0.2
	growFactor    = 1.10
	shrinkFactor  = 0.95
	errorFactor   = 1.5
	maxSlowScale  = 2.0
	minFastScale  = 0.5
	maxErrorScale = 3.0
)

// Scheduler invokes a TickFunc on a recurring, adaptive interval.
//
// At most one tick runs at a time. A firing that finds a tick in flight, or
// the scheduler stopped, is dropped rather than queued. After every tick the
// interval is adapted: slow ticks widen it, fast ticks narrow it, and failed
// ticks back off harder. The scheduler keeps running after a failed tick.
type Scheduler struct {
	fn       TickFunc
	name     string
	adaptive bool
	logger   *slog.Logger
	metrics  observability.MetricsRecorder
	spans    observability.SpanManager
	now      func() time.Time

	mu       sync.Mutex
	state    State
	base     time.Duration
	current  time.Duration
	inFlight bool
	gen      uint64 // incremented by every Start and Stop
	timer    *time.Timer
	ctx      context.Context
	unwatch  func() bool
	stats    Metrics
}

// New creates a stopped scheduler for fn.
func New(fn TickFunc, opts ...Option) *Scheduler {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		fn:       fn,
		name:     cfg.name,
		adaptive: cfg.adaptive,
		logger:   logger.With(slog.String("scheduler", cfg.name)),
		metrics:  observability.OrNoopMetrics(cfg.metrics),
		spans:    observability.OrNoopSpans(cfg.spans),
		now:      cfg.now,
		base:     cfg.interval,
		current:  cfg.interval,
	}
}

// Name returns the scheduler's name.
func (s *Scheduler) Name() string {
	return s.name
}

// Start begins ticking, first after the base interval. Calling Start on a
// running scheduler restarts the timer and resets the adaptive interval.
//
// ctx is passed to every tick. When ctx is done the scheduler stops itself;
// Stop does not cancel ctx.
func (s *Scheduler) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.startLocked(ctx)
	s.logger.Debug("scheduler started", slog.Duration("interval", s.base))
}

// startLocked arms a new generation. Any timer of an older generation is
// disarmed, and a late firing of it is ignored by fire.
func (s *Scheduler) startLocked(ctx context.Context) {
	s.disarmLocked()
	s.gen++
	gen := s.gen
	s.state = StateRunning
	s.current = s.base
	s.ctx = ctx
	s.unwatch = context.AfterFunc(ctx, func() { s.stopGeneration(gen) })
	s.armLocked(gen)
}

// Stop cancels the timer. It is idempotent. Once Stop returns no new tick
// starts, even if a timer already fired; a tick already running finishes.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Scheduler) stopGeneration(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen == gen {
		s.stopLocked()
	}
}

func (s *Scheduler) stopLocked() {
	if s.state == StateStopped {
		return
	}
	s.disarmLocked()
	s.gen++
	s.state = StateStopped
	s.logger.Debug("scheduler stopped")
}

func (s *Scheduler) disarmLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.unwatch != nil {
		s.unwatch()
		s.unwatch = nil
	}
}

func (s *Scheduler) armLocked(gen uint64) {
	s.timer = time.AfterFunc(s.current, func() { s.fire(gen) })
}

// fire runs one tick for generation gen and re-arms the timer with the
// interval chosen by that tick.
func (s *Scheduler) fire(gen uint64) {
	s.mu.Lock()
	if s.gen != gen || s.state != StateRunning {
		s.mu.Unlock()
		return
	}
	ctx := s.ctx
	s.mu.Unlock()

	_ = s.tick(ctx, gen)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen == gen && s.state == StateRunning {
		s.armLocked(gen)
	}
}

// UpdateInterval sets a new base interval and resets the adaptive interval
// to it. A running scheduler is restarted so the change applies right away.
// Non-positive durations are ignored.
func (s *Scheduler) UpdateInterval(d time.Duration) {
	if d <= 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.base = d
	s.current = d
	// The running check and the restart share one lock hold, so a concurrent
	// Stop either wins outright or stops the new generation.
	if s.state == StateRunning {
		s.startLocked(s.ctx)
		s.logger.Debug("scheduler interval updated", slog.Duration("interval", d))
	}
}

// Tick runs one tick now, subject to the same rules as a timer firing: it is
// skipped when the scheduler is stopped or another tick is in flight.
// A failed tick returns a *TickError; a skipped tick returns nil.
func (s *Scheduler) Tick(ctx context.Context) error {
	return s.tick(ctx, 0)
}

// tick runs the handler. gen 0 accepts any running generation.
func (s *Scheduler) tick(ctx context.Context, gen uint64) error {
	s.mu.Lock()
	if s.state != StateRunning || (gen != 0 && gen != s.gen) || s.inFlight {
		s.stats.SkippedTicks++
		s.mu.Unlock()
		observability.LogTickSkipped(s.logger, s.name)
		return nil
	}
	s.inFlight = true
	s.stats.TotalTicks++
	info := TickInfo{
		Number:    s.stats.TotalTicks,
		ID:        ulid.Make().String(),
		Scheduler: s.name,
		Interval:  s.current,
	}
	s.mu.Unlock()

	ctx, span := s.spans.StartTickSpan(ctx, s.name, info.Number)
	info.Started = s.now()
	err := s.run(WithTickInfo(ctx, info))
	elapsed := s.now().Sub(info.Started)

	s.mu.Lock()
	s.inFlight = false
	s.record(elapsed, err != nil)
	next := s.current
	s.mu.Unlock()

	s.metrics.RecordTick(ctx, s.name, elapsed, next, err)
	s.spans.EndSpanWithError(span, err)

	if err != nil {
		observability.LogTickError(s.logger, s.name, info.Number, err, next)
		return &TickError{Scheduler: s.name, Tick: info.Number, Err: err}
	}
	observability.LogTickComplete(s.logger, s.name, info.Number, elapsed, next)
	return nil
}

func (s *Scheduler) run(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = acerrors.Recover("tick handler", r)
		}
	}()
	if s.fn == nil {
		return nil
	}
	return s.fn(ctx)
}

// record updates statistics and adapts the interval. Caller holds s.mu.
func (s *Scheduler) record(elapsed time.Duration, failed bool) {
	st := &s.stats
	st.AvgDuration += (elapsed - st.AvgDuration) / time.Duration(st.TotalTicks)
	if elapsed > st.MaxDuration {
		st.MaxDuration = elapsed
	}
	if failed {
		st.ErrorCount++
	}
	if s.adaptive {
		s.current = adapt(s.base, s.current, elapsed, failed)
	}
}

// adapt returns the interval for the next tick.
func adapt(base, current, elapsed time.Duration, failed bool) time.Duration {
	switch {
	case failed:
		return min(scale(current, errorFactor), scale(base, maxErrorScale))
	case elapsed > scale(current, slowThreshold):
		return min(scale(current, growFactor), scale(base, maxSlowScale))
	case elapsed < scale(current, fastThreshold):
		return max(scale(current, shrinkFactor), scale(base, minFastScale))
	default:
		return current
	}
}

func scale(d time.Duration, f float64) time.Duration {
	return time.Duration(float64(d) * f)
}

// Interval returns the adaptive interval for the next tick.
func (s *Scheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// BaseInterval returns the configured base interval.
func (s *Scheduler) BaseInterval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.base
}

// Metrics returns a snapshot of tick statistics.
func (s *Scheduler) Metrics() Metrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.stats
	m.CurrentInterval = s.current
	return m
}

// State returns the lifecycle state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IsRunning reports whether the scheduler is started.
func (s *Scheduler) IsRunning() bool {
	return s.State() == StateRunning
}
