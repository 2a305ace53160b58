package agentcore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/randalmurphal/agentcore/pkg/agentcore/agentdef"
	"github.com/randalmurphal/agentcore/pkg/agentcore/config"
	"github.com/randalmurphal/agentcore/pkg/agentcore/coord"
	acerrors "github.com/randalmurphal/agentcore/pkg/agentcore/errors"
	"github.com/randalmurphal/agentcore/pkg/agentcore/event"
	"github.com/randalmurphal/agentcore/pkg/agentcore/loader"
	"github.com/randalmurphal/agentcore/pkg/agentcore/observability"
	"github.com/randalmurphal/agentcore/pkg/agentcore/scheduler"
)

// Event types the runtime emits around every agent tick.
const (
	EventTickStarted   = "agent.tick.started"
	EventTickCompleted = "agent.tick.completed"
	EventTickFailed    = "agent.tick.failed"
)

// TickPayload is the Data of the runtime's tick events.
type TickPayload struct {
	Agent      string  `json:"agent"`
	Tick       int64   `json:"tick"`
	TickID     string  `json:"tick_id"`
	DurationMs float64 `json:"duration_ms,omitempty"`
	Error      string  `json:"error,omitempty"`
}

// Factory builds the agent for a loaded definition. Returning a nil Agent
// registers the definition without scheduling anything.
type Factory func(def *agentdef.Definition) (Agent, error)

type agentEntry struct {
	agent Agent
	sched *scheduler.Scheduler
	def   *agentdef.Definition
}

// Runtime composes the event bus, coordinator, loader, and one tick
// scheduler per registered agent.
type Runtime struct {
	id       string
	settings config.Settings
	logger   *slog.Logger
	bus      *event.Bus
	dlq      *event.InMemoryDLQ
	coord    *coord.Coordinator
	store    agentdef.Store
	metrics  observability.MetricsRecorder
	spans    observability.SpanManager
	defs     *agentdef.Registry

	mu      sync.RWMutex
	agents  map[string]*agentEntry
	running bool
	runCtx  context.Context
	cancel  context.CancelFunc
	bg      sync.WaitGroup
}

// New creates a stopped Runtime.
//
// Example:
//
//	rt := agentcore.New(
//	    agentcore.WithLogger(logger),
//	    agentcore.WithTickInterval(500*time.Millisecond),
//	)
//	rt.Register(agentcore.NewAgent("heartbeat", func(ctx agentcore.Context) error {
//	    ctx.Logger().Info("alive")
//	    return nil
//	}))
//	rt.Start(ctx)
//	defer rt.Stop()
func New(opts ...Option) *Runtime {
	cfg := runtimeConfig{settings: config.DefaultSettings()}
	for _, opt := range opts {
		opt(&cfg)
	}
	settings := cfg.settings.Normalize()

	metrics := cfg.metrics
	if metrics == nil && settings.Metrics {
		metrics = observability.NewMetricsRecorder()
	}
	spans := cfg.spans
	if spans == nil && settings.Tracing {
		spans = observability.NewSpanManager()
	}

	id := ulid.Make().String()
	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("runtime_id", id))

	r := &Runtime{
		id:       id,
		settings: settings,
		logger:   logger,
		bus:      cfg.bus,
		coord:    cfg.coord,
		store:    cfg.store,
		metrics:  observability.OrNoopMetrics(metrics),
		spans:    observability.OrNoopSpans(spans),
		defs:     agentdef.NewRegistry(),
		agents:   make(map[string]*agentEntry),
	}

	if r.bus == nil {
		r.dlq = event.NewInMemoryDLQ(event.DefaultDLQConfig)
		r.bus = event.NewBus(event.BusConfig{
			Logger:     logger,
			Metrics:    r.metrics,
			Tracing:    r.spans,
			DLQ:        r.dlq,
			MaxLogSize: settings.EventLogLimit,
		})
	}
	if r.coord == nil {
		r.coord = coord.New(
			coord.WithDefaultTTL(settings.CacheTTL),
			coord.WithBatchWindow(settings.BatchWindow),
			coord.WithLogger(logger),
			coord.WithMetrics(r.metrics),
		)
	}
	return r
}

// ID returns the runtime's ULID.
func (r *Runtime) ID() string { return r.id }

// Bus returns the event bus.
func (r *Runtime) Bus() *event.Bus { return r.bus }

// Coordinator returns the operation coordinator.
func (r *Runtime) Coordinator() *coord.Coordinator { return r.coord }

// Definitions returns the registry of loaded definitions.
func (r *Runtime) Definitions() *agentdef.Registry { return r.defs }

// Settings returns the normalized settings in effect.
func (r *Runtime) Settings() config.Settings { return r.settings }

// DeadLetters returns the dead letter queue of the runtime-created bus, or
// nil when the bus came from WithBus. Nothing drains it automatically: once
// it holds event.DefaultDLQConfig.MaxSize records, further failed deliveries
// are dropped and counted by Bus().DroppedDeadLetters until the caller
// dequeues or acknowledges them.
func (r *Runtime) DeadLetters() *event.InMemoryDLQ { return r.dlq }

// Register adds an agent using the default tick interval. If the runtime is
// running, the agent starts ticking immediately.
func (r *Runtime) Register(a Agent) error {
	return r.register(a, nil)
}

func (r *Runtime) register(a Agent, def *agentdef.Definition) error {
	if a == nil {
		return ErrNilAgent
	}
	name := a.Name()
	if name == "" {
		return ErrEmptyAgentName
	}

	interval := r.settings.TickInterval
	if def != nil && def.TickInterval > 0 {
		interval = def.TickInterval.Std()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.agents[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateAgent, name)
	}

	entry := &agentEntry{agent: WithErrorContext(a), def: def}
	entry.sched = scheduler.New(r.tickFunc(entry),
		scheduler.WithName(name),
		scheduler.WithInterval(interval),
		scheduler.WithAdaptive(r.settings.Adaptive),
		scheduler.WithLogger(r.logger.With(slog.String("agent", name))),
		scheduler.WithMetrics(r.metrics),
		scheduler.WithTracing(r.spans),
	)
	r.agents[name] = entry

	if r.running {
		entry.sched.Start(r.runCtx)
	}

	r.logger.Debug("agent registered",
		slog.String("agent", name),
		slog.Duration("interval", interval),
	)
	return nil
}

// Unregister stops and removes the named agent.
func (r *Runtime) Unregister(name string) bool {
	r.mu.Lock()
	entry, ok := r.agents[name]
	delete(r.agents, name)
	r.mu.Unlock()

	if ok {
		entry.sched.Stop()
	}
	return ok
}

// tickFunc runs one agent tick between a started event and a completed or
// failed event. Tick events share a correlation ID.
func (r *Runtime) tickFunc(entry *agentEntry) scheduler.TickFunc {
	name := entry.agent.Name()
	return func(ctx context.Context) error {
		info, _ := scheduler.TickFromContext(ctx)
		payload := TickPayload{Agent: name, Tick: info.Number, TickID: info.ID}

		started := event.New(EventTickStarted, name, payload)
		r.bus.PublishAndEmit(ctx, started)

		tctx := &tickContext{
			Context: ctx,
			logger:  observability.EnrichLogger(r.logger, name, info.Number),
			bus:     r.bus,
			coord:   r.coord,
			agent:   name,
			tick:    info.Number,
			def:     entry.def,
		}

		begin := time.Now()
		err := entry.agent.Tick(tctx)
		payload.DurationMs = float64(time.Since(begin).Microseconds()) / 1000

		if err != nil {
			payload.Error = err.Error()
			r.bus.PublishAndEmit(ctx, event.NewFromParent(started, EventTickFailed, name, payload))
			return err
		}
		r.bus.PublishAndEmit(ctx, event.NewFromParent(started, EventTickCompleted, name, payload))
		return nil
	}
}

// LoadDefinitions loads definition files in batches, registers every valid
// definition, and registers the agent factory builds for it. A nil factory
// only registers definitions.
//
// Per-file failures are reported in the result and do not stop other files.
// Transient read failures are retried.
// The returned error joins factory and registration failures.
func (r *Runtime) LoadDefinitions(ctx context.Context, paths []string, factory Factory) (loader.Result[*agentdef.Definition], error) {
	res := loader.LoadBatched(ctx, paths, agentdef.LoadFile, r.settings.BatchSize,
		loader.WithLogger(r.logger),
		loader.WithMetrics(r.metrics),
		loader.WithTracing(r.spans),
		loader.WithRetry(acerrors.DefaultRetry),
	)

	var errs []error
	seen := make(map[string]string, len(res.Results))
	for _, def := range res.Results {
		if err := r.checkDuplicate(def, seen, factory != nil); err != nil {
			errs = append(errs, err)
			continue
		}
		if err := r.defs.Register(def); err != nil {
			errs = append(errs, err)
			continue
		}
		if r.store != nil {
			if err := r.store.Save(ctx, def); err != nil {
				errs = append(errs, fmt.Errorf("persist %s: %w", def.Name, err))
			}
		}
		if factory == nil {
			continue
		}
		a, err := factory(def)
		if err != nil {
			errs = append(errs, &AgentError{Agent: def.Name, Op: "build", Err: err})
			continue
		}
		if a == nil {
			continue
		}
		if err := r.register(a, def); err != nil {
			errs = append(errs, err)
		}
	}

	r.logger.Info("definitions loaded",
		slog.Int("loaded", len(res.Results)),
		slog.Int("failed", len(res.Errors)),
	)
	return res, errors.Join(errs...)
}

// checkDuplicate rejects def before it reaches the registry or store when an
// earlier file of the same load used its name, or, when agents will be
// built, an agent with its name is already registered. The first file wins.
func (r *Runtime) checkDuplicate(def *agentdef.Definition, seen map[string]string, building bool) error {
	if first, dup := seen[def.Name]; dup {
		return &AgentError{
			Agent: def.Name,
			Op:    "load",
			Err:   fmt.Errorf("%w: %s also defined in %s", ErrDuplicateDefinition, def.Source, first),
		}
	}
	seen[def.Name] = def.Source

	if !building {
		return nil
	}
	r.mu.RLock()
	_, exists := r.agents[def.Name]
	r.mu.RUnlock()
	if exists {
		return &AgentError{
			Agent: def.Name,
			Op:    "load",
			Err:   fmt.Errorf("%w: agent already registered", ErrDuplicateDefinition),
		}
	}
	return nil
}

// LoadDir loads every definition file in dir. An empty dir means the
// configured DefinitionDir.
func (r *Runtime) LoadDir(ctx context.Context, dir string, factory Factory) (loader.Result[*agentdef.Definition], error) {
	if dir == "" {
		dir = r.settings.DefinitionDir
	}
	paths, err := agentdef.FileSource{Dir: dir}.List(ctx)
	if err != nil {
		return loader.Result[*agentdef.Definition]{}, err
	}
	return r.LoadDefinitions(ctx, paths, factory)
}

// Start starts every registered agent and the cache cleanup loop. Agents
// registered later start immediately. Calling Start on a running runtime is
// a no-op. Cancelling ctx stops every agent.
func (r *Runtime) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return
	}

	// Ticks get ctx itself: Stop must not cancel a tick that is running.
	r.runCtx = ctx
	r.running = true

	var cleanupCtx context.Context
	cleanupCtx, r.cancel = context.WithCancel(ctx)
	if interval := r.settings.CacheCleanupInterval; interval > 0 {
		r.bg.Add(1)
		go func() {
			defer r.bg.Done()
			r.coord.RunCleanup(cleanupCtx, interval)
		}()
	}

	for _, entry := range r.agents {
		entry.sched.Start(r.runCtx)
	}

	r.logger.Info("runtime started", slog.Int("agents", len(r.agents)))
}

// Stop stops every scheduler and the cleanup loop. Ticks already running
// keep an uncancelled context and finish in the background. Stop is
// idempotent.
func (r *Runtime) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	r.cancel()
	for _, entry := range r.agents {
		entry.sched.Stop()
	}
	r.mu.Unlock()

	r.bg.Wait()
	r.logger.Info("runtime stopped")
}

// IsRunning reports whether Start has been called without a matching Stop.
func (r *Runtime) IsRunning() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.running
}

// Agents returns registered agent names, sorted.
func (r *Runtime) Agents() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.agents))
	for name := range r.agents {
		names = append(names, name)
	}
	r.mu.RUnlock()

	sort.Strings(names)
	return names
}

// Scheduler returns the scheduler driving the named agent.
func (r *Runtime) Scheduler(name string) (*scheduler.Scheduler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.agents[name]
	if !ok {
		return nil, false
	}
	return entry.sched, true
}

// TickNow runs one tick of the named agent outside its timer. It follows
// the scheduler's rules: a stopped scheduler or a tick already in flight
// skips and returns nil.
func (r *Runtime) TickNow(ctx context.Context, name string) error {
	sched, ok := r.Scheduler(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAgent, name)
	}
	return sched.Tick(ctx)
}

// Metrics returns a scheduler metrics snapshot per agent.
func (r *Runtime) Metrics() map[string]scheduler.Metrics {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]scheduler.Metrics, len(r.agents))
	for name, entry := range r.agents {
		out[name] = entry.sched.Metrics()
	}
	return out
}
