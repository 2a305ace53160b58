package event

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	acerrors "github.com/randalmurphal/agentcore/pkg/agentcore/errors"
	"github.com/randalmurphal/agentcore/pkg/agentcore/observability"
)

// BusConfig configures bus behavior. The zero value is usable.
type BusConfig struct {
	// Logger receives handler failures and registration changes.
	// Default: slog.Default()
	Logger *slog.Logger

	// Metrics records emit counts. Default: no-op.
	Metrics observability.MetricsRecorder

	// Tracing wraps each Emit in a span. Default: no-op.
	Tracing observability.SpanManager

	// DLQ receives a FailedEvent for every handler failure (optional).
	DLQ DeadLetterQueue

	// MaxLogSize caps the event log; the oldest entries are dropped first.
	// Default: 0 (unbounded)
	MaxLogSize int
}

// registration is one handler subscribed under one or more types.
type registration struct {
	id      HandlerID
	handler Handler
	types   []string
	once    bool
	fired   bool // guarded by Bus.mu
}

// Bus is an in-process event bus.
//
// Publish appends to an in-memory log and never runs handlers. Emit runs the
// handlers registered for the event's type and then the wildcard handlers,
// sequentially and in registration order, isolating every failure.
// All methods are safe for concurrent use.
type Bus struct {
	logger  *slog.Logger
	metrics observability.MetricsRecorder
	spans   observability.SpanManager
	dlq     DeadLetterQueue
	maxLog  int

	logMu sync.RWMutex
	log   []Event

	mu         sync.RWMutex
	handlers   map[string][]*registration // event type -> registrations in order
	middleware []Middleware

	nextID atomic.Uint64

	dlqFull     atomic.Bool
	deadDropped atomic.Int64
}

// NewBus creates an event bus.
func NewBus(cfg BusConfig) *Bus {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxLog := cfg.MaxLogSize
	if maxLog < 0 {
		maxLog = 0
	}
	return &Bus{
		logger:   logger,
		metrics:  observability.OrNoopMetrics(cfg.Metrics),
		spans:    observability.OrNoopSpans(cfg.Tracing),
		dlq:      cfg.DLQ,
		maxLog:   maxLog,
		handlers: make(map[string][]*registration),
	}
}

// Publish records evt in the log. It never validates the event and never
// invokes handlers. Events with duplicate IDs are recorded as distinct entries.
func (b *Bus) Publish(evt Event) PublishResult {
	b.logMu.Lock()
	b.log = append(b.log, evt)
	if b.maxLog > 0 && len(b.log) > b.maxLog {
		excess := len(b.log) - b.maxLog
		copy(b.log, b.log[excess:])
		clear(b.log[b.maxLog:])
		b.log = b.log[:b.maxLog]
	}
	b.logMu.Unlock()

	return PublishResult{Success: true, EventID: evt.ID, Timestamp: evt.Timestamp}
}

// PublishAndEmit records evt and then fans it out.
func (b *Bus) PublishAndEmit(ctx context.Context, evt Event) (PublishResult, EmitResult) {
	pub := b.Publish(evt)
	return pub, b.Emit(ctx, evt)
}

// On registers h for eventType. A nil handler is ignored and reported with
// Success false.
func (b *Bus) On(eventType string, h Handler) SubscribeResult {
	return b.subscribe([]string{eventType}, h, false)
}

// Once registers h for a single invocation. The registration is removed just
// before that invocation, whatever its outcome.
func (b *Bus) Once(eventType string, h Handler) SubscribeResult {
	return b.subscribe([]string{eventType}, h, true)
}

// OnTypes registers a single handler under several types. The handler still
// runs at most once per Emit, even when an event matches more than one of
// its types (for example a type and Wildcard).
func (b *Bus) OnTypes(types []string, h Handler) SubscribeResult {
	return b.subscribe(types, h, false)
}

func (b *Bus) subscribe(types []string, h Handler, once bool) SubscribeResult {
	types = uniqueTypes(types)
	if h == nil || len(types) == 0 {
		return SubscribeResult{Success: false, Types: types}
	}

	reg := &registration{
		id:      HandlerID(b.nextID.Add(1)),
		handler: h,
		types:   types,
		once:    once,
	}

	b.mu.Lock()
	for _, t := range types {
		b.handlers[t] = append(b.handlers[t], reg)
	}
	b.mu.Unlock()

	b.logger.Debug("handler registered",
		slog.String("handler", reg.id.String()),
		slog.Any("types", types),
		slog.Bool("once", once),
	)
	return SubscribeResult{Success: true, ID: reg.id, Types: types}
}

// Off removes registration id from eventType and reports whether anything
// was removed. Removing an unknown registration is a harmless no-op.
func (b *Bus) Off(eventType string, id HandlerID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	regs := b.handlers[eventType]
	for i, reg := range regs {
		if reg.id != id {
			continue
		}
		b.handlers[eventType] = append(regs[:i:i], regs[i+1:]...)
		if len(b.handlers[eventType]) == 0 {
			delete(b.handlers, eventType)
		}
		return true
	}
	return false
}

// Use adds middleware applied to every handler invocation, first added outermost.
func (b *Bus) Use(mw Middleware) {
	if mw == nil {
		return
	}
	b.mu.Lock()
	b.middleware = append(b.middleware, mw)
	b.mu.Unlock()
}

// Emit invokes every handler registered for evt.Type followed by every
// wildcard handler, each at most once. Handlers run one after another; a
// handler error or panic is recorded in the result and the next handler
// still runs. Emit does not record evt in the log.
func (b *Bus) Emit(ctx context.Context, evt Event) EmitResult {
	ctx, span := b.spans.StartEmitSpan(ctx, evt.Type, evt.ID)

	regs, mws := b.snapshot(evt.Type)
	result := EmitResult{Success: true}
	var failures []error

	for _, reg := range regs {
		if reg.once && !b.claim(reg) {
			continue
		}
		result.HandlersNotified++

		err := b.invoke(ctx, reg, mws, evt)
		if err == nil {
			continue
		}

		herr := HandlerError{HandlerID: reg.id, EventType: evt.Type, EventID: evt.ID, Err: err}
		result.Errors = append(result.Errors, herr)
		failures = append(failures, herr)
		observability.LogHandlerError(b.logger, evt.Type, evt.ID, reg.id.String(), err)

		if b.dlq != nil {
			b.deadLetter(ctx, evt, err, reg.id)
		}
	}

	b.metrics.RecordEmit(ctx, evt.Type, result.HandlersNotified, len(result.Errors))
	b.spans.EndSpanWithError(span, errors.Join(failures...))
	return result
}

// deadLetter enqueues a failed delivery. A full queue is reported once per
// overflow, not on every drop; the flag clears when an enqueue succeeds again.
func (b *Bus) deadLetter(ctx context.Context, evt Event, err error, id HandlerID) {
	qerr := b.dlq.Enqueue(ctx, NewFailedEvent(evt, err, id))
	switch {
	case qerr == nil:
		if b.dlqFull.CompareAndSwap(true, false) {
			b.logger.Info("dead letter queue accepting again",
				slog.Int64("dropped", b.deadDropped.Load()),
			)
		}
	case errors.Is(qerr, ErrDLQFull):
		b.deadDropped.Add(1)
		if b.dlqFull.CompareAndSwap(false, true) {
			b.logger.Warn("dead letter queue full, dropping failed deliveries until drained",
				slog.String("event_id", evt.ID),
			)
		}
	default:
		b.logger.Error("dead letter enqueue failed",
			slog.String("event_id", evt.ID),
			slog.String("error", qerr.Error()),
		)
	}
}

// DroppedDeadLetters returns how many failed deliveries were lost because the
// dead letter queue was full.
func (b *Bus) DroppedDeadLetters() int64 {
	return b.deadDropped.Load()
}

// snapshot returns the registrations for eventType then Wildcard,
// de-duplicated by registration, plus the current middleware.
func (b *Bus) snapshot(eventType string) ([]*registration, []Middleware) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	typed := b.handlers[eventType]
	var wild []*registration
	if eventType != Wildcard {
		wild = b.handlers[Wildcard]
	}

	regs := make([]*registration, 0, len(typed)+len(wild))
	seen := make(map[HandlerID]struct{}, cap(regs))
	for _, list := range [][]*registration{typed, wild} {
		for _, reg := range list {
			if _, dup := seen[reg.id]; dup {
				continue
			}
			seen[reg.id] = struct{}{}
			regs = append(regs, reg)
		}
	}
	return regs, append([]Middleware(nil), b.middleware...)
}

// claim marks a once registration as fired and unregisters it. It returns
// false if another Emit, or Off, got there first.
func (b *Bus) claim(reg *registration) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if reg.fired {
		return false
	}
	present := false
	for _, t := range reg.types {
		regs := b.handlers[t]
		for i, r := range regs {
			if r != reg {
				continue
			}
			present = true
			b.handlers[t] = append(regs[:i:i], regs[i+1:]...)
			if len(b.handlers[t]) == 0 {
				delete(b.handlers, t)
			}
			break
		}
	}
	if !present {
		return false
	}
	reg.fired = true
	return true
}

func (b *Bus) invoke(ctx context.Context, reg *registration, mws []Middleware, evt Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = acerrors.Recover("event handler "+reg.id.String(), r)
		}
	}()
	return Chain(reg.handler, mws...)(ctx, evt)
}

// Events returns a copy of the log in publish order.
func (b *Bus) Events() []Event {
	b.logMu.RLock()
	defer b.logMu.RUnlock()
	return append([]Event(nil), b.log...)
}

// EventsByType returns logged events whose Type equals eventType.
func (b *Bus) EventsByType(eventType string) []Event {
	return b.filter(func(e Event) bool { return e.Type == eventType })
}

// EventsBySource returns logged events whose Source equals source.
func (b *Bus) EventsBySource(source string) []Event {
	return b.filter(func(e Event) bool { return e.Source == source })
}

func (b *Bus) filter(match func(Event) bool) []Event {
	b.logMu.RLock()
	defer b.logMu.RUnlock()

	var out []Event
	for _, e := range b.log {
		if match(e) {
			out = append(out, e)
		}
	}
	return out
}

// MarkProcessed flags every logged event with the given ID as processed and
// returns how many were marked.
func (b *Bus) MarkProcessed(id string) int {
	b.logMu.Lock()
	defer b.logMu.Unlock()

	n := 0
	for i := range b.log {
		if b.log[i].ID == id {
			b.log[i].Processed = true
			n++
		}
	}
	return n
}

// Clear empties the log. Registrations are untouched.
func (b *Bus) Clear() {
	b.logMu.Lock()
	b.log = nil
	b.logMu.Unlock()
}

// ListenerCount returns the number of registrations for eventType.
func (b *Bus) ListenerCount(eventType string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[eventType])
}

// EventNames returns the sorted types that have at least one registration.
func (b *Bus) EventNames() []string {
	b.mu.RLock()
	names := make([]string, 0, len(b.handlers))
	for t, regs := range b.handlers {
		if len(regs) > 0 {
			names = append(names, t)
		}
	}
	b.mu.RUnlock()

	sort.Strings(names)
	return names
}

// RemoveAllListeners drops the registrations for the given types, or every
// registration when called with no types.
func (b *Bus) RemoveAllListeners(types ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(types) == 0 {
		b.handlers = make(map[string][]*registration)
		return
	}
	for _, t := range types {
		delete(b.handlers, t)
	}
}

func uniqueTypes(types []string) []string {
	out := make([]string, 0, len(types))
	seen := make(map[string]struct{}, len(types))
	for _, t := range types {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
