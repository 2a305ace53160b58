package stream

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/randalmurphal/agentcore/pkg/agentcore/event"
)

// DefaultBufferSize is the per-subscriber queue length.
const DefaultBufferSize = 64

// Subscription forwards emitted events into a bounded channel. When the
// channel is full the event is dropped for this subscriber only; Emit never
// blocks on a slow reader.
type Subscription struct {
	bus   *event.Bus
	id    event.HandlerID
	types []string
	ch    chan event.Event

	mu      sync.Mutex
	closed  bool
	dropped atomic.Int64
}

// Subscribe registers a subscription for types on bus. No types means every
// event. A non-positive buffer uses DefaultBufferSize.
func Subscribe(bus *event.Bus, types []string, buffer int) *Subscription {
	if buffer <= 0 {
		buffer = DefaultBufferSize
	}
	if len(types) == 0 {
		types = []string{event.Wildcard}
	}

	s := &Subscription{bus: bus, ch: make(chan event.Event, buffer)}
	res := bus.OnTypes(types, s.deliver)
	s.id = res.ID
	s.types = res.Types
	return s
}

func (s *Subscription) deliver(_ context.Context, evt event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	select {
	case s.ch <- evt:
	default:
		s.dropped.Add(1)
	}
	return nil
}

// Events returns the delivery channel. It is closed by Close.
func (s *Subscription) Events() <-chan event.Event {
	return s.ch
}

// Types returns the subscribed event types.
func (s *Subscription) Types() []string {
	return s.types
}

// Dropped returns how many events were discarded because the channel was full.
func (s *Subscription) Dropped() int64 {
	return s.dropped.Load()
}

// Close unregisters the subscription and closes Events. It is idempotent.
func (s *Subscription) Close() {
	for _, t := range s.types {
		s.bus.Off(t, s.id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}
