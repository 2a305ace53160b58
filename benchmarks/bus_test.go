package benchmarks

import (
	"context"
	"fmt"
	"testing"

	"github.com/randalmurphal/agentcore/pkg/agentcore/event"
	"github.com/randalmurphal/agentcore/pkg/agentcore/observability"
)

func noopHandler(context.Context, event.Event) error { return nil }

func newBus(handlers int) *event.Bus {
	bus := event.NewBus(event.BusConfig{Logger: observability.DiscardLogger()})
	for i := 0; i < handlers; i++ {
		bus.On("tick", noopHandler)
	}
	return bus
}

// BenchmarkPublish measures appending to the event log.
func BenchmarkPublish(b *testing.B) {
	bus := event.NewBus(event.BusConfig{Logger: observability.DiscardLogger(), MaxLogSize: 1000})
	evt := event.New("tick", "bench", nil)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		bus.Publish(evt)
	}
}

// BenchmarkEmit measures synchronous fan-out to 1, 10 and 100 handlers.
func BenchmarkEmit(b *testing.B) {
	for _, n := range []int{1, 10, 100} {
		b.Run(fmt.Sprintf("handlers_%d", n), func(b *testing.B) {
			bus := newBus(n)
			ctx := context.Background()
			evt := event.New("tick", "bench", nil)
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				bus.Emit(ctx, evt)
			}
		})
	}
}

// BenchmarkEmit_Wildcard measures fan-out to typed plus wildcard handlers.
func BenchmarkEmit_Wildcard(b *testing.B) {
	bus := newBus(5)
	for i := 0; i < 5; i++ {
		bus.On(event.Wildcard, noopHandler)
	}
	ctx := context.Background()
	evt := event.New("tick", "bench", nil)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		bus.Emit(ctx, evt)
	}
}

// BenchmarkEmit_WithMiddleware measures the middleware chain overhead.
func BenchmarkEmit_WithMiddleware(b *testing.B) {
	bus := newBus(10)
	bus.Use(event.RecoveryMiddleware())
	bus.Use(event.LoggingMiddleware(observability.DiscardLogger()))
	ctx := context.Background()
	evt := event.New("tick", "bench", nil)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		bus.Emit(ctx, evt)
	}
}

// BenchmarkEventsByType measures filtering a 1000-event log.
func BenchmarkEventsByType(b *testing.B) {
	bus := event.NewBus(event.BusConfig{Logger: observability.DiscardLogger()})
	for i := 0; i < 1000; i++ {
		bus.Publish(event.New(fmt.Sprintf("type-%d", i%10), "bench", i))
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = bus.EventsByType("type-3")
	}
}
