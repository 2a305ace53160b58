// Package event provides the in-process event bus for agentcore.
//
// # Publish and Emit
//
// The bus separates recording from delivery:
//
//   - Publish appends an event to an in-memory log (for audit and replay)
//     and never runs handlers.
//   - Emit runs the handlers for the event's type, then the wildcard ("*")
//     handlers, one after another in registration order.
//
// A handler that returns an error or panics never stops the others and never
// fails the emit; failures are collected in EmitResult.Errors:
//
//	bus := event.NewBus(event.BusConfig{Logger: logger})
//
//	bus.On("agent.tick.completed", func(ctx context.Context, evt event.Event) error {
//	    return store.Record(ctx, evt)
//	})
//	bus.On(event.Wildcard, auditHandler)
//
//	evt := event.New("agent.tick.completed", "scout", payload)
//	bus.Publish(evt)
//	res := bus.Emit(ctx, evt)
//	// res.HandlersNotified == 2, res.Errors holds any failures
//
// # Registrations
//
// On and Once return a SubscribeResult whose ID is later passed to Off.
// A Once registration is removed right before its first invocation, so two
// concurrent emits cannot both run it. OnTypes subscribes a single handler
// to several types; it still runs at most once per emit.
//
// # Failure Handling
//
// Middleware (Use) wraps every invocation. With BusConfig.DLQ set, each
// handler failure is also stored as a FailedEvent in a DeadLetterQueue.
package event
