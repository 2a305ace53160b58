// Package scheduler drives a recurring tick with an adaptive interval.
//
// The interval starts at the base and moves after every tick:
//
//   - elapsed > 80% of the interval: grow 10%, at most 2x base
//   - elapsed < 20% of the interval: shrink 5%, at least 0.5x base
//   - handler failed: grow 50%, at most 3x base
//
// Usage:
//
//	s := scheduler.New(func(ctx context.Context) error {
//	    return agent.Think(ctx)
//	}, scheduler.WithInterval(time.Second), scheduler.WithName("scout"))
//
//	s.Start(ctx)
//	defer s.Stop()
//
// Handlers can read the current tick with TickFromContext.
package scheduler
