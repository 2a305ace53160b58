/*
Package agentcore is the runtime core for autonomous agents.

# Overview

agentcore combines four components that agents share:
  - event.Bus: an append-only event log plus synchronous fan-out to handlers
  - scheduler.Scheduler: a periodic tick driver with an adaptive interval
  - coord.Coordinator: result caching and deduplication of concurrent operations
  - loader: bounded, chunked concurrent loading of resources

The Runtime owns one of each and gives every registered Agent its own
scheduler. Each tick is bracketed by events on the bus:

	agent.tick.started   -> before Tick runs
	agent.tick.completed -> Tick returned nil
	agent.tick.failed    -> Tick returned an error or panicked

All three events of one tick share a correlation ID.

# Basic Usage

	rt := agentcore.New(agentcore.WithTickInterval(time.Second))

	rt.Bus().On(agentcore.EventTickFailed, func(ctx context.Context, evt event.Event) error {
	    log.Printf("tick failed: %v", evt.Data)
	    return nil
	})

	err := rt.Register(agentcore.NewAgent("scout", func(ctx agentcore.Context) error {
	    price, err := coord.Cached(ctx, ctx.Coordinator(), "price:btc", time.Minute, fetchPrice)
	    if err != nil {
	        return err
	    }
	    ctx.Logger().Info("price", "value", price)
	    return nil
	}))
	if err != nil {
	    log.Fatal(err)
	}

	rt.Start(ctx)
	defer rt.Stop()

# Definitions

Agents can be described in YAML or JSON files and built by a Factory:

	res, err := rt.LoadDir(ctx, "agents", func(def *agentdef.Definition) (agentcore.Agent, error) {
	    return newWatcher(def.Name, def.Config()), nil
	})

A definition's tick_interval overrides the runtime default. Files that fail
to load are reported in res.Errors and do not block the others.

# Errors

Every error an agent returns from Tick reaches the scheduler as an
*AgentError. Failed ticks widen the agent's interval but never stop it.
*/
package agentcore
