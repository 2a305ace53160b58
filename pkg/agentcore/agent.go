package agentcore

import (
	"context"
	"errors"
	"log/slog"

	"github.com/randalmurphal/agentcore/pkg/agentcore/agentdef"
	"github.com/randalmurphal/agentcore/pkg/agentcore/coord"
	acerrors "github.com/randalmurphal/agentcore/pkg/agentcore/errors"
	"github.com/randalmurphal/agentcore/pkg/agentcore/event"
)

// Agent is the unit of work the runtime schedules.
//
// Tick is called once per scheduler tick. A returned error marks the tick
// failed and widens the agent's interval; it never stops the agent.
type Agent interface {
	Name() string
	Tick(ctx Context) error
}

// Context is what an agent sees during a tick.
// It extends context.Context with the runtime's shared services.
type Context interface {
	context.Context

	// Logger returns the runtime logger enriched with agent and tick.
	Logger() *slog.Logger

	// Bus returns the runtime event bus.
	Bus() *event.Bus

	// Coordinator returns the runtime operation coordinator.
	Coordinator() *coord.Coordinator

	// AgentName returns the ticking agent's name.
	AgentName() string

	// TickNumber returns the tick count, starting at 1.
	TickNumber() int64

	// Definition returns the agent's definition, or nil if it was registered
	// without one.
	Definition() *agentdef.Definition
}

type tickContext struct {
	context.Context

	logger *slog.Logger
	bus    *event.Bus
	coord  *coord.Coordinator
	agent  string
	tick   int64
	def    *agentdef.Definition
}

func (c *tickContext) Logger() *slog.Logger { return c.logger }
func (c *tickContext) Bus() *event.Bus { return c.bus }
func (c *tickContext) Coordinator() *coord.Coordinator { return c.coord }
func (c *tickContext) AgentName() string { return c.agent }
func (c *tickContext) TickNumber() int64 { return c.tick }
func (c *tickContext) Definition() *agentdef.Definition { return c.def }

// AgentFunc adapts a function to the Agent interface.
type AgentFunc struct {
	name string
	fn   func(ctx Context) error
}

// NewAgent returns an Agent named name that runs fn on every tick.
func NewAgent(name string, fn func(ctx Context) error) *AgentFunc {
	return &AgentFunc{name: name, fn: fn}
}

// Name implements Agent.
func (a *AgentFunc) Name() string { return a.name }

// Tick implements Agent.
func (a *AgentFunc) Tick(ctx Context) error {
	if a.fn == nil {
		return nil
	}
	return a.fn(ctx)
}

type errorContextAgent struct {
	Agent
}

// WithErrorContext decorates a so every error returned from Tick is an
// *AgentError naming the agent, and a panic in Tick becomes an *AgentError
// wrapping an *errors.PanicError. Errors that already are *AgentError pass
// through unchanged.
func WithErrorContext(a Agent) Agent {
	if a == nil {
		return nil
	}
	if _, ok := a.(errorContextAgent); ok {
		return a
	}
	return errorContextAgent{Agent: a}
}

func (a errorContextAgent) Tick(ctx Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &AgentError{Agent: a.Name(), Op: "tick", Err: acerrors.Recover("agent "+a.Name(), r)}
		}
	}()

	err = a.Agent.Tick(ctx)
	if err == nil {
		return nil
	}
	var agentErr *AgentError
	if errors.As(err, &agentErr) {
		return err
	}
	return &AgentError{Agent: a.Name(), Op: "tick", Err: err}
}
