package agentcore

import (
	"errors"
	"fmt"
)

// Sentinel errors for runtime operations.
var (
	// ErrDuplicateAgent indicates an agent with the same name is already registered.
	ErrDuplicateAgent = errors.New("duplicate agent name")

	// ErrNilAgent indicates Register was called with a nil agent.
	ErrNilAgent = errors.New("nil agent")

	// ErrUnknownAgent indicates no agent is registered under the name.
	ErrUnknownAgent = errors.New("unknown agent")

	// ErrDuplicateDefinition indicates two definitions in one load share a name,
	// or a loaded definition names an agent that is already registered.
	ErrDuplicateDefinition = errors.New("duplicate definition name")

	// ErrEmptyAgentName indicates an agent returned an empty name.
	ErrEmptyAgentName = errors.New("agent name is empty")
)

// AgentError wraps a failure returned (or panicked) by an agent operation.
type AgentError struct {
	Agent string
	Op    string
	Err   error
}

// Error implements the error interface.
func (e *AgentError) Error() string {
	return fmt.Sprintf("agent %s: %s: %v", e.Agent, e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *AgentError) Unwrap() error {
	return e.Err
}
