package event

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Wildcard is the subscription type that receives every emitted event.
const Wildcard = "*"

// Event is a record of something that happened in the runtime.
//
// Events are plain values. The bus stores copies, so an event is immutable
// once published; MarkProcessed is the only mutation the log allows.
type Event struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	Source string `json:"source"`

	// Correlation for tracing related events. CorrelationID groups a chain,
	// CausationID names the event that directly caused this one.
	CorrelationID string `json:"correlation_id,omitempty"`
	CausationID   string `json:"causation_id,omitempty"`

	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Processed bool      `json:"processed"`
}

// DataBytes returns the JSON encoding of the payload, or nil if it cannot be encoded.
func (e Event) DataBytes() []byte {
	if e.Data == nil {
		return nil
	}
	b, err := json.Marshal(e.Data)
	if err != nil {
		return nil
	}
	return b
}

// Option configures event creation.
type Option func(*Event)

// WithEventID sets a specific event ID (default: auto-generated UUID).
func WithEventID(id string) Option {
	return func(e *Event) {
		e.ID = id
	}
}

// WithTimestamp sets a specific timestamp (default: time.Now()).
func WithTimestamp(t time.Time) Option {
	return func(e *Event) {
		e.Timestamp = t
	}
}

// WithCorrelationID sets the correlation ID.
func WithCorrelationID(id string) Option {
	return func(e *Event) {
		e.CorrelationID = id
	}
}

// WithCausationID sets the ID of the causing event.
func WithCausationID(id string) Option {
	return func(e *Event) {
		e.CausationID = id
	}
}

// New creates an event with the given type, source, and payload.
func New(eventType, source string, data any, opts ...Option) Event {
	evt := Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Source:    source,
		Data:      data,
		Timestamp: time.Now(),
	}
	for _, opt := range opts {
		opt(&evt)
	}
	if evt.CorrelationID == "" {
		evt.CorrelationID = evt.ID
	}
	return evt
}

// NewFromParent creates an event caused by parent.
// It inherits the parent's correlation ID and sets the causation ID.
func NewFromParent(parent Event, eventType, source string, data any, opts ...Option) Event {
	correlation := parent.CorrelationID
	if correlation == "" {
		correlation = parent.ID
	}
	base := []Option{WithCorrelationID(correlation), WithCausationID(parent.ID)}
	return New(eventType, source, data, append(base, opts...)...)
}

// Handler processes an emitted event.
type Handler func(ctx context.Context, evt Event) error

// Middleware wraps handlers to add cross-cutting concerns.
type Middleware func(next Handler) Handler

// Chain applies middleware in order, with the first middleware outermost.
func Chain(h Handler, mws ...Middleware) Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// PublishResult reports the outcome of Publish.
type PublishResult struct {
	Success   bool      `json:"success"`
	EventID   string    `json:"event_id"`
	Timestamp time.Time `json:"timestamp"`
}

// SubscribeResult reports the outcome of On, Once and OnTypes.
// Success is false only when the handler was nil.
type SubscribeResult struct {
	Success bool      `json:"success"`
	ID      HandlerID `json:"id"`
	Types   []string  `json:"types"`
}

// EmitResult aggregates the outcome of Emit. Success is always true:
// handler failures are reported in Errors and never fail the emit.
type EmitResult struct {
	Success          bool           `json:"success"`
	HandlersNotified int            `json:"handlers_notified"`
	Errors           []HandlerError `json:"errors,omitempty"`
}
