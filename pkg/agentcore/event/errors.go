package event

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// HandlerID identifies one registration on a Bus. The zero value is never
// assigned.
type HandlerID uint64

// String returns the ID formatted for logs, e.g. "h7".
func (id HandlerID) String() string {
	return "h" + strconv.FormatUint(uint64(id), 10)
}

// HandlerError records one handler failure during Emit.
type HandlerError struct {
	HandlerID HandlerID
	EventType string
	EventID   string
	Err       error
}

// Error implements error.
func (e HandlerError) Error() string {
	return fmt.Sprintf("handler %s failed on %s event %s: %v", e.HandlerID, e.EventType, e.EventID, e.Err)
}

// Unwrap returns the underlying error.
func (e HandlerError) Unwrap() error {
	return e.Err
}

// MarshalJSON encodes the error message in place of the error value.
func (e HandlerError) MarshalJSON() ([]byte, error) {
	msg := ""
	if e.Err != nil {
		msg = e.Err.Error()
	}
	return json.Marshal(struct {
		HandlerID string `json:"handler_id"`
		EventType string `json:"event_type"`
		EventID   string `json:"event_id"`
		Error     string `json:"error"`
	}{e.HandlerID.String(), e.EventType, e.EventID, msg})
}

// FailedEvent is a dead-lettered delivery: one handler failing on one event.
type FailedEvent struct {
	EventID   string          `json:"event_id"`
	EventType string          `json:"event_type"`
	Source    string          `json:"source"`
	EventData json.RawMessage `json:"event_data,omitempty"`

	ErrorMessage string `json:"error_message"`
	Handler      string `json:"handler,omitempty"`

	AttemptCount  int       `json:"attempt_count"`
	FirstFailedAt time.Time `json:"first_failed_at"`
	LastFailedAt  time.Time `json:"last_failed_at"`
}

// NewFailedEvent creates a FailedEvent from a handler error.
func NewFailedEvent(evt Event, err error, handler HandlerID) *FailedEvent {
	now := time.Now()
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return &FailedEvent{
		EventID:       evt.ID,
		EventType:     evt.Type,
		Source:        evt.Source,
		EventData:     evt.DataBytes(),
		ErrorMessage:  msg,
		Handler:       handler.String(),
		AttemptCount:  1,
		FirstFailedAt: now,
		LastFailedAt:  now,
	}
}
