package coord

import (
	"errors"
	"fmt"
)

// ErrNilOperation is returned when WithCache or WithBatching gets a nil operation.
var ErrNilOperation = errors.New("coord: nil operation")

// OperationError wraps a failure of a coordinated operation.
// Every caller sharing the failed run receives the same error.
type OperationError struct {
	Key string
	Err error
}

// Error implements error.
func (e *OperationError) Error() string {
	return fmt.Sprintf("operation %q: %v", e.Key, e.Err)
}

// Unwrap returns the operation's error.
func (e *OperationError) Unwrap() error {
	return e.Err
}
