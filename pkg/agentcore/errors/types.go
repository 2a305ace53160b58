package errors

import (
	"fmt"
	"time"
)

// TimeoutError indicates an operation timed out.
type TimeoutError struct {
	Operation string
	Duration  time.Duration
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout after %s: %s", e.Duration, e.Operation)
}

// PanicError captures a recovered panic at an isolation boundary.
type PanicError struct {
	// Where names the boundary (e.g. "emit", "tick", "load").
	Where string
	// Value is the value passed to panic().
	Value any
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("%s panicked: %v", e.Where, e.Value)
}

// Recover converts a recovered panic value into an error.
// It returns nil when r is nil so it can be used directly on recover().
//
//	defer func() {
//	    if perr := errors.Recover("tick", recover()); perr != nil {
//	        err = perr
//	    }
//	}()
func Recover(where string, r any) error {
	if r == nil {
		return nil
	}
	if err, ok := r.(error); ok {
		return &PanicError{Where: where, Value: err}
	}
	return &PanicError{Where: where, Value: r}
}
