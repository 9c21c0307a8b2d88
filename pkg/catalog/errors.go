package catalog

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a module or invocable reference does not resolve.
var ErrNotFound = errors.New("not found")

// InvocationError carries the failure raised by an invoked action.
type InvocationError struct {
	Ref string
	Err error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("invoke %s: %v", e.Ref, e.Err)
}

func (e *InvocationError) Unwrap() error { return e.Err }

// AssertionError is an assertion-style failure signalled by an action: the
// target behaved unexpectedly, as opposed to the harness itself breaking.
type AssertionError struct {
	Message string
}

func (e *AssertionError) Error() string { return e.Message }

// Failf returns an *AssertionError with a formatted message.
func Failf(format string, args ...any) error {
	return &AssertionError{Message: fmt.Sprintf(format, args...)}
}

// IsAssertion reports whether err carries an *AssertionError.
func IsAssertion(err error) bool {
	var ae *AssertionError
	return errors.As(err, &ae)
}
