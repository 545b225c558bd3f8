package dispatch

import "errors"

var (
	// ErrDuplicateMethod is returned when registering a name twice.
	ErrDuplicateMethod = errors.New("method already registered")

	// ErrReservedMethod is returned when registering a built-in method name.
	ErrReservedMethod = errors.New("method name is reserved")

	// ErrMethodNotFound is returned by Lookup for unknown names.
	ErrMethodNotFound = errors.New("method not found")
)

// PanicError wraps a value recovered from a panicking handler.
type PanicError struct {
	Method string
	Value  any
}

func (e *PanicError) Error() string {
	return "handler panic in " + e.Method + ": " + formatPanic(e.Value)
}
