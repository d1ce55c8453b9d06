package device

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates no matching peripheral is attached
	ErrNotFound = errors.New("device not found")

	// ErrIO indicates a read or write on an open peripheral failed
	ErrIO = errors.New("device i/o error")

	// ErrTimeout indicates an operation timed out
	ErrTimeout = fmt.Errorf("operation timed out: %w", ErrIO)

	// ErrNotConnected indicates the peripheral is currently disconnected
	ErrNotConnected = errors.New("device not connected")

	// ErrUnsupported indicates an operation is not supported by the device
	ErrUnsupported = errors.New("operation not supported")

	// ErrValidation indicates a command parameter failed validation
	ErrValidation = errors.New("validation error")
)

// ValidationError describes a rejected command parameter.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// Invalid builds a ValidationError for field.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
