package costing

import (
	"errors"
	"fmt"
)

// ErrInvalidInput is the cause wrapped by every ComputationError.
var ErrInvalidInput = errors.New("invalid costing input")

// ComputationError reports which input made a COGS computation impossible.
type ComputationError struct {
	Field  string
	Value  float64
	Reason string
}

// Error implements the error interface.
func (e *ComputationError) Error() string {
	return fmt.Sprintf("cogs: %s %s (got %v)", e.Field, e.Reason, e.Value)
}

// Unwrap returns ErrInvalidInput.
func (e *ComputationError) Unwrap() error {
	return ErrInvalidInput
}

// IsComputationError reports whether err is or wraps a *ComputationError.
func IsComputationError(err error) bool {
	var ce *ComputationError
	return errors.As(err, &ce)
}
