package domain

import (
	"errors"
	"fmt"
)

var (
	ErrRangeNotFound    = errors.New("opening range not found")
	ErrPositionNotFound = errors.New("position not found")
	ErrAtCapacity       = errors.New("max concurrent positions reached")
)

// GatewayError wraps a failed broker call. It is fatal to the single task
// invocation that triggered it and is recorded at the dispatcher boundary.
type GatewayError struct {
	Op     string
	Symbol string
	Err    error
}

func (e *GatewayError) Error() string {
	if e.Symbol != "" {
		return fmt.Sprintf("gateway %s %s: %v", e.Op, e.Symbol, e.Err)
	}
	return fmt.Sprintf("gateway %s: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// ValidationError marks malformed input for a single unit of work.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// InvariantViolation marks a state transition that must never happen, such as
// moving a position backward. It is never swallowed.
type InvariantViolation struct {
	Op     string
	Detail string
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("invariant violated in %s: %s", e.Op, e.Detail)
}
