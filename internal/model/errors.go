package model

import (
	"fmt"

	"github.com/rotisserie/eris"
)

// Denial conditions. These are expected negative outcomes, not faults, and
// map to dedicated response codes at the HTTP boundary.
var (
	ErrNotFound     = eris.New("not found")
	ErrLocked       = eris.New("company is locked by another ingestion")
	ErrRateLimited  = eris.New("rate limit exceeded")
	ErrUnauthorized = eris.New("unauthorized")
)

// ValidationError reports malformed or missing input. Operations return it
// before performing any mutation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NewValidationError builds a ValidationError.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}
