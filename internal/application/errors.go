package application

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized is returned when the acting principal lacks permission for an operation.
	ErrUnauthorized = errors.New("application: unauthorized")
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrAlreadyExists is returned when a resource with the same identity already exists.
	ErrAlreadyExists = errors.New("application: already exists")
	// ErrInvalidCredentials is returned when authentication fails.
	ErrInvalidCredentials = errors.New("application: invalid credentials")
	// ErrAccountDisabled is returned when a disabled member attempts to authenticate.
	ErrAccountDisabled = errors.New("application: account disabled")
	// ErrAlreadyStarted is returned when a mutation targets an occurrence
	// whose start has passed. After start an occurrence is immutable.
	ErrAlreadyStarted = errors.New("application: occurrence already started")
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	return "validation failed"
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// SplitIntegrityError reports a failure inside the atomic cap-and-continue
// sequence. The transaction has been rolled back; the original series and
// its occurrences are unchanged.
type SplitIntegrityError struct {
	SeriesID string
	Err      error
}

// Error implements the error interface.
func (e *SplitIntegrityError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("series split failed for %s: %v", e.SeriesID, e.Err)
}

// Unwrap exposes the underlying cause.
func (e *SplitIntegrityError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
