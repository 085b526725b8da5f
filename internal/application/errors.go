package application

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when the referenced booking or assignment does
	// not exist. Cancelling an absent key reports it with no side effects.
	ErrNotFound = errors.New("application: not found")
	// ErrConflict is returned when the slot key became occupied between query
	// and commit. The caller must re-query availability.
	ErrConflict = errors.New("application: slot conflict")
	// ErrMentorAtCapacity is returned when a commit would exceed the mentor's
	// configured limit of active upcoming bookings.
	ErrMentorAtCapacity = errors.New("application: mentor at capacity")
	// ErrUnknownMentor is returned when a mentor id is not part of the
	// configured roster.
	ErrUnknownMentor = errors.New("application: unknown mentor")
)

// ValidationError captures field level validation issues that callers can
// surface to users. Events that fail validation mutate nothing.
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

func validationFailure(field, message string) error {
	vErr := &ValidationError{}
	vErr.add(field, message)
	return vErr
}

// PersistenceError wraps a storage failure. The guarded operation is NOT
// committed; prior state remains intact and the caller may retry.
type PersistenceError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (p *PersistenceError) Error() string {
	if p == nil {
		return ""
	}
	return fmt.Sprintf("persistence failure during %s: %v", p.Op, p.Err)
}

// Unwrap exposes the underlying storage error.
func (p *PersistenceError) Unwrap() error {
	if p == nil {
		return nil
	}
	return p.Err
}
