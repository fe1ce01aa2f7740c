// Package apperr holds the error taxonomy shared by the sync subsystem.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks empty or missing required input.
	ErrValidation = errors.New("validation failed")
	// ErrAuthRequired marks a mutation attempted without a resolved identity.
	ErrAuthRequired = errors.New("authentication required")
	// ErrUnauthorized marks a resolved identity that lacks privilege.
	ErrUnauthorized = errors.New("not authorized")
	// ErrTransientStore marks a network or store failure on read or write.
	ErrTransientStore = errors.New("store unavailable")
	// ErrNotFound marks a document or catalog entry that does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyEnrolled marks a second enrollment into the same course.
	ErrAlreadyEnrolled = errors.New("already enrolled")
)

// ValidationError names the offending field. It matches ErrValidation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s: %s is required", ErrValidation, e.Field)
	}
	return fmt.Sprintf("%s: %s %s", ErrValidation, e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Required builds a ValidationError for a missing field.
func Required(field string) error {
	return &ValidationError{Field: field}
}

// Transient wraps a store failure so that it matches ErrTransientStore
// while keeping the cause reachable through errors.Unwrap.
func Transient(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrTransientStore, err)
}
