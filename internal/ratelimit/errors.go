package ratelimit

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidPolicy is wrapped by every policy validation failure.
	ErrInvalidPolicy = errors.New("invalid rate limit policy")

	// ErrEmptyIdentity is returned for an empty identity key.
	ErrEmptyIdentity = errors.New("identity cannot be empty")
)

// ValidationError names the offending policy field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid rate limit policy: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidPolicy
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}
