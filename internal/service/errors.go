package service

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrDuplicateEmail          = errors.New("email already registered")
	ErrTwoFactorRejected       = errors.New("two factor rejected")
	ErrInvalidToken            = errors.New("invalid or expired token")
	ErrUserNotFound            = errors.New("user not found")
	ErrTwoFactorNotConfigured  = errors.New("two factor setup not started")
	ErrTwoFactorAlreadyEnabled = errors.New("two factor already enabled")
)

// ValidationError carries per-field rejection messages for inputs that
// violate the caller contract. It is distinct from the authentication
// outcomes: a validation failure means the request never reached the
// credential check.
type ValidationError struct {
	Fields map[string][]string
}

func NewValidationError(field string, message string) *ValidationError {
	return &ValidationError{Fields: map[string][]string{field: {message}}}
}

func (e *ValidationError) Add(field string, message string) *ValidationError {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], message)
	return e
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(e.Fields))
	for field, messages := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, strings.Join(messages, "; ")))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}
