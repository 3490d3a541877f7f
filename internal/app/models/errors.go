package models

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Domain specific errors for authentication and record storage.
var (
	ErrNotFound        = errors.New("requested item not found")
	ErrConflict        = errors.New("item already exists or conflict")
	ErrUnauthenticated = errors.New("authentication required or invalid credentials")
	ErrForbidden       = errors.New("action forbidden")
	ErrBadRequest      = errors.New("bad request")
	ErrValidation      = errors.New("validation failed")
	ErrRateLimited     = errors.New("rate limit exceeded")
)

// ValidationError carries one message per offending input field.
type ValidationError struct {
	Fields map[string]string
}

func NewValidationError(fields map[string]string) *ValidationError {
	return &ValidationError{Fields: fields}
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "Invalid input"
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	msgs := make([]string, 0, len(keys))
	for _, k := range keys {
		msgs = append(msgs, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return strings.Join(msgs, ", ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// ConflictError names the unique field that was already taken.
type ConflictError struct {
	Field string
}

func NewConflictError(field string) *ConflictError {
	return &ConflictError{Field: field}
}

func (e *ConflictError) Error() string {
	field := e.Field
	if field == "" {
		return "Field already in use"
	}
	return strings.ToUpper(field[:1]) + field[1:] + " already in use"
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// PublicError pairs a sentinel kind with a message that is safe to send to
// the client.
type PublicError struct {
	Kind    error
	Message string
}

func NewPublicError(kind error, message string) *PublicError {
	return &PublicError{Kind: kind, Message: message}
}

func (e *PublicError) Error() string {
	return e.Message
}

func (e *PublicError) Unwrap() error {
	return e.Kind
}
