package tasks

import (
	"errors"
	"strings"
)

var (
	// ErrInvalidInput marks caller arguments rejected before any work is done.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound is returned by stores when an id does not exist.
	ErrNotFound = errors.New("task not found")
)

// FieldError describes one rejected field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError collects field-level problems. It matches ErrInvalidInput
// under errors.Is.
type ValidationError struct {
	Details []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Details))
	for i, d := range e.Details {
		msgs[i] = d.Message
	}
	return "invalid input: " + strings.Join(msgs, "; ")
}

// Is lets errors.Is(err, ErrInvalidInput) succeed.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// Invalid returns a single-field validation error.
func Invalid(field, message string) error {
	return &ValidationError{Details: []FieldError{{Field: field, Message: message}}}
}
