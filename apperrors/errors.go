package apperrors

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across services. Callers classify with errors.Is.
var (
	// ErrNotFound means the requested entity or lookup target does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized means the caller is not allowed to perform the operation.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrServiceUnavailable means an external collaborator could not be reached.
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrBadConfig means a required credential or setting is missing.
	ErrBadConfig = errors.New("invalid configuration")
)

// ValidationError reports a malformed or missing required input. The
// operation is never attempted when one of these is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// NewValidation builds a ValidationError for the given field.
func NewValidation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
