package rental

import (
	"errors"
	"fmt"
)

// ValidationError reports an input outside the accepted shape or range.
// Nothing is applied when one is returned.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Message
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
}

func newValidationError(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// PersistenceRejected is returned by a storage layer that refused a computed
// field or status, typically through a check constraint.
type PersistenceRejected struct {
	Constraint string
	Err        error
}

func (e *PersistenceRejected) Error() string {
	if e.Constraint == "" {
		return fmt.Sprintf("persistence rejected: %v", e.Err)
	}
	return fmt.Sprintf("persistence rejected by %s: %v", e.Constraint, e.Err)
}

func (e *PersistenceRejected) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsPersistenceRejected reports whether err carries a PersistenceRejected.
func IsPersistenceRejected(err error) bool {
	var p *PersistenceRejected
	return errors.As(err, &p)
}
