package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates the requested write-side entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrConcurrencyConflict indicates that the underlying storage rejected an
// update because a newer version of the entity is already persisted.
var ErrConcurrencyConflict = errors.New("concurrency conflict")

// ValidationError is a business-rule violation raised before any
// mutation occurs. It maps to a 4xx response at the edge.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Invalid builds a ValidationError for the given field.
func Invalid(field, reason string) error {
	return ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err is a business-rule violation.
func IsValidation(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}
