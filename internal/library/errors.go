package library

import (
	"errors"
	"fmt"
)

// Domain errors for the library package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, library.ErrNotFound) {
//	    // handle not found case
//	}
var (
	// ErrNotFound is returned when no record has the requested key.
	ErrNotFound = errors.New("library: not found")

	// ErrExists is returned when creating a record whose key is taken.
	ErrExists = errors.New("library: already exists")

	// ErrInvalid is returned when a field is missing or malformed.
	ErrInvalid = errors.New("library: invalid")

	// ErrNoChanges is returned when a partial update names no mutable field.
	ErrNoChanges = errors.New("library: no attribute to change")

	// ErrUnknownBook is returned when a loan references a book that does not exist.
	ErrUnknownBook = errors.New("library: unknown book")

	// ErrUnknownMember is returned when a loan references a member that does not exist.
	ErrUnknownMember = errors.New("library: unknown member")

	// ErrPersist is returned when the backing store could not be written.
	// The in-memory state has been rolled back.
	ErrPersist = errors.New("library: persisting store failed")
)

// FieldError reports which attribute failed validation and why.
// It wraps ErrInvalid or one of the reference errors.
type FieldError struct {
	Field  string
	Reason string
	Err    error
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Reason
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

func invalidField(field, reason string) *FieldError {
	return &FieldError{Field: field, Reason: reason, Err: ErrInvalid}
}

func missingField(field string) *FieldError {
	return invalidField(field, "attribute is missing or empty")
}

// keyError wraps sentinel with the kind and key it concerns.
func keyError(sentinel error, kind string, id int) error {
	return fmt.Errorf("%w: %s %d", sentinel, kind, id)
}
