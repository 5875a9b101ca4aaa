package helper

import (
	"errors"
	"fmt"
)

// The error taxonomy shared by all packages. Wrap them with fmt.Errorf("%w: ...")
// or the constructors below and test with errors.Is.
var (
	// ErrMalformedInput marks a single malformed item (raw unit, extractor hit,
	// review record). Processing continues with the remaining items.
	ErrMalformedInput = errors.New("malformed input")
	// ErrUnresolvedReference marks an offset that maps to no known line or chunk.
	ErrUnresolvedReference = errors.New("unresolved reference")
	// ErrExternalLookup marks a failing gazetteer, thesaurus, model or media lookup.
	ErrExternalLookup = errors.New("external lookup failed")
	// ErrIntegrityViolation marks a broken offset or chunk invariant. It is fatal
	// for the document it occurs in.
	ErrIntegrityViolation = errors.New("integrity violation")
)

// Error wraps an error with the step it occurred in.
type Error struct {
	Step string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError wraps err with the step it occurred in. It returns nil for a nil error.
func NewError(step string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Step: step, Err: err}
}

// MalformedInput creates an ErrMalformedInput with a formatted message.
func MalformedInput(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrMalformedInput, fmt.Sprintf(format, args...))
}

// UnresolvedReference creates an ErrUnresolvedReference with a formatted message.
func UnresolvedReference(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrUnresolvedReference, fmt.Sprintf(format, args...))
}

// ExternalLookup wraps a collaborator error as ErrExternalLookup.
func ExternalLookup(step string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrExternalLookup, step, err)
}

// IntegrityViolation creates an ErrIntegrityViolation with a formatted message.
func IntegrityViolation(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrIntegrityViolation, fmt.Sprintf(format, args...))
}
