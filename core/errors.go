package core

import "github.com/pkg/errors"

// ErrParentNotFound is returned when an operation references a program, phase, book, lesson or session
// that does not exist. It is always wrapped with the missing entity.
var ErrParentNotFound = errors.New("parent not found")

// NewParentNotFoundError wraps ErrParentNotFound with the missing entity.
func NewParentNotFoundError(entity, id string) error {
	return errors.Wrapf(ErrParentNotFound, "%s %q", entity, id)
}

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		if len(err.Fields) > 0 {
			return err.Fields[0].Field + ": " + err.Fields[0].Error
		}
		return ""
	}
	return err.Err.Error()
}

func (err ValidationError) Unwrap() error {
	return err.Err
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
