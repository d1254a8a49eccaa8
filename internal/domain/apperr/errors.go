// Package apperr defines the error kinds surfaced by the quote workflow.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a quote, step or user does not exist
	ErrNotFound = errors.New("not found")

	// ErrPermissionDenied is returned on persona or ownership mismatch
	ErrPermissionDenied = errors.New("permission denied")

	// ErrValidation is returned for malformed input
	ErrValidation = errors.New("validation failed")

	// ErrInvalidStateTransition is returned when an action does not apply to the current status
	ErrInvalidStateTransition = errors.New("invalid state transition")

	// ErrStorage is returned when the backing store fails
	ErrStorage = errors.New("storage failure")
)

// Error carries an error kind plus the operation that produced it
type Error struct {
	Kind    error
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.Error()
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Op != "" {
		return e.Op + ": " + msg
	}
	return msg
}

// Unwrap exposes the wrapped cause
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches against the error kind
func (e *Error) Is(target error) bool {
	return e.Kind == target
}

func newf(kind error, op, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

// NotFound builds an ErrNotFound error
func NotFound(op, format string, args ...interface{}) error {
	return newf(ErrNotFound, op, format, args...)
}

// PermissionDenied builds an ErrPermissionDenied error
func PermissionDenied(op, format string, args ...interface{}) error {
	return newf(ErrPermissionDenied, op, format, args...)
}

// Validation builds an ErrValidation error
func Validation(op, format string, args ...interface{}) error {
	return newf(ErrValidation, op, format, args...)
}

// InvalidTransition builds an ErrInvalidStateTransition error
func InvalidTransition(op, format string, args ...interface{}) error {
	return newf(ErrInvalidStateTransition, op, format, args...)
}

// Storage wraps a backing store failure
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) && ae.Kind == ErrStorage {
		return err
	}
	return &Error{Kind: ErrStorage, Op: op, Err: err}
}

// Wrap attaches a kind to an existing error
func Wrap(kind error, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Kind returns the taxonomy kind of err, or nil when it has none
func Kind(err error) error {
	for _, k := range []error{ErrNotFound, ErrPermissionDenied, ErrValidation, ErrInvalidStateTransition, ErrStorage} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
