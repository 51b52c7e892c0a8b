// Package common provides the error kinds and logging setup shared by the
// dataset pipeline packages.
package common

import (
	"errors"
	"fmt"
)

// Error kinds. Callers match them with errors.Is.
var (
	// ErrNotFound reports an absent piece, image or file.
	ErrNotFound = errors.New("not found")

	// ErrInvalidPrecondition reports input in the wrong format or a piece in
	// the wrong state (bad label, empty source pool, incomplete draft).
	ErrInvalidPrecondition = errors.New("invalid precondition")

	// ErrIOFailure reports a filesystem or database failure. It is the only
	// retryable kind.
	ErrIOFailure = errors.New("io failure")
)

// Error is the structured error returned by pipeline operations.
type Error struct {
	Kind error  // one of the Err* kinds above
	Op   string // operation that failed, e.g. "augment"
	Msg  string // human-readable message
	Err  error  // underlying cause, may be nil
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Kind != nil {
		msg = e.Kind.Error()
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the error kind so errors.Is(err, ErrNotFound) works through
// any amount of wrapping.
func (e *Error) Is(target error) bool {
	return e.Kind != nil && target == e.Kind
}

// NotFound builds an ErrNotFound error.
func NotFound(op, format string, args ...any) error {
	return &Error{Kind: ErrNotFound, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// InvalidPrecondition builds an ErrInvalidPrecondition error.
func InvalidPrecondition(op, format string, args ...any) error {
	return &Error{Kind: ErrInvalidPrecondition, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// IOFailure wraps a filesystem or database error as ErrIOFailure.
func IOFailure(op, msg string, err error) error {
	return &Error{Kind: ErrIOFailure, Op: op, Msg: msg, Err: err}
}

// IsRetryable reports whether retrying the operation could succeed.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrIOFailure)
}
