package storage

import (
	"errors"
	"fmt"
)

// Error kinds reported by repositories.
const (
	KindUnavailable = "unavailable"
	KindValidation  = "validation"
	KindNotFound    = "not_found"
)

// ErrNotFound is wrapped by errors of kind KindNotFound.
var ErrNotFound = errors.New("storage: not found")

// Error is a repository failure.
type Error struct {
	Kind string
	Op   string
	Err  error
}

// NewError wraps err as a storage error of the given kind.
func NewError(kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	return fmt.Sprintf("storage %s (%s): %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// ErrorKind implements the error classifier used by the error reporter.
func (e *Error) ErrorKind() string { return "storage_" + e.Kind }

// IsKind reports whether err is a storage error of kind.
func IsKind(err error, kind string) bool {
	var se *Error
	return errors.As(err, &se) && se.Kind == kind
}
