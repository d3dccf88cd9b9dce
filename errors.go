package credmine

import (
	"errors"
	"fmt"
)

// ErrTaskNotFound is returned when a task with the specified ID is not in the queue.
var ErrTaskNotFound = errors.New("credmine: task not found")

// ErrTaskFinalized is returned when a write targets an accepted (immutable) task.
var ErrTaskFinalized = errors.New("credmine: task finalized")

// ErrUnknownState is returned when an invalid state is used.
var ErrUnknownState = errors.New("credmine: unknown state")

// ErrUnsupportedDSN is returned by OpenQueue for an unknown scheme.
var ErrUnsupportedDSN = errors.New("credmine: unsupported queue dsn")

// ErrorClassifier lets errors declare their kind for reporting.
type ErrorClassifier interface {
	ErrorKind() string
}

// ValidationError reports captured or edited fields that cannot be stored.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ErrorKind implements ErrorClassifier.
func (e *ValidationError) ErrorKind() string { return "validation" }

// ResolutionError reports a hidden-folder cascade that could not complete.
type ResolutionError struct {
	Step string
	Err  error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve private folder (%s): %v", e.Step, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// ErrorKind implements ErrorClassifier.
func (e *ResolutionError) ErrorKind() string { return "resolution" }

// ErrorKindOf returns the kind declared by err, or "unknown".
func ErrorKindOf(err error) string {
	var c ErrorClassifier
	if errors.As(err, &c) {
		return c.ErrorKind()
	}
	return "unknown"
}
