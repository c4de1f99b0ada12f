// Package apperrors defines the error taxonomy shared by the service
// layer and the HTTP handlers. Callers classify with errors.Is against
// the sentinels; handlers turn the classification into a status code.
package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrValidation  = errors.New("validation error")
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrSubmission  = errors.New("submission rejected")
	ErrTimeout     = errors.New("timed out")
	ErrUnavailable = errors.New("unavailable")
	ErrInternal    = errors.New("internal error")
)

// Error carries a sentinel plus whatever context the failure site had.
// Only Message reaches clients; the rest is for logs.
type Error struct {
	Sentinel error
	Message  string
	Field    string // offending field for validation errors
	Resource string // resource kind for not-found and conflict
	Op       string // failing operation, e.g. "platform.submit"
	Cause    error
}

func (e *Error) Error() string { return e.Message }

// Unwrap exposes the sentinel so errors.Is sees through the wrapper.
func (e *Error) Unwrap() error { return e.Sentinel }

// opError builds the common op-plus-cause shape shared by the
// operational constructors below.
func opError(sentinel error, op string, cause error) error {
	return &Error{
		Sentinel: sentinel,
		Message:  fmt.Sprintf("%s: %v", op, cause),
		Op:       op,
		Cause:    cause,
	}
}

// Validation marks a request field as invalid.
func Validation(field, message string) error {
	return &Error{Sentinel: ErrValidation, Message: message, Field: field}
}

// NotFound reports that the named resource does not exist.
func NotFound(resource, id string) error {
	return &Error{
		Sentinel: ErrNotFound,
		Message:  fmt.Sprintf("%s %s not found", resource, id),
		Resource: resource,
	}
}

// Conflict reports that the resource is in a state that rejects the
// request, for example cancelling a workflow that already finished.
func Conflict(resource, id, reason string) error {
	return &Error{
		Sentinel: ErrConflict,
		Message:  fmt.Sprintf("%s %s %s", resource, id, reason),
		Resource: resource,
	}
}

// Submission wraps a run request the platform refused. These are never
// retried automatically.
func Submission(op string, cause error) error {
	return opError(ErrSubmission, op, cause)
}

// Timeout wraps an await that exceeded its bound.
func Timeout(op string, cause error) error {
	return opError(ErrTimeout, op, cause)
}

// Unavailable reports a resource that cannot accept work right now.
func Unavailable(resource, reason string) error {
	return &Error{Sentinel: ErrUnavailable, Message: reason, Resource: resource}
}

// Internal wraps an unexpected failure.
func Internal(op string, cause error) error {
	return opError(ErrInternal, op, cause)
}
