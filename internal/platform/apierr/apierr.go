package apierr

import (
	"fmt"
	"net/http"
)

// Error is a service-layer failure that already knows its HTTP status, so
// handlers can map it without re-inspecting the cause. Wrap the underlying
// error in Err; Code is the machine-readable label clients switch on.
type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("request failed (%d)", e.Status)
	}
	return "request failed"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

// Conflict reports a write that collides with existing state, e.g. creating
// a document type whose identifier is already taken.
func Conflict(format string, args ...any) *Error {
	return New(http.StatusConflict, "conflict", fmt.Errorf(format, args...))
}

// Forbidden reports a request whose authenticated identity may not perform
// the operation.
func Forbidden(format string, args ...any) *Error {
	return New(http.StatusForbidden, "forbidden", fmt.Errorf(format, args...))
}
