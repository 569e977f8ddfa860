package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Stable error-kind codes. Components raise exactly one of these; the HTTP
// boundary maps code to status once and nothing in between re-wraps.
const (
	CodeInvalidRequest      = "invalid_request"
	CodeUnauthenticated     = "unauthenticated"
	CodeForbidden           = "forbidden"
	CodeNotFound            = "not_found"
	CodeConflict            = "conflict"
	CodeUpstreamUnavailable = "upstream_unavailable"
	CodeUpstreamRejected    = "upstream_rejected"
	CodeInternal            = "internal"
)

type Error struct {
	Status int
	Code   string
	Err    error
	// Extra carries machine-readable detail the response body exposes as
	// additionalProperties (e.g. the existing processID on a 409).
	Extra map[string]any
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
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

func InvalidRequest(err error) *Error {
	return New(http.StatusBadRequest, CodeInvalidRequest, err)
}

func InvalidRequestf(format string, args ...any) *Error {
	return InvalidRequest(fmt.Errorf(format, args...))
}

func Unauthenticated(err error) *Error {
	return New(http.StatusUnauthorized, CodeUnauthenticated, err)
}

func Forbidden(err error) *Error {
	return New(http.StatusForbidden, CodeForbidden, err)
}

func Forbiddenf(format string, args ...any) *Error {
	return Forbidden(fmt.Errorf(format, args...))
}

func NotFound(err error) *Error {
	return New(http.StatusNotFound, CodeNotFound, err)
}

func NotFoundf(format string, args ...any) *Error {
	return NotFound(fmt.Errorf(format, args...))
}

func Conflict(err error, extra map[string]any) *Error {
	e := New(http.StatusConflict, CodeConflict, err)
	e.Extra = extra
	return e
}

func UpstreamUnavailable(err error) *Error {
	return New(http.StatusServiceUnavailable, CodeUpstreamUnavailable, err)
}

func UpstreamRejected(err error) *Error {
	return New(http.StatusInternalServerError, CodeUpstreamRejected, err)
}

func Internal(err error) *Error {
	return New(http.StatusInternalServerError, CodeInternal, err)
}

// From returns err as an *Error, wrapping anything unrecognized as internal.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return Internal(err)
}

func IsCode(err error, code string) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code == code
	}
	return false
}
