package apperror

import (
	"errors"
	"net/http"
)

// Kind classifies an error so callers can decide whether and how to retry.
type Kind string

const (
	KindValidation Kind = "validation" // malformed or out-of-bound input, never retried
	KindNotFound   Kind = "not_found"
	KindConflict   Kind = "conflict"  // retry with a different interval, not the same one
	KindPolicy     Kind = "policy"    // operation not permitted in the current state
	KindSecurity   Kind = "security"  // tamper or rate limit, fail closed
	KindTransient  Kind = "transient" // datastore unavailable, safe to retry the whole operation
	KindInternal   Kind = "internal"
)

// AppError is a custom error type that includes an HTTP status code, a kind and an optional wrapped error.
type AppError struct {
	Code    int    // HTTP Status Code (e.g., 400, 404)
	Kind    Kind   // Stable classification exposed to callers
	Message string // User-facing error message
	Err     error  // The underlying error, if any (not exposed to user)
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is reports whether target is an AppError of the same kind and message.
// This keeps sentinel comparison working for wrapped copies.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind && e.Message == t.Message
}

// New creates a new AppError with a status code and message.
// The kind is derived from the status code.
func New(code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Kind:    kindFor(code),
		Message: message,
	}
}

// Wrap creates a new AppError wrapping an existing error.
func Wrap(err error, code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Kind:    kindFor(code),
		Message: message,
		Err:     err,
	}
}

func Validation(message string) *AppError {
	return &AppError{Code: http.StatusBadRequest, Kind: KindValidation, Message: message}
}

func NotFound(message string) *AppError {
	return &AppError{Code: http.StatusNotFound, Kind: KindNotFound, Message: message}
}

func Conflict(message string) *AppError {
	return &AppError{Code: http.StatusConflict, Kind: KindConflict, Message: message}
}

func Policy(message string) *AppError {
	return &AppError{Code: http.StatusUnprocessableEntity, Kind: KindPolicy, Message: message}
}

func Security(message string) *AppError {
	return &AppError{Code: http.StatusForbidden, Kind: KindSecurity, Message: message}
}

// Transient wraps a datastore failure the caller may retry.
func Transient(err error, message string) *AppError {
	return &AppError{Code: http.StatusServiceUnavailable, Kind: KindTransient, Message: message, Err: err}
}

// KindOf returns the kind of the first AppError in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

func kindFor(code int) Kind {
	switch code {
	case http.StatusBadRequest:
		return KindValidation
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusConflict:
		return KindConflict
	case http.StatusForbidden, http.StatusTooManyRequests:
		return KindSecurity
	case http.StatusUnprocessableEntity:
		return KindPolicy
	case http.StatusServiceUnavailable:
		return KindTransient
	default:
		return KindInternal
	}
}
