// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error types and error handling utilities for hioload-async.

package api

import (
	"errors"
	"fmt"
)

// Common errors used across the library.
var (
	ErrNilCoroutine     = errors.New("nil coroutine admitted")
	ErrWouldBlock       = errors.New("operation would block")
	ErrHandlerClosed    = errors.New("connection handler is closed")
	ErrHandlerRunning   = errors.New("connection handler already running")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrRequestTooLarge  = errors.New("request too large")
	ErrMalformedRequest = errors.New("malformed request")
	ErrInvalidAction    = errors.New("invalid coroutine action")
)

// ErrorCode represents specific error conditions in the library.
type ErrorCode int

const (
	ErrCodeOK ErrorCode = iota
	ErrCodeInvalidArgument
	ErrCodeNotFound
	ErrCodeMethodNotAllowed
	ErrCodeTooLarge
	ErrCodeNotImplemented
	ErrCodeInternal
)

// Status maps the code onto an HTTP status.
func (c ErrorCode) Status() int {
	switch c {
	case ErrCodeOK:
		return 200
	case ErrCodeInvalidArgument:
		return 400
	case ErrCodeNotFound:
		return 404
	case ErrCodeMethodNotAllowed:
		return 405
	case ErrCodeTooLarge:
		return 413
	case ErrCodeNotImplemented:
		return 501
	default:
		return 500
	}
}

// Error represents a structured error with code and context.
type Error struct {
	Code    ErrorCode
	Message string
	Context map[string]any
	cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if len(e.Context) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (context: %+v)", e.Message, e.Context)
}

// Unwrap returns the wrapped cause, if any.
func (e *Error) Unwrap() error { return e.cause }

// NewError creates a new structured error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// WrapError creates a structured error around cause.
func WrapError(code ErrorCode, cause error) *Error {
	return &Error{
		Code:    code,
		Message: cause.Error(),
		cause:   cause,
	}
}

// WithContext adds context information to the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// CodeOf extracts the ErrorCode carried by err, defaulting to ErrCodeInternal.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	switch {
	case errors.Is(err, ErrRequestTooLarge):
		return ErrCodeTooLarge
	case errors.Is(err, ErrMalformedRequest), errors.Is(err, ErrInvalidArgument):
		return ErrCodeInvalidArgument
	}
	return ErrCodeInternal
}
