package domain

import (
	"errors"
	"fmt"
)

// Code classifies a failure so transports can map it to a status
// without inspecting messages.
type Code int

const (
	CodeInvalid Code = iota + 1
	CodeNotFound
	CodeConflict
	CodeUnauthorized
	CodeForbidden
)

// Error is the tagged error every operation surfaces: a stable kind
// plus a human-readable detail. No operation recovers from one locally.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func Invalid(format string, args ...any) *Error {
	return newError(CodeInvalid, format, args...)
}

func NotFound(format string, args ...any) *Error {
	return newError(CodeNotFound, format, args...)
}

func Conflict(format string, args ...any) *Error {
	return newError(CodeConflict, format, args...)
}

func Unauthorized(format string, args ...any) *Error {
	return newError(CodeUnauthorized, format, args...)
}

func Forbidden(format string, args ...any) *Error {
	return newError(CodeForbidden, format, args...)
}

// CodeOf extracts the code from err, or zero for untagged errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return 0
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code Code) bool {
	return CodeOf(err) == code
}
