package apperrors

import (
	"errors"
	"fmt"
)

// Kind classifies a business-rule rejection. Operations validate every
// precondition before mutating anything, so a returned Kind always means
// no state change happened.
type Kind string

const (
	KindNotFound           Kind = "NOT_FOUND"
	KindForbidden          Kind = "FORBIDDEN"
	KindPreconditionFailed Kind = "PRECONDITION_FAILED"
	KindInvalidOperand     Kind = "INVALID_OPERAND"
	KindAlreadyCompleted   Kind = "ALREADY_COMPLETED"
	KindInvalidState       Kind = "INVALID_STATE"
	KindLimitExceeded      Kind = "LIMIT_EXCEEDED"
	KindConflict           Kind = "CONFLICT"
	KindInvariantViolation Kind = "INVARIANT_VIOLATION"
)

// Error is a typed business error carrying one Kind from the taxonomy.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	}
}

func NotFound(format string, args ...interface{}) *Error {
	return New(KindNotFound, format, args...)
}

func Forbidden(format string, args ...interface{}) *Error {
	return New(KindForbidden, format, args...)
}

func PreconditionFailed(format string, args ...interface{}) *Error {
	return New(KindPreconditionFailed, format, args...)
}

func InvalidOperand(format string, args ...interface{}) *Error {
	return New(KindInvalidOperand, format, args...)
}

func AlreadyCompleted(format string, args ...interface{}) *Error {
	return New(KindAlreadyCompleted, format, args...)
}

func InvalidState(format string, args ...interface{}) *Error {
	return New(KindInvalidState, format, args...)
}

func LimitExceeded(format string, args ...interface{}) *Error {
	return New(KindLimitExceeded, format, args...)
}

func Conflict(format string, args ...interface{}) *Error {
	return New(KindConflict, format, args...)
}

func InvariantViolation(format string, args ...interface{}) *Error {
	return New(KindInvariantViolation, format, args...)
}

// KindOf extracts the Kind from err, unwrapping as needed. Infrastructure
// errors (store failures, context cancellation) have no Kind and return
// ok=false; callers treat those as internal errors.
func KindOf(err error) (Kind, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind, true
	}
	return "", false
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
