package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure so transport layers can map it to a status code
// without inspecting error text.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindPermissionDenied
	KindConflict
	KindInvalidState
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindPermissionDenied:
		return "permission_denied"
	case KindConflict:
		return "conflict"
	case KindInvalidState:
		return "invalid_state"
	case KindValidation:
		return "validation"
	default:
		return "unknown"
	}
}

// HTTPStatus maps an error kind to the status code the API layer returns.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindNotFound:
		return http.StatusNotFound
	case KindPermissionDenied:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	case KindInvalidState:
		return http.StatusUnprocessableEntity
	case KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Error is a typed failure returned by the engine services.
type Error struct {
	kind Kind
	msg  string
	err  error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.err)
	}
	return e.msg
}

func (e *Error) Unwrap() error { return e.err }

// Kind reports the classification of err, unwrapping as needed.
// Errors that are not apperr values report KindUnknown.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.kind
	}
	return KindUnknown
}

// Is lets callers match on sentinel-style kinds with errors.Is by comparing
// against another apperr of the same kind.
func (e *Error) Is(target error) bool {
	var ae *Error
	if errors.As(target, &ae) {
		return ae.kind == e.kind
	}
	return false
}

func newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...)}
}

// NotFound reports a missing entity.
func NotFound(format string, args ...interface{}) *Error {
	return newf(KindNotFound, format, args...)
}

// PermissionDenied reports that the requester lacks the role the operation needs.
func PermissionDenied(format string, args ...interface{}) *Error {
	return newf(KindPermissionDenied, format, args...)
}

// Conflict reports a uniqueness-invariant violation.
func Conflict(format string, args ...interface{}) *Error {
	return newf(KindConflict, format, args...)
}

// InvalidState reports an operation that is not legal for the current
// lifecycle state of the entity.
func InvalidState(format string, args ...interface{}) *Error {
	return newf(KindInvalidState, format, args...)
}

// Validation reports malformed input.
func Validation(format string, args ...interface{}) *Error {
	return newf(KindValidation, format, args...)
}

// Wrap attaches a kind to an underlying error while keeping the chain intact.
func Wrap(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...), err: err}
}

// IsNotFound is a convenience matcher used by callers that only care about
// the absence of a row.
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

// IsConflict reports whether err is a uniqueness violation.
func IsConflict(err error) bool { return KindOf(err) == KindConflict }
