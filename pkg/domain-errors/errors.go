// Package domainerrors defines the workflow error taxonomy. Every failure of
// a transition attempt carries exactly one Code; transports map codes to HTTP
// statuses and callers decide retryability from the code alone.
package domainerrors

import (
	"errors"
	"net/http"
)

// Code classifies a transition failure.
type Code string

const (
	// CodeNotFound: the entity or allocation does not exist.
	CodeNotFound Code = "not_found"
	// CodeIllegalTransition: the action is not valid from the current state,
	// regardless of who asked. Not retryable; indicates a caller bug.
	CodeIllegalTransition Code = "illegal_transition"
	// CodeForbidden: the transition is valid but the actor's role or
	// ownership does not permit it. Not retryable; an authorization problem.
	CodeForbidden Code = "forbidden"
	// CodePolicyDenied: the ledger deduction would violate the overspend
	// policy. Retryable only after the ledger state changes.
	CodePolicyDenied Code = "policy_denied"
	// CodeValidation: malformed payload (missing remarks, bad amounts, ...).
	CodeValidation Code = "validation_failed"
	// CodeConflict: the underlying transaction aborted on a concurrent
	// write. Retryable immediately as a fresh attempt.
	CodeConflict Code = "conflict"
	// CodeUnauthorized: no authenticated actor on the request.
	CodeUnauthorized Code = "unauthorized"
	// CodeInternal: anything else; nothing for the caller to do.
	CodeInternal Code = "internal"
)

// Error is the workflow error type. Message is safe to surface to callers;
// the wrapped cause is for logs.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New creates an Error with no underlying cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap annotates an underlying cause with a code and caller-safe message.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// CodeOf extracts the code from err, defaulting to CodeInternal.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code Code) bool {
	return CodeOf(err) == code
}

// Retryable reports whether a caller may legitimately retry the attempt.
// PolicyDenied only becomes retryable once the ledger state changes; Conflict
// is retryable immediately.
func Retryable(code Code) bool {
	return code == CodePolicyDenied || code == CodeConflict
}

// ToHTTPStatus maps a code to its transport status.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeIllegalTransition:
		return http.StatusUnprocessableEntity
	case CodeForbidden:
		return http.StatusForbidden
	case CodePolicyDenied:
		return http.StatusUnprocessableEntity
	case CodeValidation:
		return http.StatusBadRequest
	case CodeConflict:
		return http.StatusConflict
	case CodeUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
