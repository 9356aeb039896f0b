// Package domainerrors defines coded errors shared by services and transports.
//
// Services return *Error values; transports translate the code to a status.
// Registry codes also carry a stable wire number so clients can match on
// them without parsing messages.
package domainerrors

import (
	"errors"
	"net/http"
)

// Code identifies a class of domain failure.
type Code string

const (
	CodeInternal           Code = "internal_error"
	CodeInvariantViolation Code = "invariant_violation"
	CodeValidation         Code = "validation_error"
	CodeBadRequest         Code = "bad_request"
	CodeInvalidInput       Code = "invalid_input"
	CodeInvalidRequest     Code = "invalid_request"
	CodeUnauthorized       Code = "unauthorized"
	CodeForbidden          Code = "forbidden"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeTimeout            Code = "timeout"
	CodeUnavailable        Code = "service_unavailable"

	// Registry abort reasons.
	CodeAlreadyInitialized Code = "already_initialized"
	CodeNotInitialized     Code = "not_initialized"
	CodeNotAuthorized      Code = "not_authorized"
	CodeInvalidUsername    Code = "invalid_username"
	CodeUsernameTaken      Code = "username_taken"
	CodeUsernameReserved   Code = "username_reserved"
	CodeProfileNotFound    Code = "profile_not_found"
	CodeProfileExists      Code = "profile_exists"
	CodeProfileDeleted     Code = "profile_deleted"
	CodeInvalidField       Code = "invalid_field"
)

var registryNumbers = map[Code]uint32{
	CodeAlreadyInitialized: 1,
	CodeNotInitialized:     2,
	CodeNotAuthorized:      3,
	CodeInvalidUsername:    4,
	CodeUsernameTaken:      5,
	CodeUsernameReserved:   6,
	CodeProfileNotFound:    7,
	CodeProfileExists:      8,
	CodeProfileDeleted:     9,
	CodeInvalidField:       10,
}

// Number returns the stable registry error number for c, or 0 when c is not
// a registry abort reason.
func (c Code) Number() uint32 {
	return registryNumbers[c]
}

// CodeFromNumber maps a registry error number back to its code.
func CodeFromNumber(n uint32) (Code, bool) {
	for code, num := range registryNumbers {
		if num == n {
			return code, true
		}
	}
	return "", false
}

// Error is a domain error carrying a code, a client-safe message, and an
// optional wrapped cause.
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

// Is matches another *Error by code so callers can use errors.Is with a
// freshly built error as the target.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// New creates a domain error.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// CodeOf returns the code of the outermost domain error in err's chain.
func CodeOf(err error) (Code, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de.Code, true
	}
	return "", false
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code Code) bool {
	c, ok := CodeOf(err)
	return ok && c == code
}

// Is is shorthand for HasCode.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// HTTPStatus maps a code to the HTTP status used by transports.
func HTTPStatus(code Code) int {
	switch code {
	case CodeValidation, CodeBadRequest, CodeInvalidInput, CodeInvalidRequest,
		CodeInvalidUsername, CodeInvalidField:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden, CodeNotAuthorized:
		return http.StatusForbidden
	case CodeNotFound, CodeProfileNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeAlreadyInitialized, CodeUsernameTaken, CodeUsernameReserved,
		CodeProfileExists:
		return http.StatusConflict
	case CodeProfileDeleted:
		return http.StatusGone
	case CodeNotInitialized, CodeUnavailable:
		return http.StatusServiceUnavailable
	case CodeTimeout:
		return http.StatusGatewayTimeout
	case CodeInvariantViolation:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
