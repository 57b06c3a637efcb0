// Package apperror defines the error kinds surfaced by the auth core and their
// HTTP status mapping.
package apperror

import (
	"errors"
	"net/http"
)

// Kind classifies an Error.
type Kind int

const (
	KindServer Kind = iota
	KindValidation
	KindInvalidCredential
	KindUnauthorized
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindInvalidCredential:
		return "invalid_credential"
	case KindUnauthorized:
		return "unauthorized"
	default:
		return "server"
	}
}

// Error carries a user-facing message and an optional internal cause.
// The cause is never rendered to clients.
type Error struct {
	Kind    Kind
	Message string
	Status  int
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// HTTPStatus returns the response code for the error.
func (e *Error) HTTPStatus() int {
	if e.Status != 0 {
		return e.Status
	}
	switch e.Kind {
	case KindValidation, KindInvalidCredential:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// WithStatus overrides the default status for the kind.
func (e *Error) WithStatus(status int) *Error {
	cp := *e
	cp.Status = status
	return &cp
}

func Validation(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

func InvalidCredential(msg string) *Error {
	return &Error{Kind: KindInvalidCredential, Message: msg}
}

// Unauthorized builds a session failure. cause is kept for logs only.
func Unauthorized(msg string, cause error) *Error {
	return &Error{Kind: KindUnauthorized, Message: msg, Err: cause}
}

// Server wraps a persistence or infrastructure failure.
func Server(msg string, cause error) *Error {
	return &Error{Kind: KindServer, Message: msg, Err: cause}
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Is reports whether err carries an *Error of the given kind.
func Is(err error, kind Kind) bool {
	e, ok := As(err)
	return ok && e.Kind == kind
}
