// Package apperr defines the error kinds surfaced by the marketplace access layers.
// Kinds are string based so they read well in logs and JSON.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error condition.
type Kind string

const (
	// KindValidation indicates bad or missing input, including unknown tags.
	KindValidation Kind = "VALIDATION_ERROR"

	// KindUnauthenticated indicates a missing or invalid session token.
	KindUnauthenticated Kind = "UNAUTHENTICATED"

	// KindAccessDenied indicates the caller is not a participant or not the owner.
	KindAccessDenied Kind = "ACCESS_DENIED"

	// KindNotFound indicates no row matched.
	KindNotFound Kind = "NOT_FOUND"

	// KindConfiguration indicates a required setting could not be resolved.
	KindConfiguration Kind = "CONFIGURATION_ERROR"

	// KindTransport indicates the hosted backend or mail provider failed.
	KindTransport Kind = "TRANSPORT_ERROR"
)

// Error is a classified error carrying a user-facing message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, apperr.NotFound("")) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New creates an error of the given kind.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...interface{}) *Error {
	return New(KindValidation, format, args...)
}

func Unauthenticated(format string, args ...interface{}) *Error {
	return New(KindUnauthenticated, format, args...)
}

func AccessDenied(format string, args ...interface{}) *Error {
	return New(KindAccessDenied, format, args...)
}

func NotFound(format string, args ...interface{}) *Error {
	return New(KindNotFound, format, args...)
}

func Configuration(format string, args ...interface{}) *Error {
	return New(KindConfiguration, format, args...)
}

// Wrap labels a backend failure with the operation that issued it, e.g.
// Wrap(err, "Error fetching listings") -> "Error fetching listings: <provider message>".
// Errors that already carry a kind keep it; anything else becomes KindTransport.
func Wrap(err error, label string) error {
	if err == nil {
		return nil
	}
	kind := KindTransport
	var ae *Error
	if errors.As(err, &ae) {
		kind = ae.Kind
	}
	return &Error{Kind: kind, Message: label + ": " + err.Error(), Err: err}
}

// KindOf returns the kind of err, or KindTransport for unclassified errors.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindTransport
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Kind == kind
}

// HTTPStatus maps a kind to the status code the API responds with.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindAccessDenied:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConfiguration:
		return http.StatusInternalServerError
	default:
		return http.StatusBadGateway
	}
}
