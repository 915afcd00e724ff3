package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an application error
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindConflict
	KindValidation
	KindUnauthorized
	KindExternalService
	KindDatabase
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindValidation:
		return "validation_error"
	case KindUnauthorized:
		return "unauthorized"
	case KindExternalService:
		return "external_service_error"
	case KindDatabase:
		return "database_error"
	default:
		return "internal_error"
	}
}

// StatusCode returns the HTTP-equivalent status code for the kind
func (k Kind) StatusCode() int {
	switch k {
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindExternalService:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Operational reports whether errors of this kind are safe to surface to callers
func (k Kind) Operational() bool {
	switch k {
	case KindNotFound, KindConflict, KindValidation, KindUnauthorized:
		return true
	default:
		return false
	}
}

// Error is the error type returned by the core components
type Error struct {
	Kind    Kind
	Message string
	// Fields carries field-level detail, e.g. for validation errors or the dedup key of a conflict
	Fields map[string]string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) StatusCode() int {
	return e.Kind.StatusCode()
}

func (e *Error) Operational() bool {
	return e.Kind.Operational()
}

// KindOf returns the kind of err, or KindInternal for errors not produced by this package
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Is reports whether err is an application error of kind k
func Is(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}

// As extracts the application error from err's chain
func As(err error) (*Error, bool) {
	var appErr *Error
	ok := errors.As(err, &appErr)
	return appErr, ok
}

func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func Conflict(fields map[string]string, format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...), Fields: fields}
}

func Validation(fields map[string]string, message string) *Error {
	return &Error{Kind: KindValidation, Message: message, Fields: fields}
}

func Unauthorized(message string) *Error {
	return &Error{Kind: KindUnauthorized, Message: message}
}

func ExternalService(service string, err error) *Error {
	return &Error{
		Kind:    KindExternalService,
		Message: fmt.Sprintf("external service %s failed", service),
		Fields:  map[string]string{"service": service},
		Err:     err,
	}
}

func Database(op string, err error) *Error {
	return &Error{Kind: KindDatabase, Message: op, Err: err}
}
