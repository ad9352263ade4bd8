// Package apperrors defines the error taxonomy shared by services and transports.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a domain failure.
type Kind int

const (
	KindInternal Kind = iota
	KindBadRequest
	KindUnauthorized
	KindForbidden
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindBadRequest:
		return "BAD_REQUEST"
	case KindUnauthorized:
		return "UNAUTHORIZED"
	case KindForbidden:
		return "FORBIDDEN"
	case KindNotFound:
		return "NOT_FOUND"
	default:
		return "INTERNAL"
	}
}

// Status returns the HTTP status for the kind. NOT_FOUND is reported as 400,
// which is what existing API clients expect.
func (k Kind) Status() int {
	switch k {
	case KindBadRequest, KindNotFound:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

const (
	ForbiddenMessage = "You don't have the required role to access this URL"
	InternalMessage  = "Internal server error"
)

// AppError is the error returned by services. It doubles as the JSON body
// written to clients.
type AppError struct {
	Kind    Kind   `json:"-"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements error.
func (a *AppError) Error() string {
	return fmt.Sprintf("AppError: Code=%d, Message=%s", a.Code, a.Message)
}

func New(kind Kind, message string) *AppError {
	return &AppError{Kind: kind, Code: kind.Status(), Message: message}
}

func BadRequest(format string, args ...any) *AppError {
	return New(KindBadRequest, fmt.Sprintf(format, args...))
}

func Unauthorized(format string, args ...any) *AppError {
	return New(KindUnauthorized, fmt.Sprintf(format, args...))
}

func Forbidden() *AppError {
	return New(KindForbidden, ForbiddenMessage)
}

func NotFound(format string, args ...any) *AppError {
	return New(KindNotFound, fmt.Sprintf(format, args...))
}

// From extracts an AppError from err. Anything else is reported as an
// internal error with a fixed message so details never leak to clients.
func From(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return New(KindInternal, InternalMessage)
}

// IsKind reports whether err is an AppError of the given kind.
func IsKind(err error, kind Kind) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Kind == kind
}
