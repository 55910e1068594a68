package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a unique error code
type ErrorCode int

// Common error codes
const (
	ErrValidation ErrorCode = iota + 1000
	ErrNotFound
	ErrConflict
	ErrUnauthorized
	ErrTransient
	ErrInternal
)

// AppError represents an application error
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// StatusCode maps the error code to an HTTP status. The error
// middleware uses this to pick the response status.
func (e *AppError) StatusCode() int {
	switch e.Code {
	case ErrValidation:
		return http.StatusBadRequest
	case ErrNotFound:
		return http.StatusNotFound
	case ErrConflict:
		return http.StatusConflict
	case ErrUnauthorized:
		return http.StatusUnauthorized
	case ErrTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error constructors
func NewValidation(message string) *AppError {
	return &AppError{Code: ErrValidation, Message: message}
}

func NewNotFound(resource string) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found", resource),
	}
}

func NewConflict(message string) *AppError {
	return &AppError{Code: ErrConflict, Message: message}
}

func NewUnauthorized(message string) *AppError {
	return &AppError{Code: ErrUnauthorized, Message: message}
}

// NewTransient wraps a retryable failure, typically a storage write
// error. Callers owning a tick or an admin action retry these.
func NewTransient(message string, err error) *AppError {
	return &AppError{Code: ErrTransient, Message: message, Err: err}
}

func NewInternal(err error) *AppError {
	return &AppError{Code: ErrInternal, Message: "internal server error", Err: err}
}

// IsNotFound reports whether err is an AppError with ErrNotFound.
func IsNotFound(err error) bool {
	return isCode(err, ErrNotFound)
}

// IsConflict reports whether err is an AppError with ErrConflict.
func IsConflict(err error) bool {
	return isCode(err, ErrConflict)
}

// IsTransient reports whether err is an AppError with ErrTransient.
func IsTransient(err error) bool {
	return isCode(err, ErrTransient)
}

func isCode(err error, code ErrorCode) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}
