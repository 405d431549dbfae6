package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is an error with a stable code and a message safe to show users
type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches AppErrors by code and message so sentinel values work with errors.Is
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

func Wrap(err error, code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common error codes
const (
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeConflict           = "CONFLICT"
	ErrCodeInsufficientPoints = "INSUFFICIENT_POINTS"
	ErrCodeAlreadyExists      = "ALREADY_EXISTS"
	ErrCodeRateLimitExceeded  = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternalError      = "INTERNAL_ERROR"
)

func Validation(message string) *AppError { return New(ErrCodeValidation, message) }
func NotFound(message string) *AppError   { return New(ErrCodeNotFound, message) }
func Forbidden(message string) *AppError  { return New(ErrCodeForbidden, message) }
func Conflict(message string) *AppError   { return New(ErrCodeConflict, message) }

// CodeOf returns the code of the first AppError in err's chain, or INTERNAL_ERROR
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternalError
}

// HTTPStatus maps an error to the status code the API responds with
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case ErrCodeValidation, ErrCodeConflict, ErrCodeInsufficientPoints, ErrCodeAlreadyExists:
		return http.StatusBadRequest
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeRateLimitExceeded:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the user-facing message for err. Unknown errors never leak details.
func PublicMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Code != ErrCodeInternalError {
		return appErr.Message
	}
	return "Internal server error"
}
