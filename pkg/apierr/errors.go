// Package apierr defines the application error taxonomy shared by all
// handlers and middleware. Every expected failure maps to an *Error with
// an HTTP status and a stable machine-readable code, so the HTTP layer
// never leaks raw driver or library errors to clients.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Stable machine-readable error codes
const (
	CodeValidation           = "VALIDATION_ERROR"
	CodeEmailAlreadyExists   = "EMAIL_ALREADY_EXISTS"
	CodeInvalidCredentials   = "INVALID_CREDENTIALS"
	CodeUserDisabled         = "USER_DISABLED"
	CodeUserNotFound         = "USER_NOT_FOUND"
	CodeUserNotAuthenticated = "USER_NOT_AUTHENTICATED"
	CodeTokenExpired         = "TOKEN_EXPIRED"
	CodeInvalidToken         = "INVALID_TOKEN"
	CodeAuthTokenRequired    = "AUTH_TOKEN_REQUIRED"
	CodeInvalidAuthFormat    = "INVALID_AUTH_FORMAT"
	CodeEmailNotVerified     = "EMAIL_NOT_VERIFIED"
	CodeInsufficientPerms    = "INSUFFICIENT_PERMISSIONS"
	CodeInvalidVerifyToken   = "INVALID_VERIFICATION_TOKEN"
	CodeInvalidCurrentPass   = "INVALID_CURRENT_PASSWORD"
	CodeEmailNotAvailable    = "EMAIL_NOT_AVAILABLE"
	CodeFCMTokenRequired     = "FCM_TOKEN_REQUIRED"
	CodeNoFCMTokens          = "NO_FCM_TOKENS"
	CodeUniqueViolation      = "UNIQUE_CONSTRAINT_VIOLATION"
	CodeRecordNotFound       = "RECORD_NOT_FOUND"
	CodeRateLimited          = "RATE_LIMITED"
	CodeInternal             = "INTERNAL_ERROR"
)

// Error is an operational API error carrying an HTTP status and a
// stable code alongside the human-readable message
type Error struct {
	Message    string
	StatusCode int
	Code       string
	Details    interface{}

	// cause is the underlying failure for 500s, reachable through
	// Unwrap for logging and never serialized to the client.
	cause error
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Message
}

// Unwrap exposes the underlying cause of an internal error
func (e *Error) Unwrap() error {
	return e.cause
}

// New creates an API error with an explicit status and code
func New(message string, statusCode int, code string) *Error {
	return &Error{Message: message, StatusCode: statusCode, Code: code}
}

// WithDetails attaches structured details (e.g. per-field validation
// failures) to the error
func (e *Error) WithDetails(details interface{}) *Error {
	clone := *e
	clone.Details = details
	return &clone
}

// Validation creates a 400 validation error
func Validation(message string) *Error {
	return New(message, http.StatusBadRequest, CodeValidation)
}

// Unauthorized creates a 401 authentication error
func Unauthorized(message, code string) *Error {
	return New(message, http.StatusUnauthorized, code)
}

// Forbidden creates a 403 authorization error
func Forbidden(message, code string) *Error {
	return New(message, http.StatusForbidden, code)
}

// NotFound creates a 404 error
func NotFound(message, code string) *Error {
	return New(message, http.StatusNotFound, code)
}

// Conflict creates a 409 uniqueness-conflict error
func Conflict(message, code string) *Error {
	return New(message, http.StatusConflict, code)
}

// Internal creates a 500 error. The original cause is retained behind
// Unwrap for logging but never serialized to the client.
func Internal(err error) *Error {
	return &Error{
		Message:    "internal server error",
		StatusCode: http.StatusInternalServerError,
		Code:       CodeInternal,
		cause:      err,
	}
}

// From converts any error into an *Error: operational errors pass
// through untouched, everything else becomes a generic 500
func From(err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return Internal(err)
}
