package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// DomainError represents a domain-specific error with a code and message
type DomainError struct {
	Code    string
	Message string
	Err     error // underlying error for wrapping
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is and errors.As
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// NewValidationError creates an INVALID_INPUT error with a specific message,
// used to surface the exact unmet registration rule to the client.
func NewValidationError(message string) *DomainError {
	return &DomainError{
		Code:    "INVALID_INPUT",
		Message: message,
	}
}

// WrapError wraps an existing error with domain error context
func WrapError(domainErr *DomainError, err error) *DomainError {
	return &DomainError{
		Code:    domainErr.Code,
		Message: domainErr.Message,
		Err:     err,
	}
}

// Predefined domain errors
var (
	// User errors
	ErrUserNotFound       = NewDomainError("USER_NOT_FOUND", "user not found")
	ErrEmailExists        = NewDomainError("EMAIL_EXISTS", "email already in use")
	ErrUsernameExists     = NewDomainError("USERNAME_EXISTS", "username already in use")
	ErrInvalidCredentials = NewDomainError("INVALID_CREDENTIALS", "invalid email or password")

	// Authentication errors
	ErrUnauthorized = NewDomainError("UNAUTHORIZED", "invalid or missing credentials")
	ErrInvalidToken = NewDomainError("INVALID_TOKEN", "invalid or expired token")

	// Lifecycle errors
	ErrVerificationRequired = NewDomainError("VERIFICATION_REQUIRED", "email verification required")
	ErrCodeMismatch         = NewDomainError("CODE_MISMATCH", "verification code is incorrect")
	ErrCodeExpired          = NewDomainError("CODE_EXPIRED", "verification code has expired")
	ErrAlreadyVerified      = NewDomainError("ALREADY_VERIFIED", "email is already verified")
	ErrNoDeletionPending    = NewDomainError("NO_DELETION_PENDING", "no account pending deletion matches the supplied credentials")
	ErrRateLimited          = NewDomainError("RATE_LIMITED", "too many login attempts")

	// Validation errors
	ErrInvalidInput = NewDomainError("INVALID_INPUT", "invalid input")

	// Resource errors
	ErrPromptNotFound   = NewDomainError("PROMPT_NOT_FOUND", "prompt not found")
	ErrResponseNotFound = NewDomainError("RESPONSE_NOT_FOUND", "response not found")

	// System errors
	ErrInternal           = NewDomainError("INTERNAL_ERROR", "internal server error")
	ErrServiceUnavailable = NewDomainError("SERVICE_UNAVAILABLE", "service unavailable")
)

// IsDomainError checks if an error is a domain error
func IsDomainError(err error) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr)
}

// GetDomainError extracts the domain error from an error
func GetDomainError(err error) *DomainError {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return nil
}

// ToHTTPStatus maps domain errors to HTTP status codes
// This should only be used in the handler/presentation layer
func ToHTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}

	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErrorToHTTPStatus(domainErr)
	}

	return http.StatusInternalServerError
}

func domainErrorToHTTPStatus(err *DomainError) int {
	switch err.Code {
	// 400 Bad Request
	case "INVALID_INPUT", "CODE_MISMATCH", "CODE_EXPIRED", "ALREADY_VERIFIED":
		return http.StatusBadRequest

	// 401 Unauthorized
	case "UNAUTHORIZED", "INVALID_CREDENTIALS", "INVALID_TOKEN",
		"VERIFICATION_REQUIRED", "NO_DELETION_PENDING":
		return http.StatusUnauthorized

	// 404 Not Found
	case "USER_NOT_FOUND", "PROMPT_NOT_FOUND", "RESPONSE_NOT_FOUND":
		return http.StatusNotFound

	// 409 Conflict
	case "EMAIL_EXISTS", "USERNAME_EXISTS":
		return http.StatusConflict

	// 429 Too Many Requests
	case "RATE_LIMITED":
		return http.StatusTooManyRequests

	// 503 Service Unavailable
	case "SERVICE_UNAVAILABLE":
		return http.StatusServiceUnavailable

	// 500 Internal Server Error (default)
	default:
		return http.StatusInternalServerError
	}
}

// GetErrorMessage safely extracts error message
func GetErrorMessage(err error) string {
	if err == nil {
		return ""
	}

	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Message
	}

	return err.Error()
}
