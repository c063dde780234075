// Package domain defines the core domain models for stockgate.
package domain

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// DomainError represents a business domain error with a structured error code.
//
// Codes follow the format SG-<AREA>-<NNNN>. The numeric suffix carries the
// HTTP status family (see HTTPStatus).
type DomainError struct {
	Code    string // Error code (e.g., "SG-TOKN-4011")
	Message string // Safe, client-facing message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any), never sent to clients
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a DomainError with the same code.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks if the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		if code == "" {
			return true
		}
		return de.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// HTTPStatus maps an error code to the HTTP status it is surfaced as.
func HTTPStatus(code string) int {
	idx := strings.LastIndex(code, "-")
	if idx < 0 || idx == len(code)-1 {
		return http.StatusInternalServerError
	}
	suffix := code[idx+1:]

	switch {
	case strings.HasPrefix(code, "SG-ARG-"):
		return http.StatusBadRequest
	case strings.HasPrefix(suffix, "400"):
		return http.StatusBadRequest
	case strings.HasPrefix(suffix, "401"):
		return http.StatusUnauthorized
	case strings.HasPrefix(suffix, "403"):
		return http.StatusForbidden
	case strings.HasPrefix(suffix, "404"):
		return http.StatusNotFound
	case strings.HasPrefix(suffix, "405"):
		return http.StatusMethodNotAllowed
	case strings.HasPrefix(suffix, "429"):
		return http.StatusTooManyRequests
	case strings.HasPrefix(suffix, "503"):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ============================================================================
// Configuration Errors (CONF)
// ============================================================================

var (
	// ErrConfiguration indicates the process cannot start with the given settings.
	ErrConfiguration = NewDomainError("SG-CONF-5001", "invalid configuration")
)

// ============================================================================
// Token Errors (TOKN)
// ============================================================================

var (
	// ErrTokenInvalid indicates a bad signature, malformed payload or unexpected algorithm.
	ErrTokenInvalid = NewDomainError("SG-TOKN-4010", "invalid token")

	// ErrTokenExpired indicates the token expiry is not in the future.
	ErrTokenExpired = NewDomainError("SG-TOKN-4011", "token expired")

	// ErrWrongTokenType indicates an access token was presented where a refresh
	// token is required, or the reverse.
	ErrWrongTokenType = NewDomainError("SG-TOKN-4012", "wrong token type")
)

// ============================================================================
// Authentication Errors (AUTH)
// ============================================================================

var (
	// ErrCredentialsMissing indicates no bearer token or API key was provided.
	ErrCredentialsMissing = NewDomainError("SG-AUTH-4010", "authentication required")

	// ErrAPIKeyInvalid indicates the API key is unknown, disabled or its secret is wrong.
	ErrAPIKeyInvalid = NewDomainError("SG-AUTH-4011", "invalid api key")

	// ErrInvalidCredentials indicates a wrong username or password.
	ErrInvalidCredentials = NewDomainError("SG-AUTH-4012", "incorrect username or password")

	// ErrInsufficientScope indicates the principal lacks every required role.
	ErrInsufficientScope = NewDomainError("SG-AUTH-4030", "insufficient scope")

	// ErrUserInactive indicates the account exists but is disabled.
	ErrUserInactive = NewDomainError("SG-AUTH-4031", "inactive user")

	// ErrLoginThrottled indicates too many failed login attempts for one
	// username from one client.
	ErrLoginThrottled = NewDomainError("SG-AUTH-4290", "too many login attempts")
)

// ============================================================================
// Rate Limit Errors (RATE)
// ============================================================================

var (
	// ErrRateLimitExceeded indicates the client used its quota for the current window.
	ErrRateLimitExceeded = NewDomainError("SG-RATE-4290", "rate limit exceeded")

	// ErrCounterStoreUnavailable indicates the counter store could not be reached.
	ErrCounterStoreUnavailable = NewDomainError("SG-RATE-5030", "rate limiter unavailable")
)

// ============================================================================
// System Errors (SYS) and Argument Errors (ARG)
// ============================================================================

var (
	// ErrInternalServer indicates an internal server error.
	ErrInternalServer = NewDomainError("SG-SYS-5000", "internal server error")

	// ErrBadRequest indicates a malformed request.
	ErrBadRequest = NewDomainError("SG-SYS-4000", "bad request")

	// ErrNotFound indicates no route matched.
	ErrNotFound = NewDomainError("SG-SYS-4040", "not found")

	// ErrMissingArgument indicates a required argument is missing.
	ErrMissingArgument = NewDomainError("SG-ARG-1002", "missing required argument")
)
