package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

// Error categories
const (
	// Authentication errors (AUTH-001 to AUTH-099)
	ErrCodeAuthRejected         ErrorCode = "AUTH-001"
	ErrCodeAuthRefreshFailed    ErrorCode = "AUTH-002"
	ErrCodeAuthNotAuthenticated ErrorCode = "AUTH-003"
	ErrCodeAuthVerifyMissing    ErrorCode = "AUTH-004"
	ErrCodeAuthVerifyRejected   ErrorCode = "AUTH-005"
	ErrCodeAuthAlreadyVerified  ErrorCode = "AUTH-006"
	ErrCodeAuthInvalidInput     ErrorCode = "AUTH-007"

	// Session errors (SESSION-001 to SESSION-099)
	ErrCodeSessionProfileInvalid ErrorCode = "SESSION-001"
	ErrCodeSessionCredential     ErrorCode = "SESSION-002"

	// Credential store errors (STORE-001 to STORE-099)
	ErrCodeStoreOpen    ErrorCode = "STORE-001"
	ErrCodeStoreRead    ErrorCode = "STORE-002"
	ErrCodeStoreWrite   ErrorCode = "STORE-003"
	ErrCodeStoreDecrypt ErrorCode = "STORE-004"
	ErrCodeStoreBackend ErrorCode = "STORE-005"

	// Backend API errors (API-001 to API-099)
	ErrCodeAPINetwork   ErrorCode = "API-001"
	ErrCodeAPIMalformed ErrorCode = "API-002"
	ErrCodeAPIStatus    ErrorCode = "API-003"

	// Configuration errors (CONFIG-001 to CONFIG-099)
	ErrCodeConfigRead    ErrorCode = "CONFIG-001"
	ErrCodeConfigParse   ErrorCode = "CONFIG-002"
	ErrCodeConfigInvalid ErrorCode = "CONFIG-003"
)

// Error represents an enhanced error with code, suggestions, and documentation
type Error struct {
	Code        ErrorCode
	Message     string
	Suggestions []string
	Cause       error
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf(": %v", e.Cause))
	}

	if len(e.Suggestions) > 0 {
		b.WriteString("\n\nSuggestions:")
		for _, suggestion := range e.Suggestions {
			b.WriteString(fmt.Sprintf("\n  • %s", suggestion))
		}
	}

	return b.String()
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *Error) Unwrap() error {
	return e.Cause
}

// Family returns the code prefix, e.g. "AUTH" for "AUTH-002".
func (e *Error) Family() string {
	family, _, _ := strings.Cut(string(e.Code), "-")
	return family
}

// New creates a new Error
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a new Error wrapping an existing error
func Wrap(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WithSuggestion adds a suggestion to the error
func (e *Error) WithSuggestion(suggestion string) *Error {
	e.Suggestions = append(e.Suggestions, suggestion)
	return e
}

// WithSuggestions adds multiple suggestions to the error
func (e *Error) WithSuggestions(suggestions ...string) *Error {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// As finds the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var coded *Error
	if stderrors.As(err, &coded) {
		return coded, true
	}
	return nil, false
}

// Is reports whether any error in err's chain carries the given code.
func Is(err error, code ErrorCode) bool {
	for err != nil {
		if coded, ok := err.(*Error); ok && coded.Code == code {
			return true
		}
		err = stderrors.Unwrap(err)
	}
	return false
}

// Common error constructors for frequently used errors

// NewNotAuthenticatedError is returned by operations that need a session.
func NewNotAuthenticatedError(operation string) *Error {
	return New(ErrCodeAuthNotAuthenticated, fmt.Sprintf("%s requires an authenticated session", operation)).
		WithSuggestion("Run 'tenderdesk auth login' first")
}

// NewRefreshFailedError reports a failed credential refresh exchange.
func NewRefreshFailedError(cause error) *Error {
	return Wrap(ErrCodeAuthRefreshFailed, "session expired and could not be refreshed", cause).
		WithSuggestion("Run 'tenderdesk auth login' to start a new session")
}

// NewProfileInvalidError reports a profile snapshot that breaks its invariants.
func NewProfileInvalidError(cause error) *Error {
	return Wrap(ErrCodeSessionProfileInvalid, "backend returned an inconsistent user profile", cause)
}

// NewMalformedResponseError reports a response body that could not be decoded.
func NewMalformedResponseError(endpoint string, cause error) *Error {
	return Wrap(ErrCodeAPIMalformed, fmt.Sprintf("malformed response from %s", endpoint), cause)
}

// NewNetworkError reports an exchange that produced no response at all.
func NewNetworkError(endpoint string, cause error) *Error {
	return Wrap(ErrCodeAPINetwork, fmt.Sprintf("request to %s failed", endpoint), cause).
		WithSuggestion("Check that the API is reachable (tenderdesk config view shows api.base_url)")
}

// NewStoreError wraps a credential store backend failure.
func NewStoreError(code ErrorCode, backend string, cause error) *Error {
	return Wrap(code, fmt.Sprintf("credential store (%s) failed", backend), cause)
}

// NewConfigInvalidError reports configuration validation failures.
func NewConfigInvalidError(details string) *Error {
	return New(ErrCodeConfigInvalid, fmt.Sprintf("invalid configuration: %s", details)).
		WithSuggestion("Run 'tenderdesk config view' to inspect the effective configuration")
}
