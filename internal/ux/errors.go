package ux

import (
	"fmt"
	"strings"

	"github.com/felixgeelhaar/tenderdesk/internal/errors"
)

// ErrorWithSuggestion wraps an error with a recovery hint.
type ErrorWithSuggestion struct {
	Err        error
	Suggestion string
}

func (e *ErrorWithSuggestion) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%v\n\nSuggestion: %s", e.Err, e.Suggestion)
	}
	return e.Err.Error()
}

// Unwrap provides access to the underlying error.
func (e *ErrorWithSuggestion) Unwrap() error {
	return e.Err
}

// NewErrorWithSuggestion wraps err. A nil err stays nil.
func NewErrorWithSuggestion(err error, suggestion string) error {
	if err == nil {
		return nil
	}
	return &ErrorWithSuggestion{Err: err, Suggestion: suggestion}
}

// EnhanceError adds a hint to errors that do not carry suggestions of
// their own. Coded errors are returned unchanged.
func EnhanceError(err error) error {
	if err == nil {
		return nil
	}
	if coded, ok := errors.As(err); ok && len(coded.Suggestions) > 0 {
		return err
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "connection refused"), strings.Contains(msg, "no such host"), strings.Contains(msg, "no route to host"):
		return NewErrorWithSuggestion(err, "Check api.base_url with 'tenderdesk config view' and that the backend is running")
	case strings.Contains(msg, "deadline exceeded"), strings.Contains(msg, "timeout"):
		return NewErrorWithSuggestion(err, "The backend is slow to answer; raise api.timeout or try again")
	case strings.Contains(msg, "x509"), strings.Contains(msg, "certificate"):
		return NewErrorWithSuggestion(err, "The backend certificate is not trusted by this machine")
	case strings.Contains(msg, "permission denied"):
		return NewErrorWithSuggestion(err, "Check permissions on the state directory (default ~/.tenderdesk)")
	case strings.Contains(msg, "status 401"), strings.Contains(msg, "unauthorized"):
		return NewErrorWithSuggestion(err, "Your session is no longer valid; run 'tenderdesk auth login'")
	case strings.Contains(msg, "status 403"):
		return NewErrorWithSuggestion(err, "Your account lacks access; check 'tenderdesk auth status'")
	}
	return err
}

// FormatError enhances err and prefixes it with context.
func FormatError(err error, context string) error {
	if err == nil {
		return nil
	}
	enhanced := EnhanceError(err)
	if context != "" {
		return fmt.Errorf("%s: %w", context, enhanced)
	}
	return enhanced
}

// Describe returns a one-line, user-facing message for err.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	if coded, ok := errors.As(err); ok {
		if coded.Cause != nil {
			return coded.Message + ": " + firstLine(coded.Cause.Error())
		}
		return coded.Message
	}
	return firstLine(err.Error())
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
