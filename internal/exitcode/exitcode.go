package exitcode

import (
	"os"
	"strings"

	"github.com/felixgeelhaar/tenderdesk/internal/errors"
)

// Exit codes for consistent error handling across the CLI
const (
	// Success indicates successful execution
	Success = 0

	// GeneralError indicates a general error condition
	GeneralError = 1

	// UsageError indicates invalid command usage (bad flags, missing args, etc.)
	UsageError = 2

	// SessionError indicates the local session or credential store is unusable
	SessionError = 3

	// AccessDenied indicates the access controller refused a screen
	AccessDenied = 4

	// AuthError indicates an authentication or authorization failure
	AuthError = 5

	// NetworkError indicates a network connectivity issue
	NetworkError = 6

	// ConfigError indicates an invalid or unreadable configuration
	ConfigError = 7

	// Interrupted indicates the user cancelled the command (SIGINT)
	Interrupted = 130
)

// Exit terminates the program with the given exit code
func Exit(code int) {
	os.Exit(code)
}

// ExitWithError exits with an appropriate code based on error type
func ExitWithError(err error) {
	if err == nil {
		Exit(Success)
		return
	}

	Exit(DetermineExitCode(err))
}

// DetermineExitCode analyzes an error and returns the appropriate exit code.
// Coded errors map by family; anything else falls back to message matching.
func DetermineExitCode(err error) int {
	if err == nil {
		return Success
	}

	if coded, ok := errors.As(err); ok {
		switch coded.Family() {
		case "AUTH":
			if coded.Code == errors.ErrCodeAuthInvalidInput {
				return UsageError
			}
			return AuthError
		case "API":
			if coded.Code == errors.ErrCodeAPINetwork {
				return NetworkError
			}
			return GeneralError
		case "SESSION", "STORE":
			return SessionError
		case "CONFIG":
			return ConfigError
		}
	}

	errMsg := strings.ToLower(err.Error())

	// Access controller refusals
	if strings.Contains(errMsg, "access denied") {
		return AccessDenied
	}

	// Authentication errors, including backend 401 and 403 answers
	if strings.Contains(errMsg, "authentication") || strings.Contains(errMsg, "unauthorized") {
		return AuthError
	}
	if strings.Contains(errMsg, "status 401") {
		return AuthError
	}
	if strings.Contains(errMsg, "status 403") {
		return AccessDenied
	}

	// Network errors
	if strings.Contains(errMsg, "network") || strings.Contains(errMsg, "connection") {
		return NetworkError
	}
	if strings.Contains(errMsg, "timeout") || strings.Contains(errMsg, "unreachable") {
		return NetworkError
	}

	// Usage errors
	if strings.Contains(errMsg, "invalid flag") || strings.Contains(errMsg, "unknown command") {
		return UsageError
	}
	if strings.Contains(errMsg, "required flag") || strings.Contains(errMsg, "accepts ") {
		return UsageError
	}

	// Default to general error
	return GeneralError
}

// GetExitCodeDescription returns a human-readable description of an exit code
func GetExitCodeDescription(code int) string {
	switch code {
	case Success:
		return "Success"
	case GeneralError:
		return "General error"
	case UsageError:
		return "Usage error (invalid flags or arguments)"
	case SessionError:
		return "Local session unavailable"
	case AccessDenied:
		return "Access denied"
	case AuthError:
		return "Authentication error"
	case NetworkError:
		return "Network error"
	case ConfigError:
		return "Configuration error"
	case Interrupted:
		return "Interrupted by user"
	default:
		return "Unknown error"
	}
}
