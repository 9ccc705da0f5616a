package exitcode

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/felixgeelhaar/tenderdesk/internal/errors"
)

func TestExitCodes(t *testing.T) {
	tests := []struct {
		name     string
		code     int
		expected int
	}{
		{"Success", Success, 0},
		{"GeneralError", GeneralError, 1},
		{"UsageError", UsageError, 2},
		{"SessionError", SessionError, 3},
		{"AccessDenied", AccessDenied, 4},
		{"AuthError", AuthError, 5},
		{"NetworkError", NetworkError, 6},
		{"ConfigError", ConfigError, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.code != tt.expected {
				t.Errorf("Exit code %s = %d, want %d", tt.name, tt.code, tt.expected)
			}
		})
	}
}

func TestDetermineExitCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"nil error returns success", nil, Success},
		{"refresh failure", errors.NewRefreshFailedError(nil), AuthError},
		{"wrapped auth error", fmt.Errorf("org join: %w", errors.NewNotAuthenticatedError("join")), AuthError},
		{"invalid signup input", errors.New(errors.ErrCodeAuthInvalidInput, "email"), UsageError},
		{"network failure", errors.NewNetworkError("/auth/me", nil), NetworkError},
		{"malformed response", errors.NewMalformedResponseError("/auth/me", nil), GeneralError},
		{"store failure", errors.NewStoreError(errors.ErrCodeStoreDecrypt, "file", nil), SessionError},
		{"config failure", errors.NewConfigInvalidError("x"), ConfigError},
		{"access denied text", stderrors.New("access denied: dashboard"), AccessDenied},
		{"backend 401", stderrors.New("/auth/me: Could not validate credentials (status 401)"), AuthError},
		{"backend 403", stderrors.New("/organisations/members: Accès refusé (status 403)"), AccessDenied},
		{"connection refused text", stderrors.New("dial tcp: connection refused"), NetworkError},
		{"cobra usage", stderrors.New("accepts 1 arg(s), received 0"), UsageError},
		{"anything else", stderrors.New("boom"), GeneralError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetermineExitCode(tt.err); got != tt.expected {
				t.Errorf("DetermineExitCode(%v) = %d, want %d", tt.err, got, tt.expected)
			}
		})
	}
}

func TestGetExitCodeDescription(t *testing.T) {
	for _, code := range []int{Success, GeneralError, UsageError, SessionError, AccessDenied, AuthError, NetworkError, ConfigError, Interrupted} {
		if GetExitCodeDescription(code) == "Unknown error" {
			t.Errorf("code %d has no description", code)
		}
	}
	if GetExitCodeDescription(99) != "Unknown error" {
		t.Error("expected unknown description for 99")
	}
}
