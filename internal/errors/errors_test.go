package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	err := New(ErrCodeAuthRejected, "bad credentials")

	assert.Equal(t, ErrCodeAuthRejected, err.Code)
	assert.Equal(t, "bad credentials", err.Message)
	assert.Nil(t, err.Cause)
}

func TestWrapSupportsStdlibIs(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := Wrap(ErrCodeAPINetwork, "request failed", cause)

	assert.True(t, stderrors.Is(err, cause))
	assert.Equal(t, cause, err.Unwrap())
}

func TestErrorFormatting(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name:     "simple error",
			err:      New(ErrCodeConfigInvalid, "invalid configuration"),
			contains: []string{"[CONFIG-003]", "invalid configuration"},
		},
		{
			name:     "error with cause",
			err:      Wrap(ErrCodeStoreRead, "read failed", fmt.Errorf("permission denied")),
			contains: []string{"[STORE-002]", "read failed", "permission denied"},
		},
		{
			name:     "error with suggestions",
			err:      New(ErrCodeAuthNotAuthenticated, "no session").WithSuggestions("log in", "retry"),
			contains: []string{"Suggestions:", "• log in", "• retry"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, want := range tt.contains {
				assert.True(t, strings.Contains(msg, want), "expected %q in %q", want, msg)
			}
		})
	}
}

func TestFamily(t *testing.T) {
	assert.Equal(t, "AUTH", New(ErrCodeAuthRefreshFailed, "x").Family())
	assert.Equal(t, "SESSION", New(ErrCodeSessionProfileInvalid, "x").Family())
	assert.Equal(t, "API", New(ErrCodeAPIMalformed, "x").Family())
}

func TestIsWalksChain(t *testing.T) {
	inner := NewRefreshFailedError(fmt.Errorf("401"))
	outer := fmt.Errorf("loading dashboard: %w", inner)

	assert.True(t, Is(outer, ErrCodeAuthRefreshFailed))
	assert.False(t, Is(outer, ErrCodeAPINetwork))
	assert.False(t, Is(nil, ErrCodeAPINetwork))

	coded, ok := As(outer)
	require.True(t, ok)
	assert.Equal(t, ErrCodeAuthRefreshFailed, coded.Code)
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		code ErrorCode
	}{
		{"not authenticated", NewNotAuthenticatedError("resend"), ErrCodeAuthNotAuthenticated},
		{"refresh failed", NewRefreshFailedError(nil), ErrCodeAuthRefreshFailed},
		{"profile invalid", NewProfileInvalidError(nil), ErrCodeSessionProfileInvalid},
		{"malformed", NewMalformedResponseError("/auth/me", nil), ErrCodeAPIMalformed},
		{"network", NewNetworkError("/auth/login", nil), ErrCodeAPINetwork},
		{"store", NewStoreError(ErrCodeStoreWrite, "redis", nil), ErrCodeStoreWrite},
		{"config", NewConfigInvalidError("store.backend"), ErrCodeConfigInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.NotEmpty(t, tt.err.Message)
		})
	}
}
