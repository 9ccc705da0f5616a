package log

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/tenderdesk/internal/errors"
)

func newBufferLogger(buf *bytes.Buffer, level Level) *Logger {
	return New(Config{Level: level, Format: FormatJSON, Output: NewOutput(buf), ServiceName: "test"})
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestLoggerWritesServiceAndComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf, LevelDebug).Component("account")

	logger.Info("login succeeded", "verified", true)

	entry := decodeLine(t, &buf)
	assert.Equal(t, "login succeeded", entry["msg"])
	assert.Equal(t, "test", entry["service"])
	assert.Equal(t, "account", entry["component"])
	assert.Equal(t, true, entry["verified"])
}

func TestLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf, LevelWarn)

	logger.Debug("hidden")
	logger.Info("hidden")
	assert.Zero(t, buf.Len())
	assert.False(t, logger.Enabled(context.Background(), LevelInfo))

	logger.Warn("shown")
	assert.NotZero(t, buf.Len())
}

func TestWithErrorExpandsCodedErrors(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf, LevelInfo)

	err := errors.NewRefreshFailedError(fmt.Errorf("status 401"))
	logger.WithError(fmt.Errorf("wrapped: %w", err)).Error("refresh")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "AUTH-002", entry["error_code"])
	assert.Equal(t, "status 401", entry["cause"])
	assert.NotNil(t, entry["suggestions"])
}

func TestWithErrorPlainError(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf, LevelInfo)

	logger.WithError(fmt.Errorf("boom")).Error("failed")
	assert.Equal(t, "boom", decodeLine(t, &buf)["error"])

	assert.Same(t, logger, logger.WithError(nil))
}

func TestContextRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf, LevelInfo)

	ctx := ContextWithRequestID(context.Background(), "req-123")
	assert.Equal(t, "req-123", RequestID(ctx))
	assert.Empty(t, RequestID(context.Background()))

	logger.InfoContext(ctx, "exchange")
	assert.Equal(t, "req-123", decodeLine(t, &buf)["request_id"])
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "****", Redact("abc"))
	assert.Equal(t, "eyJh****", Redact("eyJhbGciOiJIUzI1NiJ9"))
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"Warning", LevelWarn, false},
		{"error", LevelError, false},
		{"verbose", LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLevelUnmarshalText(t *testing.T) {
	var l Level
	require.NoError(t, l.UnmarshalText([]byte("debug")))
	assert.Equal(t, LevelDebug, l)
	assert.Error(t, l.UnmarshalText([]byte("loud")))
}

func TestParseFormatAndOutput(t *testing.T) {
	assert.Equal(t, FormatText, ParseFormat("console"))
	assert.Equal(t, FormatJSON, ParseFormat("json"))
	assert.Equal(t, "text", FormatText.String())

	assert.NotNil(t, ParseOutput("stdout").Writer())
	assert.NotNil(t, ParseOutput("stderr").Writer())
	assert.NotNil(t, ParseOutput("discard").Writer())
}

func TestDefaultLogger(t *testing.T) {
	original := defaultLogger.Load()
	t.Cleanup(func() { defaultLogger.Store(original) })

	defaultLogger.Store(nil)
	first := DefaultLogger()
	require.NotNil(t, first)
	assert.Same(t, first, DefaultLogger())

	custom := Discard()
	SetDefaultLogger(custom)
	assert.Same(t, custom, DefaultLogger())
}
