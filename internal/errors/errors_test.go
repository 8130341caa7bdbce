package errors

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppErrorUnwrapAndCode(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := NewStorageError(ErrCodeStorageWrite, "could not persist", cause).
		WithContext("key", "resume_agent_discovery_session")

	wrapped := fmt.Errorf("saving: %w", err)

	assert.True(t, HasCode(wrapped, ErrCodeStorageWrite))
	assert.False(t, HasCode(wrapped, ErrCodeStorageRead))
	assert.ErrorIs(t, wrapped, cause)
	assert.Equal(t, "STORAGE_WRITE_FAILED: could not persist (caused by: disk full)", err.Error())
}

func TestRateLimitError(t *testing.T) {
	err := fmt.Errorf("start: %w", &RateLimitError{Endpoint: "/api/optimize/start", RetryAfter: 30 * time.Second})

	rl, ok := AsRateLimit(err)
	require.True(t, ok)
	assert.Equal(t, 30*time.Second, rl.RetryAfter)
	assert.Contains(t, err.Error(), "retry after 30s")

	_, ok = AsRateLimit(fmt.Errorf("plain"))
	assert.False(t, ok)
}

func TestLogErrorExpandsAppError(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, slog.LevelDebug)

	logger.LogError(NewNetworkError(ErrCodeBadStatus, "bad status", nil).WithContext("status_code", 502), "request failed")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "network", entry["error_type"])
	assert.Equal(t, ErrCodeBadStatus, entry["error_code"])
	assert.EqualValues(t, 502, entry["status_code"])
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"info", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", 0, true},
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
