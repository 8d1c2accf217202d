package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), "level %q", in)
	}
}

func TestNewHandler_JSONAndLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf, "warn", "json"))

	logger.Info("dropped")
	logger.Warn("kept", "dataset_id", "abc")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "kept", entry["msg"])
	assert.Equal(t, "abc", entry["dataset_id"])
}

func TestFromContext_CarriesLoggerAndRequestID(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(NewHandler(&buf, "info", "text")).With("job_id", "j1")

	ctx := NewContext(context.Background(), base)
	ctx = context.WithValue(ctx, middleware.RequestIDKey, "req-42")

	WithFields(ctx, "dataset_id", "d1").Info("generation started")

	out := buf.String()
	assert.Contains(t, out, "job_id=j1")
	assert.Contains(t, out, "dataset_id=d1")
	assert.Contains(t, out, "request_id=req-42")
}

func TestFromContext_DefaultWithoutLogger(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))
}
