package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupHandlerText(t *testing.T) {
	t.Parallel()

	t.Run("info suppresses debug", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		logger := slog.New(SetupHandlerText("info", &buf))
		logger.Debug("hidden")
		logger.Info("visible")
		out := buf.String()
		assert.NotContains(t, out, "hidden")
		assert.Contains(t, out, "visible")
	})

	t.Run("debug passes debug", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		logger := slog.New(SetupHandlerText("debug", &buf))
		logger.Debug("shown")
		assert.Contains(t, buf.String(), "shown")
	})

	t.Run("error suppresses warn", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		logger := slog.New(SetupHandlerText("error", &buf))
		logger.Warn("hidden")
		logger.Error("boom")
		out := buf.String()
		assert.NotContains(t, out, "hidden")
		assert.Contains(t, out, "boom")
	})
}

func TestSetupHandlerJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(SetupHandlerJSON("warn", &buf))
	logger.Info("hidden")
	logger.Warn("visible", "key", "value")

	out := buf.String()
	require.NotEmpty(t, out)
	assert.NotContains(t, out, "hidden")
	assert.True(t, strings.HasPrefix(strings.TrimSpace(out), "{"))
	assert.Contains(t, out, `"msg":"visible"`)
	assert.Contains(t, out, `"key":"value"`)
}

func TestSetupHandler(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(SetupHandler("json", "info", &buf))
	logger.Info("hello")
	assert.True(t, strings.HasPrefix(strings.TrimSpace(buf.String()), "{"))

	buf.Reset()
	logger = slog.New(SetupHandler("text", "info", &buf))
	logger.Info("hello")
	assert.False(t, strings.HasPrefix(strings.TrimSpace(buf.String()), "{"))
}
