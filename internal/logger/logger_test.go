package logger

import (
	"bytes"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
}

func TestInit_JSON(t *testing.T) {
	defer Init("warn", "text", os.Stderr)

	var buf bytes.Buffer
	Init("info", "json", &buf)
	Info("indexed", "chunks", 3)
	Debug("hidden")

	out := buf.String()
	assert.Contains(t, out, `"msg":"indexed"`)
	assert.Contains(t, out, `"chunks":3`)
	assert.NotContains(t, out, "hidden")
}

func TestInit_Text(t *testing.T) {
	defer Init("warn", "text", os.Stderr)

	var buf bytes.Buffer
	Init("debug", "text", &buf)
	Debug("visible", "stage", "chunk")

	assert.Contains(t, buf.String(), "msg=visible")
	assert.Contains(t, buf.String(), "stage=chunk")
}
