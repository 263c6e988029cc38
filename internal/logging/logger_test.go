package logging

import (
	"bytes"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tangthinker/autobackup/internal/config"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel(" warning "))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestNewJSONHonoursLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(config.LoggingConfig{Level: "warn", Format: "json"}, &buf)

	logger.Info("hidden")
	logger.Warn("shown", "path", "/tmp/x")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
	assert.Contains(t, out, `"path":"/tmp/x"`)
}

func TestInstallRedirectsStdlibLog(t *testing.T) {
	var buf bytes.Buffer
	logger := New(config.LoggingConfig{Format: "text"}, &buf)
	prev := slog.Default()
	logger.Install()
	t.Cleanup(func() {
		slog.SetDefault(prev)
		log.SetOutput(os.Stderr)
		log.SetFlags(log.LstdFlags)
	})

	log.Printf("legacy %d", 3)
	assert.Contains(t, buf.String(), `msg="legacy 3"`)
}

func TestFileOutput(t *testing.T) {
	file := filepath.Join(t.TempDir(), "daemon.log")
	var console bytes.Buffer
	logger := New(config.LoggingConfig{File: file, MaxSize: 1}, &console)

	logger.Info("to both")
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "to both"))
	assert.Contains(t, console.String(), "to both")
}
