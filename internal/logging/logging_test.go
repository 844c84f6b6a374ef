package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_WritesJSONToFile(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "documind.log")

	logger, cleanup, err := Setup(Config{
		Level:    "debug",
		FilePath: logPath,
	})
	require.NoError(t, err)

	logger.Info("retrieval_complete", slog.Int("results", 7))
	cleanup()

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"retrieval_complete"`)
	assert.Contains(t, string(data), `"results":7`)
}

func TestSetup_LevelFiltersDebug(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "documind.log")

	logger, cleanup, err := Setup(Config{
		Level:    "warn",
		FilePath: logPath,
	})
	require.NoError(t, err)

	logger.Debug("noise")
	logger.Warn("keyword_index_empty")
	cleanup()

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "noise")
	assert.Contains(t, string(data), "keyword_index_empty")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseLevel(tt.in), tt.in)
	}
}

func TestRotatingWriter_RotatesAtLimit(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "documind.log")

	// 1MB max; write ~1.5MB to force a rotation.
	w, err := NewRotatingWriter(logPath, 1, 3)
	require.NoError(t, err)

	line := strings.Repeat("x", 1024) + "\n"
	for i := 0; i < 1500; i++ {
		_, err := w.Write([]byte(line))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	_, err = os.Stat(logPath + ".1")
	assert.NoError(t, err, "rotated file should exist")
}
