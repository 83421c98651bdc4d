package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"diagxml/internal/config"
)

func TestLevel(t *testing.T) {
	tests := []struct {
		name           string
		level          string
		quiet, verbose bool
		want           zapcore.Level
	}{
		{"default", "", false, false, zapcore.WarnLevel},
		{"configured", "INFO", false, false, zapcore.InfoLevel},
		{"verbose", "error", false, true, zapcore.DebugLevel},
		{"quiet wins", "debug", true, true, zapcore.ErrorLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Level(tt.level, tt.quiet, tt.verbose)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := Level("loud", false, false)
	assert.Error(t, err)
}

func TestNewWritesJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "diagxml.log")
	logger, err := New(config.LoggingConfig{Level: "info", File: path}, false, false)
	require.NoError(t, err)

	logger.Info("container decoded", zap.Int("entries", 3))
	logger.Debug("dropped")
	require.NoError(t, Flush(logger))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "container decoded", entry["msg"])
	assert.Equal(t, 3.0, entry["entries"])
	assert.Equal(t, "info", entry["level"])
}
