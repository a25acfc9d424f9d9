package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/amirphl/estate-registry/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewJSONToStdout(t *testing.T) {
	var buf bytes.Buffer
	log, err := newWithStdout(config.LoggingConfig{Level: "warn", Format: "json", Output: "stdout"}, "estate-registry", &buf)
	require.NoError(t, err)

	log.Info("dropped")
	log.Warn("allocation retried", zap.Uint("company_id", 3), zap.String("kind", "client"))
	require.NoError(t, log.Sync())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "allocation retried", entry["msg"])
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "estate-registry", entry["service_name"])
	assert.Equal(t, "client", entry["kind"])
	assert.Contains(t, entry, "timestamp")
}

func TestNewUnknownLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	log, err := newWithStdout(config.LoggingConfig{Level: "loud"}, "", &buf)
	require.NoError(t, err)

	log.Debug("hidden")
	log.Info("shown")
	require.NoError(t, log.Sync())

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestNewWritesRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	var buf bytes.Buffer
	log, err := newWithStdout(config.LoggingConfig{Level: "info", Output: "both", FilePath: path, MaxSize: 1}, "", &buf)
	require.NoError(t, err)

	log.Info("counter backfilled")
	_ = log.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "counter backfilled")
	assert.Contains(t, buf.String(), "counter backfilled")
}
