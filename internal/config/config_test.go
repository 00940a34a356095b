package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "data/rekoda.db", cfg.DBPath)
	assert.Equal(t, "mediainfo", cfg.MediaInfoBin)
	assert.Equal(t, float64(95), cfg.MinVMAF)
	assert.Equal(t, 30*time.Second, cfg.BaseTimeout)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rekoda.yaml")
	yaml := `
port: "9090"
db_path: /var/lib/rekoda/rekoda.db
libraries:
  - /mnt/movies
  - /mnt/shows
min_vmaf: 93
max_workers: 8
base_timeout: 1m
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "/var/lib/rekoda/rekoda.db", cfg.DBPath)
	assert.Equal(t, []string{"/mnt/movies", "/mnt/shows"}, cfg.Libraries)
	assert.Equal(t, float64(93), cfg.MinVMAF)
	assert.Equal(t, 8, cfg.MaxWorkers)
	assert.Equal(t, time.Minute, cfg.BaseTimeout)
	// Untouched fields keep defaults.
	assert.Equal(t, "ab-av1", cfg.AbAv1Bin)
}

func TestEnvOverridesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rekoda.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: \"9090\"\n"), 0644))

	t.Setenv("REKODA_PORT", "7070")
	t.Setenv("REKODA_LIBRARIES", "/a:/b")
	t.Setenv("REKODA_DISPATCH_RATE", "250")
	t.Setenv("REKODA_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.Port)
	assert.Equal(t, []string{"/a", "/b"}, cfg.Libraries)
	assert.Equal(t, float64(250), cfg.DispatchRate)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rekoda.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: [unclosed"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestParseLogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"Warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	for in, want := range cases {
		assert.Equal(t, want, parseLogLevel(in, slog.LevelInfo), in)
	}
	assert.Equal(t, slog.LevelWarn, parseLogLevel("bogus", slog.LevelWarn))
}

func TestSetupLoggerWithWriters(t *testing.T) {
	var stderr, file bytes.Buffer
	logger := SetupLoggerWithWriters(&stderr, &file, slog.LevelInfo)
	logger.Info("hello", "k", "v")

	assert.Contains(t, stderr.String(), "hello")
	assert.Contains(t, file.String(), `"msg":"hello"`)
}
