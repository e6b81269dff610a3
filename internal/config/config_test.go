package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{
		"ENVIRONMENT", "LOG_LEVEL", "PORT", "DATASET_PATH", "LAYOUT_PATH",
		"FRAME_CACHE_SIZE", "DATASET_FETCH_TIMEOUT", "SHUTDOWN_TIMEOUT", "CORS_ALLOWED_ORIGINS",
	} {
		t.Setenv(k, "")
	}
}

func TestDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "local", cfg.Environment)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, ":5006", cfg.Addr())
	assert.Equal(t, 64, cfg.FrameCacheSize)
	assert.Equal(t, time.Minute, cfg.FetchTimeout)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Empty(t, cfg.AllowedOrigins)
	assert.Empty(t, cfg.DatasetPath)
}

func TestOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "8080")
	t.Setenv("DATASET_PATH", "https://example.org/department-sr-ao.csv")
	t.Setenv("FRAME_CACHE_SIZE", "8")
	t.Setenv("DATASET_FETCH_TIMEOUT", "90s")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://localhost:5006, https://dash.example.org,")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, "https://example.org/department-sr-ao.csv", cfg.DatasetPath)
	assert.Equal(t, 8, cfg.FrameCacheSize)
	assert.Equal(t, 90*time.Second, cfg.FetchTimeout)
	assert.Equal(t, []string{"http://localhost:5006", "https://dash.example.org"}, cfg.AllowedOrigins)
}

func TestInvalidValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("FRAME_CACHE_SIZE", "-1")
	_, err := FromEnv()
	assert.Error(t, err)

	clearEnv(t)
	t.Setenv("DATASET_FETCH_TIMEOUT", "soon")
	_, err = FromEnv()
	assert.Error(t, err)
}
