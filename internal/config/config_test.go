package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8000", cfg.BaseURL)
	assert.Equal(t, "ws://localhost:8000/ws/live", cfg.WSURL)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "aqify-prefs.json", cfg.PrefsPath)
	assert.Equal(t, 8*time.Second, cfg.GeoTimeout)
	assert.Equal(t, "http://ip-api.com/json", cfg.GeoProviderURL)
	assert.Equal(t, 10*time.Second, cfg.APITimeout)
	assert.Equal(t, 2, cfg.APIRetries)
	assert.Equal(t, 60*time.Second, cfg.AnalyticsTTL)
	assert.Equal(t, 1*time.Second, cfg.ReconnectMinBackoff)
	assert.Equal(t, 30*time.Second, cfg.ReconnectMaxBackoff)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("AQIFY_BASE_URL", "https://api.aqify.example")
	t.Setenv("AQIFY_WS_URL", "wss://api.aqify.example/ws/live")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("PREFS_PATH", "/var/lib/aqify/prefs.json")
	t.Setenv("GEO_TIMEOUT", "3s")
	t.Setenv("GEO_PROVIDER_URL", "https://geoip.internal/json")
	t.Setenv("API_TIMEOUT", "5s")
	t.Setenv("API_RETRIES", "4")
	t.Setenv("ANALYTICS_CACHE_TTL", "5m")
	t.Setenv("RECONNECT_MIN_BACKOFF", "500ms")
	t.Setenv("RECONNECT_MAX_BACKOFF", "1m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://api.aqify.example", cfg.BaseURL)
	assert.Equal(t, "wss://api.aqify.example/ws/live", cfg.WSURL)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "/var/lib/aqify/prefs.json", cfg.PrefsPath)
	assert.Equal(t, 3*time.Second, cfg.GeoTimeout)
	assert.Equal(t, "https://geoip.internal/json", cfg.GeoProviderURL)
	assert.Equal(t, 5*time.Second, cfg.APITimeout)
	assert.Equal(t, 4, cfg.APIRetries)
	assert.Equal(t, 5*time.Minute, cfg.AnalyticsTTL)
	assert.Equal(t, 500*time.Millisecond, cfg.ReconnectMinBackoff)
	assert.Equal(t, 1*time.Minute, cfg.ReconnectMaxBackoff)
}

func TestLoad_InvalidShutdownTimeout(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestLoad_NegativeGeoTimeout(t *testing.T) {
	t.Setenv("GEO_TIMEOUT", "-1s")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GEO_TIMEOUT")
}

func TestLoad_InvalidBaseURL(t *testing.T) {
	t.Setenv("AQIFY_BASE_URL", "not a url")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AQIFY_BASE_URL")
}

func TestLoad_WSURLRequiresWSScheme(t *testing.T) {
	t.Setenv("AQIFY_WS_URL", "http://localhost:8000/ws/live")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AQIFY_WS_URL")
}

func TestLoad_InvalidGeoProviderURL(t *testing.T) {
	t.Setenv("GEO_PROVIDER_URL", "ftp://geoip.internal")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GEO_PROVIDER_URL")
}

func TestLoad_InvalidRetries(t *testing.T) {
	t.Setenv("API_RETRIES", "-1")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API_RETRIES")
}

func TestLoad_BackoffBoundsOrdered(t *testing.T) {
	t.Setenv("RECONNECT_MIN_BACKOFF", "10s")
	t.Setenv("RECONNECT_MAX_BACKOFF", "1s")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RECONNECT_MAX_BACKOFF")
}
