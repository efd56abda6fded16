package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all engine settings, populated from environment variables.
type Config struct {
	BaseURL string // backend REST base, e.g. http://localhost:8000
	WSURL   string // live update channel endpoint, e.g. ws://localhost:8000/ws/live

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Preference store location on disk.
	PrefsPath string

	// Geo-resolution: how long to wait for a location fix, and the
	// IP-geolocation endpoint the daemon uses as its location provider.
	GeoTimeout     time.Duration
	GeoProviderURL string

	// Outbound REST settings.
	APITimeout   time.Duration
	APIRetries   int
	AnalyticsTTL time.Duration

	// Live channel reconnect backoff bounds.
	ReconnectMinBackoff time.Duration
	ReconnectMaxBackoff time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
// A .env file in the working directory is honored when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	shutdownTimeout, err := parsePositiveDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	geoTimeout, err := parsePositiveDuration("GEO_TIMEOUT", "8s")
	if err != nil {
		return nil, err
	}
	apiTimeout, err := parsePositiveDuration("API_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	analyticsTTL, err := parsePositiveDuration("ANALYTICS_CACHE_TTL", "60s")
	if err != nil {
		return nil, err
	}
	minBackoff, err := parsePositiveDuration("RECONNECT_MIN_BACKOFF", "1s")
	if err != nil {
		return nil, err
	}
	maxBackoff, err := parsePositiveDuration("RECONNECT_MAX_BACKOFF", "30s")
	if err != nil {
		return nil, err
	}
	retries, err := parseRetries()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		BaseURL: envOrDefault("AQIFY_BASE_URL", "http://localhost:8000"),
		WSURL:   envOrDefault("AQIFY_WS_URL", "ws://localhost:8000/ws/live"),

		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		PrefsPath: envOrDefault("PREFS_PATH", "aqify-prefs.json"),

		GeoTimeout:     geoTimeout,
		GeoProviderURL: envOrDefault("GEO_PROVIDER_URL", "http://ip-api.com/json"),

		APITimeout:   apiTimeout,
		APIRetries:   retries,
		AnalyticsTTL: analyticsTTL,

		ReconnectMinBackoff: minBackoff,
		ReconnectMaxBackoff: maxBackoff,
	}

	if err := validateURL("AQIFY_BASE_URL", cfg.BaseURL, "http", "https"); err != nil {
		return nil, err
	}
	if err := validateURL("AQIFY_WS_URL", cfg.WSURL, "ws", "wss"); err != nil {
		return nil, err
	}
	if err := validateURL("GEO_PROVIDER_URL", cfg.GeoProviderURL, "http", "https"); err != nil {
		return nil, err
	}
	if cfg.ReconnectMaxBackoff < cfg.ReconnectMinBackoff {
		return nil, errors.New("RECONNECT_MAX_BACKOFF must be >= RECONNECT_MIN_BACKOFF")
	}

	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseRetries() (int, error) {
	s := envOrDefault("API_RETRIES", "2")
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n > 10 {
		return 0, errors.New("invalid API_RETRIES: must be an integer between 0 and 10")
	}
	return n, nil
}

func validateURL(key, raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return fmt.Errorf("invalid %s: %q", key, raw)
	}
	for _, s := range schemes {
		if u.Scheme == s {
			return nil
		}
	}
	return fmt.Errorf("invalid %s: scheme must be one of %v", key, schemes)
}
