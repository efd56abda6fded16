package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// IPLocationProvider implements LocationProvider against an ip-api.com style
// JSON geolocation endpoint. It is the daemon's stand-in for a device GPS
// fix: coarse, but good enough to pick the nearest monitored city.
type IPLocationProvider struct {
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewIPLocationProvider creates a provider querying the given endpoint.
func NewIPLocationProvider(endpoint string, timeout time.Duration, logger *slog.Logger) *IPLocationProvider {
	return &IPLocationProvider{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// Locate performs the one-shot geolocation query.
func (p *IPLocationProvider) Locate(ctx context.Context) (Coordinates, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint, nil)
	if err != nil {
		return Coordinates{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return Coordinates{}, fmt.Errorf("geolocation request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return Coordinates{}, fmt.Errorf("geolocation API error: status %d: %s", resp.StatusCode, body)
	}

	var loc ipapiResponse
	if err := json.NewDecoder(resp.Body).Decode(&loc); err != nil {
		return Coordinates{}, fmt.Errorf("decode response: %w", err)
	}

	if loc.Status != "success" {
		return Coordinates{}, fmt.Errorf("geolocation lookup failed: %s", loc.Message)
	}

	p.logger.Debug("geolocation fix", "lat", loc.Lat, "lon", loc.Lon, "city", loc.City)
	return Coordinates{Lat: loc.Lat, Lon: loc.Lon}, nil
}

// ip-api.com response shape; Status is "success" or "fail".
type ipapiResponse struct {
	Status  string  `json:"status"`
	Message string  `json:"message,omitempty"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	City    string  `json:"city,omitempty"`
}
