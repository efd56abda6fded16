// Package api is the typed client for the AQIFY backend REST surface.
// Every call returns a classified error; callers in the engine treat all of
// them as "keep the previous value" — no fetch failure escalates.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/aqify/aqify-edge/internal/domain"
	"github.com/aqify/aqify-edge/internal/observability"
	"github.com/sony/gobreaker"
)

// Sentinel errors classifying fetch failures.
var (
	// ErrUnavailable covers network failures, 5xx responses, rate limiting,
	// and an open circuit breaker.
	ErrUnavailable = errors.New("backend unavailable")
	// ErrNotFound is a definitive 404 for the requested entity.
	ErrNotFound = errors.New("not found")
	// ErrDecode means the backend answered with a body we could not parse.
	ErrDecode = errors.New("malformed response")
)

// Client talks to the AQIFY backend with retries and a circuit breaker.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	retries    int
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewClient creates a backend client. retries is the number of additional
// attempts after the first for retryable failures.
func NewClient(baseURL string, timeout time.Duration, retries int, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "aqify-backend",
			Timeout: 30 * time.Second,
		}),
		retries: retries,
		logger:  logger,
		metrics: metrics,
	}
}

// Cities fetches the canonical city list.
func (c *Client) Cities(ctx context.Context) ([]domain.City, error) {
	var out []domain.City
	err := c.getJSON(ctx, "cities", "/api/aqi/cities", &out)
	return out, err
}

// CitySummary fetches the aggregated per-city reading.
func (c *Client) CitySummary(ctx context.Context, cityID int) (domain.CitySummary, error) {
	var out domain.CitySummary
	err := c.getJSON(ctx, "summary", fmt.Sprintf("/api/aqi/cities/%d/summary", cityID), &out)
	if err == nil && out.CityID == 0 {
		out.CityID = cityID
	}
	return out, err
}

// CityWeather fetches the weather snapshot, including the 24-hour AQI forecast.
func (c *Client) CityWeather(ctx context.Context, cityID int) (domain.Weather, error) {
	var out domain.Weather
	err := c.getJSON(ctx, "weather", fmt.Sprintf("/api/aqi/cities/%d/weather", cityID), &out)
	if err == nil && out.CityID == 0 {
		out.CityID = cityID
	}
	return out, err
}

// CityStations fetches the station list for a city.
func (c *Client) CityStations(ctx context.Context, cityID int) ([]domain.Station, error) {
	var out []domain.Station
	err := c.getJSON(ctx, "stations", fmt.Sprintf("/api/aqi/cities/%d/stations", cityID), &out)
	return out, err
}

// StationHistory fetches the recent reading history for one station.
func (c *Client) StationHistory(ctx context.Context, stationID int) ([]domain.HistoryPoint, error) {
	var out []domain.HistoryPoint
	err := c.getJSON(ctx, "station_history", fmt.Sprintf("/api/aqi/stations/%d/history", stationID), &out)
	return out, err
}

// MonthlyHistory fetches per-month aggregates for a city and year.
func (c *Client) MonthlyHistory(ctx context.Context, cityID, year int) ([]domain.HistoryPoint, error) {
	var out []domain.HistoryPoint
	err := c.getJSON(ctx, "history_monthly", fmt.Sprintf("/api/history/city/%d/monthly?year=%d", cityID, year), &out)
	return out, err
}

// DayNightTrend fetches the day-versus-night aggregate for a city.
func (c *Client) DayNightTrend(ctx context.Context, cityID int) ([]domain.HistoryPoint, error) {
	var out []domain.HistoryPoint
	err := c.getJSON(ctx, "history_daynight", fmt.Sprintf("/api/history/city/%d/daynight", cityID), &out)
	return out, err
}

// RangeStats fetches aggregates for an inclusive date range (YYYY-MM-DD).
func (c *Client) RangeStats(ctx context.Context, cityID int, from, to string) ([]domain.HistoryPoint, error) {
	var out []domain.HistoryPoint
	path := fmt.Sprintf("/api/history/city/%d/range?from=%s&to=%s", cityID, from, to)
	err := c.getJSON(ctx, "history_range", path, &out)
	return out, err
}

// AvailableYears fetches the years with recorded history for a city.
func (c *Client) AvailableYears(ctx context.Context, cityID int) ([]int, error) {
	var out []int
	err := c.getJSON(ctx, "history_years", fmt.Sprintf("/api/history/city/%d/years", cityID), &out)
	return out, err
}

// YoYDayComparison fetches the year-over-year comparison for today.
func (c *Client) YoYDayComparison(ctx context.Context, cityID int) (domain.YoYComparison, error) {
	var out domain.YoYComparison
	err := c.getJSON(ctx, "history_yoy", fmt.Sprintf("/api/history/city/%d/yoy-day", cityID), &out)
	if err == nil && out.CityID == 0 {
		out.CityID = cityID
	}
	return out, err
}

// AQIRankings fetches the cross-city AQI ranking.
func (c *Client) AQIRankings(ctx context.Context) ([]domain.RankingEntry, error) {
	var out []domain.RankingEntry
	err := c.getJSON(ctx, "rankings_aqi", "/api/rankings/aqi", &out)
	return out, err
}

// WeatherRankings fetches the cross-city weather ranking.
func (c *Client) WeatherRankings(ctx context.Context) ([]domain.RankingEntry, error) {
	var out []domain.RankingEntry
	err := c.getJSON(ctx, "rankings_weather", "/api/rankings/weather", &out)
	return out, err
}

// GamificationStats fetches the server-computed progression state for a user.
func (c *Client) GamificationStats(ctx context.Context, userID string) (domain.GamificationSnapshot, error) {
	var out domain.GamificationSnapshot
	err := c.getJSON(ctx, "gamification_stats", "/api/gamification/stats/"+userID, &out)
	return out, err
}

// Leaderboard fetches the global leaderboard.
func (c *Client) Leaderboard(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	var out []domain.LeaderboardEntry
	err := c.getJSON(ctx, "leaderboard", fmt.Sprintf("/api/gamification/leaderboard?limit=%d", limit), &out)
	return out, err
}

// CityLeaderboard fetches the per-city leaderboard.
func (c *Client) CityLeaderboard(ctx context.Context, cityID, limit int) ([]domain.LeaderboardEntry, error) {
	var out []domain.LeaderboardEntry
	path := fmt.Sprintf("/api/gamification/leaderboard/city/%d?limit=%d", cityID, limit)
	err := c.getJSON(ctx, "leaderboard_city", path, &out)
	return out, err
}

// CheckIn records a daily check-in and returns the updated snapshot.
func (c *Client) CheckIn(ctx context.Context, userID string, cityID int) (domain.GamificationSnapshot, error) {
	body := map[string]any{"user_id": userID, "city_id": cityID}
	var out domain.GamificationSnapshot
	err := c.sendJSON(ctx, http.MethodPost, "checkin", "/api/gamification/checkin", body, &out)
	return out, err
}

// Challenges fetches today's challenges with the user's completion state.
func (c *Client) Challenges(ctx context.Context, userID string) ([]domain.Challenge, error) {
	var out []domain.Challenge
	err := c.getJSON(ctx, "challenges", "/api/gamification/challenges?user_id="+userID, &out)
	return out, err
}

// CompleteChallenge marks a challenge complete and returns the updated snapshot.
func (c *Client) CompleteChallenge(ctx context.Context, challengeID int, userID string) (domain.GamificationSnapshot, error) {
	body := map[string]any{"user_id": userID}
	var out domain.GamificationSnapshot
	path := fmt.Sprintf("/api/gamification/challenges/%d/complete", challengeID)
	err := c.sendJSON(ctx, http.MethodPost, "challenge_complete", path, body, &out)
	return out, err
}

// CreateProfile creates (or returns the existing) server-side profile.
func (c *Client) CreateProfile(ctx context.Context, profile domain.UserProfile) (domain.UserProfile, error) {
	var out domain.UserProfile
	err := c.sendJSON(ctx, http.MethodPost, "profile_create", "/api/users/profile", profile, &out)
	return out, err
}

// Profile fetches a profile by user id.
func (c *Client) Profile(ctx context.Context, userID string) (domain.UserProfile, error) {
	var out domain.UserProfile
	err := c.getJSON(ctx, "profile", "/api/users/profile/"+userID, &out)
	return out, err
}

// ProfileUpdate carries the mutable profile fields; nil fields are left unchanged.
type ProfileUpdate struct {
	PreferredCityID *int    `json:"preferred_city_id,omitempty"`
	Language        *string `json:"language,omitempty"`
}

// UpdateProfile applies a partial profile update.
func (c *Client) UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (domain.UserProfile, error) {
	var out domain.UserProfile
	err := c.sendJSON(ctx, http.MethodPut, "profile_update", "/api/users/profile/"+userID, update, &out)
	return out, err
}

func (c *Client) getJSON(ctx context.Context, endpoint, path string, out any) error {
	return c.do(ctx, endpoint, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	}, out)
}

func (c *Client) sendJSON(ctx context.Context, method, endpoint, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%w: encode request: %v", ErrDecode, err)
	}
	return c.do(ctx, endpoint, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}, out)
}

// do executes the request through the circuit breaker with bounded retries
// and exponential backoff, then decodes the JSON body into out. Mutating
// requests are built fresh per attempt so the body reader rewinds.
func (c *Client) do(ctx context.Context, endpoint string, buildRequest func() (*http.Request, error), out any) error {
	start := time.Now()
	err := c.doWithRetry(ctx, buildRequest, out)
	c.metrics.FetchDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())

	if err != nil {
		c.metrics.FetchRequests.WithLabelValues(endpoint, "error").Inc()
		c.logger.Debug("backend fetch failed", "endpoint", endpoint, "error", err)
		return err
	}
	c.metrics.FetchRequests.WithLabelValues(endpoint, "success").Inc()
	return nil
}

func (c *Client) doWithRetry(ctx context.Context, buildRequest func() (*http.Request, error), out any) error {
	backoff := 200 * time.Millisecond
	const maxBackoff = 2 * time.Second

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
		}

		req, err := buildRequest()
		if err != nil {
			return fmt.Errorf("%w: build request: %v", ErrUnavailable, err)
		}

		err = c.attempt(req, out)
		if err == nil {
			return nil
		}
		// Only transport-level failures are worth retrying.
		if !errors.Is(err, ErrUnavailable) {
			return err
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return err
		}
		lastErr = err

		if attempt < c.retries {
			if !sleepWithContext(ctx, backoff) {
				return fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
			}
			backoff = min(backoff*2, maxBackoff)
		}
	}
	return lastErr
}

func (c *Client) attempt(req *http.Request, out any) error {
	result, err := c.breaker.Execute(func() (any, error) {
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return nil, ErrNotFound
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			io.Copy(io.Discard, resp.Body) //nolint:errcheck
			return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return nil, fmt.Errorf("%w: status %d: %s", ErrDecode, resp.StatusCode, body)
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return body, nil
	})
	if err != nil {
		// Breaker rejections count as unavailability, not a new error class.
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		return err
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(result.([]byte), out); err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return nil
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-domain.Clock().After(d):
		return true
	}
}
