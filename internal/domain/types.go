package domain

import "time"

// City is a top-level geographic unit, immutable once loaded for a session.
type City struct {
	ID          int     `json:"id"`
	DisplayName string  `json:"display_name"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	State       string  `json:"state,omitempty"`
}

// Station is a monitoring point within a city. Pollutant fields are nil when
// the sensor is absent or stale.
type Station struct {
	ID             int      `json:"id"`
	CityID         int      `json:"city_id"`
	StationName    string   `json:"station_name"`
	Lat            float64  `json:"lat"`
	Lon            float64  `json:"lon"`
	AQI            *float64 `json:"aqi"`
	PM25           *float64 `json:"pm25"`
	PM10           *float64 `json:"pm10"`
	NO2            *float64 `json:"no2"`
	O3             *float64 `json:"o3"`
	CO             *float64 `json:"co"`
	SO2            *float64 `json:"so2"`
	HealthCategory string   `json:"health_category,omitempty"`
}

// LiveUpdate is an ephemeral partial overlay pushed over the live channel,
// keyed by station id and superseded by the next record for the same key.
type LiveUpdate struct {
	StationID      int      `json:"station_id"`
	CityID         int      `json:"city_id"`
	AQI            *float64 `json:"aqi"`
	PM25           *float64 `json:"pm25"`
	PM10           *float64 `json:"pm10"`
	HealthCategory string   `json:"health_category"`
	Temp           *float64 `json:"temp,omitempty"`
}

// CitySummary is the backend's aggregated per-city reading.
type CitySummary struct {
	CityID            int       `json:"city_id"`
	AQI               *float64  `json:"aqi"`
	StationCount      int       `json:"station_count"`
	DominantPollutant string    `json:"dominant_pollutant,omitempty"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// ForecastPoint is one hourly entry of the 24-hour AQI forecast.
type ForecastPoint struct {
	Hour int      `json:"hour"`
	AQI  *float64 `json:"aqi"`
}

// Weather is the per-city weather snapshot, including the hourly AQI forecast.
type Weather struct {
	CityID    int             `json:"city_id"`
	Temp      float64         `json:"temp"`
	Humidity  float64         `json:"humidity"`
	WindSpeed float64         `json:"wind_speed"`
	Forecast  []ForecastPoint `json:"forecast_aqi_24h,omitempty"`
}

// CityCacheEntry holds the per-city snapshot slots. Each slot is nil until
// its own fetch resolves; entries are never evicted for the session.
type CityCacheEntry struct {
	Summary  *CitySummary
	Stations []Station
	Weather  *Weather
}

// HistoryPoint is one aggregated sample from the historical endpoints.
type HistoryPoint struct {
	Period string   `json:"period"` // e.g. "2026-07" or "day"/"night"
	AQI    *float64 `json:"aqi"`
	PM25   *float64 `json:"pm25"`
	PM10   *float64 `json:"pm10"`
}

// YoYComparison compares today's AQI against the same day last year.
type YoYComparison struct {
	CityID    int      `json:"city_id"`
	Current   *float64 `json:"current"`
	Previous  *float64 `json:"previous"`
	ChangePct *float64 `json:"change_pct"`
}

// UserProfile is the server-side profile mirrored in the preference store.
type UserProfile struct {
	ID              string    `json:"id"`
	Email           string    `json:"email"`
	PreferredCityID *int      `json:"preferred_city_id"`
	Language        string    `json:"language"`
	CreatedAt       time.Time `json:"created_at,omitzero"`
	UpdatedAt       time.Time `json:"updated_at,omitzero"`
}

// GamificationSnapshot is the server-computed progression state for a user.
// The engine only caches and displays it; all rules live on the server.
type GamificationSnapshot struct {
	UserID        string   `json:"user_id"`
	Points        int      `json:"points"`
	Level         int      `json:"level"`
	StreakDays    int      `json:"streak_days"`
	TotalCheckins int      `json:"total_checkins"`
	CitiesVisited int      `json:"cities_visited"`
	Badges        []string `json:"badges,omitempty"`
}

// LeaderboardEntry is one row of the global or per-city leaderboard.
type LeaderboardEntry struct {
	UserID string `json:"user_id"`
	Points int    `json:"points"`
	Level  int    `json:"level"`
	Rank   int    `json:"rank"`
}

// Challenge is a server-issued daily challenge.
type Challenge struct {
	ID           int    `json:"id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	PointsReward int    `json:"points_reward"`
	Type         string `json:"challenge_type"`
	Completed    bool   `json:"completed"`
}

// RankingEntry is one row of the cross-city AQI or weather rankings.
type RankingEntry struct {
	CityID      int      `json:"city_id"`
	DisplayName string   `json:"display_name"`
	AQI         *float64 `json:"aqi"`
	Temp        *float64 `json:"temp,omitempty"`
	Rank        int      `json:"rank"`
}
