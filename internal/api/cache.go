package api

import (
	"context"
	"fmt"
	"time"

	"github.com/aqify/aqify-edge/internal/domain"
	"github.com/aqify/aqify-edge/internal/observability"
	gocache "github.com/patrickmn/go-cache"
)

// Analytics decorates the client's read-mostly analytics endpoints with a TTL
// cache, so dashboards polling history and rankings don't hammer the backend.
// Errors are never cached; a failed fetch is retried on the next read.
type Analytics struct {
	client  *Client
	cache   *gocache.Cache
	metrics *observability.Metrics
}

// NewAnalytics creates the cache decorator with the given entry TTL.
func NewAnalytics(client *Client, ttl time.Duration, metrics *observability.Metrics) *Analytics {
	return &Analytics{
		client:  client,
		cache:   gocache.New(ttl, 2*ttl),
		metrics: metrics,
	}
}

// MonthlyHistory is the cached form of [Client.MonthlyHistory].
func (a *Analytics) MonthlyHistory(ctx context.Context, cityID, year int) ([]domain.HistoryPoint, error) {
	key := fmt.Sprintf("monthly:%d:%d", cityID, year)
	return cached(a, ctx, key, func(ctx context.Context) ([]domain.HistoryPoint, error) {
		return a.client.MonthlyHistory(ctx, cityID, year)
	})
}

// DayNightTrend is the cached form of [Client.DayNightTrend].
func (a *Analytics) DayNightTrend(ctx context.Context, cityID int) ([]domain.HistoryPoint, error) {
	key := fmt.Sprintf("daynight:%d", cityID)
	return cached(a, ctx, key, func(ctx context.Context) ([]domain.HistoryPoint, error) {
		return a.client.DayNightTrend(ctx, cityID)
	})
}

// RangeStats is the cached form of [Client.RangeStats].
func (a *Analytics) RangeStats(ctx context.Context, cityID int, from, to string) ([]domain.HistoryPoint, error) {
	key := fmt.Sprintf("range:%d:%s:%s", cityID, from, to)
	return cached(a, ctx, key, func(ctx context.Context) ([]domain.HistoryPoint, error) {
		return a.client.RangeStats(ctx, cityID, from, to)
	})
}

// AvailableYears is the cached form of [Client.AvailableYears].
func (a *Analytics) AvailableYears(ctx context.Context, cityID int) ([]int, error) {
	key := fmt.Sprintf("years:%d", cityID)
	return cached(a, ctx, key, func(ctx context.Context) ([]int, error) {
		return a.client.AvailableYears(ctx, cityID)
	})
}

// YoYDayComparison is the cached form of [Client.YoYDayComparison].
func (a *Analytics) YoYDayComparison(ctx context.Context, cityID int) (domain.YoYComparison, error) {
	key := fmt.Sprintf("yoy:%d", cityID)
	return cached(a, ctx, key, func(ctx context.Context) (domain.YoYComparison, error) {
		return a.client.YoYDayComparison(ctx, cityID)
	})
}

// AQIRankings is the cached form of [Client.AQIRankings].
func (a *Analytics) AQIRankings(ctx context.Context) ([]domain.RankingEntry, error) {
	return cached(a, ctx, "rankings:aqi", a.client.AQIRankings)
}

// WeatherRankings is the cached form of [Client.WeatherRankings].
func (a *Analytics) WeatherRankings(ctx context.Context) ([]domain.RankingEntry, error) {
	return cached(a, ctx, "rankings:weather", a.client.WeatherRankings)
}

// Leaderboard is the cached form of [Client.Leaderboard].
func (a *Analytics) Leaderboard(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	key := fmt.Sprintf("leaderboard:%d", limit)
	return cached(a, ctx, key, func(ctx context.Context) ([]domain.LeaderboardEntry, error) {
		return a.client.Leaderboard(ctx, limit)
	})
}

// CityLeaderboard is the cached form of [Client.CityLeaderboard].
func (a *Analytics) CityLeaderboard(ctx context.Context, cityID, limit int) ([]domain.LeaderboardEntry, error) {
	key := fmt.Sprintf("leaderboard:city:%d:%d", cityID, limit)
	return cached(a, ctx, key, func(ctx context.Context) ([]domain.LeaderboardEntry, error) {
		return a.client.CityLeaderboard(ctx, cityID, limit)
	})
}

func cached[T any](a *Analytics, ctx context.Context, key string, fetch func(context.Context) (T, error)) (T, error) {
	if v, ok := a.cache.Get(key); ok {
		a.metrics.AnalyticsCache.WithLabelValues("hit").Inc()
		return v.(T), nil
	}
	a.metrics.AnalyticsCache.WithLabelValues("miss").Inc()

	v, err := fetch(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	a.cache.SetDefault(key, v)
	return v, nil
}
