package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aqify/aqify-edge/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalytics_CachesRepeatReads(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"period":"2026-07","aqi":120}]`)) //nolint:errcheck
	}))
	defer srv.Close()

	a := NewAnalytics(testClient(srv.URL, 0), time.Minute, observability.NewMetricsForTesting())

	for range 3 {
		points, err := a.MonthlyHistory(context.Background(), 1, 2026)
		require.NoError(t, err)
		require.Len(t, points, 1)
	}
	assert.Equal(t, int64(1), hits.Load())
}

func TestAnalytics_SeparateKeysPerCity(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[]`)) //nolint:errcheck
	}))
	defer srv.Close()

	a := NewAnalytics(testClient(srv.URL, 0), time.Minute, observability.NewMetricsForTesting())

	_, err := a.DayNightTrend(context.Background(), 1)
	require.NoError(t, err)
	_, err = a.DayNightTrend(context.Background(), 2)
	require.NoError(t, err)

	assert.Equal(t, int64(2), hits.Load())
}

func TestAnalytics_ErrorsAreNotCached(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) == 1 {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"city_id":1,"display_name":"Delhi","aqi":80,"rank":1}]`)) //nolint:errcheck
	}))
	defer srv.Close()

	a := NewAnalytics(testClient(srv.URL, 0), time.Minute, observability.NewMetricsForTesting())

	_, err := a.AQIRankings(context.Background())
	require.ErrorIs(t, err, ErrUnavailable)

	rankings, err := a.AQIRankings(context.Background())
	require.NoError(t, err)
	assert.Len(t, rankings, 1)
	assert.Equal(t, int64(2), hits.Load())
}
