package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters and gauges for the sync engine.
type Metrics struct {
	LiveUpdatesApplied  prometheus.Counter
	LiveUpdatesOrphaned prometheus.Counter
	ChannelConnects     prometheus.Counter
	ChannelDisconnects  prometheus.Counter
	ChannelConnected    prometheus.Gauge

	// Backend fetch metrics.
	FetchRequests *prometheus.CounterVec // labels: endpoint, outcome={success,error}
	FetchDuration *prometheus.HistogramVec

	// Geo-resolution metrics.
	GeoResolutions *prometheus.CounterVec // labels: outcome={resolved,fallback}

	// Preference store: 1 when durable writes have been disabled for the session.
	PrefsMemoryOnly prometheus.Gauge

	// Analytics TTL cache lookups.
	AnalyticsCache *prometheus.CounterVec // labels: result={hit,miss}
}

// NewMetrics creates and registers all engine metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		LiveUpdatesApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "aqify_edge",
			Name:      "live_updates_applied_total",
			Help:      "Total live station updates applied to the shared state.",
		}),
		LiveUpdatesOrphaned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "aqify_edge",
			Name:      "live_updates_orphaned_total",
			Help:      "Live updates received for stations not present in any loaded station list.",
		}),
		ChannelConnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "aqify_edge",
			Name:      "channel_connects_total",
			Help:      "Successful live channel connections, including reconnects.",
		}),
		ChannelDisconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "aqify_edge",
			Name:      "channel_disconnects_total",
			Help:      "Live channel disconnections, intentional or not.",
		}),
		ChannelConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "aqify_edge",
			Name:      "channel_connected",
			Help:      "1 while the live channel is connected, 0 otherwise.",
		}),
		FetchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aqify_edge",
			Name:      "fetch_requests_total",
			Help:      "Backend fetches by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "aqify_edge",
			Name:      "fetch_duration_seconds",
			Help:      "Backend fetch duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"endpoint"}),
		GeoResolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aqify_edge",
			Name:      "geo_resolutions_total",
			Help:      "Geo-resolution attempts by outcome.",
		}, []string{"outcome"}),
		PrefsMemoryOnly: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "aqify_edge",
			Name:      "prefs_memory_only",
			Help:      "1 when preference persistence has fallen back to memory-only.",
		}),
		AnalyticsCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aqify_edge",
			Name:      "analytics_cache_total",
			Help:      "Analytics cache lookups by result.",
		}, []string{"result"}),
	}

	prometheus.MustRegister(
		m.LiveUpdatesApplied,
		m.LiveUpdatesOrphaned,
		m.ChannelConnects,
		m.ChannelDisconnects,
		m.ChannelConnected,
		m.FetchRequests,
		m.FetchDuration,
		m.GeoResolutions,
		m.PrefsMemoryOnly,
		m.AnalyticsCache,
	)

	return m
}

// NewMetricsForTesting creates Metrics without registering them, so tests can
// construct engines repeatedly without "already registered" panics.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		LiveUpdatesApplied:  prometheus.NewCounter(prometheus.CounterOpts{Namespace: "aqify_edge", Name: "live_updates_applied_total"}),
		LiveUpdatesOrphaned: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "aqify_edge", Name: "live_updates_orphaned_total"}),
		ChannelConnects:     prometheus.NewCounter(prometheus.CounterOpts{Namespace: "aqify_edge", Name: "channel_connects_total"}),
		ChannelDisconnects:  prometheus.NewCounter(prometheus.CounterOpts{Namespace: "aqify_edge", Name: "channel_disconnects_total"}),
		ChannelConnected:    prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "aqify_edge", Name: "channel_connected"}),
		FetchRequests:       prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "aqify_edge", Name: "fetch_requests_total"}, []string{"endpoint", "outcome"}),
		FetchDuration:       prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: "aqify_edge", Name: "fetch_duration_seconds"}, []string{"endpoint"}),
		GeoResolutions:      prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "aqify_edge", Name: "geo_resolutions_total"}, []string{"outcome"}),
		PrefsMemoryOnly:     prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "aqify_edge", Name: "prefs_memory_only"}),
		AnalyticsCache:      prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "aqify_edge", Name: "analytics_cache_total"}, []string{"result"}),
	}
}
