package geo

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/aqify/aqify-edge/internal/domain"
	"github.com/aqify/aqify-edge/internal/observability"
	"github.com/aqify/aqify-edge/internal/prefs"
)

// Coordinates is a WGS-84 latitude/longitude pair from the device.
type Coordinates struct {
	Lat float64
	Lon float64
}

// LocationProvider performs the one-shot device location query. There is no
// continuous tracking; the engine asks exactly once per session.
type LocationProvider interface {
	Locate(ctx context.Context) (Coordinates, error)
}

// Outcome describes what a resolution attempt decided.
type Outcome struct {
	// CityID is the resolved and persisted selection, or nil.
	CityID *int
	// ManualPicker is true when the caller should surface the manual
	// city-picker instead; the resolver never retries on its own.
	ManualPicker bool
}

// Resolver picks an initial city from the device location, at most once per
// process lifetime. On any failure it falls back to requesting the manual
// picker and leaves the persisted selection untouched.
type Resolver struct {
	provider LocationProvider
	store    *prefs.Store
	logger   *slog.Logger
	metrics  *observability.Metrics
	timeout  time.Duration

	attempted atomic.Bool
}

// NewResolver creates a Resolver bounded by the given location timeout.
func NewResolver(provider LocationProvider, store *prefs.Store, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Resolver {
	return &Resolver{
		provider: provider,
		store:    store,
		logger:   logger,
		metrics:  metrics,
		timeout:  timeout,
	}
}

// Resolve runs the resolution flow. fired is false when a previous call
// already consumed the single attempt; the triggering condition may
// re-evaluate any number of times without duplicating location queries.
func (r *Resolver) Resolve(ctx context.Context, cities []domain.City) (out Outcome, fired bool) {
	if !r.attempted.CompareAndSwap(false, true) {
		return Outcome{}, false
	}

	if len(cities) == 0 {
		r.metrics.GeoResolutions.WithLabelValues("fallback").Inc()
		r.logger.Info("geo-resolution skipped: no cities loaded")
		return Outcome{ManualPicker: true}, true
	}

	coords, err := r.locate(ctx)
	if err != nil {
		r.metrics.GeoResolutions.WithLabelValues("fallback").Inc()
		r.logger.Info("geo-resolution failed, requesting manual picker", "error", err)
		return Outcome{ManualPicker: true}, true
	}

	city, ok := NearestCity(coords.Lat, coords.Lon, cities)
	if !ok {
		r.metrics.GeoResolutions.WithLabelValues("fallback").Inc()
		return Outcome{ManualPicker: true}, true
	}

	id := city.ID
	r.store.SetSelectedCity(&id)
	r.metrics.GeoResolutions.WithLabelValues("resolved").Inc()
	r.logger.Info("geo-resolution selected city",
		"city_id", city.ID,
		"city", city.DisplayName,
		"lat", coords.Lat,
		"lon", coords.Lon,
	)
	return Outcome{CityID: &id}, true
}

// locate runs the provider query with the configured timeout. The timeout
// rides the package clock so tests can advance it synthetically.
func (r *Resolver) locate(ctx context.Context) (Coordinates, error) {
	queryCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		coords Coordinates
		err    error
	}
	ch := make(chan result, 1)
	go func() {
		c, err := r.provider.Locate(queryCtx)
		ch <- result{c, err}
	}()

	select {
	case res := <-ch:
		return res.coords, res.err
	case <-domain.Clock().After(r.timeout):
		return Coordinates{}, context.DeadlineExceeded
	case <-ctx.Done():
		return Coordinates{}, ctx.Err()
	}
}
