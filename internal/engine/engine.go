// Package engine is the synchronization facade: one state container holding
// the city list, per-city snapshot cache, live-update overlay, preference
// store, and the single live channel handle. All reads and writes go through
// it, and every substructure it hands out is a copy.
package engine

import (
	"context"
	"log/slog"
	"sync"

	"github.com/aqify/aqify-edge/internal/domain"
	"github.com/aqify/aqify-edge/internal/geo"
	"github.com/aqify/aqify-edge/internal/observability"
	"github.com/aqify/aqify-edge/internal/prefs"
)

// Backend is the slice of the API client the engine drives directly. The
// analytics and gamification surfaces are read by frontends on their own.
type Backend interface {
	Cities(ctx context.Context) ([]domain.City, error)
	CitySummary(ctx context.Context, cityID int) (domain.CitySummary, error)
	CityWeather(ctx context.Context, cityID int) (domain.Weather, error)
	CityStations(ctx context.Context, cityID int) ([]domain.Station, error)
}

// Channel is the live-channel handle the engine opens and closes.
type Channel interface {
	Open(ctx context.Context)
	Close()
	Connected() bool
}

// Engine is the process-wide state container. Mutations are serialized with
// the mutex; merged station views are recomputed on every read rather than
// stored.
type Engine struct {
	backend  Backend
	store    *prefs.Store
	resolver *geo.Resolver
	channel  Channel
	logger   *slog.Logger
	metrics  *observability.Metrics

	mu           sync.RWMutex
	runCtx       context.Context
	cities       []domain.City
	citiesLoaded bool
	cache        map[int]*domain.CityCacheEntry
	live         map[int]domain.LiveUpdate
	manualPicker bool
}

// New creates an Engine. Attach the live channel with AttachChannel before
// calling Start; the channel needs the engine as its sink, so the two are
// wired in two steps.
func New(backend Backend, store *prefs.Store, resolver *geo.Resolver, logger *slog.Logger, metrics *observability.Metrics) *Engine {
	return &Engine{
		backend:  backend,
		store:    store,
		resolver: resolver,
		logger:   logger,
		metrics:  metrics,
		runCtx:   context.Background(),
		cache:    make(map[int]*domain.CityCacheEntry),
		live:     make(map[int]domain.LiveUpdate),
	}
}

// AttachChannel hands the engine its live channel handle.
func (e *Engine) AttachChannel(ch Channel) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.channel = ch
}

// Start brings the engine up: open the live channel, fetch the city list
// once, then either restore the persisted selection or run geo-resolution.
// Failures are absorbed; a failed city fetch leaves the engine not ready and
// every other surface still working.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	e.runCtx = ctx
	ch := e.channel
	e.mu.Unlock()

	if ch != nil {
		ch.Open(ctx)
	}

	cities, err := e.backend.Cities(ctx)
	if err != nil {
		e.logger.Warn("city list fetch failed, engine not ready", "error", err)
		return
	}

	e.mu.Lock()
	e.cities = cities
	e.citiesLoaded = true
	e.mu.Unlock()
	e.logger.Info("city list loaded", "cities", len(cities))

	if id := e.store.SelectedCityID(); id != nil {
		e.logger.Info("restoring persisted selection", "city_id", *id)
		e.SelectCity(*id)
		return
	}

	out, fired := e.resolver.Resolve(ctx, cities)
	if !fired {
		return
	}
	switch {
	case out.CityID != nil:
		e.SelectCity(*out.CityID)
	case out.ManualPicker:
		e.mu.Lock()
		e.manualPicker = true
		e.mu.Unlock()
	}
}

// Stop closes the live channel. The rest of the state stays readable.
func (e *Engine) Stop() {
	e.mu.RLock()
	ch := e.channel
	e.mu.RUnlock()
	if ch != nil {
		ch.Close()
	}
}

// Ready reports whether the city list has loaded.
func (e *Engine) Ready() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.citiesLoaded
}

// Connected reports whether the live channel currently has a connection.
func (e *Engine) Connected() bool {
	e.mu.RLock()
	ch := e.channel
	e.mu.RUnlock()
	return ch != nil && ch.Connected()
}

// Cities returns a copy of the loaded city list.
func (e *Engine) Cities() []domain.City {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]domain.City(nil), e.cities...)
}

// SelectedCityID returns the current selection, or nil when none is set. The
// id may reference a city not present in the loaded list; callers treat that
// as pending.
func (e *Engine) SelectedCityID() *int {
	return e.store.SelectedCityID()
}

// ManualPickerNeeded reports whether geo-resolution fell back and the user
// has not picked a city since.
func (e *Engine) ManualPickerNeeded() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.manualPicker
}

// SelectCity records the selection and kicks off the city's three snapshot
// fetches. This is the only path that loads a city; nothing else, including
// live updates or reconnections, triggers fetches.
func (e *Engine) SelectCity(cityID int) {
	id := cityID
	e.store.SetSelectedCity(&id)

	e.mu.Lock()
	e.manualPicker = false
	ctx := e.runCtx
	e.mu.Unlock()

	e.loadCity(ctx, cityID)
}

// loadCity issues the three per-city fetches independently. Each slot is
// written as its own fetch resolves; a failed fetch leaves its slot as-is. A
// late response after the user navigated away still lands in that city's
// entry, which is harmless: slots hold whole snapshots and entries are never
// evicted.
func (e *Engine) loadCity(ctx context.Context, cityID int) {
	go func() {
		summary, err := e.backend.CitySummary(ctx, cityID)
		if err != nil {
			e.logger.Warn("summary fetch failed", "city_id", cityID, "error", err)
			return
		}
		e.mu.Lock()
		e.entryLocked(cityID).Summary = &summary
		e.mu.Unlock()
	}()

	go func() {
		stations, err := e.backend.CityStations(ctx, cityID)
		if err != nil {
			e.logger.Warn("stations fetch failed", "city_id", cityID, "error", err)
			return
		}
		e.mu.Lock()
		e.entryLocked(cityID).Stations = stations
		e.mu.Unlock()
	}()

	go func() {
		weather, err := e.backend.CityWeather(ctx, cityID)
		if err != nil {
			e.logger.Warn("weather fetch failed", "city_id", cityID, "error", err)
			return
		}
		e.mu.Lock()
		e.entryLocked(cityID).Weather = &weather
		e.mu.Unlock()
	}()
}

func (e *Engine) entryLocked(cityID int) *domain.CityCacheEntry {
	entry, ok := e.cache[cityID]
	if !ok {
		entry = &domain.CityCacheEntry{}
		e.cache[cityID] = entry
	}
	return entry
}

// Summary returns a copy of the city's cached summary, or nil while its
// fetch has not resolved.
func (e *Engine) Summary(cityID int) *domain.CitySummary {
	e.mu.RLock()
	defer e.mu.RUnlock()
	entry, ok := e.cache[cityID]
	if !ok || entry.Summary == nil {
		return nil
	}
	s := *entry.Summary
	return &s
}

// Weather returns a copy of the city's cached weather, or nil while its
// fetch has not resolved.
func (e *Engine) Weather(cityID int) *domain.Weather {
	e.mu.RLock()
	defer e.mu.RUnlock()
	entry, ok := e.cache[cityID]
	if !ok || entry.Weather == nil {
		return nil
	}
	w := *entry.Weather
	w.Forecast = append([]domain.ForecastPoint(nil), w.Forecast...)
	return &w
}

// MergedStations returns the city's stations with the live overlay applied:
// a station with a live record gets aqi, pm25, pm10, and health category
// replaced wholesale, everything else comes from the cache. The merge is
// recomputed on every call; nil means the station fetch has not resolved.
func (e *Engine) MergedStations(cityID int) []domain.Station {
	e.mu.RLock()
	defer e.mu.RUnlock()
	entry, ok := e.cache[cityID]
	if !ok || entry.Stations == nil {
		return nil
	}

	merged := make([]domain.Station, len(entry.Stations))
	for i, st := range entry.Stations {
		if u, ok := e.live[st.ID]; ok {
			merged[i] = domain.MergeStation(st, &u)
		} else {
			merged[i] = st
		}
	}
	return merged
}

// ApplyLiveUpdate replaces the live record for the update's station id. The
// newest arrival wins regardless of content; records for stations not in any
// loaded station list are kept and surface once the station appears.
func (e *Engine) ApplyLiveUpdate(u domain.LiveUpdate) {
	e.mu.Lock()
	e.live[u.StationID] = u
	known := e.stationKnownLocked(u.StationID)
	e.mu.Unlock()

	e.metrics.LiveUpdatesApplied.Inc()
	if !known {
		e.metrics.LiveUpdatesOrphaned.Inc()
	}
}

// DropLiveUpdates discards the live overlay. The channel calls this on every
// disconnect; readers fall back to cached snapshots until fresh pushes arrive.
func (e *Engine) DropLiveUpdates() {
	e.mu.Lock()
	e.live = make(map[int]domain.LiveUpdate)
	e.mu.Unlock()
}

func (e *Engine) stationKnownLocked(stationID int) bool {
	for _, entry := range e.cache {
		for _, st := range entry.Stations {
			if st.ID == stationID {
				return true
			}
		}
	}
	return false
}

// Preference surface. The store already serializes and persists; the engine
// just keeps the facade complete so frontends have one entry point.

func (e *Engine) Theme() string         { return e.store.Theme() }
func (e *Engine) SetTheme(theme string) { e.store.SetTheme(theme) }

func (e *Engine) Language() string        { return e.store.Language() }
func (e *Engine) SetLanguage(lang string) { e.store.SetLanguage(lang) }

func (e *Engine) Profile() *domain.UserProfile     { return e.store.UserProfile() }
func (e *Engine) SetProfile(p *domain.UserProfile) { e.store.SetUserProfile(p) }

func (e *Engine) Gamification() *domain.GamificationSnapshot {
	return e.store.Gamification()
}
func (e *Engine) SetGamification(g *domain.GamificationSnapshot) { e.store.SetGamification(g) }
