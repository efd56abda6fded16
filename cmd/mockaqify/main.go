// Command mockaqify runs a self-contained mock of the AQIFY backend for local
// development: the REST endpoints the sync engine reads, plus a websocket
// feed that pushes randomized aqi_update events. It serves a fixed set of
// Indian metros so nearest-city resolution has something to chew on.
//
// Usage:
//
//	go run ./cmd/mockaqify -addr :8000 -push-interval 2s
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/aqify/aqify-edge/internal/domain"
	"github.com/gorilla/websocket"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	addr := flag.String("addr", ":8000", "listen address")
	pushInterval := flag.Duration("push-interval", 2*time.Second, "interval between live pushes")
	flag.Parse()

	world := newMockWorld()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/aqi/cities", world.handleCities)
	mux.HandleFunc("GET /api/aqi/cities/{id}/summary", world.handleSummary)
	mux.HandleFunc("GET /api/aqi/cities/{id}/weather", world.handleWeather)
	mux.HandleFunc("GET /api/aqi/cities/{id}/stations", world.handleStations)
	mux.HandleFunc("GET /ws/live", world.handleLive(*pushInterval))

	log.Printf("mock AQIFY backend listening on %s (%d cities, %d stations)",
		*addr, len(world.cities), len(world.stations))
	return http.ListenAndServe(*addr, mux)
}

type mockWorld struct {
	cities   []domain.City
	stations []domain.Station
}

func newMockWorld() *mockWorld {
	w := &mockWorld{
		cities: []domain.City{
			{ID: 1, DisplayName: "Delhi", Lat: 28.6139, Lon: 77.2090, State: "DL"},
			{ID: 2, DisplayName: "Mumbai", Lat: 19.0760, Lon: 72.8777, State: "MH"},
			{ID: 3, DisplayName: "Bengaluru", Lat: 12.9716, Lon: 77.5946, State: "KA"},
			{ID: 4, DisplayName: "Kolkata", Lat: 22.5726, Lon: 88.3639, State: "WB"},
			{ID: 5, DisplayName: "Chennai", Lat: 13.0827, Lon: 80.2707, State: "TN"},
		},
	}

	names := []string{"Central", "North", "Industrial", "Riverside"}
	id := 100
	for _, c := range w.cities {
		for i, n := range names {
			aqi := float64(40 + rand.Intn(260))
			pm25 := aqi * 0.6
			pm10 := aqi * 0.9
			w.stations = append(w.stations, domain.Station{
				ID:             id,
				CityID:         c.ID,
				StationName:    fmt.Sprintf("%s %s", c.DisplayName, n),
				Lat:            c.Lat + float64(i)*0.02,
				Lon:            c.Lon + float64(i)*0.02,
				AQI:            &aqi,
				PM25:           &pm25,
				PM10:           &pm10,
				HealthCategory: domain.ClassifyAQI(&aqi),
			})
			id++
		}
	}
	return w
}

func (w *mockWorld) handleCities(rw http.ResponseWriter, _ *http.Request) {
	writeJSON(rw, w.cities)
}

func (w *mockWorld) handleSummary(rw http.ResponseWriter, r *http.Request) {
	cityID, ok := w.cityID(rw, r)
	if !ok {
		return
	}

	var sum float64
	var count int
	for _, st := range w.stations {
		if st.CityID == cityID && st.AQI != nil {
			sum += *st.AQI
			count++
		}
	}
	avg := sum / float64(count)
	writeJSON(rw, domain.CitySummary{
		CityID:            cityID,
		AQI:               &avg,
		StationCount:      count,
		DominantPollutant: "pm25",
		UpdatedAt:         time.Now().UTC(),
	})
}

func (w *mockWorld) handleWeather(rw http.ResponseWriter, r *http.Request) {
	cityID, ok := w.cityID(rw, r)
	if !ok {
		return
	}

	forecast := make([]domain.ForecastPoint, 24)
	for h := range forecast {
		aqi := float64(60 + rand.Intn(180))
		forecast[h] = domain.ForecastPoint{Hour: h, AQI: &aqi}
	}
	writeJSON(rw, domain.Weather{
		CityID:    cityID,
		Temp:      22 + rand.Float64()*16,
		Humidity:  30 + rand.Float64()*50,
		WindSpeed: rand.Float64() * 20,
		Forecast:  forecast,
	})
}

func (w *mockWorld) handleStations(rw http.ResponseWriter, r *http.Request) {
	cityID, ok := w.cityID(rw, r)
	if !ok {
		return
	}

	var out []domain.Station
	for _, st := range w.stations {
		if st.CityID == cityID {
			out = append(out, st)
		}
	}
	writeJSON(rw, out)
}

// handleLive upgrades the connection and pushes a randomized aqi_update for a
// random station on every tick until the client goes away.
func (w *mockWorld) handleLive(interval time.Duration) http.HandlerFunc {
	var upgrader websocket.Upgrader
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		log.Printf("live client connected: %s", r.RemoteAddr)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for range ticker.C {
			st := w.stations[rand.Intn(len(w.stations))]
			aqi := float64(40 + rand.Intn(260))
			pm25 := aqi * 0.6
			pm10 := aqi * 0.9
			update := domain.LiveUpdate{
				StationID:      st.ID,
				CityID:         st.CityID,
				AQI:            &aqi,
				PM25:           &pm25,
				PM10:           &pm10,
				HealthCategory: domain.ClassifyAQI(&aqi),
			}

			data, err := json.Marshal(update)
			if err != nil {
				log.Printf("marshal live update: %v", err)
				continue
			}
			frame := map[string]any{"event": "aqi_update", "data": json.RawMessage(data)}
			if err := conn.WriteJSON(frame); err != nil {
				log.Printf("live client gone: %s", r.RemoteAddr)
				return
			}
		}
	}
}

func (w *mockWorld) cityID(rw http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		http.Error(rw, "bad city id", http.StatusBadRequest)
		return 0, false
	}
	for _, c := range w.cities {
		if c.ID == id {
			return id, true
		}
	}
	http.Error(rw, "unknown city", http.StatusNotFound)
	return 0, false
}

func writeJSON(rw http.ResponseWriter, v any) {
	rw.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(rw).Encode(v); err != nil {
		log.Printf("encode response: %v", err)
	}
}
