// Command aqify-smoke runs end-to-end consistency checks against a running
// AQIFY backend: endpoint reachability, payload shape, cross-endpoint
// agreement between the city list, per-city snapshots, and rankings, and
// optionally the live websocket feed. It exits non-zero when any phase fails,
// so it slots into CI against a staging backend or the mockaqify server.
//
// Usage:
//
//	go run ./cmd/aqify-smoke -base-url http://localhost:8000 -ws-url ws://localhost:8000/ws/live
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/aqify/aqify-edge/internal/api"
	"github.com/aqify/aqify-edge/internal/domain"
	"github.com/aqify/aqify-edge/internal/observability"
	"github.com/gorilla/websocket"
)

// phase tracks pass/fail for one validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func (p *phase) report() {
	if p.passed() {
		fmt.Printf("PASS  %s\n", p.name)
		return
	}
	fmt.Printf("FAIL  %s\n", p.name)
	for _, e := range p.errors {
		fmt.Printf("      - %s\n", e)
	}
}

func main() {
	baseURL := flag.String("base-url", "http://localhost:8000", "backend REST base URL")
	wsURL := flag.String("ws-url", "", "live websocket URL (skip live check when empty)")
	maxCities := flag.Int("max-cities", 3, "how many cities to snapshot-check")
	liveWait := flag.Duration("live-wait", 10*time.Second, "how long to wait for a live event")
	flag.Parse()

	if code := run(*baseURL, *wsURL, *maxCities, *liveWait); code != 0 {
		os.Exit(code)
	}
}

func run(baseURL, wsURL string, maxCities int, liveWait time.Duration) int {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := api.NewClient(baseURL, 10*time.Second, 1, logger, observability.NewMetricsForTesting())

	fmt.Println("=== AQIFY Backend Smoke Check ===")
	fmt.Println()

	cities, cityPhase := checkCities(ctx, client)
	cityPhase.report()

	phases := []*phase{cityPhase}
	if cityPhase.passed() {
		p := checkSnapshots(ctx, client, cities, maxCities)
		p.report()
		phases = append(phases, p)

		p = checkRankings(ctx, client, cities)
		p.report()
		phases = append(phases, p)
	}

	if wsURL != "" {
		p := checkLiveFeed(wsURL, liveWait)
		p.report()
		phases = append(phases, p)
	}

	fmt.Println()
	for _, p := range phases {
		if !p.passed() {
			fmt.Println("RESULT: FAIL")
			return 1
		}
	}
	fmt.Println("RESULT: PASS")
	return 0
}

func checkCities(ctx context.Context, client *api.Client) ([]domain.City, *phase) {
	p := &phase{name: "city list"}

	cities, err := client.Cities(ctx)
	if err != nil {
		p.errorf("fetch cities: %v", err)
		return nil, p
	}
	if len(cities) == 0 {
		p.errorf("city list is empty")
		return nil, p
	}

	seen := map[int]bool{}
	for _, c := range cities {
		if seen[c.ID] {
			p.errorf("duplicate city id %d", c.ID)
		}
		seen[c.ID] = true
		if c.DisplayName == "" {
			p.errorf("city %d has no display name", c.ID)
		}
		if c.Lat < -90 || c.Lat > 90 || c.Lon < -180 || c.Lon > 180 {
			p.errorf("city %d (%s) has implausible coordinates (%g, %g)", c.ID, c.DisplayName, c.Lat, c.Lon)
		}
	}
	return cities, p
}

func checkSnapshots(ctx context.Context, client *api.Client, cities []domain.City, maxCities int) *phase {
	p := &phase{name: "per-city snapshots"}

	for _, c := range cities[:min(maxCities, len(cities))] {
		summary, err := client.CitySummary(ctx, c.ID)
		if err != nil {
			p.errorf("%s: summary: %v", c.DisplayName, err)
		} else if summary.CityID != c.ID {
			p.errorf("%s: summary city_id mismatch: got %d", c.DisplayName, summary.CityID)
		}

		stations, err := client.CityStations(ctx, c.ID)
		if err != nil {
			p.errorf("%s: stations: %v", c.DisplayName, err)
		} else {
			for _, st := range stations {
				if st.CityID != c.ID {
					p.errorf("%s: station %d belongs to city %d", c.DisplayName, st.ID, st.CityID)
				}
				if st.AQI != nil && st.HealthCategory != "" && st.HealthCategory != domain.ClassifyAQI(st.AQI) {
					p.errorf("%s: station %d category %q disagrees with aqi %g",
						c.DisplayName, st.ID, st.HealthCategory, *st.AQI)
				}
			}
		}

		weather, err := client.CityWeather(ctx, c.ID)
		if err != nil {
			p.errorf("%s: weather: %v", c.DisplayName, err)
		} else if len(weather.Forecast) != 0 && len(weather.Forecast) != 24 {
			p.errorf("%s: forecast has %d entries, want 24", c.DisplayName, len(weather.Forecast))
		}
	}
	return p
}

func checkRankings(ctx context.Context, client *api.Client, cities []domain.City) *phase {
	p := &phase{name: "rankings"}

	known := map[int]bool{}
	for _, c := range cities {
		known[c.ID] = true
	}

	rankings, err := client.AQIRankings(ctx)
	if err != nil {
		p.errorf("fetch aqi rankings: %v", err)
		return p
	}
	for _, r := range rankings {
		if !known[r.CityID] {
			p.errorf("ranking references unknown city %d (%s)", r.CityID, r.DisplayName)
		}
	}
	return p
}

func checkLiveFeed(wsURL string, wait time.Duration) *phase {
	p := &phase{name: "live feed"}

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		p.errorf("dial %s: %v", wsURL, err)
		return p
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(wait)) //nolint:errcheck
	for {
		var frame struct {
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
		}
		if err := conn.ReadJSON(&frame); err != nil {
			p.errorf("no aqi_update within %s: %v", wait, err)
			return p
		}
		if frame.Event != "aqi_update" {
			continue
		}
		var update domain.LiveUpdate
		if err := json.Unmarshal(frame.Data, &update); err != nil {
			p.errorf("malformed aqi_update payload: %v", err)
			return p
		}
		if update.StationID == 0 {
			p.errorf("aqi_update carries no station_id")
		}
		return p
	}
}
