// Package geo resolves an initial city selection from the device location.
// Nearest-city search is a pure function of the coordinates and the loaded
// city list, so results are deterministic and testable.
package geo

import (
	"math"

	"github.com/aqify/aqify-edge/internal/domain"
)

// earthRadiusKM is the mean Earth radius used by the haversine formula.
// The constant is part of the engine's contract: nearest-city results must
// reproduce across clients.
const earthRadiusKM = 6371.0

// HaversineKM returns the great-circle distance between two coordinates in
// kilometers: a = sin²(Δlat/2) + cos(lat1)·cos(lat2)·sin²(Δlon/2),
// d = 2R·atan2(√a, √(1−a)).
func HaversineKM(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := radians(lat2 - lat1)
	dLon := radians(lon2 - lon1)

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	a := sinLat*sinLat + math.Cos(radians(lat1))*math.Cos(radians(lat2))*sinLon*sinLon

	return 2 * earthRadiusKM * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// NearestCity returns the city closest to (lat, lon). Ties break toward the
// earlier city in list order. ok is false when the list is empty.
func NearestCity(lat, lon float64, cities []domain.City) (nearest domain.City, ok bool) {
	best := math.Inf(1)
	for _, c := range cities {
		d := HaversineKM(lat, lon, c.Lat, c.Lon)
		if d < best {
			best = d
			nearest = c
			ok = true
		}
	}
	return nearest, ok
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
