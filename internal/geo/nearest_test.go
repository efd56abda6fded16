package geo_test

import (
	"math"
	"testing"

	"github.com/aqify/aqify-edge/internal/domain"
	"github.com/aqify/aqify-edge/internal/geo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHaversineKM_KnownDistance(t *testing.T) {
	// Delhi to Mumbai, roughly 1150 km.
	d := geo.HaversineKM(28.7041, 77.1025, 19.0760, 72.8777)
	assert.InDelta(t, 1150, d, 20)
}

func TestHaversineKM_ZeroForSamePoint(t *testing.T) {
	d := geo.HaversineKM(28.7, 77.1, 28.7, 77.1)
	assert.InDelta(t, 0, d, 1e-9)
}

func TestNearestCity_PicksCloser(t *testing.T) {
	cities := []domain.City{
		{ID: 1, DisplayName: "Delhi", Lat: 28.7, Lon: 77.1},
		{ID: 2, DisplayName: "Mumbai", Lat: 19.0, Lon: 72.8},
	}

	city, ok := geo.NearestCity(28.6, 77.2, cities)
	require.True(t, ok)
	assert.Equal(t, 1, city.ID)
}

func TestNearestCity_TinyMarginStillDecides(t *testing.T) {
	// Two cities on the same meridian, 5.0 km vs 5.0001 km from the query
	// point: the closer one must always win.
	const degPerKM = 1.0 / 111.194926644559 // at R = 6371 km
	cities := []domain.City{
		{ID: 1, Lat: 5.0001 * degPerKM, Lon: 0},
		{ID: 2, Lat: -5.0 * degPerKM, Lon: 0},
	}

	city, ok := geo.NearestCity(0, 0, cities)
	require.True(t, ok)
	assert.Equal(t, 2, city.ID)
}

func TestNearestCity_TieBreaksByListOrder(t *testing.T) {
	cities := []domain.City{
		{ID: 10, Lat: 1, Lon: 0},
		{ID: 20, Lat: -1, Lon: 0}, // exactly equidistant from the equator
	}

	city, ok := geo.NearestCity(0, 0, cities)
	require.True(t, ok)
	assert.Equal(t, 10, city.ID)
}

func TestNearestCity_EmptyList(t *testing.T) {
	_, ok := geo.NearestCity(0, 0, nil)
	assert.False(t, ok)
}

func TestNearestCity_AntipodalDistanceFinite(t *testing.T) {
	d := geo.HaversineKM(0, 0, 0, 180)
	assert.False(t, math.IsNaN(d))
	assert.InDelta(t, math.Pi*6371, d, 1)
}
