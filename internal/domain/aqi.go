package domain

// Health categories produced by [ClassifyAQI].
const (
	CategoryGood          = "Good"
	CategoryModerate      = "Moderate"
	CategoryUSG           = "Unhealthy for Sensitive Groups"
	CategoryUnhealthy     = "Unhealthy"
	CategoryVeryUnhealthy = "Very Unhealthy"
	CategoryHazardous     = "Hazardous"
	CategoryUnknown       = "Unknown"
)

// ClassifyAQI maps an AQI value to its EPA health category.
func ClassifyAQI(aqi *float64) string {
	if aqi == nil {
		return CategoryUnknown
	}
	switch v := *aqi; {
	case v <= 50:
		return CategoryGood
	case v <= 100:
		return CategoryModerate
	case v <= 150:
		return CategoryUSG
	case v <= 200:
		return CategoryUnhealthy
	case v <= 300:
		return CategoryVeryUnhealthy
	default:
		return CategoryHazardous
	}
}

// MergeStation returns the read-time view of a cached station under a live
// overlay. With no live record the cached station is returned unchanged.
// With one, the live fields (aqi, pm25, pm10, health_category) replace the
// cached values as a block — a nil live reading overrides a cached reading —
// and every other field keeps its cached value.
func MergeStation(cached Station, live *LiveUpdate) Station {
	if live == nil {
		return cached
	}
	merged := cached
	merged.AQI = live.AQI
	merged.PM25 = live.PM25
	merged.PM10 = live.PM10
	merged.HealthCategory = live.HealthCategory
	return merged
}
