// Package domain models the AQIFY air-quality data the engine synchronizes.
//
// # Entities
//
// A City is a top-level geographic unit users select. The canonical city list
// is fetched once per session and treated as append-never-mutate; ids are
// stable across sessions.
//
// A Station is a physical monitoring point inside exactly one city. Pollutant
// readings are nullable: a nil pointer means the sensor is absent or stale,
// which is distinct from a reading of zero.
//
// A LiveUpdate is an unsolicited partial record pushed over the live channel,
// keyed by station id. Updates carry no timestamp ordering guarantee; the
// engine trusts arrival order and the last record for a key wins wholesale.
//
// # Merge rule
//
// The merged view of a station is either the cached fetch untouched, or the
// cached fetch with exactly the live-update fields (aqi, pm25, pm10,
// health_category) overridden as a block — including overriding a cached
// reading with nil when the live record carries nil. Fields outside the live
// shape (no2, o3, co, so2, coordinates, name) always come from the cache.
// See [MergeStation].
//
// # AQI categories
//
// Classification follows the US EPA breakpoints used by the backend:
//
//	≤50 Good | ≤100 Moderate | ≤150 Unhealthy for Sensitive Groups |
//	≤200 Unhealthy | ≤300 Very Unhealthy | >300 Hazardous
//
// A nil AQI classifies as "Unknown". See [ClassifyAQI].
package domain
