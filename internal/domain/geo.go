package domain

import "time"

// Resolution methods recorded on a GeoResult.
const (
	ResolutionSeed      = "seed"      // built-in city table
	ResolutionCache     = "cache"     // persistent cache hit
	ResolutionNominatim = "nominatim" // live geocoder call
)

// GeoResult is the outcome of resolving a free-text location.
// An unresolved result is a first-class value, not an error: the record is
// kept and the pin is excluded from the served set.
type GeoResult struct {
	Lat        float64   `json:"lat"`
	Lon        float64   `json:"lon"`
	Resolved   bool      `json:"resolved"`
	Method     string    `json:"method,omitempty"`
	ResolvedAt time.Time `json:"resolved_at"`
}

// GeoCacheEntry is the persistent resolver cache row, keyed by normalized
// location text. Negative outcomes are cached too: a zero-result answer is
// definitive and never hits the geocoder again, while transient failures
// are not cached at all and stay retryable on later cycles.
type GeoCacheEntry struct {
	NormalizedText string    `gorm:"type:text;primaryKey" json:"normalized_text"`
	Lat            float64   `json:"lat"`
	Lon            float64   `json:"lon"`
	Resolved       bool      `gorm:"index" json:"resolved"`
	Definitive     bool      `json:"definitive"`
	Method         string    `gorm:"type:text" json:"method"`
	FailedAttempts int       `gorm:"default:0" json:"failed_attempts"`
	ResolvedAt     time.Time `json:"resolved_at"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (GeoCacheEntry) TableName() string {
	return "geo_cache"
}

// Result converts a cache entry to the GeoResult it represents.
func (e *GeoCacheEntry) Result() GeoResult {
	return GeoResult{
		Lat:        e.Lat,
		Lon:        e.Lon,
		Resolved:   e.Resolved,
		Method:     ResolutionCache,
		ResolvedAt: e.ResolvedAt,
	}
}
