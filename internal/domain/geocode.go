package domain

import (
	"context"
	"encoding/json"
	"fmt"
)

// Provider identifies which adapter produced a candidate.
type Provider string

const (
	ProviderNominatim Provider = "nominatim"
	ProviderGoogle    Provider = "google"
)

// ParseProvider validates a provider name from config or a request parameter.
func ParseProvider(s string) (Provider, error) {
	switch Provider(s) {
	case ProviderNominatim, ProviderGoogle:
		return Provider(s), nil
	}
	return "", fmt.Errorf("unknown geocoding provider %q", s)
}

// Candidate is one normalized geocoding result. It is immutable once built
// and lives only for the duration of a response batch.
type Candidate struct {
	// ID is unique within a single response batch: the provider-native id,
	// or the formatted coordinate pair when the provider has none.
	ID        string
	Label     string
	Latitude  float64 // WGS84 degrees
	Longitude float64

	Provider Provider

	// ProviderRef is the opaque provider-native reference (e.g. a place id)
	// needed by adapters that resolve details in a second round trip.
	// Empty for single-call providers.
	ProviderRef string

	// Raw is the provider's unmodified response fragment for this candidate,
	// kept for diagnostics. Callers never interpret it.
	Raw json.RawMessage
}

// Geocoder is the capability contract both provider adapters implement.
type Geocoder interface {
	// Search resolves a free-text query into ordered candidates. An empty
	// slice is a valid outcome, not an error.
	Search(ctx context.Context, query string, limit int) ([]Candidate, error)

	// ReverseLookup resolves coordinates into the best-matching address.
	// A nil candidate with a nil error means no resolvable address.
	ReverseLookup(ctx context.Context, lat, lon float64) (*Candidate, error)
}

// BoundingBox is a rectangular geographic extent in WGS84 degrees.
type BoundingBox struct {
	South float64
	West  float64
	North float64
	East  float64
}

// Contains reports whether the point falls inside the box.
func (b BoundingBox) Contains(lat, lon float64) bool {
	return lat >= b.South && lat <= b.North && lon >= b.West && lon <= b.East
}

// Bogota is the fixed search extent. Both providers restrict (or bias)
// results to this rectangle; it is read-only and shared process-wide.
var Bogota = BoundingBox{
	South: 4.47,
	West:  -74.25,
	North: 4.90,
	East:  -73.99,
}

// FormatCoordinates renders a coordinate pair as the fallback display label
// used when a provider returns a point without an address.
func FormatCoordinates(lat, lon float64) string {
	return fmt.Sprintf("%.6f, %.6f", lat, lon)
}
