// Package nominatim implements the free OpenStreetMap Nominatim provider.
package nominatim

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/domicilios/geocoding-service/internal/domain"
	"github.com/domicilios/geocoding-service/internal/observability"
)

const defaultBaseURL = "https://nominatim.openstreetmap.org"

// userAgent identifies this client per the Nominatim usage policy. The
// configured contact email is embedded so operators can be reached about
// misbehaving traffic.
const userAgent = "domicilios-geocoding-service/1.0"

// Client implements domain.Geocoder against the Nominatim HTTP API.
type Client struct {
	email      string // contact identification, required by the usage policy
	referer    string // calling origin, sent when configured
	httpClient *http.Client
	baseURL    string
	bounds     domain.BoundingBox
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a Nominatim client. The email may be empty; every call
// then fails with domain.ErrMissingCredential before any network I/O.
func NewClient(email, referer string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		email:      email,
		referer:    referer,
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    defaultBaseURL,
		bounds:     domain.Bogota,
		metrics:    metrics,
		logger:     logger,
	}
}

// searchResult is the subset of a Nominatim jsonv2 entry this client reads.
// Coordinates come back as strings.
type searchResult struct {
	PlaceID     int64  `json:"place_id"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// reverseResult is a Nominatim jsonv2 reverse payload. Unresolvable points
// answer with an "error" field instead of an address.
type reverseResult struct {
	PlaceID     int64  `json:"place_id"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
	Error       string `json:"error"`
}

// Search issues a single bounded search request. Results strictly outside
// the Bogotá viewbox are excluded by the provider (bounded=1), so no
// client-side re-validation happens.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]domain.Candidate, error) {
	if c.email == "" {
		return nil, fmt.Errorf("nominatim contact email: %w", domain.ErrMissingCredential)
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "jsonv2")
	params.Set("limit", strconv.Itoa(limit))
	// viewbox is <lon1>,<lat1>,<lon2>,<lat2>; bounded=1 turns the bias into
	// a strict filter.
	params.Set("viewbox", fmt.Sprintf("%f,%f,%f,%f", c.bounds.West, c.bounds.North, c.bounds.East, c.bounds.South))
	params.Set("bounded", "1")
	params.Set("addressdetails", "1")
	params.Set("dedupe", "1")
	params.Set("accept-language", "es")

	start := time.Now()
	resp, err := c.get(ctx, c.baseURL+"/search?"+params.Encode())
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("nominatim search request: %w", err)
	}
	defer resp.Body.Close()
	c.metrics.GeocodeAPIDuration.WithLabelValues(string(domain.ProviderNominatim), "search").Observe(time.Since(start).Seconds())

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, domain.ErrRateLimited
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("nominatim search: status %d: %s", resp.StatusCode, body)
	}

	// Decode each entry to a raw fragment first so candidates can carry the
	// provider's unmodified payload for diagnostics.
	var fragments []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&fragments); err != nil {
		return nil, fmt.Errorf("nominatim search: decode response: %w", err)
	}

	candidates := make([]domain.Candidate, 0, len(fragments))
	for _, raw := range fragments {
		var r searchResult
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, fmt.Errorf("nominatim search: decode result: %w", err)
		}

		lat, err := strconv.ParseFloat(r.Lat, 64)
		if err != nil {
			return nil, fmt.Errorf("nominatim search: parse latitude %q: %w", r.Lat, err)
		}
		lon, err := strconv.ParseFloat(r.Lon, 64)
		if err != nil {
			return nil, fmt.Errorf("nominatim search: parse longitude %q: %w", r.Lon, err)
		}

		id := strconv.FormatInt(r.PlaceID, 10)
		if r.PlaceID == 0 {
			id = domain.FormatCoordinates(lat, lon)
		}

		candidates = append(candidates, domain.Candidate{
			ID:        id,
			Label:     r.DisplayName,
			Latitude:  lat,
			Longitude: lon,
			Provider:  domain.ProviderNominatim,
			Raw:       raw,
		})
	}
	return candidates, nil
}

// ReverseLookup resolves coordinates to an address. Failures are soft: any
// non-success response, decode problem, or error payload yields (nil, nil)
// so the caller can fall back to the formatted coordinate pair.
func (c *Client) ReverseLookup(ctx context.Context, lat, lon float64) (*domain.Candidate, error) {
	if c.email == "" {
		return nil, fmt.Errorf("nominatim contact email: %w", domain.ErrMissingCredential)
	}

	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	params.Set("format", "jsonv2")
	params.Set("addressdetails", "1")
	params.Set("accept-language", "es")

	start := time.Now()
	resp, err := c.get(ctx, c.baseURL+"/reverse?"+params.Encode())
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Debug("nominatim reverse request failed", "lat", lat, "lon", lon, "error", err)
		return nil, nil
	}
	defer resp.Body.Close()
	c.metrics.GeocodeAPIDuration.WithLabelValues(string(domain.ProviderNominatim), "reverse").Observe(time.Since(start).Seconds())

	if resp.StatusCode != http.StatusOK {
		c.logger.Debug("nominatim reverse non-success", "status", resp.StatusCode)
		return nil, nil
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, nil
	}

	var r reverseResult
	if err := json.Unmarshal(raw, &r); err != nil || r.Error != "" {
		return nil, nil
	}

	// Provider omissions degrade to the caller's own point.
	candLat, candLon := lat, lon
	if v, err := strconv.ParseFloat(r.Lat, 64); err == nil {
		candLat = v
	}
	if v, err := strconv.ParseFloat(r.Lon, 64); err == nil {
		candLon = v
	}

	label := r.DisplayName
	if label == "" {
		label = domain.FormatCoordinates(lat, lon)
	}

	id := strconv.FormatInt(r.PlaceID, 10)
	if r.PlaceID == 0 {
		id = domain.FormatCoordinates(candLat, candLon)
	}

	return &domain.Candidate{
		ID:        id,
		Label:     label,
		Latitude:  candLat,
		Longitude: candLon,
		Provider:  domain.ProviderNominatim,
		Raw:       raw,
	}, nil
}

// get performs an identified GET per the Nominatim usage policy: a
// descriptive User-Agent embedding the contact email, the email again in
// From, and the calling origin as Referer when one is configured.
func (c *Client) get(ctx context.Context, fullURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", fmt.Sprintf("%s (%s)", userAgent, c.email))
	req.Header.Set("From", c.email)
	req.Header.Set("Accept", "application/json")
	if c.referer != "" {
		req.Header.Set("Referer", c.referer)
	}
	return c.httpClient.Do(req)
}
