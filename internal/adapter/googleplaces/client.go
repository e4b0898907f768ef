// Package googleplaces implements the commercial Google provider: Places
// Autocomplete plus Place Details for forward search, and the Geocoding API
// for reverse lookups.
package googleplaces

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/domicilios/geocoding-service/internal/domain"
	"github.com/domicilios/geocoding-service/internal/observability"
)

const (
	defaultPlacesBaseURL  = "https://maps.googleapis.com/maps/api/place"
	defaultGeocodeBaseURL = "https://maps.googleapis.com/maps/api/geocode"
)

// statusMessages translates Google application statuses into user-facing
// causes. Shared by forward search and reverse lookup. Anything not listed
// falls through to a generic message carrying the raw status.
var statusMessages = map[string]string{
	"OVER_QUERY_LIMIT": "google: query quota exceeded",
	"REQUEST_DENIED":   "google: request denied, check the API key and its restrictions",
	"INVALID_REQUEST":  "google: malformed request",
	"UNKNOWN_ERROR":    "google: transient server error, retry may succeed",
}

func statusError(status string) *domain.StatusError {
	msg, ok := statusMessages[status]
	if !ok {
		msg = fmt.Sprintf("google: unexpected status %s", status)
	}
	return &domain.StatusError{Status: status, Message: msg}
}

// Client implements domain.Geocoder against the Google Maps Platform.
type Client struct {
	apiKey         string
	httpClient     *http.Client
	placesBaseURL  string
	geocodeBaseURL string
	bounds         domain.BoundingBox
	metrics        *observability.Metrics
	logger         *slog.Logger
}

// NewClient creates a Google client. The key may be empty; every call then
// fails with domain.ErrMissingCredential before any network I/O.
func NewClient(apiKey string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		apiKey:         apiKey,
		httpClient:     &http.Client{Timeout: timeout},
		placesBaseURL:  defaultPlacesBaseURL,
		geocodeBaseURL: defaultGeocodeBaseURL,
		bounds:         domain.Bogota,
		metrics:        metrics,
		logger:         logger,
	}
}

type autocompleteResponse struct {
	Status      string            `json:"status"`
	Predictions []json.RawMessage `json:"predictions"`
}

type prediction struct {
	Description string `json:"description"`
	PlaceID     string `json:"place_id"`
}

type detailsResponse struct {
	Status string `json:"status"`
	Result struct {
		Geometry struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"result"`
}

type geocodeResponse struct {
	Status  string            `json:"status"`
	Results []json.RawMessage `json:"results"`
}

type geocodeResult struct {
	PlaceID          string `json:"place_id"`
	FormattedAddress string `json:"formatted_address"`
}

// Search runs the two-phase forward search: one autocomplete call biased to
// the Bogotá rectangle, then one concurrent details call per retained
// prediction. Partial success is never exposed: the first details failure
// fails the whole batch so every visible candidate has coordinates.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]domain.Candidate, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("google api key: %w", domain.ErrMissingCredential)
	}

	predictions, err := c.autocomplete(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(predictions) > limit {
		// Truncate before the details phase so uncalled predictions incur
		// no network cost.
		predictions = predictions[:limit]
	}

	// Decode everything up front: once the fan-out starts, the only way out
	// is g.Wait().
	preds := make([]prediction, len(predictions))
	for i, raw := range predictions {
		if err := json.Unmarshal(raw, &preds[i]); err != nil {
			return nil, fmt.Errorf("google autocomplete: decode prediction: %w", err)
		}
	}

	candidates := make([]domain.Candidate, len(preds))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range preds {
		raw := predictions[i]
		g.Go(func() error {
			lat, lng, err := c.placeDetails(gctx, p.PlaceID)
			if err != nil {
				return err
			}
			// Label comes from the prediction description, not the details
			// payload; collection is indexed so prediction order survives
			// out-of-order completion.
			candidates[i] = domain.Candidate{
				ID:          p.PlaceID,
				Label:       p.Description,
				Latitude:    lat,
				Longitude:   lng,
				Provider:    domain.ProviderGoogle,
				ProviderRef: p.PlaceID,
				Raw:         raw,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	return candidates, nil
}

func (c *Client) autocomplete(ctx context.Context, query string) ([]json.RawMessage, error) {
	params := url.Values{}
	params.Set("input", query)
	params.Set("key", c.apiKey)
	params.Set("language", "es")
	params.Set("types", "address")
	params.Set("components", "country:co")
	params.Set("locationbias", fmt.Sprintf("rectangle:%f,%f|%f,%f",
		c.bounds.South, c.bounds.West, c.bounds.North, c.bounds.East))

	start := time.Now()
	resp, err := c.get(ctx, c.placesBaseURL+"/autocomplete/json?"+params.Encode())
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("google autocomplete request: %w", err)
	}
	defer resp.Body.Close()
	c.metrics.GeocodeAPIDuration.WithLabelValues(string(domain.ProviderGoogle), "search").Observe(time.Since(start).Seconds())

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("google autocomplete: status %d: %s", resp.StatusCode, body)
	}

	var ar autocompleteResponse
	if err := json.NewDecoder(resp.Body).Decode(&ar); err != nil {
		return nil, fmt.Errorf("google autocomplete: decode response: %w", err)
	}

	switch ar.Status {
	case "OK":
		return ar.Predictions, nil
	case "ZERO_RESULTS":
		return nil, nil
	default:
		return nil, statusError(ar.Status)
	}
}

func (c *Client) placeDetails(ctx context.Context, placeID string) (lat, lng float64, err error) {
	params := url.Values{}
	params.Set("place_id", placeID)
	params.Set("key", c.apiKey)
	params.Set("fields", "geometry")
	params.Set("language", "es")

	start := time.Now()
	resp, err := c.get(ctx, c.placesBaseURL+"/details/json?"+params.Encode())
	if err != nil {
		if ctx.Err() != nil {
			return 0, 0, ctx.Err()
		}
		return 0, 0, fmt.Errorf("google place details request: %w", err)
	}
	defer resp.Body.Close()
	c.metrics.GeocodeAPIDuration.WithLabelValues(string(domain.ProviderGoogle), "details").Observe(time.Since(start).Seconds())

	if resp.StatusCode != http.StatusOK {
		return 0, 0, fmt.Errorf("google place details: status %d for %s", resp.StatusCode, placeID)
	}

	var dr detailsResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return 0, 0, fmt.Errorf("google place details: decode response: %w", err)
	}
	if dr.Status != "OK" {
		return 0, 0, statusError(dr.Status)
	}
	return dr.Result.Geometry.Location.Lat, dr.Result.Geometry.Location.Lng, nil
}

// ReverseLookup resolves coordinates through the Geocoding API. Failures are
// soft: any transport error, non-OK status, or empty result set yields
// (nil, nil). The returned coordinates echo the caller's point rather than
// the provider's snapped location, preserving the exact marker position.
func (c *Client) ReverseLookup(ctx context.Context, lat, lon float64) (*domain.Candidate, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("google api key: %w", domain.ErrMissingCredential)
	}

	params := url.Values{}
	params.Set("latlng", fmt.Sprintf("%f,%f", lat, lon))
	params.Set("key", c.apiKey)
	params.Set("language", "es")

	start := time.Now()
	resp, err := c.get(ctx, c.geocodeBaseURL+"/json?"+params.Encode())
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Debug("google reverse request failed", "lat", lat, "lon", lon, "error", err)
		return nil, nil
	}
	defer resp.Body.Close()
	c.metrics.GeocodeAPIDuration.WithLabelValues(string(domain.ProviderGoogle), "reverse").Observe(time.Since(start).Seconds())

	if resp.StatusCode != http.StatusOK {
		c.logger.Debug("google reverse non-success", "status", resp.StatusCode)
		return nil, nil
	}

	var gr geocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return nil, nil
	}
	if gr.Status != "OK" || len(gr.Results) == 0 {
		return nil, nil
	}

	raw := gr.Results[0]
	var r geocodeResult
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, nil
	}

	id := r.PlaceID
	if id == "" {
		id = domain.FormatCoordinates(lat, lon)
	}
	label := r.FormattedAddress
	if label == "" {
		label = domain.FormatCoordinates(lat, lon)
	}

	return &domain.Candidate{
		ID:          id,
		Label:       label,
		Latitude:    lat,
		Longitude:   lon,
		Provider:    domain.ProviderGoogle,
		ProviderRef: r.PlaceID,
		Raw:         raw,
	}, nil
}

func (c *Client) get(ctx context.Context, fullURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return c.httpClient.Do(req)
}
