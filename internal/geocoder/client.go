// Package geocoder exposes the provider-agnostic geocoding client: forward
// search and reverse lookup dispatched across the configured providers.
package geocoder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/domicilios/geocoding-service/internal/domain"
	"github.com/domicilios/geocoding-service/internal/observability"
)

// ActivityEvent describes one completed geocoding operation for analytics.
// The query travels as a hash: the activity topic must not carry addresses.
type ActivityEvent struct {
	Operation   string          `json:"operation"` // search or reverse
	Provider    domain.Provider `json:"provider"`
	QueryHash   string          `json:"query_hash,omitempty"`
	ResultCount int             `json:"result_count"`
	Outcome     string          `json:"outcome"` // success, empty, error
	DurationMS  int64           `json:"duration_ms"`
	At          time.Time       `json:"at"`
}

// ActivitySink receives activity events. Implementations must not block the
// caller; publishing is fire-and-forget from the client's perspective.
type ActivitySink interface {
	Record(ev ActivityEvent)
}

// SearchOptions tune one forward search.
type SearchOptions struct {
	// Provider forces a specific provider for this request. Empty means
	// resolve from configuration.
	Provider domain.Provider
	// MaxResults caps the candidate count. Zero means the configured default.
	MaxResults int
}

// ReverseOptions tune one reverse lookup.
type ReverseOptions struct {
	Provider domain.Provider
}

// searchToken identifies one in-flight forward search so a completed search
// only clears its own registration.
type searchToken struct {
	cancel context.CancelFunc
}

// Client is the geocoding facade the outer surfaces talk to. It owns the
// supersession discipline: a new forward search cancels the previous
// still-pending one from the same Client, while reverse lookups run in an
// independent cancellation scope.
//
// No retry logic lives here or below; every failure other than the
// documented soft no-results propagates unmodified to the caller.
type Client struct {
	nominatim domain.Geocoder
	google    domain.Geocoder

	forced              domain.Provider
	nominatimConfigured bool
	googleConfigured    bool
	defaultMax          int

	sink    ActivitySink
	metrics *observability.Metrics
	logger  *slog.Logger

	mu      sync.Mutex
	current *searchToken
}

// Params carries the construction inputs for a Client.
type Params struct {
	Nominatim           domain.Geocoder
	Google              domain.Geocoder
	ForcedProvider      domain.Provider
	NominatimConfigured bool
	GoogleConfigured    bool
	DefaultMaxResults   int
	Sink                ActivitySink // optional
	Metrics             *observability.Metrics
	Logger              *slog.Logger
}

// New creates the facade. Sink may be nil when analytics is disabled.
func New(p Params) *Client {
	max := p.DefaultMaxResults
	if max <= 0 {
		max = 5
	}
	return &Client{
		nominatim:           p.Nominatim,
		google:              p.Google,
		forced:              p.ForcedProvider,
		nominatimConfigured: p.NominatimConfigured,
		googleConfigured:    p.GoogleConfigured,
		defaultMax:          max,
		sink:                p.Sink,
		metrics:             p.Metrics,
		logger:              p.Logger,
	}
}

// CheckReadiness reports whether at least one provider credential is
// configured. Adapters are always constructed, so presence alone says
// nothing about being able to serve a request.
func (c *Client) CheckReadiness(_ context.Context) error {
	if !c.nominatimConfigured && !c.googleConfigured {
		return errors.New("no geocoding provider credential configured")
	}
	return nil
}

// Search resolves a free-text query into ordered candidates. A superseded or
// cancelled search returns the context error unwrapped; callers treat it as
// a no-op, never as a user-visible failure.
func (c *Client) Search(ctx context.Context, query string, opts SearchOptions) ([]domain.Candidate, error) {
	provider := ResolveProvider(opts.Provider, c.forced, c.googleConfigured)
	limit := opts.MaxResults
	if limit <= 0 {
		limit = c.defaultMax
	}

	ctx, token := c.beginSearch(ctx)
	defer c.endSearch(token)

	start := time.Now()
	candidates, err := c.adapter(provider).Search(ctx, query, limit)
	elapsed := time.Since(start)

	switch {
	case err != nil && errors.Is(err, context.Canceled):
		c.metrics.GeocodeRequests.WithLabelValues(string(provider), "search", "cancelled").Inc()
		return nil, err
	case err != nil:
		c.metrics.GeocodeRequests.WithLabelValues(string(provider), "search", "error").Inc()
		c.record(ActivityEvent{
			Operation: "search", Provider: provider, QueryHash: hashQuery(query),
			Outcome: "error", DurationMS: elapsed.Milliseconds(), At: time.Now().UTC(),
		})
		c.logger.Warn("forward search failed", "provider", provider, "error", err)
		return nil, err
	}

	outcome := "success"
	if len(candidates) == 0 {
		outcome = "empty"
	}
	c.metrics.GeocodeRequests.WithLabelValues(string(provider), "search", outcome).Inc()
	c.record(ActivityEvent{
		Operation: "search", Provider: provider, QueryHash: hashQuery(query),
		ResultCount: len(candidates), Outcome: outcome,
		DurationMS: elapsed.Milliseconds(), At: time.Now().UTC(),
	})
	return candidates, nil
}

// ReverseLookup resolves coordinates to the best-matching address, or to
// (nil, nil) when nothing resolves. It never cancels, and is never cancelled
// by, forward searches.
func (c *Client) ReverseLookup(ctx context.Context, lat, lon float64, opts ReverseOptions) (*domain.Candidate, error) {
	provider := ResolveProvider(opts.Provider, c.forced, c.googleConfigured)

	start := time.Now()
	cand, err := c.adapter(provider).ReverseLookup(ctx, lat, lon)
	elapsed := time.Since(start)

	switch {
	case err != nil && errors.Is(err, context.Canceled):
		c.metrics.GeocodeRequests.WithLabelValues(string(provider), "reverse", "cancelled").Inc()
		return nil, err
	case err != nil:
		c.metrics.GeocodeRequests.WithLabelValues(string(provider), "reverse", "error").Inc()
		c.record(ActivityEvent{
			Operation: "reverse", Provider: provider, Outcome: "error",
			DurationMS: elapsed.Milliseconds(), At: time.Now().UTC(),
		})
		c.logger.Warn("reverse lookup failed", "provider", provider, "error", err)
		return nil, err
	}

	outcome := "success"
	count := 1
	if cand == nil {
		outcome, count = "empty", 0
	}
	c.metrics.GeocodeRequests.WithLabelValues(string(provider), "reverse", outcome).Inc()
	c.record(ActivityEvent{
		Operation: "reverse", Provider: provider, ResultCount: count,
		Outcome: outcome, DurationMS: elapsed.Milliseconds(), At: time.Now().UTC(),
	})
	return cand, nil
}

func (c *Client) adapter(p domain.Provider) domain.Geocoder {
	if p == domain.ProviderGoogle {
		return c.google
	}
	return c.nominatim
}

// beginSearch derives a cancellable context for a forward search and cancels
// any previous still-pending search from this Client.
func (c *Client) beginSearch(ctx context.Context) (context.Context, *searchToken) {
	ctx, cancel := context.WithCancel(ctx)
	token := &searchToken{cancel: cancel}

	c.mu.Lock()
	if c.current != nil {
		c.current.cancel()
		c.metrics.SearchSuperseded.Inc()
	}
	c.current = token
	c.mu.Unlock()

	return ctx, token
}

func (c *Client) endSearch(token *searchToken) {
	c.mu.Lock()
	if c.current == token {
		c.current = nil
	}
	c.mu.Unlock()
	token.cancel()
}

func (c *Client) record(ev ActivityEvent) {
	if c.sink == nil {
		return
	}
	c.sink.Record(ev)
}

func hashQuery(q string) string {
	sum := sha256.Sum256([]byte(q))
	return hex.EncodeToString(sum[:8])
}
