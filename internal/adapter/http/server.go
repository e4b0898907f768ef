// Package http exposes the geocoding API plus health, readiness, and
// metrics endpoints.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/domicilios/geocoding-service/internal/domain"
	"github.com/domicilios/geocoding-service/internal/geocoder"
)

// Geocoding is the facade surface this server binds to.
type Geocoding interface {
	Search(ctx context.Context, query string, opts geocoder.SearchOptions) ([]domain.Candidate, error)
	ReverseLookup(ctx context.Context, lat, lon float64, opts geocoder.ReverseOptions) (*domain.Candidate, error)
	CheckReadiness(ctx context.Context) error
}

// Server exposes the geocoding API over HTTP.
type Server struct {
	httpServer *http.Server
	client     Geocoding
	logger     *slog.Logger
}

// NewServer creates an HTTP server with the /v1 geocoding routes and the
// /healthz, /readyz, and /metrics operational routes.
func NewServer(addr string, client Geocoding, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		client: client,
		logger: logger,
	}

	mux.HandleFunc("GET /v1/search", s.handleSearch)
	mux.HandleFunc("GET /v1/reverse", s.handleReverse)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

type candidatePayload struct {
	ID          string  `json:"id"`
	Label       string  `json:"label"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Provider    string  `json:"provider"`
	ProviderRef string  `json:"provider_ref,omitempty"`
}

func toPayload(c domain.Candidate) candidatePayload {
	return candidatePayload{
		ID:          c.ID,
		Label:       c.Label,
		Latitude:    c.Latitude,
		Longitude:   c.Longitude,
		Provider:    string(c.Provider),
		ProviderRef: c.ProviderRef,
	}
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, http.StatusBadRequest, "missing required parameter q")
		return
	}

	opts := geocoder.SearchOptions{}
	if p := r.URL.Query().Get("provider"); p != "" {
		provider, err := domain.ParseProvider(p)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		opts.Provider = provider
	}
	if l := r.URL.Query().Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		opts.MaxResults = n
	}

	candidates, err := s.client.Search(r.Context(), q, opts)
	if err != nil {
		s.writeGeocodeError(w, r, err)
		return
	}

	payload := make([]candidatePayload, len(candidates))
	for i, c := range candidates {
		payload[i] = toPayload(c)
	}
	writeJSON(w, http.StatusOK, map[string]any{"candidates": payload})
}

func (s *Server) handleReverse(w http.ResponseWriter, r *http.Request) {
	lat, err := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "lat must be a number")
		return
	}
	lon, err := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "lon must be a number")
		return
	}

	opts := geocoder.ReverseOptions{}
	if p := r.URL.Query().Get("provider"); p != "" {
		provider, err := domain.ParseProvider(p)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		opts.Provider = provider
	}

	cand, err := s.client.ReverseLookup(r.Context(), lat, lon, opts)
	if err != nil {
		s.writeGeocodeError(w, r, err)
		return
	}

	if cand == nil {
		// Soft no-result: the formatted coordinate pair is the degraded
		// label the caller substitutes for the missing address.
		writeJSON(w, http.StatusOK, map[string]any{
			"found": false,
			"label": domain.FormatCoordinates(lat, lon),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"found":     true,
		"candidate": toPayload(*cand),
	})
}

// writeGeocodeError maps the failure taxonomy to HTTP statuses. Cancellation
// is filtered: a client that went away gets no response and no error log.
func (s *Server) writeGeocodeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}

	var se *domain.StatusError
	switch {
	case errors.Is(err, domain.ErrMissingCredential):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, domain.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, err.Error())
	case errors.As(err, &se):
		s.logger.Warn("provider status error", "path", r.URL.Path, "status", se.Status)
		writeError(w, http.StatusBadGateway, se.Message)
	default:
		s.logger.Warn("geocoding failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusBadGateway, "geocoding provider failure")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.client.CheckReadiness(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
