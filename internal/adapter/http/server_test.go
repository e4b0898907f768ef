package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/domicilios/geocoding-service/internal/domain"
	"github.com/domicilios/geocoding-service/internal/geocoder"
)

type stubGeocoding struct {
	searchCandidates []domain.Candidate
	searchErr        error
	reverseCandidate *domain.Candidate
	reverseErr       error
	readyErr         error

	gotQuery string
	gotOpts  geocoder.SearchOptions
}

func (s *stubGeocoding) Search(_ context.Context, query string, opts geocoder.SearchOptions) ([]domain.Candidate, error) {
	s.gotQuery = query
	s.gotOpts = opts
	return s.searchCandidates, s.searchErr
}

func (s *stubGeocoding) ReverseLookup(context.Context, float64, float64, geocoder.ReverseOptions) (*domain.Candidate, error) {
	return s.reverseCandidate, s.reverseErr
}

func (s *stubGeocoding) CheckReadiness(context.Context) error {
	return s.readyErr
}

func testServer(stub *stubGeocoding) *Server {
	return NewServer(":0", stub, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func doRequest(t *testing.T, srv *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestHandleSearch_Success(t *testing.T) {
	stub := &stubGeocoding{
		searchCandidates: []domain.Candidate{
			{ID: "1", Label: "Carrera 7 # 72-41, Bogotá", Latitude: 4.6533, Longitude: -74.0620, Provider: domain.ProviderNominatim},
			{ID: "2", Label: "Carrera 7, Quinta Camacho", Latitude: 4.6481, Longitude: -74.0587, Provider: domain.ProviderNominatim},
		},
	}
	rec := doRequest(t, testServer(stub), "/v1/search?q=Cra+7&provider=nominatim&limit=2")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Cra 7", stub.gotQuery)
	assert.Equal(t, domain.ProviderNominatim, stub.gotOpts.Provider)
	assert.Equal(t, 2, stub.gotOpts.MaxResults)

	var body struct {
		Candidates []candidatePayload `json:"candidates"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Candidates, 2)
	assert.Equal(t, "1", body.Candidates[0].ID, "ordering must survive serialization")
	assert.Equal(t, "Carrera 7 # 72-41, Bogotá", body.Candidates[0].Label)
	assert.Equal(t, "nominatim", body.Candidates[0].Provider)
}

func TestHandleSearch_EmptyIsValid(t *testing.T) {
	rec := doRequest(t, testServer(&stubGeocoding{}), "/v1/search?q=zzzz")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"candidates":[]}`, rec.Body.String())
}

func TestHandleSearch_BadRequests(t *testing.T) {
	tests := []struct {
		name   string
		target string
	}{
		{name: "missing q", target: "/v1/search"},
		{name: "unknown provider", target: "/v1/search?q=a&provider=mapbox"},
		{name: "bad limit", target: "/v1/search?q=a&limit=many"},
		{name: "zero limit", target: "/v1/search?q=a&limit=0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, testServer(&stubGeocoding{}), tt.target)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestHandleSearch_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "missing credential", err: domain.ErrMissingCredential, wantStatus: http.StatusServiceUnavailable},
		{name: "rate limited", err: domain.ErrRateLimited, wantStatus: http.StatusTooManyRequests},
		{name: "provider status", err: &domain.StatusError{Status: "OVER_QUERY_LIMIT", Message: "google: query quota exceeded"}, wantStatus: http.StatusBadGateway},
		{name: "generic failure", err: errors.New("connection reset"), wantStatus: http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, testServer(&stubGeocoding{searchErr: tt.err}), "/v1/search?q=a")
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestHandleSearch_CancellationWritesNothing(t *testing.T) {
	stub := &stubGeocoding{searchErr: context.Canceled}
	rec := doRequest(t, testServer(stub), "/v1/search?q=a")
	assert.Empty(t, rec.Body.String(), "a superseded request is a no-op, not an error response")
}

func TestHandleReverse_Found(t *testing.T) {
	stub := &stubGeocoding{
		reverseCandidate: &domain.Candidate{
			ID: "333", Label: "Calle 70 # 7-30, Bogotá", Latitude: 4.648611, Longitude: -74.062805, Provider: domain.ProviderNominatim,
		},
	}
	rec := doRequest(t, testServer(stub), "/v1/reverse?lat=4.6486&lon=-74.0628")

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Found     bool             `json:"found"`
		Candidate candidatePayload `json:"candidate"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Found)
	assert.Equal(t, "Calle 70 # 7-30, Bogotá", body.Candidate.Label)
}

func TestHandleReverse_NoResultFallsBackToCoordinates(t *testing.T) {
	rec := doRequest(t, testServer(&stubGeocoding{}), "/v1/reverse?lat=4.6486&lon=-74.0628")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"found":false,"label":"4.648600, -74.062800"}`, rec.Body.String())
}

func TestHandleReverse_BadCoordinates(t *testing.T) {
	for _, target := range []string{
		"/v1/reverse?lat=north&lon=-74.06",
		"/v1/reverse?lat=4.64",
		"/v1/reverse",
	} {
		rec := doRequest(t, testServer(&stubGeocoding{}), target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestHandleHealth(t *testing.T) {
	rec := doRequest(t, testServer(&stubGeocoding{}), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
}

func TestHandleReady(t *testing.T) {
	rec := doRequest(t, testServer(&stubGeocoding{}), "/readyz")
	assert.Equal(t, http.StatusOK, rec.Code)

	notReady := &stubGeocoding{readyErr: errors.New("no geocoding provider configured")}
	rec = doRequest(t, testServer(notReady), "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
