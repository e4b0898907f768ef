package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProvider(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Provider
		wantErr bool
	}{
		{name: "nominatim", input: "nominatim", want: ProviderNominatim},
		{name: "google", input: "google", want: ProviderGoogle},
		{name: "unknown", input: "mapbox", wantErr: true},
		{name: "empty", input: "", wantErr: true},
		{name: "case sensitive", input: "Google", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseProvider(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBoundingBox_Contains(t *testing.T) {
	// Plaza de Bolívar sits well inside the Bogotá box.
	assert.True(t, Bogota.Contains(4.5981, -74.0761))
	// Medellín is far outside.
	assert.False(t, Bogota.Contains(6.2442, -75.5812))
	// Edges are inclusive.
	assert.True(t, Bogota.Contains(Bogota.South, Bogota.West))
	assert.True(t, Bogota.Contains(Bogota.North, Bogota.East))
	// Just past the northern edge.
	assert.False(t, Bogota.Contains(4.9001, -74.05))
}

func TestFormatCoordinates(t *testing.T) {
	assert.Equal(t, "4.648600, -74.062800", FormatCoordinates(4.6486, -74.0628))
	assert.Equal(t, "0.000000, 0.000000", FormatCoordinates(0, 0))
	assert.Equal(t, "-4.123457, 74.123457", FormatCoordinates(-4.1234567, 74.1234567))
}
