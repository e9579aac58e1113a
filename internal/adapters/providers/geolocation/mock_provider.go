package geolocation

import (
	"context"
	"strings"

	"github.com/partaibook/vendor-discovery/internal/domain/entities"
	"github.com/partaibook/vendor-discovery/internal/domain/providers"
)

// MockGeolocationProvider resolves a fixed table of New York area names,
// for local development without a Mapbox token.
type MockGeolocationProvider struct {
	places map[string]entities.Coordinates
}

var _ providers.GeolocationProvider = (*MockGeolocationProvider)(nil)

// NewMockGeolocationProvider creates a new mock geolocation provider
func NewMockGeolocationProvider() *MockGeolocationProvider {
	return &MockGeolocationProvider{
		places: map[string]entities.Coordinates{
			"queens":        {Latitude: 40.7282, Longitude: -73.7949},
			"bronx":         {Latitude: 40.8448, Longitude: -73.8648},
			"brooklyn":      {Latitude: 40.6782, Longitude: -73.9442},
			"manhattan":     {Latitude: 40.7831, Longitude: -73.9712},
			"staten island": {Latitude: 40.5795, Longitude: -74.1502},
			"long island":   {Latitude: 40.7891, Longitude: -73.1350},
			"jersey city":   {Latitude: 40.7178, Longitude: -74.0431},
			"new york":      {Latitude: 40.7128, Longitude: -74.0060},
		},
	}
}

// Geocode returns the first known place named in the address, or nil.
func (m *MockGeolocationProvider) Geocode(ctx context.Context, address string) (*entities.Coordinates, error) {
	lower := strings.ToLower(address)
	// Boroughs are checked before the city so "Queens, New York" lands in Queens.
	for _, name := range []string{"queens", "bronx", "brooklyn", "manhattan", "staten island", "long island", "jersey city", "new york"} {
		if strings.Contains(lower, name) {
			coords := m.places[name]
			return &coords, nil
		}
	}
	return nil, nil
}
