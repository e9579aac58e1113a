package providers

import (
	"context"

	"github.com/partaibook/vendor-discovery/internal/domain/entities"
)

// GeolocationProvider resolves free-text addresses to coordinates.
type GeolocationProvider interface {
	// Geocode returns the best match for address, or nil when the
	// provider found nothing
	Geocode(ctx context.Context, address string) (*entities.Coordinates, error)
}
