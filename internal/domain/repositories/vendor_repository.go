package repositories

import (
	"context"

	"github.com/partaibook/vendor-discovery/internal/domain/entities"
)

// VendorRepository is the vendor collection store used by discovery.
type VendorRepository interface {
	// FetchAll returns every vendor in the collection
	FetchAll(ctx context.Context) ([]*entities.Vendor, error)

	// FetchWithinBounds returns vendors whose stored coordinates fall inside
	// the viewport, plus vendors that have not been geocoded yet
	FetchWithinBounds(ctx context.Context, viewport entities.Viewport) ([]*entities.Vendor, error)

	// FetchMissingCoordinates returns vendors that have never been geocoded
	FetchMissingCoordinates(ctx context.Context, limit int) ([]*entities.Vendor, error)

	// GetByIDs retrieves vendors by id, skipping ids that do not exist
	GetByIDs(ctx context.Context, ids []string) ([]*entities.Vendor, error)

	// UpdateCoordinates writes coordinates for a vendor. The write only
	// applies when the vendor has none yet.
	UpdateCoordinates(ctx context.Context, vendorID string, coords entities.Coordinates) error
}

// VendorSearchRepository is the geo index over vendors (e.g. Typesense).
type VendorSearchRepository interface {
	// SearchIDsWithinBounds returns ids of indexed vendors inside the viewport
	SearchIDsWithinBounds(ctx context.Context, viewport entities.Viewport, limit int) ([]string, error)

	// Index upserts a vendor; vendors without coordinates are skipped
	Index(ctx context.Context, vendor *entities.Vendor) error

	// Delete removes a vendor from the index
	Delete(ctx context.Context, id string) error
}

// DiscoverySessionRepository persists discovery sessions so they survive
// navigation and process restarts.
type DiscoverySessionRepository interface {
	Save(ctx context.Context, state *entities.DiscoverySessionState) error
	Get(ctx context.Context, id string) (*entities.DiscoverySessionState, error)
	Delete(ctx context.Context, id string) error
}
