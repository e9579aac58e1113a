package services

import (
	"context"
	"fmt"

	"github.com/partaibook/vendor-discovery/internal/domain/entities"
	"github.com/partaibook/vendor-discovery/internal/domain/repositories"
	"github.com/rs/zerolog/log"
)

const (
	// Upper bound on indexed hits per viewport query
	viewportSearchLimit = 250
	// Zero merges every ungeocoded vendor, matching FetchWithinBounds
	allMissingCoordinates = 0
)

// VendorCatalogService reads vendors for a viewport, preferring the geo
// index and falling back to the database
type VendorCatalogService struct {
	repo       repositories.VendorRepository
	searchRepo repositories.VendorSearchRepository
}

// NewVendorCatalogService creates a new vendor catalog service
func NewVendorCatalogService(repo repositories.VendorRepository, searchRepo repositories.VendorSearchRepository) *VendorCatalogService {
	return &VendorCatalogService{
		repo:       repo,
		searchRepo: searchRepo,
	}
}

// FetchVendors returns vendors stored inside the viewport plus vendors that
// have not been geocoded yet. It implements VendorFetcher.
func (s *VendorCatalogService) FetchVendors(ctx context.Context, viewport entities.Viewport) ([]*entities.Vendor, error) {
	if s.searchRepo == nil {
		return s.repo.FetchWithinBounds(ctx, viewport)
	}

	ids, err := s.searchRepo.SearchIDsWithinBounds(ctx, viewport, viewportSearchLimit)
	if err != nil {
		log.Warn().Err(err).Str("viewport", viewport.String()).Msg("Vendor index search failed, falling back to database")
		return s.repo.FetchWithinBounds(ctx, viewport)
	}

	indexed, err := s.repo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	// Ungeocoded vendors are never in the index.
	missing, err := s.repo.FetchMissingCoordinates(ctx, allMissingCoordinates)
	if err != nil {
		return nil, err
	}

	return mergeVendors(indexed, missing), nil
}

// GetByIDs returns vendors in request order, skipping unknown ids
func (s *VendorCatalogService) GetByIDs(ctx context.Context, ids []string) ([]*entities.Vendor, error) {
	return s.repo.GetByIDs(ctx, ids)
}

// IndexVendors upserts vendors into the geo index. Failures are logged and
// counted; indexing is eventually consistent.
func (s *VendorCatalogService) IndexVendors(ctx context.Context, vendors []*entities.Vendor) (int, error) {
	if s.searchRepo == nil {
		return 0, nil
	}

	indexed, failed := 0, 0
	for _, v := range vendors {
		if !v.HasCoordinates() || v.Coordinates.IsSentinel() {
			continue
		}
		if err := s.searchRepo.Index(ctx, v); err != nil {
			failed++
			log.Warn().Err(err).Str("vendor_id", v.ID).Msg("Failed to index vendor")
			continue
		}
		indexed++
	}

	if failed > 0 {
		return indexed, fmt.Errorf("failed to index %d of %d vendors", failed, indexed+failed)
	}
	return indexed, nil
}

// Reindex pushes every geocoded vendor in the store into the geo index
func (s *VendorCatalogService) Reindex(ctx context.Context) (int, error) {
	vendors, err := s.repo.FetchAll(ctx)
	if err != nil {
		return 0, err
	}
	return s.IndexVendors(ctx, vendors)
}

func mergeVendors(lists ...[]*entities.Vendor) []*entities.Vendor {
	seen := make(map[string]struct{})
	var out []*entities.Vendor
	for _, list := range lists {
		for _, v := range list {
			if v == nil {
				continue
			}
			if _, ok := seen[v.ID]; ok {
				continue
			}
			seen[v.ID] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}
