package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/partaibook/vendor-discovery/internal/domain/entities"
	"github.com/partaibook/vendor-discovery/internal/domain/providers"
	"github.com/partaibook/vendor-discovery/internal/domain/repositories"
	"github.com/partaibook/vendor-discovery/internal/infrastructure/observability"
)

// CachedVendorAdapter wraps a VendorRepository with a read-through cache.
// Any coordinate write-back invalidates every cached vendor list.
type CachedVendorAdapter struct {
	adapter repositories.VendorRepository
	cache   providers.CacheProvider
	metrics *observability.Metrics
}

var _ repositories.VendorRepository = (*CachedVendorAdapter)(nil)

// NewCachedVendorAdapter creates a new cached vendor adapter
func NewCachedVendorAdapter(adapter repositories.VendorRepository, cache providers.CacheProvider, metrics *observability.Metrics) *CachedVendorAdapter {
	return &CachedVendorAdapter{
		adapter: adapter,
		cache:   cache,
		metrics: metrics,
	}
}

// Cache TTLs
const (
	vendorsAllTTL    = 3 * time.Minute
	vendorsBoundsTTL = 1 * time.Minute
	vendorByIDTTL    = 5 * time.Minute
)

const vendorCachePrefix = "vendors:"

func vendorsAllCacheKey() string {
	return vendorCachePrefix + "all"
}

func vendorsBoundsCacheKey(vp entities.Viewport) string {
	return fmt.Sprintf("%sbbox:%.5f:%.5f:%.5f:%.5f", vendorCachePrefix, vp.South, vp.West, vp.North, vp.East)
}

func vendorCacheKey(id string) string {
	return vendorCachePrefix + "id:" + id
}

// FetchAll returns every vendor, cached
func (a *CachedVendorAdapter) FetchAll(ctx context.Context) ([]*entities.Vendor, error) {
	return a.cachedList(ctx, vendorsAllCacheKey(), vendorsAllTTL, func() ([]*entities.Vendor, error) {
		return a.adapter.FetchAll(ctx)
	})
}

// FetchWithinBounds returns vendors for a viewport, cached per box
func (a *CachedVendorAdapter) FetchWithinBounds(ctx context.Context, viewport entities.Viewport) ([]*entities.Vendor, error) {
	return a.cachedList(ctx, vendorsBoundsCacheKey(viewport), vendorsBoundsTTL, func() ([]*entities.Vendor, error) {
		return a.adapter.FetchWithinBounds(ctx, viewport)
	})
}

// FetchMissingCoordinates always reads through; the backfill needs fresh data
func (a *CachedVendorAdapter) FetchMissingCoordinates(ctx context.Context, limit int) ([]*entities.Vendor, error) {
	return a.adapter.FetchMissingCoordinates(ctx, limit)
}

// GetByIDs serves what it can from the per-vendor cache and loads the rest
func (a *CachedVendorAdapter) GetByIDs(ctx context.Context, ids []string) ([]*entities.Vendor, error) {
	if len(ids) == 0 {
		return []*entities.Vendor{}, nil
	}

	found := make(map[string]*entities.Vendor, len(ids))
	missing := make([]string, 0, len(ids))
	for _, id := range ids {
		data, err := a.cache.Get(ctx, vendorCacheKey(id))
		if err == nil {
			var vendor entities.Vendor
			if err := json.Unmarshal(data, &vendor); err == nil {
				found[id] = &vendor
				continue
			}
		}
		missing = append(missing, id)
	}

	if len(missing) > 0 {
		observability.RecordCacheMiss(ctx, a.metrics, "vendor")
		loaded, err := a.adapter.GetByIDs(ctx, missing)
		if err != nil {
			return nil, err
		}
		for _, vendor := range loaded {
			found[vendor.ID] = vendor
			a.store(ctx, vendorCacheKey(vendor.ID), vendor, vendorByIDTTL)
		}
	} else {
		observability.RecordCacheHit(ctx, a.metrics, "vendor")
	}

	ordered := make([]*entities.Vendor, 0, len(found))
	for _, id := range ids {
		if vendor, ok := found[id]; ok {
			ordered = append(ordered, vendor)
		}
	}
	return ordered, nil
}

// UpdateCoordinates writes through and invalidates cached lists
func (a *CachedVendorAdapter) UpdateCoordinates(ctx context.Context, vendorID string, coords entities.Coordinates) error {
	if err := a.adapter.UpdateCoordinates(ctx, vendorID, coords); err != nil {
		return err
	}
	if err := a.cache.DeletePattern(ctx, vendorCachePrefix+"*"); err != nil {
		log.Warn().Err(err).Str("vendor_id", vendorID).Msg("failed to invalidate vendor cache")
	}
	return nil
}

func (a *CachedVendorAdapter) cachedList(ctx context.Context, key string, ttl time.Duration, load func() ([]*entities.Vendor, error)) ([]*entities.Vendor, error) {
	if data, err := a.cache.Get(ctx, key); err == nil {
		var vendors []*entities.Vendor
		decodeErr := json.Unmarshal(data, &vendors)
		if decodeErr == nil {
			observability.RecordCacheHit(ctx, a.metrics, "vendors")
			return vendors, nil
		}
		log.Warn().Err(decodeErr).Str("key", key).Msg("discarding undecodable cached vendors")
	}
	observability.RecordCacheMiss(ctx, a.metrics, "vendors")

	vendors, err := load()
	if err != nil {
		return nil, err
	}
	a.store(ctx, key, vendors, ttl)
	return vendors, nil
}

func (a *CachedVendorAdapter) store(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	data, err := json.Marshal(value)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("failed to encode vendors for cache")
		return
	}
	if err := a.cache.Set(ctx, key, data, ttl); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("failed to cache vendors")
	}
}
