package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/partaibook/vendor-discovery/internal/domain/entities"
	"github.com/partaibook/vendor-discovery/internal/domain/providers"
	"github.com/partaibook/vendor-discovery/internal/domain/repositories"
	"github.com/partaibook/vendor-discovery/internal/infrastructure/observability"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Fallback reasons reported in logs and metrics.
const (
	geocodeReasonNoLocation = "no_location"
	geocodeReasonNoMatch    = "no_match"
	geocodeReasonTimeout    = "timeout"
	geocodeReasonError      = "error"
)

// GeocodeCacheConfig bounds the geocode cache.
type GeocodeCacheConfig struct {
	// Timeout caps a single geocoding request
	Timeout time.Duration
	// FailureTTL is how long a failed address is not retried
	FailureTTL time.Duration
	// Concurrency caps parallel geocoding in EnsureAll
	Concurrency int
}

// DefaultGeocodeCacheConfig returns production defaults.
func DefaultGeocodeCacheConfig() GeocodeCacheConfig {
	return GeocodeCacheConfig{
		Timeout:     5 * time.Second,
		FailureTTL:  10 * time.Minute,
		Concurrency: 8,
	}
}

type geocodeResult struct {
	coords entities.Coordinates
}

// GeocodeCacheService derives vendor coordinates from location text and
// writes them back once per vendor. Failures resolve to the (0,0) sentinel
// so a vendor is never dropped for lack of a location.
type GeocodeCacheService struct {
	geocoder providers.GeolocationProvider
	vendors  repositories.VendorRepository
	index    repositories.VendorSearchRepository
	metrics  *observability.Metrics
	config   GeocodeCacheConfig
	now      func() time.Time

	group singleflight.Group

	mu       sync.RWMutex
	resolved map[string]entities.Coordinates
	failures map[string]time.Time
}

// NewGeocodeCacheService creates a new geocode cache service. A vendor placed
// by geocoding leaves the store's ungeocoded set, so it is also upserted into
// index when one is given.
func NewGeocodeCacheService(geocoder providers.GeolocationProvider, vendors repositories.VendorRepository, index repositories.VendorSearchRepository, metrics *observability.Metrics, config GeocodeCacheConfig) *GeocodeCacheService {
	defaults := DefaultGeocodeCacheConfig()
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.FailureTTL <= 0 {
		config.FailureTTL = defaults.FailureTTL
	}
	if config.Concurrency <= 0 {
		config.Concurrency = defaults.Concurrency
	}
	return &GeocodeCacheService{
		geocoder: geocoder,
		vendors:  vendors,
		index:    index,
		metrics:  metrics,
		config:   config,
		now:      time.Now,
		resolved: make(map[string]entities.Coordinates),
		failures: make(map[string]time.Time),
	}
}

// EnsureCoordinates returns the vendor with coordinates filled in. A vendor
// that already has coordinates is returned as-is without a geocoding call.
// The input vendor is never mutated.
func (s *GeocodeCacheService) EnsureCoordinates(ctx context.Context, vendor *entities.Vendor) *entities.Vendor {
	if vendor == nil || vendor.HasCoordinates() {
		return vendor
	}

	if coords, ok := s.lookup(vendor.ID); ok {
		return vendor.WithCoordinates(coords)
	}

	v, _, _ := s.group.Do(vendor.ID, func() (interface{}, error) {
		// Re-check: a previous flight may have finished between lookup and Do.
		if coords, ok := s.lookup(vendor.ID); ok {
			return geocodeResult{coords: coords}, nil
		}
		return s.resolve(ctx, vendor), nil
	})

	return vendor.WithCoordinates(v.(geocodeResult).coords)
}

// EnsureAll geocodes every vendor lacking coordinates in parallel, bounded by
// the configured concurrency. Output order matches input order.
func (s *GeocodeCacheService) EnsureAll(ctx context.Context, vendors []*entities.Vendor) []*entities.Vendor {
	out := make([]*entities.Vendor, len(vendors))

	g := new(errgroup.Group)
	g.SetLimit(s.config.Concurrency)
	for i, vendor := range vendors {
		if vendor == nil || vendor.HasCoordinates() {
			out[i] = vendor
			continue
		}
		g.Go(func() error {
			out[i] = s.EnsureCoordinates(ctx, vendor)
			return nil
		})
	}
	_ = g.Wait()

	return out
}

func (s *GeocodeCacheService) lookup(vendorID string) (entities.Coordinates, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if coords, ok := s.resolved[vendorID]; ok {
		return coords, true
	}
	if until, ok := s.failures[vendorID]; ok && s.now().Before(until) {
		return entities.SentinelCoordinates, true
	}
	return entities.Coordinates{}, false
}

// GeocodeAddress resolves an ad-hoc address with the same timeout and
// fallback rules as vendor geocoding. ok is false when the sentinel is
// returned. Nothing is memoised or persisted.
func (s *GeocodeCacheService) GeocodeAddress(ctx context.Context, address string) (entities.Coordinates, bool) {
	coords, reason, err := s.geocode(ctx, address)
	observability.RecordGeocode(ctx, s.metrics, reason != "", reason)
	if reason != "" {
		observability.LoggerFromContext(ctx).Warn().Err(err).
			Str("address", address).
			Str("reason", reason).
			Msg("Geocoding failed, using fallback coordinates")
		return entities.SentinelCoordinates, false
	}
	return coords, true
}

func (s *GeocodeCacheService) resolve(ctx context.Context, vendor *entities.Vendor) geocodeResult {
	logger := observability.LoggerFromContext(ctx).With().
		Str("vendor_id", vendor.ID).
		Str("location", vendor.LocationText).
		Logger()

	// Shared by every caller waiting on this vendor; only the timeout bounds it.
	geoCtx := context.WithoutCancel(ctx)

	coords, reason, err := s.geocode(geoCtx, vendor.LocationText)
	if reason != "" {
		s.fail(ctx, vendor.ID, reason)
		logger.Warn().Err(err).Str("reason", reason).Msg("Geocoding failed, using fallback coordinates")
		return geocodeResult{coords: entities.SentinelCoordinates}
	}

	observability.RecordGeocode(ctx, s.metrics, false, "")

	s.mu.Lock()
	s.resolved[vendor.ID] = coords
	s.mu.Unlock()

	if s.vendors != nil {
		writeCtx, cancel := context.WithTimeout(geoCtx, s.config.Timeout)
		defer cancel()
		if err := s.vendors.UpdateCoordinates(writeCtx, vendor.ID, coords); err != nil {
			logger.Error().Err(err).Msg("Failed to persist vendor coordinates")
		}
	}

	if s.index != nil {
		indexCtx, cancel := context.WithTimeout(geoCtx, s.config.Timeout)
		defer cancel()
		if err := s.index.Index(indexCtx, vendor.WithCoordinates(coords)); err != nil {
			logger.Error().Err(err).Msg("Failed to index geocoded vendor")
		}
	}

	return geocodeResult{coords: coords}
}

// geocode returns a non-empty reason when the address could not be resolved.
func (s *GeocodeCacheService) geocode(ctx context.Context, address string) (entities.Coordinates, string, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return entities.Coordinates{}, geocodeReasonNoLocation, nil
	}

	geoCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	coords, err := s.geocoder.Geocode(geoCtx, address)
	switch {
	case err != nil:
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(geoCtx.Err(), context.DeadlineExceeded) {
			return entities.Coordinates{}, geocodeReasonTimeout, err
		}
		return entities.Coordinates{}, geocodeReasonError, err
	case coords == nil || coords.IsSentinel():
		return entities.Coordinates{}, geocodeReasonNoMatch, nil
	}
	return *coords, "", nil
}

func (s *GeocodeCacheService) fail(ctx context.Context, vendorID, reason string) {
	observability.RecordGeocode(ctx, s.metrics, true, reason)

	s.mu.Lock()
	s.failures[vendorID] = s.now().Add(s.config.FailureTTL)
	s.mu.Unlock()
}
