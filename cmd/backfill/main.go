package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/partaibook/vendor-discovery/internal/adapters/database"
	"github.com/partaibook/vendor-discovery/internal/adapters/providers/geolocation"
	"github.com/partaibook/vendor-discovery/internal/adapters/search"
	"github.com/partaibook/vendor-discovery/internal/application/services"
	"github.com/partaibook/vendor-discovery/internal/domain/entities"
	"github.com/partaibook/vendor-discovery/internal/domain/providers"
	"github.com/partaibook/vendor-discovery/internal/domain/repositories"
	"github.com/partaibook/vendor-discovery/internal/infrastructure/clients/postgres"
	"github.com/partaibook/vendor-discovery/internal/infrastructure/clients/typesense"
	"github.com/partaibook/vendor-discovery/internal/infrastructure/observability"
	"github.com/partaibook/vendor-discovery/pkg/config"
)

// backfill geocodes vendors that have no stored coordinates. The geocode
// cache writes each placed vendor back to the store and the geo index.
func main() {
	var workers int
	var limit int
	flag.IntVar(&workers, "workers", 4, "Number of concurrent geocoding requests")
	flag.IntVar(&limit, "limit", 500, "Max vendors to geocode in this run")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	observability.InitLogger("vendor-backfill", cfg.Environment)

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pgClient.Close()

	vendorRepo := database.NewVendorAdapter(pgClient, nil)

	var geocoder providers.GeolocationProvider
	switch cfg.Geolocation.Provider {
	case "mapbox":
		geocoder = geolocation.NewMapboxProvider(cfg.Geolocation.APIKey, nil, geolocation.MapboxOptions{
			BaseURL:  cfg.Geolocation.BaseURL,
			Timeout:  cfg.Geolocation.Timeout,
			CacheTTL: cfg.Geolocation.CacheTTL,
		})
	default:
		log.Warn().Str("provider", cfg.Geolocation.Provider).Msg("Backfilling with the mock geocoder")
		geocoder = geolocation.NewMockGeolocationProvider()
	}

	var searchRepo repositories.VendorSearchRepository
	if cfg.Typesense.Enabled {
		tsClient, err := typesense.NewClient(&cfg.Typesense)
		if err != nil {
			log.Warn().Err(err).Msg("Typesense unavailable, skipping indexing")
		} else {
			searchRepo = search.NewTypesenseAdapter(tsClient)
		}
	}
	geocodeCache := services.NewGeocodeCacheService(geocoder, vendorRepo, searchRepo, nil, services.GeocodeCacheConfig{
		Timeout:     cfg.Geolocation.Timeout,
		FailureTTL:  cfg.Discovery.FailureTTL,
		Concurrency: workers,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	start := time.Now()

	pending, err := vendorRepo.FetchMissingCoordinates(ctx, limit)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list vendors without coordinates")
	}
	log.Info().Int("pending", len(pending)).Int("workers", workers).Msg("Starting geocode backfill")

	placed := make([]*entities.Vendor, 0, len(pending))
	for _, v := range geocodeCache.EnsureAll(ctx, pending) {
		if v != nil && v.HasCoordinates() && !v.Coordinates.IsSentinel() {
			placed = append(placed, v)
		}
	}

	log.Info().
		Int("processed", len(pending)).
		Int("geocoded", len(placed)).
		Int("failed", len(pending)-len(placed)).
		Bool("indexed", searchRepo != nil).
		Dur("duration", time.Since(start)).
		Msg("Backfill complete")
}
