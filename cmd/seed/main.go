package main

import (
	"context"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/partaibook/vendor-discovery/internal/adapters/database"
	"github.com/partaibook/vendor-discovery/internal/adapters/search"
	"github.com/partaibook/vendor-discovery/internal/application/services"
	"github.com/partaibook/vendor-discovery/internal/domain/entities"
	"github.com/partaibook/vendor-discovery/internal/domain/repositories"
	"github.com/partaibook/vendor-discovery/internal/infrastructure/clients/postgres"
	"github.com/partaibook/vendor-discovery/internal/infrastructure/clients/typesense"
	"github.com/partaibook/vendor-discovery/internal/infrastructure/observability"
	"github.com/partaibook/vendor-discovery/pkg/config"
)

// Seeded ids are stable so re-running the seeder updates rather than duplicates.
var seedNamespace = uuid.MustParse("6f1c2a52-8d0e-4c1e-9a77-3b0f1e2d4c5a")

type seedVendor struct {
	name     string
	category string
	location string
	price    string
	coords   *entities.Coordinates
	facets   map[string]bool
	media    []string
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	observability.InitLogger("vendor-seed", cfg.Environment)

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to DB")
	}
	defer pgClient.Close()

	ctx := context.Background()
	if err := pgClient.EnsureSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply schema")
	}

	if os.Getenv("RESET_DB") == "true" {
		log.Info().Msg("RESET_DB=true detected, truncating vendors before seeding")
		if _, err := pgClient.DB().ExecContext(ctx, `TRUNCATE TABLE vendors`); err != nil {
			log.Fatal().Err(err).Msg("Failed to reset vendors")
		}
	}

	vendorRepo := database.NewVendorAdapter(pgClient, nil)

	seeded := 0
	for _, s := range seedVendors() {
		vendor := &entities.Vendor{
			ID:           uuid.NewSHA1(seedNamespace, []byte(s.name)).String(),
			Name:         s.name,
			Category:     s.category,
			LocationText: s.location,
			Coordinates:  s.coords,
			Price:        entities.NewPrice(s.price),
			Media:        s.media,
			Facets:       s.facets,
		}
		if err := vendorRepo.Upsert(ctx, vendor); err != nil {
			log.Error().Err(err).Str("vendor", s.name).Msg("Failed to seed vendor")
			continue
		}
		seeded++
	}
	log.Info().Int("vendors", seeded).Msg("Seeded vendors")

	if !cfg.Typesense.Enabled {
		return
	}
	tsClient, err := typesense.NewClient(&cfg.Typesense)
	if err != nil {
		log.Warn().Err(err).Msg("Typesense unavailable, skipping index")
		return
	}
	if err := tsClient.InitSchema(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to init Typesense schema")
		return
	}

	var searchRepo repositories.VendorSearchRepository = search.NewTypesenseAdapter(tsClient)
	indexed, err := services.NewVendorCatalogService(vendorRepo, searchRepo).Reindex(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Indexing incomplete")
	}
	log.Info().Int("indexed", indexed).Msg("Indexed seeded vendors")
}

// Vendors without coordinates are placed by the geocode cache on first view.
func seedVendors() []seedVendor {
	at := func(lat, lon float64) *entities.Coordinates {
		return &entities.Coordinates{Latitude: lat, Longitude: lon}
	}
	return []seedVendor{
		{name: "Sweet Tiers Bakery", category: "Cakes & Desserts", location: "Astoria, Queens, NY", price: "120",
			coords: at(40.7644, -73.9235), facets: map[string]bool{"delivery": true}, media: []string{"https://cdn.partaibook.test/sweet-tiers/1.jpg"}},
		{name: "Crumb & Co", category: "Cakes & Desserts > Cupcakes", location: "Park Slope, Brooklyn, NY", price: "85",
			coords: at(40.6710, -73.9814), media: []string{"https://cdn.partaibook.test/crumb/1.jpg", "https://cdn.partaibook.test/crumb/2.jpg"}},
		{name: "Bronx Bounce Houses", category: "Kids Activities > Bouncy Castle", location: "Fordham, Bronx, NY", price: "from $250",
			facets: map[string]bool{"outdoor": true}},
		{name: "Hall on Grand", category: "Venue Hire", location: "Grand Concourse, Bronx, NY", price: "1500",
			coords: at(40.8270, -73.9226), facets: map[string]bool{"indoor": true, "wheelchair_accessible": true}},
		{name: "Loft Balloon Studio", category: "Balloons & Decor > Backdrops", location: "Chelsea, Manhattan, NY", price: "300",
			media: []string{"https://cdn.partaibook.test/loft/1.jpg"}},
		{name: "Harlem Soul Catering", category: "Catering & Food", location: "Harlem, Manhattan, NY", price: "Contact for pricing",
			coords: at(40.8116, -73.9465), facets: map[string]bool{"halal": true, "vegan_options": true}},
		{name: "Mister Marvel Magic", category: "Entertainment > Magicians", location: "Williamsburg, Brooklyn, NY", price: "200"},
		{name: "Snap Booth NYC", category: "Photography & Video", location: "Long Island City, Queens, NY", price: "450",
			coords: at(40.7447, -73.9485)},
		{name: "Staten Sound DJs", category: "Entertainment > DJs", location: "St. George, Staten Island, NY", price: "600"},
	}
}
