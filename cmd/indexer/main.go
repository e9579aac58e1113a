package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/partaibook/vendor-discovery/internal/adapters/database"
	"github.com/partaibook/vendor-discovery/internal/adapters/search"
	"github.com/partaibook/vendor-discovery/internal/application/services"
	"github.com/partaibook/vendor-discovery/internal/infrastructure/clients/postgres"
	"github.com/partaibook/vendor-discovery/internal/infrastructure/clients/typesense"
	"github.com/partaibook/vendor-discovery/internal/infrastructure/observability"
	"github.com/partaibook/vendor-discovery/pkg/config"
)

func main() {
	var reset bool
	var intervalFlag string
	flag.BoolVar(&reset, "reset", false, "delete existing Typesense collection before reindexing")
	flag.StringVar(&intervalFlag, "interval", "", "repeat interval for reindexing (e.g. 6h, 30m)")
	flag.Parse()

	_ = godotenv.Load()

	intervalValue := strings.TrimSpace(intervalFlag)
	if intervalValue == "" {
		intervalValue = strings.TrimSpace(os.Getenv("REINDEX_INTERVAL"))
	}

	var interval time.Duration
	var err error
	if intervalValue != "" {
		interval, err = time.ParseDuration(intervalValue)
		if err != nil {
			log.Fatal().Err(err).Str("interval", intervalValue).Msg("Invalid interval")
		}
		if interval <= 0 {
			log.Fatal().Msg("Interval must be greater than zero")
		}
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	observability.InitLogger("vendor-indexer", cfg.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for {
		if err := indexOnce(ctx, cfg, reset); err != nil {
			log.Error().Err(err).Msg("Reindex failed")
		}

		if interval <= 0 {
			break
		}

		reset = false
		log.Info().Dur("next_run", interval).Msg("Reindex complete")

		select {
		case <-ctx.Done():
			log.Info().Msg("Reindexer shutting down")
			return
		case <-time.After(interval):
		}
	}
}

func indexOnce(ctx context.Context, cfg *config.Config, reset bool) error {
	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		return err
	}
	defer pgClient.Close()

	tsClient, err := typesense.NewClient(&cfg.Typesense)
	if err != nil {
		return err
	}

	if reset {
		if err := tsClient.DropSchema(ctx); err != nil {
			log.Warn().Err(err).Msg("Failed to drop vendor collection")
		}
	}
	if err := tsClient.InitSchema(ctx); err != nil {
		return err
	}

	catalog := services.NewVendorCatalogService(
		database.NewVendorAdapter(pgClient, nil),
		search.NewTypesenseAdapter(tsClient),
	)

	start := time.Now()
	indexed, err := catalog.Reindex(ctx)
	log.Info().
		Int("indexed", indexed).
		Dur("duration", time.Since(start)).
		Bool("reset", reset).
		Msg("Indexed vendors")
	return err
}
