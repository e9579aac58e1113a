package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/partaibook/vendor-discovery/internal/adapters/cache"
	"github.com/partaibook/vendor-discovery/internal/adapters/database"
	"github.com/partaibook/vendor-discovery/internal/adapters/events"
	"github.com/partaibook/vendor-discovery/internal/adapters/providers/geolocation"
	"github.com/partaibook/vendor-discovery/internal/adapters/search"
	"github.com/partaibook/vendor-discovery/internal/api/handlers"
	"github.com/partaibook/vendor-discovery/internal/api/middleware"
	"github.com/partaibook/vendor-discovery/internal/api/routes"
	"github.com/partaibook/vendor-discovery/internal/application/services"
	"github.com/partaibook/vendor-discovery/internal/domain/entities"
	"github.com/partaibook/vendor-discovery/internal/domain/providers"
	"github.com/partaibook/vendor-discovery/internal/domain/repositories"
	"github.com/partaibook/vendor-discovery/internal/infrastructure/clients/postgres"
	"github.com/partaibook/vendor-discovery/internal/infrastructure/clients/redis"
	"github.com/partaibook/vendor-discovery/internal/infrastructure/clients/typesense"
	"github.com/partaibook/vendor-discovery/internal/infrastructure/observability"
	"github.com/partaibook/vendor-discovery/internal/loaders"
	"github.com/partaibook/vendor-discovery/pkg/config"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	observability.InitLogger(cfg.OTEL.ServiceName, cfg.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize OpenTelemetry if enabled
	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to set up OpenTelemetry")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					log.Error().Err(err).Msg("Error shutting down OpenTelemetry")
				}
			}()
			log.Info().Str("endpoint", cfg.OTEL.Endpoint).Msg("OpenTelemetry initialized")
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize metrics")
	}

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize PostgreSQL client")
	}
	defer pgClient.Close()
	if err := pgClient.EnsureSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply vendor schema")
	}

	// Redis is optional. Without it sessions live in memory only and
	// checkout handoffs are logged.
	redisClient, err := redis.NewClient(&cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("Redis unavailable, continuing without cache, events and session store")
	} else {
		defer redisClient.Close()
	}

	var cacheProvider providers.CacheProvider
	var eventBus providers.EventBus
	var sessionStore repositories.DiscoverySessionRepository
	var checkoutProvider providers.CheckoutProvider
	if redisClient != nil {
		cacheProvider = cache.NewRedisAdapter(redisClient)
		bus := events.NewRedisEventBus(redisClient)
		defer bus.Close()
		eventBus = bus
		sessionStore = cache.NewRedisSessionStore(redisClient, cfg.Discovery.SessionTTL)
		checkoutProvider = events.NewCheckoutPublisher(redisClient)
	}

	// Vendor store, read through the cache when Redis is up
	var vendorRepo repositories.VendorRepository = database.NewVendorAdapter(pgClient, metrics)
	if cacheProvider != nil {
		vendorRepo = database.NewCachedVendorAdapter(vendorRepo, cacheProvider, metrics)
	}

	var searchRepo repositories.VendorSearchRepository
	if cfg.Typesense.Enabled {
		tsClient, err := typesense.NewClient(&cfg.Typesense)
		if err != nil {
			log.Warn().Err(err).Msg("Typesense unavailable, viewport queries go to PostgreSQL")
		} else {
			if err := tsClient.InitSchema(ctx); err != nil {
				log.Warn().Err(err).Msg("Failed to init Typesense schema")
			}
			searchRepo = search.NewTypesenseAdapter(tsClient)
		}
	}

	var geocoder providers.GeolocationProvider
	switch cfg.Geolocation.Provider {
	case "mapbox":
		geocoder = geolocation.NewMapboxProvider(cfg.Geolocation.APIKey, cacheProvider, geolocation.MapboxOptions{
			BaseURL:  cfg.Geolocation.BaseURL,
			Timeout:  cfg.Geolocation.Timeout,
			CacheTTL: cfg.Geolocation.CacheTTL,
		})
	default:
		geocoder = geolocation.NewMockGeolocationProvider()
	}

	// Services
	catalog := services.NewVendorCatalogService(vendorRepo, searchRepo)
	geocodeCache := services.NewGeocodeCacheService(geocoder, vendorRepo, searchRepo, metrics, services.GeocodeCacheConfig{
		Timeout:     cfg.Geolocation.Timeout,
		FailureTTL:  cfg.Discovery.FailureTTL,
		Concurrency: cfg.Discovery.GeocodeConcurrency,
	})

	deps := services.DiscoveryDeps{
		Fetcher:  catalog,
		Resolver: geocodeCache,
		Parser:   services.NewIntentParser(nil),
		Store:    sessionStore,
		Checkout: services.NewCheckoutHandoffService(vendorRepo, checkoutProvider),
		Metrics:  metrics,
	}
	if eventBus != nil {
		deps.Sink = services.NewEventBusMarkerSink(eventBus)
	}
	discovery := services.NewDiscoveryService(deps, services.DiscoveryConfig{
		DefaultViewport: entities.ViewportAround(cfg.Discovery.DefaultLatitude, cfg.Discovery.DefaultLongitude,
			entities.DefaultLatitudeSpan, entities.DefaultLongitudeSpan),
		SessionTTL:   cfg.Discovery.SessionTTL,
		FetchTimeout: cfg.Discovery.FetchTimeout,
	})
	defer discovery.Shutdown()

	janitorInterval := cfg.Discovery.SessionTTL / 4
	if janitorInterval < time.Minute {
		janitorInterval = time.Minute
	}
	go discovery.RunJanitor(ctx, janitorInterval)

	// Router
	var cacheMiddleware *middleware.CacheMiddleware
	if cacheProvider != nil {
		cacheMiddleware = middleware.NewCacheMiddleware(cacheProvider, metrics, nil)
	}

	router := routes.NewRouter(routes.RouterConfig{
		Discovery:         handlers.NewDiscoveryHandler(discovery),
		Shortlist:         handlers.NewShortlistHandler(discovery),
		Geolocation:       handlers.NewGeolocationHandler(geocodeCache),
		Categories:        handlers.NewCategoryHandler(),
		SSE:               handlers.NewSSEHandler(eventBus),
		CacheMiddleware:   cacheMiddleware,
		RequestMiddleware: []func(http.Handler) http.Handler{loaders.Middleware(vendorRepo)},
		AllowedOrigins:    cfg.Server.AllowedOrigins,
		Metrics:           metrics,
	})

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:        serverAddr,
		Handler:     router.SetupRoutes(),
		ReadTimeout: 15 * time.Second,
		// No write timeout: marker streams stay open.
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", serverAddr).Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Server shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during server shutdown")
	}

	log.Info().Msg("Server stopped")
}
