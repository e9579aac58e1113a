package routes

import (
	"net/http"

	"github.com/partaibook/vendor-discovery/internal/api/handlers"
	"github.com/partaibook/vendor-discovery/internal/api/middleware"
	"github.com/partaibook/vendor-discovery/internal/infrastructure/observability"
)

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	discoveryHandler   *handlers.DiscoveryHandler
	shortlistHandler   *handlers.ShortlistHandler
	geolocationHandler *handlers.GeolocationHandler
	categoryHandler    *handlers.CategoryHandler
	sseHandler         *handlers.SSEHandler

	cacheMiddleware   *middleware.CacheMiddleware
	requestMiddleware []func(http.Handler) http.Handler
	allowedOrigins    []string
	metrics           *observability.Metrics
}

// RouterConfig carries the handlers and cross-cutting pieces of the router.
// CacheMiddleware and RequestMiddleware are optional.
type RouterConfig struct {
	Discovery   *handlers.DiscoveryHandler
	Shortlist   *handlers.ShortlistHandler
	Geolocation *handlers.GeolocationHandler
	Categories  *handlers.CategoryHandler
	SSE         *handlers.SSEHandler

	CacheMiddleware *middleware.CacheMiddleware
	// RequestMiddleware wraps the mux innermost, e.g. per-request loaders.
	RequestMiddleware []func(http.Handler) http.Handler
	AllowedOrigins    []string
	Metrics           *observability.Metrics
}

// NewRouter creates a new router
func NewRouter(cfg RouterConfig) *Router {
	return &Router{
		mux:                http.NewServeMux(),
		discoveryHandler:   cfg.Discovery,
		shortlistHandler:   cfg.Shortlist,
		geolocationHandler: cfg.Geolocation,
		categoryHandler:    cfg.Categories,
		sseHandler:         cfg.SSE,
		cacheMiddleware:    cfg.CacheMiddleware,
		requestMiddleware:  cfg.RequestMiddleware,
		allowedOrigins:     cfg.AllowedOrigins,
		metrics:            cfg.Metrics,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	r.mux.HandleFunc("GET /health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			return
		}
	})

	r.mux.HandleFunc("GET /api/categories", r.categoryHandler.ListCategories)
	r.mux.HandleFunc("GET /api/geocode", r.geolocationHandler.Geocode)

	// Discovery sessions
	r.mux.HandleFunc("POST /api/discovery/search", r.discoveryHandler.Search)
	r.mux.HandleFunc("POST /api/discovery/sessions", r.discoveryHandler.CreateSession)
	r.mux.HandleFunc("GET /api/discovery/sessions/{id}", r.discoveryHandler.GetSession)
	r.mux.HandleFunc("DELETE /api/discovery/sessions/{id}", r.discoveryHandler.CloseSession)
	r.mux.HandleFunc("PUT /api/discovery/sessions/{id}/filters", r.discoveryHandler.UpdateFilters)
	r.mux.HandleFunc("POST /api/discovery/sessions/{id}/viewport", r.discoveryHandler.MoveViewport)
	r.mux.HandleFunc("POST /api/discovery/sessions/{id}/refresh", r.discoveryHandler.Refresh)
	r.mux.HandleFunc("POST /api/discovery/sessions/{id}/map/ready", r.discoveryHandler.MapReady)
	r.mux.HandleFunc("DELETE /api/discovery/sessions/{id}/map", r.discoveryHandler.MapTornDown)
	r.mux.HandleFunc("POST /api/discovery/sessions/{id}/media-failures", r.discoveryHandler.MarkMediaFailed)

	// Shortlist
	r.mux.HandleFunc("GET /api/discovery/sessions/{id}/shortlist", r.shortlistHandler.View)
	r.mux.HandleFunc("DELETE /api/discovery/sessions/{id}/shortlist", r.shortlistHandler.Clear)
	r.mux.HandleFunc("POST /api/discovery/sessions/{id}/shortlist/checkout", r.shortlistHandler.Checkout)
	r.mux.HandleFunc("POST /api/discovery/sessions/{id}/shortlist/{vendorId}/toggle", r.shortlistHandler.Toggle)
	r.mux.HandleFunc("DELETE /api/discovery/sessions/{id}/shortlist/{vendorId}", r.shortlistHandler.Remove)

	// Marker stream
	if r.sseHandler != nil {
		r.mux.HandleFunc("GET /api/stream/sessions/{id}/markers", r.sseHandler.StreamMarkers)
	}

	// Apply middleware in reverse order (last middleware wraps first)
	var handler http.Handler = r.mux
	for i := len(r.requestMiddleware) - 1; i >= 0; i-- {
		handler = r.requestMiddleware[i](handler)
	}
	handler = middleware.LoggingMiddleware(handler)

	if r.cacheMiddleware != nil {
		handler = r.cacheMiddleware.Middleware(handler)
	}

	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)
	handler = middleware.ResponseOptimization(handler)

	// CORS wraps everything so headers are set even on cache HITs
	handler = middleware.CORSMiddleware(r.allowedOrigins)(handler)

	return handler
}
