package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/partaibook/vendor-discovery/internal/application/services"
	"github.com/partaibook/vendor-discovery/internal/domain/entities"
)

// DiscoveryService is the session surface the discovery and shortlist
// handlers depend on.
type DiscoveryService interface {
	ParseSearch(query string) services.SearchNavigation
	CreateSession(ctx context.Context, filters entities.FilterState) (*services.SessionView, error)
	GetSession(ctx context.Context, id string) (*services.SessionView, error)
	UpdateFilters(ctx context.Context, id string, filters entities.FilterState) (*services.SessionView, error)
	MoveViewport(ctx context.Context, id string, viewport entities.Viewport) (*services.SessionView, error)
	Refresh(ctx context.Context, id string) (*services.SessionView, error)
	MapReady(ctx context.Context, id string) error
	MapTornDown(ctx context.Context, id string) error
	MarkMediaFailed(ctx context.Context, id string, key entities.MediaKey) error
	CloseSession(ctx context.Context, id string) error

	ToggleShortlist(ctx context.Context, id, vendorID string) (bool, error)
	RemoveFromShortlist(ctx context.Context, id, vendorID string) error
	ShortlistView(ctx context.Context, id string) ([]entities.ShortlistGroup, error)
	ClearShortlist(ctx context.Context, id string) error
	ContinueToBooking(ctx context.Context, id string) (*entities.BookingHandoff, error)
}

// DiscoveryHandler handles discovery session HTTP requests
type DiscoveryHandler struct {
	service DiscoveryService
}

// NewDiscoveryHandler creates a new discovery handler
func NewDiscoveryHandler(service DiscoveryService) *DiscoveryHandler {
	return &DiscoveryHandler{service: service}
}

type searchRequest struct {
	Query string `json:"query"`
}

// Search handles POST /api/discovery/search
func (h *DiscoveryHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, h.service.ParseSearch(req.Query))
}

// CreateSession handles POST /api/discovery/sessions?q=&date=&category=&location=&budget=
func (h *DiscoveryHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	filters := entities.FilterStateFromQuery(r.URL.Query())

	view, err := h.service.CreateSession(r.Context(), filters)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, view)
}

// GetSession handles GET /api/discovery/sessions/{id}
func (h *DiscoveryHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	view, err := h.service.GetSession(r.Context(), id)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, view)
}

// UpdateFilters handles PUT /api/discovery/sessions/{id}/filters
func (h *DiscoveryHandler) UpdateFilters(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	var filters entities.FilterState
	if err := decodeJSON(r, &filters); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	view, err := h.service.UpdateFilters(r.Context(), id, filters)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, view)
}

// MoveViewport handles POST /api/discovery/sessions/{id}/viewport
func (h *DiscoveryHandler) MoveViewport(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	var viewport entities.Viewport
	if err := decodeJSON(r, &viewport); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	view, err := h.service.MoveViewport(r.Context(), id, viewport)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusAccepted, view)
}

// Refresh handles POST /api/discovery/sessions/{id}/refresh
func (h *DiscoveryHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	view, err := h.service.Refresh(r.Context(), id)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusAccepted, view)
}

// MapReady handles POST /api/discovery/sessions/{id}/map/ready
func (h *DiscoveryHandler) MapReady(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	if err := h.service.MapReady(r.Context(), id); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MapTornDown handles DELETE /api/discovery/sessions/{id}/map
func (h *DiscoveryHandler) MapTornDown(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	if err := h.service.MapTornDown(r.Context(), id); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MarkMediaFailed handles POST /api/discovery/sessions/{id}/media-failures
func (h *DiscoveryHandler) MarkMediaFailed(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	var key entities.MediaKey
	if err := decodeJSON(r, &key); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	if err := h.service.MarkMediaFailed(r.Context(), id, key); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CloseSession handles DELETE /api/discovery/sessions/{id}
func (h *DiscoveryHandler) CloseSession(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	if err := h.service.CloseSession(r.Context(), id); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func sessionID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		respondWithError(w, http.StatusBadRequest, "session ID is required")
		return "", false
	}
	return id, true
}
