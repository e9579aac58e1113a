package handlers

import (
	"net/http"
	"strings"
)

// ShortlistHandler handles shortlist HTTP requests for a discovery session
type ShortlistHandler struct {
	service DiscoveryService
}

// NewShortlistHandler creates a new shortlist handler
func NewShortlistHandler(service DiscoveryService) *ShortlistHandler {
	return &ShortlistHandler{service: service}
}

// Toggle handles POST /api/discovery/sessions/{id}/shortlist/{vendorId}/toggle
func (h *ShortlistHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	id, vendorID, ok := shortlistPath(w, r)
	if !ok {
		return
	}

	selected, err := h.service.ToggleShortlist(r.Context(), id, vendorID)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"vendor_id": vendorID,
		"selected":  selected,
	})
}

// Remove handles DELETE /api/discovery/sessions/{id}/shortlist/{vendorId}
func (h *ShortlistHandler) Remove(w http.ResponseWriter, r *http.Request) {
	id, vendorID, ok := shortlistPath(w, r)
	if !ok {
		return
	}
	if err := h.service.RemoveFromShortlist(r.Context(), id, vendorID); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// View handles GET /api/discovery/sessions/{id}/shortlist
func (h *ShortlistHandler) View(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	groups, err := h.service.ShortlistView(r.Context(), id)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	count := 0
	for _, g := range groups {
		count += len(g.Entries)
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"groups": groups,
		"count":  count,
	})
}

// Clear handles DELETE /api/discovery/sessions/{id}/shortlist
func (h *ShortlistHandler) Clear(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	if err := h.service.ClearShortlist(r.Context(), id); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Checkout handles POST /api/discovery/sessions/{id}/shortlist/checkout
func (h *ShortlistHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	handoff, err := h.service.ContinueToBooking(r.Context(), id)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusAccepted, handoff)
}

func shortlistPath(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	id, ok := sessionID(w, r)
	if !ok {
		return "", "", false
	}
	vendorID := strings.TrimSpace(r.PathValue("vendorId"))
	if vendorID == "" {
		respondWithError(w, http.StatusBadRequest, "vendor ID is required")
		return "", "", false
	}
	return id, vendorID, true
}
