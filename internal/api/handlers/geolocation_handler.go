package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/partaibook/vendor-discovery/internal/domain/entities"
)

// AddressGeocoder resolves an address, falling back to the sentinel point
// when it cannot.
type AddressGeocoder interface {
	GeocodeAddress(ctx context.Context, address string) (entities.Coordinates, bool)
}

// GeolocationHandler handles geolocation endpoints.
type GeolocationHandler struct {
	geocoder AddressGeocoder
}

// NewGeolocationHandler creates a new geolocation handler.
func NewGeolocationHandler(geocoder AddressGeocoder) *GeolocationHandler {
	return &GeolocationHandler{geocoder: geocoder}
}

// Geocode handles GET /api/geocode?address=...
// Failures are not errors: the response carries (0,0) and fallback=true.
func (h *GeolocationHandler) Geocode(w http.ResponseWriter, r *http.Request) {
	address := strings.TrimSpace(r.URL.Query().Get("address"))
	if address == "" {
		respondWithError(w, http.StatusBadRequest, "address parameter is required")
		return
	}

	coords, ok := h.geocoder.GeocodeAddress(r.Context(), address)

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"address":  address,
		"lat":      coords.Latitude,
		"lon":      coords.Longitude,
		"fallback": !ok,
	})
}
