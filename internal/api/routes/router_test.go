package routes_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/partaibook/vendor-discovery/internal/api/handlers"
	"github.com/partaibook/vendor-discovery/internal/api/routes"
	"github.com/partaibook/vendor-discovery/internal/application/services"
	"github.com/partaibook/vendor-discovery/internal/domain/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticFetcher struct {
	vendors []*entities.Vendor
}

func (f staticFetcher) FetchVendors(ctx context.Context, vp entities.Viewport) ([]*entities.Vendor, error) {
	return f.vendors, nil
}

type staticGeocoder struct{}

func (staticGeocoder) GeocodeAddress(ctx context.Context, address string) (entities.Coordinates, bool) {
	return entities.SentinelCoordinates, false
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	queens := entities.Coordinates{Latitude: 40.7282, Longitude: -73.7949}
	bronx := entities.Coordinates{Latitude: 40.8448, Longitude: -73.8648}
	fetcher := staticFetcher{vendors: []*entities.Vendor{
		{ID: "a", Name: "Sweet Tiers", Category: "Cakes & Desserts", LocationText: "Queens, NY", Coordinates: &queens, Price: entities.NumericPrice(120)},
		{ID: "b", Name: "Hall on Grand", LocationText: "Bronx, NY", Coordinates: &bronx, Price: entities.NumericPrice(400)},
	}}

	svc := services.NewDiscoveryService(services.DiscoveryDeps{Fetcher: fetcher}, services.DiscoveryConfig{})
	t.Cleanup(svc.Shutdown)

	router := routes.NewRouter(routes.RouterConfig{
		Discovery:   handlers.NewDiscoveryHandler(svc),
		Shortlist:   handlers.NewShortlistHandler(svc),
		Geolocation: handlers.NewGeolocationHandler(staticGeocoder{}),
		Categories:  handlers.NewCategoryHandler(),
		SSE:         handlers.NewSSEHandler(nil),
	})
	server := httptest.NewServer(router.SetupRoutes())
	t.Cleanup(server.Close)
	return server
}

func do(t *testing.T, method, url string, body string) *http.Response {
	t.Helper()
	var req *http.Request
	var err error
	if body == "" {
		req, err = http.NewRequest(method, url, nil)
	} else {
		req, err = http.NewRequest(method, url, strings.NewReader(body))
	}
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

type sessionBody struct {
	ID    string `json:"id"`
	Query string `json:"query"`
	Sync  struct {
		State string `json:"state"`
	} `json:"sync"`
	Groups []struct {
		Category string `json:"category"`
		Vendors  []struct {
			ID           string `json:"id"`
			WithinBudget *bool  `json:"within_budget"`
			Selected     bool   `json:"selected"`
		} `json:"vendors"`
	} `json:"groups"`
	TotalVendors   int `json:"total_vendors"`
	ShortlistCount int `json:"shortlist_count"`
}

func decodeSession(t *testing.T, resp *http.Response) sessionBody {
	t.Helper()
	var body sessionBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func waitIdle(t *testing.T, base, id string) sessionBody {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		body := decodeSession(t, do(t, http.MethodGet, base+"/api/discovery/sessions/"+id, ""))
		if body.Sync.State == "idle" {
			return body
		}
		if time.Now().After(deadline) {
			t.Fatal("session never settled")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestRouter_DiscoveryFlow(t *testing.T) {
	server := newTestServer(t)

	resp := do(t, http.MethodPost, server.URL+"/api/discovery/sessions?category=Cakes+%26+Desserts&budget=200", "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decodeSession(t, resp)
	require.NotEmpty(t, created.ID)

	session := waitIdle(t, server.URL, created.ID)
	require.Len(t, session.Groups, 2)
	assert.Equal(t, "Cakes & Desserts", session.Groups[0].Category)
	assert.Equal(t, "Other", session.Groups[1].Category)
	require.NotNil(t, session.Groups[0].Vendors[0].WithinBudget)
	assert.True(t, *session.Groups[0].Vendors[0].WithinBudget)
	assert.False(t, *session.Groups[1].Vendors[0].WithinBudget)

	resp = do(t, http.MethodPost, server.URL+"/api/discovery/sessions/"+created.ID+"/shortlist/a/toggle", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, http.MethodGet, server.URL+"/api/discovery/sessions/"+created.ID+"/shortlist", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var shortlist struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&shortlist))
	assert.Equal(t, 1, shortlist.Count)

	resp = do(t, http.MethodPost, server.URL+"/api/discovery/sessions/"+created.ID+"/shortlist/checkout", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode, "no checkout configured")

	resp = do(t, http.MethodDelete, server.URL+"/api/discovery/sessions/"+created.ID, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = do(t, http.MethodGet, server.URL+"/api/discovery/sessions/"+created.ID, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRouter_SearchAndStatic(t *testing.T) {
	server := newTestServer(t)

	resp := do(t, http.MethodPost, server.URL+"/api/discovery/search", `{"query":"finger food in Brooklyn"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var nav struct {
		Path string `json:"path"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&nav))
	assert.True(t, strings.HasPrefix(nav.Path, "/search?"))
	assert.Contains(t, nav.Path, "location=Brooklyn")

	resp = do(t, http.MethodGet, server.URL+"/api/categories", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, http.MethodGet, server.URL+"/api/geocode?address=nowhere", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, http.MethodGet, server.URL+"/api/stream/sessions/s1/markers", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp = do(t, http.MethodGet, server.URL+"/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRouter_InvalidViewport(t *testing.T) {
	server := newTestServer(t)

	created := decodeSession(t, do(t, http.MethodPost, server.URL+"/api/discovery/sessions", ""))
	resp := do(t, http.MethodPost, server.URL+"/api/discovery/sessions/"+created.ID+"/viewport", `{"south":50,"north":10,"west":0,"east":1}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
