package services

import (
	"context"
	"encoding/json"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/partaibook/vendor-discovery/internal/domain/entities"
	apperrors "github.com/partaibook/vendor-discovery/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type memorySessionStore struct {
	mu     sync.Mutex
	states map[string]entities.DiscoverySessionState
}

func newMemorySessionStore() *memorySessionStore {
	return &memorySessionStore{states: make(map[string]entities.DiscoverySessionState)}
}

func (m *memorySessionStore) Save(ctx context.Context, state *entities.DiscoverySessionState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[state.ID] = *state
	return nil
}

func (m *memorySessionStore) Get(ctx context.Context, id string) (*entities.DiscoverySessionState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.states[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("discovery session " + id)
	}
	return &state, nil
}

func (m *memorySessionStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, id)
	return nil
}

// waitForSession blocks until the session's in-flight fetches finish.
func (s *DiscoveryService) waitForSession(t *testing.T, id string) {
	t.Helper()
	sess, err := s.session(context.Background(), id)
	require.NoError(t, err)
	sess.syncer.Wait()
}

// scenarioVendors returns two ungeocoded vendors inside the default viewport
// once geocoded: a priced cake shop and an uncategorised venue.
func scenarioVendors() []*entities.Vendor {
	return []*entities.Vendor{
		{ID: "a", Name: "Sweet Tiers", Category: "Cakes & Desserts", LocationText: "Queens, NY", Price: entities.NumericPrice(120), Media: []string{"a0.jpg"}},
		{ID: "b", Name: "Hall on Grand", Category: "", LocationText: "Bronx, NY", Price: entities.NumericPrice(400)},
	}
}

type discoveryFixture struct {
	svc      *DiscoveryService
	fetcher  *gatedFetcher
	geocoder *fakeGeocoder
	repo     *MockVendorRepository
	checkout *MockCheckoutProvider
	store    *memorySessionStore
	sink     *recordingSink
}

func newDiscoveryFixture(t *testing.T) *discoveryFixture {
	t.Helper()
	f := &discoveryFixture{
		fetcher: newGatedFetcher(),
		geocoder: newFakeGeocoder(map[string]*entities.Coordinates{
			"Queens, NY": coordsPtr(40.7282, -73.7949),
			"Bronx, NY":  coordsPtr(40.8448, -73.8648),
		}),
		repo:     new(MockVendorRepository),
		checkout: new(MockCheckoutProvider),
		store:    newMemorySessionStore(),
		sink:     &recordingSink{},
	}
	f.repo.On("UpdateCoordinates", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	f.fetcher.results[entities.DefaultViewport()] = scenarioVendors()

	resolver := NewGeocodeCacheService(f.geocoder, f.repo, nil, nil, GeocodeCacheConfig{Timeout: time.Second})
	f.svc = NewDiscoveryService(DiscoveryDeps{
		Fetcher:  f.fetcher,
		Resolver: resolver,
		Sink:     f.sink,
		Parser:   newTestIntentParser(t),
		Store:    f.store,
		Checkout: NewCheckoutHandoffService(f.repo, f.checkout),
	}, DiscoveryConfig{SessionTTL: time.Hour, FetchTimeout: time.Second})
	t.Cleanup(f.svc.Shutdown)
	return f
}

func (f *discoveryFixture) createSession(t *testing.T, rawQuery string) string {
	t.Helper()
	values, err := url.ParseQuery(rawQuery)
	require.NoError(t, err)

	view, err := f.svc.CreateSession(context.Background(), entities.FilterStateFromQuery(values))
	require.NoError(t, err)
	f.svc.waitForSession(t, view.ID)
	return view.ID
}

func TestDiscovery_EndToEndScenario(t *testing.T) {
	f := newDiscoveryFixture(t)
	id := f.createSession(t, "category=Cakes+%26+Desserts&budget=200")

	view, err := f.svc.GetSession(context.Background(), id)
	require.NoError(t, err)

	require.Len(t, view.Groups, 2)
	assert.Equal(t, "Cakes & Desserts", view.Groups[0].Category)
	require.Len(t, view.Groups[0].Vendors, 1)
	assert.Equal(t, "a", view.Groups[0].Vendors[0].ID)
	require.NotNil(t, view.Groups[0].Vendors[0].WithinBudget)
	assert.True(t, *view.Groups[0].Vendors[0].WithinBudget)

	assert.Equal(t, entities.CategoryOther, view.Groups[1].Category)
	require.Len(t, view.Groups[1].Vendors, 1)
	assert.Equal(t, "b", view.Groups[1].Vendors[0].ID)
	assert.False(t, *view.Groups[1].Vendors[0].WithinBudget)

	assert.Equal(t, 2, view.TotalVendors)
	assert.Equal(t, "budget=200&category=Cakes+%26+Desserts", view.Query)
	assert.Equal(t, 1, f.geocoder.callCount("Queens, NY"))
	assert.Equal(t, 1, f.geocoder.callCount("Bronx, NY"))
}

func TestDiscovery_VendorViewJSON(t *testing.T) {
	f := newDiscoveryFixture(t)
	id := f.createSession(t, "")
	require.NoError(t, f.svc.MarkMediaFailed(context.Background(), id, entities.MediaKey{VendorID: "a", Index: 0}))

	view, err := f.svc.GetSession(context.Background(), id)
	require.NoError(t, err)

	data, err := json.Marshal(view.Groups[0].Vendors[0])
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "a", decoded["id"])
	assert.Equal(t, []interface{}{entities.MediaPlaceholder}, decoded["media"])
	assert.Equal(t, float64(120), decoded["price"])
	assert.Equal(t, false, decoded["selected"])
}

func TestDiscovery_CreateSessionFillsFromVibe(t *testing.T) {
	f := newDiscoveryFixture(t)
	id := f.createSession(t, "q=birthday+cake+in+Queens&location=Bronx")

	view, err := f.svc.GetSession(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Cakes & Desserts", view.Filters.CategoryFilter)
	assert.Equal(t, "Bronx", view.Filters.LocationSubstring, "explicit URL filters win over the vibe")
}

func TestDiscovery_ParseSearch(t *testing.T) {
	f := newDiscoveryFixture(t)

	nav := f.svc.ParseSearch("a magician in Brooklyn 21/6")
	assert.Equal(t, entities.CategoryOther, nav.Filters.CategoryFilter)
	assert.Equal(t, "Brooklyn", nav.Filters.LocationSubstring)
	require.NotNil(t, nav.Filters.DateFilter)
	assert.Equal(t, "2025-06-21", nav.Filters.DateFilter.String())

	values, err := url.ParseQuery(nav.Query)
	require.NoError(t, err)
	assert.Equal(t, "a magician in Brooklyn 21/6", values.Get("q"))
	assert.Equal(t, "/search?"+nav.Query, nav.Path)

	assert.Equal(t, "/search", f.svc.ParseSearch("  ").Path)
}

func TestDiscovery_UpdateFiltersParsesNewVibe(t *testing.T) {
	f := newDiscoveryFixture(t)
	id := f.createSession(t, "")

	view, err := f.svc.UpdateFilters(context.Background(), id, entities.FilterState{Vibe: "party games in the Bronx"})
	require.NoError(t, err)
	assert.Equal(t, "Entertainment", view.Filters.CategoryFilter)
	assert.Equal(t, "the Bronx", view.Filters.LocationSubstring)

	// Location "the Bronx" matches neither vendor's text; Other is still
	// subject to the location filter.
	assert.Equal(t, 0, view.TotalVendors)

	view, err = f.svc.UpdateFilters(context.Background(), id, entities.FilterState{Vibe: "party games in the Bronx", LocationSubstring: "bronx"})
	require.NoError(t, err)
	assert.Equal(t, "", view.Filters.CategoryFilter, "an unchanged vibe is not re-parsed")
	assert.Equal(t, 1, view.TotalVendors)
}

func TestDiscovery_ShortlistFlow(t *testing.T) {
	f := newDiscoveryFixture(t)
	id := f.createSession(t, "")
	ctx := context.Background()

	selected, err := f.svc.ToggleShortlist(ctx, id, "a")
	require.NoError(t, err)
	assert.True(t, selected)

	selected, err = f.svc.ToggleShortlist(ctx, id, "unknown")
	require.NoError(t, err)
	assert.False(t, selected)

	selected, err = f.svc.ToggleShortlist(ctx, id, "b")
	require.NoError(t, err)
	assert.True(t, selected)

	groups, err := f.svc.ShortlistView(ctx, id)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, "Cakes & Desserts", groups[0].Category)
	assert.Equal(t, entities.CategoryOther, groups[1].Category)

	view, err := f.svc.GetSession(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 2, view.ShortlistCount)
	assert.True(t, view.Groups[0].Vendors[0].Selected)

	f.repo.On("GetByIDs", mock.Anything, mock.Anything).Return(scenarioVendors(), nil)
	f.checkout.On("HandOff", mock.Anything, mock.Anything).Return(nil)

	handoff, err := f.svc.ContinueToBooking(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, handoff.VendorIDs)

	groups, err = f.svc.ShortlistView(ctx, id)
	require.NoError(t, err)
	assert.Len(t, groups, 2, "continuing to booking keeps the shortlist")

	require.NoError(t, f.svc.RemoveFromShortlist(ctx, id, "a"))
	require.NoError(t, f.svc.RemoveFromShortlist(ctx, id, "a"))
	selected, err = f.svc.ToggleShortlist(ctx, id, "b")
	require.NoError(t, err)
	assert.False(t, selected)

	_, _ = f.svc.ToggleShortlist(ctx, id, "a")
	require.NoError(t, f.svc.ClearShortlist(ctx, id))
	groups, err = f.svc.ShortlistView(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, groups)
}

func TestDiscovery_ContinueToBookingRejectsEmptyShortlist(t *testing.T) {
	f := newDiscoveryFixture(t)
	id := f.createSession(t, "")

	_, err := f.svc.ContinueToBooking(context.Background(), id)
	assert.Equal(t, apperrors.ErrorTypeValidation, apperrors.TypeOf(err))
}

func TestDiscovery_MoveViewport(t *testing.T) {
	f := newDiscoveryFixture(t)
	id := f.createSession(t, "")

	_, err := f.svc.MoveViewport(context.Background(), id, entities.Viewport{South: 5, North: 1})
	assert.Equal(t, apperrors.ErrorTypeValidation, apperrors.TypeOf(err))

	_, err = f.svc.MoveViewport(context.Background(), id, boxB)
	require.NoError(t, err)
	f.svc.waitForSession(t, id)

	view, err := f.svc.GetSession(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, boxB, view.Sync.Viewport)
	assert.Equal(t, 0, view.TotalVendors)
	assert.Equal(t, boxB, f.store.states[id].Viewport)
}

func TestDiscovery_MapLayerLifecycle(t *testing.T) {
	f := newDiscoveryFixture(t)
	id := f.createSession(t, "")
	ctx := context.Background()

	assert.Equal(t, 0, f.sink.count())
	require.NoError(t, f.svc.MapReady(ctx, id))
	require.Equal(t, 1, f.sink.count())
	assert.Len(t, f.sink.last().Features.Features, 2)

	require.NoError(t, f.svc.MapTornDown(ctx, id))
	_, err := f.svc.UpdateFilters(ctx, id, entities.FilterState{LocationSubstring: "Queens"})
	require.NoError(t, err)
	assert.Equal(t, 1, f.sink.count())
}

func TestDiscovery_ResumeFromStore(t *testing.T) {
	f := newDiscoveryFixture(t)
	id := f.createSession(t, "location=Queens")
	ctx := context.Background()
	_, err := f.svc.ToggleShortlist(ctx, id, "a")
	require.NoError(t, err)
	require.NoError(t, f.svc.MarkMediaFailed(ctx, id, entities.MediaKey{VendorID: "a", Index: 2}))

	// Drop the in-memory copy as if the process restarted.
	now := time.Now().Add(2 * time.Hour)
	f.svc.now = func() time.Time { return now }
	assert.Equal(t, 1, f.svc.EvictIdle())

	view, err := f.svc.GetSession(ctx, id)
	require.NoError(t, err)
	f.svc.waitForSession(t, id)

	assert.Equal(t, "Queens", view.Filters.LocationSubstring)
	assert.Equal(t, 1, view.ShortlistCount)

	view, err = f.svc.GetSession(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, view.TotalVendors)
}

func TestDiscovery_UnknownSession(t *testing.T) {
	f := newDiscoveryFixture(t)
	_, err := f.svc.GetSession(context.Background(), "nope")
	assert.True(t, apperrors.IsNotFound(err))

	id := f.createSession(t, "")
	require.NoError(t, f.svc.CloseSession(context.Background(), id))
	_, err = f.svc.GetSession(context.Background(), id)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestDiscovery_MarkMediaFailedValidates(t *testing.T) {
	f := newDiscoveryFixture(t)
	id := f.createSession(t, "")
	err := f.svc.MarkMediaFailed(context.Background(), id, entities.MediaKey{VendorID: "a", Index: -1})
	assert.Equal(t, apperrors.ErrorTypeValidation, apperrors.TypeOf(err))
}
