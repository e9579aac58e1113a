package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/partaibook/vendor-discovery/internal/domain/entities"
	"github.com/partaibook/vendor-discovery/internal/domain/repositories"
	"github.com/partaibook/vendor-discovery/internal/infrastructure/observability"
	apperrors "github.com/partaibook/vendor-discovery/pkg/errors"
	"github.com/rs/zerolog/log"
)

// DiscoveryConfig holds session-level settings.
type DiscoveryConfig struct {
	DefaultViewport entities.Viewport
	SessionTTL      time.Duration
	FetchTimeout    time.Duration
}

// VendorView is a composed vendor as returned to clients.
type VendorView struct {
	*entities.Vendor
	Media        []string `json:"media"`
	Color        string   `json:"color"`
	WithinBudget *bool    `json:"within_budget,omitempty"`
	Selected     bool     `json:"selected"`
}

// GroupView is one category section of the results.
type GroupView struct {
	Category string       `json:"category"`
	Color    string       `json:"color"`
	Vendors  []VendorView `json:"vendors"`
}

// SessionView is the full client-facing state of a discovery session.
type SessionView struct {
	ID             string               `json:"id"`
	Filters        entities.FilterState `json:"filters"`
	Query          string               `json:"query"`
	Sync           ViewportSnapshot     `json:"sync"`
	Groups         []GroupView          `json:"groups"`
	TotalVendors   int                  `json:"total_vendors"`
	ShortlistCount int                  `json:"shortlist_count"`
}

// SearchNavigation is the result of a search-bar submit.
type SearchNavigation struct {
	Intent  Intent               `json:"intent"`
	Filters entities.FilterState `json:"filters"`
	Query   string               `json:"query"`
	Path    string               `json:"path"`
}

type discoverySession struct {
	id        string
	createdAt time.Time

	mu            sync.Mutex
	filters       entities.FilterState
	shortlist     *entities.Shortlist
	mediaFailures entities.MediaFailures
	lastSeen      time.Time

	syncer *ViewportSynchronizer
}

// DiscoveryService manages discovery sessions: each session owns its filter
// state, its viewport synchronizer and its shortlist.
type DiscoveryService struct {
	fetcher  VendorFetcher
	resolver CoordinateResolver
	sink     MarkerSink
	parser   *IntentParser
	store    repositories.DiscoverySessionRepository
	checkout *CheckoutHandoffService
	metrics  *observability.Metrics
	config   DiscoveryConfig
	now      func() time.Time

	mu       sync.RWMutex
	sessions map[string]*discoverySession
}

// DiscoveryDeps are the collaborators of the discovery service. Store, Sink
// and Checkout are optional.
type DiscoveryDeps struct {
	Fetcher  VendorFetcher
	Resolver CoordinateResolver
	Sink     MarkerSink
	Parser   *IntentParser
	Store    repositories.DiscoverySessionRepository
	Checkout *CheckoutHandoffService
	Metrics  *observability.Metrics
}

// NewDiscoveryService creates a new discovery service
func NewDiscoveryService(deps DiscoveryDeps, config DiscoveryConfig) *DiscoveryService {
	if config.DefaultViewport.Validate() != nil || config.DefaultViewport == (entities.Viewport{}) {
		config.DefaultViewport = entities.DefaultViewport()
	}
	if config.SessionTTL <= 0 {
		config.SessionTTL = 30 * time.Minute
	}
	if deps.Parser == nil {
		deps.Parser = NewIntentParser(nil)
	}
	return &DiscoveryService{
		fetcher:  deps.Fetcher,
		resolver: deps.Resolver,
		sink:     deps.Sink,
		parser:   deps.Parser,
		store:    deps.Store,
		checkout: deps.Checkout,
		metrics:  deps.Metrics,
		config:   config,
		now:      time.Now,
		sessions: make(map[string]*discoverySession),
	}
}

// ParseSearch handles a search-bar submit: the query is parsed with the Other
// fallback and turned into the navigation target for the results view.
func (s *DiscoveryService) ParseSearch(query string) SearchNavigation {
	query = strings.TrimSpace(query)
	if query == "" {
		return SearchNavigation{Path: "/search"}
	}

	intent := s.parser.Parse(query, ParseModeSearchBar)
	filters := intent.Apply(entities.FilterState{Vibe: query})
	encoded := filters.Query().Encode()

	return SearchNavigation{
		Intent:  intent,
		Filters: filters,
		Query:   encoded,
		Path:    "/search?" + encoded,
	}
}

// CreateSession starts a session from the filters carried by the URL and
// kicks off the first fetch for the default viewport. Dimensions absent from
// the URL are filled from the vibe where it names them.
func (s *DiscoveryService) CreateSession(ctx context.Context, filters entities.FilterState) (*SessionView, error) {
	filters = s.initialFilters(filters)

	now := s.now()
	sess := s.newSession(uuid.New().String(), filters, entities.NewShortlist(), entities.MediaFailures{}, now)

	if err := sess.syncer.Initialize(ctx, s.config.DefaultViewport); err != nil {
		sess.syncer.Close()
		return nil, apperrors.NewInternalError("failed to initialise viewport", err)
	}

	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()

	s.persist(ctx, sess)
	observability.SessionLogger(ctx, sess.id).Info().
		Str("query", filters.Query().Encode()).
		Msg("Discovery session created")

	return s.view(sess), nil
}

// GetSession returns the composed view of a session.
func (s *DiscoveryService) GetSession(ctx context.Context, id string) (*SessionView, error) {
	sess, err := s.session(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.view(sess), nil
}

// UpdateFilters replaces the filter state and recomposes without fetching. A
// changed vibe is parsed and folded into the new state.
func (s *DiscoveryService) UpdateFilters(ctx context.Context, id string, filters entities.FilterState) (*SessionView, error) {
	sess, err := s.session(ctx, id)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	if vibe := strings.TrimSpace(filters.Vibe); vibe != "" && vibe != sess.filters.Vibe {
		filters = s.parser.Parse(vibe, ParseModeVibeFilter).Apply(filters)
	}
	sess.filters = filters.Clone()
	sess.syncer.SetFilters(ctx, sess.filters)
	sess.mu.Unlock()

	s.persist(ctx, sess)
	return s.view(sess), nil
}

// MoveViewport replaces the session's viewport and re-fetches.
func (s *DiscoveryService) MoveViewport(ctx context.Context, id string, viewport entities.Viewport) (*SessionView, error) {
	sess, err := s.session(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := sess.syncer.Move(ctx, viewport); err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}
	s.persist(ctx, sess)
	return s.view(sess), nil
}

// Refresh re-fetches the current viewport.
func (s *DiscoveryService) Refresh(ctx context.Context, id string) (*SessionView, error) {
	sess, err := s.session(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := sess.syncer.Refresh(ctx); err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}
	return s.view(sess), nil
}

// MapReady records that the session's map layer has loaded.
func (s *DiscoveryService) MapReady(ctx context.Context, id string) error {
	sess, err := s.session(ctx, id)
	if err != nil {
		return err
	}
	sess.syncer.MarkMapReady(ctx)
	return nil
}

// MapTornDown records that the session's map layer is gone.
func (s *DiscoveryService) MapTornDown(ctx context.Context, id string) error {
	sess, err := s.session(ctx, id)
	if err != nil {
		return err
	}
	sess.syncer.TearDownMap()
	return nil
}

// MarkMediaFailed records a media item that failed to load so later views
// render the placeholder in its slot.
func (s *DiscoveryService) MarkMediaFailed(ctx context.Context, id string, key entities.MediaKey) error {
	if key.VendorID == "" || key.Index < 0 {
		return apperrors.NewValidationError("vendor_id and a non-negative media_index are required")
	}
	sess, err := s.session(ctx, id)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	sess.mediaFailures.Mark(key)
	sess.mu.Unlock()

	s.persist(ctx, sess)
	return nil
}

// ToggleShortlist flips a vendor's selection. Selecting requires the vendor
// to be in the committed collection; unknown ids are a no-op. It returns
// whether the vendor is selected afterwards.
func (s *DiscoveryService) ToggleShortlist(ctx context.Context, id, vendorID string) (bool, error) {
	sess, err := s.session(ctx, id)
	if err != nil {
		return false, err
	}

	sess.mu.Lock()
	var selected bool
	if sess.shortlist.Contains(vendorID) {
		sess.shortlist.Remove(vendorID)
	} else if vendor := findVendor(sess.syncer.Snapshot().Vendors, vendorID); vendor != nil {
		selected = sess.shortlist.Toggle(entities.NewShortlistEntry(vendor, s.now()))
	}
	sess.mu.Unlock()

	s.persist(ctx, sess)
	return selected, nil
}

// RemoveFromShortlist unselects a vendor whatever its current state.
func (s *DiscoveryService) RemoveFromShortlist(ctx context.Context, id, vendorID string) error {
	sess, err := s.session(ctx, id)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	sess.shortlist.Remove(vendorID)
	sess.mu.Unlock()

	s.persist(ctx, sess)
	return nil
}

// ShortlistView returns the shortlist grouped by category.
func (s *DiscoveryService) ShortlistView(ctx context.Context, id string) ([]entities.ShortlistGroup, error) {
	sess, err := s.session(ctx, id)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.shortlist.View(), nil
}

// ClearShortlist empties the shortlist.
func (s *DiscoveryService) ClearShortlist(ctx context.Context, id string) error {
	sess, err := s.session(ctx, id)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	sess.shortlist.Clear()
	sess.mu.Unlock()

	s.persist(ctx, sess)
	return nil
}

// ContinueToBooking hands the shortlist to checkout. The shortlist is kept;
// clearing it is a separate, explicit step.
func (s *DiscoveryService) ContinueToBooking(ctx context.Context, id string) (*entities.BookingHandoff, error) {
	if s.checkout == nil {
		return nil, apperrors.NewUnavailableError("checkout is not configured")
	}
	sess, err := s.session(ctx, id)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	entries := sess.shortlist.Entries()
	filters := sess.filters.Clone()
	sess.mu.Unlock()

	return s.checkout.HandOff(ctx, id, entries, filters)
}

// CloseSession stops a session and forgets it.
func (s *DiscoveryService) CloseSession(ctx context.Context, id string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if ok {
		sess.syncer.Close()
	}
	if s.store != nil {
		if err := s.store.Delete(ctx, id); err != nil {
			return err
		}
	} else if !ok {
		return apperrors.NewNotFoundError("discovery session " + id)
	}
	return nil
}

// EvictIdle drops in-memory sessions idle for longer than the session TTL.
// Persisted state is kept so the session can be resumed.
func (s *DiscoveryService) EvictIdle() int {
	cutoff := s.now().Add(-s.config.SessionTTL)

	s.mu.Lock()
	var evicted []*discoverySession
	for id, sess := range s.sessions {
		sess.mu.Lock()
		idle := sess.lastSeen.Before(cutoff)
		sess.mu.Unlock()
		if idle {
			evicted = append(evicted, sess)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, sess := range evicted {
		sess.syncer.Close()
	}
	return len(evicted)
}

// RunJanitor evicts idle sessions every interval until ctx is done.
func (s *DiscoveryService) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.EvictIdle(); n > 0 {
				log.Info().Int("evicted", n).Msg("Evicted idle discovery sessions")
			}
		}
	}
}

// Shutdown closes every session.
func (s *DiscoveryService) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sess := range s.sessions {
		sess.syncer.Close()
		delete(s.sessions, id)
	}
}

func (s *DiscoveryService) initialFilters(filters entities.FilterState) entities.FilterState {
	filters = filters.Clone()
	if strings.TrimSpace(filters.Vibe) == "" {
		return filters
	}

	intent := s.parser.Parse(filters.Vibe, ParseModeVibeFilter)
	if filters.CategoryFilter != "" {
		intent.CategoryGuess = ""
	}
	if filters.LocationSubstring != "" {
		intent.LocationGuess = ""
	}
	if filters.DateFilter != nil {
		intent.DateGuess = nil
	}
	return intent.Apply(filters)
}

func (s *DiscoveryService) newSession(id string, filters entities.FilterState, shortlist *entities.Shortlist, failures entities.MediaFailures, createdAt time.Time) *discoverySession {
	return &discoverySession{
		id:            id,
		createdAt:     createdAt,
		filters:       filters,
		shortlist:     shortlist,
		mediaFailures: failures,
		lastSeen:      s.now(),
		syncer: NewViewportSynchronizer(SynchronizerConfig{
			SessionID:    id,
			Fetcher:      s.fetcher,
			Resolver:     s.resolver,
			Sink:         s.sink,
			Metrics:      s.metrics,
			FetchTimeout: s.config.FetchTimeout,
			Filters:      filters,
		}),
	}
}

// session looks a session up in memory, resuming it from the store when it
// is not loaded.
func (s *DiscoveryService) session(ctx context.Context, id string) (*discoverySession, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if ok {
		sess.mu.Lock()
		sess.lastSeen = s.now()
		sess.mu.Unlock()
		return sess, nil
	}

	if s.store == nil {
		return nil, apperrors.NewNotFoundError("discovery session " + id)
	}
	state, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.resume(ctx, state)
}

func (s *DiscoveryService) resume(ctx context.Context, state *entities.DiscoverySessionState) (*discoverySession, error) {
	failures := entities.MediaFailures{}
	for _, key := range state.MediaFailures {
		failures.Mark(key)
	}
	sess := s.newSession(state.ID, state.Filters, entities.ShortlistFromEntries(state.Shortlist), failures, state.CreatedAt)

	viewport := state.Viewport
	if viewport.Validate() != nil || viewport == (entities.Viewport{}) {
		viewport = s.config.DefaultViewport
	}

	s.mu.Lock()
	if existing, ok := s.sessions[state.ID]; ok {
		s.mu.Unlock()
		sess.syncer.Close()
		return existing, nil
	}
	s.sessions[state.ID] = sess
	s.mu.Unlock()

	if err := sess.syncer.Initialize(ctx, viewport); err != nil {
		return nil, apperrors.NewInternalError("failed to initialise viewport", err)
	}
	observability.SessionLogger(ctx, sess.id).Info().Msg("Discovery session resumed")
	return sess, nil
}

func (s *DiscoveryService) persist(ctx context.Context, sess *discoverySession) {
	if s.store == nil {
		return
	}

	snap := sess.syncer.Snapshot()
	sess.mu.Lock()
	state := &entities.DiscoverySessionState{
		ID:            sess.id,
		Filters:       sess.filters.Clone(),
		Viewport:      snap.Viewport,
		Shortlist:     sess.shortlist.Entries(),
		MediaFailures: sess.mediaFailures.Keys(),
		CreatedAt:     sess.createdAt,
		UpdatedAt:     s.now(),
	}
	sess.mu.Unlock()

	if err := s.store.Save(ctx, state); err != nil {
		observability.SessionLogger(ctx, sess.id).Warn().Err(err).Msg("Failed to persist discovery session")
	}
}

func (s *DiscoveryService) view(sess *discoverySession) *SessionView {
	snap := sess.syncer.Snapshot()

	sess.mu.Lock()
	defer sess.mu.Unlock()

	view := &SessionView{
		ID:             sess.id,
		Filters:        sess.filters.Clone(),
		Query:          sess.filters.Query().Encode(),
		Sync:           snap,
		Groups:         make([]GroupView, 0, len(snap.Groups)),
		ShortlistCount: sess.shortlist.Len(),
	}

	for _, g := range snap.Groups {
		group := GroupView{
			Category: g.Category,
			Color:    entities.CategoryColor(g.Category),
			Vendors:  make([]VendorView, 0, len(g.Vendors)),
		}
		for _, v := range g.Vendors {
			vv := VendorView{
				Vendor:   v,
				Media:    sess.mediaFailures.ResolveMedia(v),
				Color:    group.Color,
				Selected: sess.shortlist.Contains(v.ID),
			}
			if within, known := sess.filters.WithinBudget(v); known {
				vv.WithinBudget = &within
			}
			group.Vendors = append(group.Vendors, vv)
		}
		view.TotalVendors += len(group.Vendors)
		view.Groups = append(view.Groups, group)
	}
	return view
}

func findVendor(vendors []*entities.Vendor, id string) *entities.Vendor {
	for _, v := range vendors {
		if v.ID == id {
			return v
		}
	}
	return nil
}
