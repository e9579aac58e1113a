package services

import (
	"context"
	"sync"
	"time"

	"github.com/partaibook/vendor-discovery/internal/domain/entities"
	"github.com/partaibook/vendor-discovery/internal/domain/providers"
	"github.com/partaibook/vendor-discovery/internal/infrastructure/observability"
)

// Viewport fetch outcomes recorded in metrics.
const (
	fetchOutcomeCommitted = "committed"
	fetchOutcomeStale     = "stale"
	fetchOutcomeError     = "error"
)

// VendorFetcher loads the raw vendors for a viewport.
type VendorFetcher interface {
	FetchVendors(ctx context.Context, viewport entities.Viewport) ([]*entities.Vendor, error)
}

// CoordinateResolver fills in missing vendor coordinates.
type CoordinateResolver interface {
	EnsureAll(ctx context.Context, vendors []*entities.Vendor) []*entities.Vendor
}

// MarkerSink receives the point features for the map layer.
type MarkerSink interface {
	PushMarkers(ctx context.Context, update *entities.MarkerUpdate) error
}

// SyncState is the fetch state of a synchronizer.
type SyncState string

const (
	SyncStateIdle     SyncState = "idle"
	SyncStateFetching SyncState = "fetching"
)

// MapLayerState tracks whether marker pushes can be delivered.
type MapLayerState string

const (
	MapLayerPending  MapLayerState = "pending"
	MapLayerReady    MapLayerState = "ready"
	MapLayerTornDown MapLayerState = "torn_down"
)

// ViewportSnapshot is a consistent copy of a synchronizer's state.
type ViewportSnapshot struct {
	State          SyncState                `json:"state"`
	MapLayer       MapLayerState            `json:"map_layer"`
	Viewport       entities.Viewport        `json:"viewport"`
	Generation     uint64                   `json:"generation"`
	Filters        entities.FilterState     `json:"filters"`
	Vendors        []*entities.Vendor       `json:"-"`
	Groups         []entities.CategoryGroup `json:"-"`
	Features       []entities.PointFeature  `json:"-"`
	RefreshFailed  bool                     `json:"refresh_failed"`
	RefreshMessage string                   `json:"refresh_message,omitempty"`
	CommittedAt    time.Time                `json:"committed_at,omitempty"`
}

// ViewportSynchronizer owns the vendor pipeline for one discovery session:
// fetch for the current viewport, geocode, compose with the filter state
// and push map features. Only the latest viewport's fetch may commit.
type ViewportSynchronizer struct {
	sessionID    string
	fetcher      VendorFetcher
	resolver     CoordinateResolver
	sink         MarkerSink
	metrics      *observability.Metrics
	fetchTimeout time.Duration
	now          func() time.Time

	mu          sync.Mutex
	generation  uint64
	viewport    entities.Viewport
	fetching    bool
	cancelFetch context.CancelFunc
	vendors     []*entities.Vendor
	filters     entities.FilterState
	groups      []entities.CategoryGroup
	features    []entities.PointFeature
	refreshErr  error
	committedAt time.Time
	mapLayer    MapLayerState
	closed      bool

	pushMu   sync.Mutex
	inflight sync.WaitGroup
}

// SynchronizerConfig carries the synchronizer's collaborators.
type SynchronizerConfig struct {
	SessionID    string
	Fetcher      VendorFetcher
	Resolver     CoordinateResolver
	Sink         MarkerSink
	Metrics      *observability.Metrics
	FetchTimeout time.Duration
	Filters      entities.FilterState
}

// NewViewportSynchronizer creates an idle synchronizer with the map layer
// pending.
func NewViewportSynchronizer(cfg SynchronizerConfig) *ViewportSynchronizer {
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 15 * time.Second
	}
	return &ViewportSynchronizer{
		sessionID:    cfg.SessionID,
		fetcher:      cfg.Fetcher,
		resolver:     cfg.Resolver,
		sink:         cfg.Sink,
		metrics:      cfg.Metrics,
		fetchTimeout: cfg.FetchTimeout,
		now:          time.Now,
		filters:      cfg.Filters.Clone(),
		groups:       Compose(nil, cfg.Filters),
		mapLayer:     MapLayerPending,
	}
}

// Initialize starts the first fetch for the given viewport.
func (s *ViewportSynchronizer) Initialize(ctx context.Context, viewport entities.Viewport) error {
	return s.Move(ctx, viewport)
}

// Move replaces the current viewport and starts a fetch that supersedes any
// fetch still in flight. It returns once the fetch is started.
func (s *ViewportSynchronizer) Move(ctx context.Context, viewport entities.Viewport) error {
	if err := viewport.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	if s.cancelFetch != nil {
		s.cancelFetch()
	}
	s.generation++
	gen := s.generation
	s.viewport = viewport
	s.fetching = true

	fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.fetchTimeout)
	s.cancelFetch = cancel
	s.inflight.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.inflight.Done()
		defer cancel()
		s.fetch(fetchCtx, gen, viewport)
	}()
	return nil
}

// Refresh re-fetches the current viewport.
func (s *ViewportSynchronizer) Refresh(ctx context.Context) error {
	s.mu.Lock()
	viewport := s.viewport
	s.mu.Unlock()
	return s.Move(ctx, viewport)
}

// SetFilters recomposes the committed vendors under new filters without
// re-fetching, and pushes the resulting features.
func (s *ViewportSynchronizer) SetFilters(ctx context.Context, filters entities.FilterState) {
	s.mu.Lock()
	s.filters = filters.Clone()
	s.recomposeLocked()
	s.mu.Unlock()

	s.pushMarkers(ctx)
}

// MarkMapReady records that a map layer loaded and pushes the current
// features to it. A layer loaded after a teardown is a new layer.
func (s *ViewportSynchronizer) MarkMapReady(ctx context.Context) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.mapLayer = MapLayerReady
	s.mu.Unlock()

	s.pushMarkers(ctx)
}

// TearDownMap makes further marker pushes no-ops.
func (s *ViewportSynchronizer) TearDownMap() {
	s.mu.Lock()
	s.mapLayer = MapLayerTornDown
	s.mu.Unlock()
}

// Close cancels any in-flight fetch and tears down the map layer.
func (s *ViewportSynchronizer) Close() {
	s.mu.Lock()
	s.closed = true
	s.mapLayer = MapLayerTornDown
	if s.cancelFetch != nil {
		s.cancelFetch()
	}
	s.mu.Unlock()
}

// Wait blocks until every started fetch has finished.
func (s *ViewportSynchronizer) Wait() {
	s.inflight.Wait()
}

// Snapshot returns a copy of the current state.
func (s *ViewportSynchronizer) Snapshot() ViewportSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := ViewportSnapshot{
		State:       SyncStateIdle,
		MapLayer:    s.mapLayer,
		Viewport:    s.viewport,
		Generation:  s.generation,
		Filters:     s.filters.Clone(),
		Vendors:     append([]*entities.Vendor(nil), s.vendors...),
		Groups:      cloneGroups(s.groups),
		Features:    append([]entities.PointFeature(nil), s.features...),
		CommittedAt: s.committedAt,
	}
	if s.fetching {
		snap.State = SyncStateFetching
	}
	if s.refreshErr != nil {
		snap.RefreshFailed = true
		snap.RefreshMessage = "Couldn't refresh vendors for this area"
	}
	return snap
}

func (s *ViewportSynchronizer) fetch(ctx context.Context, gen uint64, viewport entities.Viewport) {
	logger := observability.SessionLogger(ctx, s.sessionID).With().
		Uint64("generation", gen).
		Str("viewport", viewport.String()).
		Logger()

	vendors, err := s.fetcher.FetchVendors(ctx, viewport)
	if err == nil && s.resolver != nil {
		vendors = s.resolver.EnsureAll(ctx, vendors)
	}

	s.mu.Lock()
	// Staleness is decided at completion time.
	if gen != s.generation || s.closed {
		s.mu.Unlock()
		observability.RecordViewportFetch(ctx, s.metrics, fetchOutcomeStale)
		logger.Debug().Msg("Dropping stale viewport result")
		return
	}
	s.fetching = false
	s.cancelFetch = nil

	if err != nil {
		s.refreshErr = err
		s.mu.Unlock()
		observability.RecordViewportFetch(ctx, s.metrics, fetchOutcomeError)
		logger.Warn().Err(err).Msg("Couldn't refresh vendors, keeping previous results")
		return
	}

	s.vendors = inViewport(vendors, viewport)
	s.refreshErr = nil
	s.committedAt = s.now()
	s.recomposeLocked()
	count := len(s.vendors)
	s.mu.Unlock()

	observability.RecordViewportFetch(ctx, s.metrics, fetchOutcomeCommitted)
	logger.Debug().Int("vendors", count).Msg("Committed viewport result")

	s.pushMarkers(ctx)
}

func (s *ViewportSynchronizer) recomposeLocked() {
	s.groups = Compose(s.vendors, s.filters)
	s.features = s.features[:0:0]
	for _, v := range FlattenGroups(s.groups) {
		if f, ok := entities.PointFeatureFor(v); ok {
			s.features = append(s.features, f)
		}
	}
}

// pushMarkers sends the latest features. Pushes are serialised so the map
// never receives an older state after a newer one.
func (s *ViewportSynchronizer) pushMarkers(ctx context.Context) {
	s.pushMu.Lock()
	defer s.pushMu.Unlock()

	s.mu.Lock()
	if s.sink == nil || s.mapLayer != MapLayerReady || s.closed {
		s.mu.Unlock()
		return
	}
	update := entities.NewMarkerUpdate(s.sessionID, s.viewport, append([]entities.PointFeature(nil), s.features...))
	s.mu.Unlock()

	if err := s.sink.PushMarkers(ctx, update); err != nil {
		observability.SessionLogger(ctx, s.sessionID).Warn().Err(err).Msg("Failed to push map markers")
	}
}

// inViewport drops vendors placed outside the viewport. Vendors that could
// not be placed stay listed; they only lack a map marker.
func inViewport(vendors []*entities.Vendor, viewport entities.Viewport) []*entities.Vendor {
	out := make([]*entities.Vendor, 0, len(vendors))
	for _, v := range vendors {
		if v == nil {
			continue
		}
		if !v.HasCoordinates() || v.Coordinates.IsSentinel() || viewport.Contains(*v.Coordinates) {
			out = append(out, v)
		}
	}
	return out
}

func cloneGroups(groups []entities.CategoryGroup) []entities.CategoryGroup {
	out := make([]entities.CategoryGroup, len(groups))
	for i, g := range groups {
		out[i] = entities.CategoryGroup{Category: g.Category, Vendors: append([]*entities.Vendor{}, g.Vendors...)}
	}
	return out
}

// EventBusMarkerSink publishes marker updates on the session's channel.
type EventBusMarkerSink struct {
	bus providers.EventBus
}

// NewEventBusMarkerSink creates a marker sink backed by an event bus.
func NewEventBusMarkerSink(bus providers.EventBus) *EventBusMarkerSink {
	return &EventBusMarkerSink{bus: bus}
}

// PushMarkers implements MarkerSink.
func (s *EventBusMarkerSink) PushMarkers(ctx context.Context, update *entities.MarkerUpdate) error {
	return s.bus.Publish(ctx, providers.GetSessionChannel(update.SessionID), update)
}
