package services

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/partaibook/vendor-discovery/internal/domain/entities"
	"github.com/stretchr/testify/mock"
)

// Mocks

type MockVendorRepository struct {
	mock.Mock
}

func (m *MockVendorRepository) FetchAll(ctx context.Context) ([]*entities.Vendor, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Vendor), args.Error(1)
}

func (m *MockVendorRepository) FetchWithinBounds(ctx context.Context, viewport entities.Viewport) ([]*entities.Vendor, error) {
	args := m.Called(ctx, viewport)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Vendor), args.Error(1)
}

func (m *MockVendorRepository) FetchMissingCoordinates(ctx context.Context, limit int) ([]*entities.Vendor, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Vendor), args.Error(1)
}

func (m *MockVendorRepository) GetByIDs(ctx context.Context, ids []string) ([]*entities.Vendor, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Vendor), args.Error(1)
}

func (m *MockVendorRepository) UpdateCoordinates(ctx context.Context, vendorID string, coords entities.Coordinates) error {
	args := m.Called(ctx, vendorID, coords)
	return args.Error(0)
}

type MockVendorSearchRepository struct {
	mock.Mock
}

func (m *MockVendorSearchRepository) SearchIDsWithinBounds(ctx context.Context, viewport entities.Viewport, limit int) ([]string, error) {
	args := m.Called(ctx, viewport, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockVendorSearchRepository) Index(ctx context.Context, vendor *entities.Vendor) error {
	args := m.Called(ctx, vendor)
	return args.Error(0)
}

func (m *MockVendorSearchRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MockCheckoutProvider struct {
	mock.Mock
}

func (m *MockCheckoutProvider) HandOff(ctx context.Context, handoff *entities.BookingHandoff) error {
	args := m.Called(ctx, handoff)
	return args.Error(0)
}

// fakeGeocoder counts calls per address and can hold requests open until
// release is closed.
type fakeGeocoder struct {
	mu      sync.Mutex
	calls   map[string]int
	results map[string]*entities.Coordinates
	err     error
	release chan struct{}

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func newFakeGeocoder(results map[string]*entities.Coordinates) *fakeGeocoder {
	return &fakeGeocoder{calls: make(map[string]int), results: results}
}

func (f *fakeGeocoder) Geocode(ctx context.Context, address string) (*entities.Coordinates, error) {
	f.mu.Lock()
	f.calls[address]++
	f.mu.Unlock()

	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		current := f.maxInFlight.Load()
		if n <= current || f.maxInFlight.CompareAndSwap(current, n) {
			break
		}
	}

	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.results[address], nil
}

func (f *fakeGeocoder) callCount(address string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[address]
}

func (f *fakeGeocoder) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

func coordsPtr(lat, lon float64) *entities.Coordinates {
	return &entities.Coordinates{Latitude: lat, Longitude: lon}
}
