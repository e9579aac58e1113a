package database

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/partaibook/vendor-discovery/internal/adapters/cache"
	"github.com/partaibook/vendor-discovery/internal/domain/entities"
	redisclient "github.com/partaibook/vendor-discovery/internal/infrastructure/clients/redis"
)

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
	return m.Called(ctx, vendorID, coords).Error(0)
}

func newCachedAdapter(t *testing.T) (*CachedVendorAdapter, *MockVendorRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	repo := new(MockVendorRepository)
	adapter := NewCachedVendorAdapter(repo, cache.NewRedisAdapter(redisclient.NewClientFromRedis(rdb)), nil)
	return adapter, repo, mr
}

func TestCachedVendorAdapter_FetchAllReadsThrough(t *testing.T) {
	adapter, repo, _ := newCachedAdapter(t)
	ctx := context.Background()

	repo.On("FetchAll", mock.Anything).Return([]*entities.Vendor{
		{ID: "a", Name: "Sweet", Category: "Cakes & Desserts", Price: entities.NumericPrice(120)},
	}, nil).Once()

	first, err := adapter.FetchAll(ctx)
	require.NoError(t, err)
	second, err := adapter.FetchAll(ctx)
	require.NoError(t, err)

	require.Len(t, second, 1)
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.Equal(t, 120.0, *second[0].Price.Amount)
	repo.AssertNumberOfCalls(t, "FetchAll", 1)
}

func TestCachedVendorAdapter_UpdateInvalidates(t *testing.T) {
	adapter, repo, mr := newCachedAdapter(t)
	ctx := context.Background()
	vp := entities.DefaultViewport()

	repo.On("FetchWithinBounds", mock.Anything, vp).Return([]*entities.Vendor{{ID: "a"}}, nil).Twice()
	repo.On("UpdateCoordinates", mock.Anything, "a", entities.Coordinates{Latitude: 40.7, Longitude: -73.9}).Return(nil).Once()

	_, err := adapter.FetchWithinBounds(ctx, vp)
	require.NoError(t, err)
	assert.True(t, mr.Exists(vendorsBoundsCacheKey(vp)))

	require.NoError(t, adapter.UpdateCoordinates(ctx, "a", entities.Coordinates{Latitude: 40.7, Longitude: -73.9}))
	assert.False(t, mr.Exists(vendorsBoundsCacheKey(vp)))

	_, err = adapter.FetchWithinBounds(ctx, vp)
	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestCachedVendorAdapter_GetByIDsLoadsOnlyMissing(t *testing.T) {
	adapter, repo, _ := newCachedAdapter(t)
	ctx := context.Background()

	repo.On("GetByIDs", mock.Anything, []string{"a", "b"}).Return([]*entities.Vendor{{ID: "a"}, {ID: "b"}}, nil).Once()
	repo.On("GetByIDs", mock.Anything, []string{"c"}).Return([]*entities.Vendor{}, nil).Once()

	vendors, err := adapter.GetByIDs(ctx, []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vendors, 2)

	vendors, err = adapter.GetByIDs(ctx, []string{"b", "c", "a"})
	require.NoError(t, err)
	require.Len(t, vendors, 2)
	assert.Equal(t, "b", vendors[0].ID)
	assert.Equal(t, "a", vendors[1].ID)
	repo.AssertExpectations(t)
}
