// --- File: internal/storage/cache/devicestore_test.go ---
package cache_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tinywideclouds/go-huian-notify-service/internal/storage/cache"
	"github.com/tinywideclouds/go-huian-notify-service/pkg/device"
	"github.com/tinywideclouds/go-huian-notify-service/pkg/dispatch"
)

const cacheKey = "huian:devices"

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- Mocks ---
type MockCache struct {
	mock.Mock
}

func (m *MockCache) Get(ctx context.Context, key string, dest interface{}) error {
	args := m.Called(ctx, key, dest)
	return args.Error(0)
}
func (m *MockCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return m.Called(ctx, key, value, ttl).Error(0)
}
func (m *MockCache) Del(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

type MockRealStore struct {
	mock.Mock
}

func (m *MockRealStore) List(ctx context.Context) ([]device.Record, error) {
	args := m.Called(ctx)
	return args.Get(0).([]device.Record), args.Error(1)
}
func (m *MockRealStore) Get(ctx context.Context, entryID string) (device.Record, error) {
	args := m.Called(ctx, entryID)
	return args.Get(0).(device.Record), args.Error(1)
}
func (m *MockRealStore) Put(ctx context.Context, rec device.Record) error {
	return m.Called(ctx, rec).Error(0)
}
func (m *MockRealStore) Delete(ctx context.Context, entryID string) error {
	return m.Called(ctx, entryID).Error(0)
}

var records = []device.Record{
	{EntryID: "e1", RegistrationID: "1a0018970a8b1234", ServiceID: "iphone"},
	{EntryID: "e2", RegistrationID: "1a0018970a8b5678", ServiceID: "ipad"},
}

func TestCachedDeviceStore_ReadAside(t *testing.T) {
	ctx := context.Background()

	t.Run("Miss loads from the store and populates the cache", func(t *testing.T) {
		mockCache := new(MockCache)
		mockDB := new(MockRealStore)
		store := cache.NewCachedDeviceStore(mockDB, mockCache, time.Hour, newTestLogger())

		mockCache.On("Get", ctx, cacheKey, mock.Anything).Return(cache.ErrMiss)
		mockDB.On("List", ctx).Return(records, nil)
		mockCache.On("Set", ctx, cacheKey, records, time.Hour).Return(nil)

		got, err := store.List(ctx)

		require.NoError(t, err)
		assert.Equal(t, records, got)
		mockDB.AssertExpectations(t)
		mockCache.AssertExpectations(t)
	})

	t.Run("Hit never touches the store", func(t *testing.T) {
		mockCache := new(MockCache)
		mockDB := new(MockRealStore)
		store := cache.NewCachedDeviceStore(mockDB, mockCache, time.Hour, newTestLogger())

		mockCache.On("Get", ctx, cacheKey, mock.Anything).Run(func(args mock.Arguments) {
			*args.Get(2).(*[]device.Record) = records
		}).Return(nil)

		got, err := store.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, records, got)

		rec, err := store.Get(ctx, "e2")
		require.NoError(t, err)
		assert.Equal(t, "ipad", rec.ServiceID)

		_, err = store.Get(ctx, "e9")
		assert.ErrorIs(t, err, dispatch.ErrNotFound)

		mockDB.AssertNotCalled(t, "List", mock.Anything)
		mockDB.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
	})

	t.Run("Cache failure on populate is ignored", func(t *testing.T) {
		mockCache := new(MockCache)
		mockDB := new(MockRealStore)
		store := cache.NewCachedDeviceStore(mockDB, mockCache, time.Hour, newTestLogger())

		mockCache.On("Get", ctx, cacheKey, mock.Anything).Return(errors.New("connection refused"))
		mockDB.On("List", ctx).Return(records, nil)
		mockCache.On("Set", ctx, cacheKey, records, time.Hour).Return(errors.New("connection refused"))

		got, err := store.List(ctx)
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})
}

func TestCachedDeviceStore_ImmediateInvalidation(t *testing.T) {
	ctx := context.Background()

	t.Run("Put invalidates cache immediately", func(t *testing.T) {
		mockCache := new(MockCache)
		mockDB := new(MockRealStore)
		store := cache.NewCachedDeviceStore(mockDB, mockCache, time.Hour, newTestLogger())

		mockDB.On("Put", ctx, records[0]).Return(nil)
		mockCache.On("Del", ctx, cacheKey).Return(nil)

		require.NoError(t, store.Put(ctx, records[0]))
		mockDB.AssertExpectations(t)
		mockCache.AssertExpectations(t)
	})

	t.Run("Delete invalidates cache immediately", func(t *testing.T) {
		mockCache := new(MockCache)
		mockDB := new(MockRealStore)
		store := cache.NewCachedDeviceStore(mockDB, mockCache, time.Hour, newTestLogger())

		mockDB.On("Delete", ctx, "e1").Return(nil)
		mockCache.On("Del", ctx, cacheKey).Return(nil)

		require.NoError(t, store.Delete(ctx, "e1"))
		mockDB.AssertExpectations(t)
		mockCache.AssertExpectations(t)
	})

	t.Run("Failed write leaves the cache alone", func(t *testing.T) {
		mockCache := new(MockCache)
		mockDB := new(MockRealStore)
		store := cache.NewCachedDeviceStore(mockDB, mockCache, time.Hour, newTestLogger())

		mockDB.On("Delete", ctx, "e1").Return(errors.New("db down"))

		assert.Error(t, store.Delete(ctx, "e1"))
		mockCache.AssertNotCalled(t, "Del", mock.Anything, mock.Anything)
	})
	t.Run("Invalidation failure does not fail the write", func(t *testing.T) {
		mockCache := new(MockCache)
		mockDB := new(MockRealStore)
		store := cache.NewCachedDeviceStore(mockDB, mockCache, time.Hour, newTestLogger())

		mockDB.On("Put", ctx, records[1]).Return(nil)
		mockDB.On("Delete", ctx, "e2").Return(nil)
		mockCache.On("Del", ctx, cacheKey).Return(errors.New("connection reset"))

		require.NoError(t, store.Put(ctx, records[1]))
		require.NoError(t, store.Delete(ctx, "e2"))
		mockDB.AssertExpectations(t)
		mockCache.AssertNumberOfCalls(t, "Del", 2)
	})
}
