// --- File: internal/storage/cache/devicestore.go ---
package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/tinywideclouds/go-huian-notify-service/pkg/device"
	"github.com/tinywideclouds/go-huian-notify-service/pkg/dispatch"
)

// devicesKey holds the whole device table; it is small and always read whole.
const devicesKey = "huian:devices"

// CacheClient defines the subset of Redis commands we need.
type CacheClient interface {
	// Get returns the value or an error if not found.
	Get(ctx context.Context, key string, dest interface{}) error
	// Set stores the value with a TTL.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	// Del removes the key.
	Del(ctx context.Context, key string) error
}

// CachedDeviceStore is a Decorator that adds Read-Aside caching to any DeviceStore.
type CachedDeviceStore struct {
	realStore dispatch.DeviceStore
	cache     CacheClient
	ttl       time.Duration
	logger    *slog.Logger
}

func NewCachedDeviceStore(realStore dispatch.DeviceStore, cache CacheClient, ttl time.Duration, logger *slog.Logger) *CachedDeviceStore {
	return &CachedDeviceStore{
		realStore: realStore,
		cache:     cache,
		ttl:       ttl,
		logger:    logger.With("component", "CachedDeviceStore"),
	}
}

// --- READ PATH (Read-Aside) ---

func (s *CachedDeviceStore) List(ctx context.Context) ([]device.Record, error) {
	var cached []device.Record
	if err := s.cache.Get(ctx, devicesKey, &cached); err == nil {
		return cached, nil
	}

	fresh, err := s.realStore.List(ctx)
	if err != nil {
		return nil, err
	}

	// Caching is an optimization; if Redis is down we serve from the store.
	_ = s.cache.Set(ctx, devicesKey, fresh, s.ttl)
	return fresh, nil
}

// Get answers from the cached table when it is warm.
func (s *CachedDeviceStore) Get(ctx context.Context, entryID string) (device.Record, error) {
	var cached []device.Record
	if err := s.cache.Get(ctx, devicesKey, &cached); err == nil {
		for _, rec := range cached {
			if rec.EntryID == entryID {
				return rec, nil
			}
		}
		return device.Record{}, dispatch.ErrNotFound
	}
	return s.realStore.Get(ctx, entryID)
}

// --- WRITE PATHS (Invalidate-on-Write) ---

func (s *CachedDeviceStore) Put(ctx context.Context, rec device.Record) error {
	if err := s.realStore.Put(ctx, rec); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *CachedDeviceStore) Delete(ctx context.Context, entryID string) error {
	if err := s.realStore.Delete(ctx, entryID); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// invalidate drops the cached table. The write already reached the real
// store, so a cache failure is logged and the entry ages out with its TTL.
func (s *CachedDeviceStore) invalidate(ctx context.Context) {
	if err := s.cache.Del(ctx, devicesKey); err != nil {
		s.logger.Warn("Cache invalidation failed; cached device list may be stale until TTL", "key", devicesKey, "ttl", s.ttl, "err", err)
	}
}
