// Package memory provides an in-process DeviceStore for local runs and tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/tinywideclouds/go-huian-notify-service/pkg/device"
	"github.com/tinywideclouds/go-huian-notify-service/pkg/dispatch"
)

type DeviceStore struct {
	mu      sync.RWMutex
	records map[string]device.Record
}

func NewDeviceStore(seed ...device.Record) *DeviceStore {
	s := &DeviceStore{records: make(map[string]device.Record, len(seed))}
	for _, rec := range seed {
		s.records[rec.EntryID] = rec
	}
	return s
}

// List returns records ordered by creation time, then entry id, so callers
// see a stable order.
func (s *DeviceStore) List(_ context.Context) ([]device.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]device.Record, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].EntryID < out[j].EntryID
	})
	return out, nil
}

func (s *DeviceStore) Get(_ context.Context, entryID string) (device.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[entryID]
	if !ok {
		return device.Record{}, dispatch.ErrNotFound
	}
	return rec, nil
}

func (s *DeviceStore) Put(_ context.Context, rec device.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.EntryID] = rec
	return nil
}

func (s *DeviceStore) Delete(_ context.Context, entryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, entryID)
	return nil
}
