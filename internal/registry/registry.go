package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/tinywideclouds/go-huian-notify-service/pkg/device"
	"github.com/tinywideclouds/go-huian-notify-service/pkg/dispatch"
)

// ProbeFunc verifies a registration id against the push gateway before a
// manually added device is stored.
type ProbeFunc func(ctx context.Context, registrationID string) error

// Registry serializes reconciliation against a DeviceStore. Every
// read-modify-write sequence, together with the apply step that installs
// its outcome in the running service, runs under one mutex.
type Registry struct {
	mu     sync.Mutex
	store  dispatch.DeviceStore
	logger *slog.Logger

	now        func() time.Time
	newEntryID func() string
}

func New(store dispatch.DeviceStore, logger *slog.Logger) *Registry {
	return &Registry{
		store:      store,
		logger:     logger.With("component", "DeviceRegistry"),
		now:        func() time.Time { return time.Now().UTC() },
		newEntryID: uuid.NewString,
	}
}

// Register reconciles a registration from the mobile app, persists the
// outcome and hands it to apply. apply sees every outcome, Unchanged
// included. If apply fails the store is rolled back: a created record is
// deleted and an updated one is restored. apply may be nil.
func (r *Registry) Register(ctx context.Context, registrationID, deviceName string, production bool, apply func(Reconciliation) error) (Reconciliation, error) {
	registrationID = strings.TrimSpace(registrationID)
	if registrationID == "" {
		return Reconciliation{}, ErrMissingIdentifier
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.store.List(ctx)
	if err != nil {
		return Reconciliation{}, fmt.Errorf("failed to list devices: %w", err)
	}

	result := Reconcile(records, registrationID, deviceName, production, r.now(), r.newEntryID)
	if result.Status != Unchanged {
		if err := r.store.Put(ctx, result.Record); err != nil {
			return Reconciliation{}, fmt.Errorf("failed to store device %s: %w", result.Record.EntryID, err)
		}
	}

	if apply != nil {
		if err := apply(result); err != nil {
			r.rollback(ctx, result)
			return Reconciliation{}, fmt.Errorf("%w: %w", ErrApplyFailed, err)
		}
	}

	if result.Status == Updated {
		r.logger.Warn("Device renamed; service id changes",
			"device_id", result.Record.ShortID(),
			"old_name", result.Previous.DeviceName,
			"new_name", result.Record.DeviceName,
			"old_service", result.Previous.ServiceID,
			"new_service", result.Record.ServiceID,
		)
	}
	return result, nil
}

// AddVerified is the interactive add-device path: the id must be long
// enough, not already stored, and accepted by probe. The device is stored
// without a name, so its service id uses the registration-id fallback.
// A failing apply deletes the new record again.
func (r *Registry) AddVerified(ctx context.Context, registrationID string, production bool, probe ProbeFunc, apply func(device.Record) error) (device.Record, error) {
	registrationID = strings.TrimSpace(registrationID)
	if registrationID == "" {
		return device.Record{}, ErrMissingIdentifier
	}
	if utf8.RuneCountInString(registrationID) < MinVerifiedIDLength {
		return device.Record{}, fmt.Errorf("%w: shorter than %d characters", ErrInvalidIdentifier, MinVerifiedIDLength)
	}

	exists, err := r.exists(ctx, registrationID)
	if err != nil {
		return device.Record{}, err
	}
	if exists {
		return device.Record{}, ErrAlreadyConfigured
	}

	// The probe is a network call; it runs outside the lock.
	if err := probe(ctx, registrationID); err != nil {
		if errors.Is(err, ErrInvalidIdentifier) {
			return device.Record{}, err
		}
		return device.Record{}, fmt.Errorf("%w: %w", ErrProbeFailed, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.store.List(ctx)
	if err != nil {
		return device.Record{}, fmt.Errorf("failed to list devices: %w", err)
	}
	result := Reconcile(records, registrationID, "", production, r.now(), r.newEntryID)
	if result.Status != Created {
		return device.Record{}, ErrAlreadyConfigured
	}
	if err := r.store.Put(ctx, result.Record); err != nil {
		return device.Record{}, fmt.Errorf("failed to store device %s: %w", result.Record.EntryID, err)
	}
	if apply != nil {
		if err := apply(result.Record); err != nil {
			r.rollback(ctx, result)
			return device.Record{}, fmt.Errorf("%w: %w", ErrApplyFailed, err)
		}
	}
	return result.Record, nil
}

// SetProduction switches a device between the production and sandbox
// delivery environments. It returns the record before and after the change.
// A failing apply restores the previous record.
func (r *Registry) SetProduction(ctx context.Context, entryID string, production bool, apply func(before, after device.Record) error) (before, after device.Record, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	before, err = r.store.Get(ctx, entryID)
	if err != nil {
		return device.Record{}, device.Record{}, err
	}

	after = before
	after.Production = production
	after.UpdatedAt = r.now()
	if err := r.store.Put(ctx, after); err != nil {
		return device.Record{}, device.Record{}, fmt.Errorf("failed to store device %s: %w", entryID, err)
	}
	if apply != nil {
		if err := apply(before, after); err != nil {
			prev := before
			r.rollback(ctx, Reconciliation{Record: after, Status: Updated, Previous: &prev})
			return device.Record{}, device.Record{}, fmt.Errorf("%w: %w", ErrApplyFailed, err)
		}
	}
	return before, after, nil
}

// Remove deletes a device, passes the removed record to apply and returns
// it. apply may be nil.
func (r *Registry) Remove(ctx context.Context, entryID string, apply func(device.Record)) (device.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, err := r.store.Get(ctx, entryID)
	if err != nil {
		return device.Record{}, err
	}
	if err := r.store.Delete(ctx, entryID); err != nil {
		return device.Record{}, fmt.Errorf("failed to delete device %s: %w", entryID, err)
	}
	if apply != nil {
		apply(rec)
	}
	return rec, nil
}

// rollback undoes the store write behind result. Must be called with mu held.
func (r *Registry) rollback(ctx context.Context, result Reconciliation) {
	var err error
	switch result.Status {
	case Created:
		err = r.store.Delete(ctx, result.Record.EntryID)
	case Updated:
		err = r.store.Put(ctx, *result.Previous)
	default:
		return
	}
	if err != nil {
		r.logger.Error("Rollback failed; stored device and notify services disagree until restart",
			"entry_id", result.Record.EntryID, "status", result.Status.String(), "err", err)
		return
	}
	r.logger.Warn("Device change rolled back", "entry_id", result.Record.EntryID, "status", result.Status.String())
}

// List returns all stored devices.
func (r *Registry) List(ctx context.Context) ([]device.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.store.List(ctx)
}

func (r *Registry) exists(ctx context.Context, registrationID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.store.List(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to list devices: %w", err)
	}
	for _, rec := range records {
		if rec.RegistrationID == registrationID {
			return true, nil
		}
	}
	return false, nil
}

// IsNotFound reports whether err means the entry does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, dispatch.ErrNotFound)
}
