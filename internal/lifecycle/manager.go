// Package lifecycle keeps the notify service table in step with the stored
// device records.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tinywideclouds/go-huian-notify-service/internal/services"
	"github.com/tinywideclouds/go-huian-notify-service/pkg/device"
	"github.com/tinywideclouds/go-huian-notify-service/pkg/dispatch"
)

const DefaultTitle = "Home Assistant"

// Recorder receives one observation per gateway send.
type Recorder interface {
	RecordDispatch(outcome string, duration float64)
	SetDevices(n int)
}

type Manager struct {
	mu         sync.Mutex
	installed  map[string]string // entry id -> service id
	table      *services.Table
	dispatcher dispatch.Dispatcher
	recorder   Recorder
	logger     *slog.Logger
}

// NewManager wires a dispatcher to a service table. recorder may be nil.
func NewManager(table *services.Table, dispatcher dispatch.Dispatcher, recorder Recorder, logger *slog.Logger) *Manager {
	return &Manager{
		installed:  make(map[string]string),
		table:      table,
		dispatcher: dispatcher,
		recorder:   recorder,
		logger:     logger.With("component", "Lifecycle"),
	}
}

// OnCreate installs the notify service for rec. Re-installing an entry
// first drops whatever service it held before.
func (m *Manager) OnCreate(rec device.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	defer m.reportDevices()

	m.uninstall(rec.EntryID)
	return m.install(rec)
}

// OnRemove uninstalls the notify service for rec.
func (m *Manager) OnRemove(rec device.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if service, ok := m.uninstall(rec.EntryID); ok {
		m.logger.Info("Notify service removed", "service", service, "device_id", rec.ShortID())
	}
	m.reportDevices()
}

// OnOptionsChanged reloads the service so the handler sees the new record.
// If the new service cannot be installed the old one is put back.
func (m *Manager) OnOptionsChanged(old, updated device.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	defer m.reportDevices()

	m.logger.Debug("Reloading notify service", "old_service", old.ServiceID, "new_service", updated.ServiceID)
	m.uninstall(old.EntryID)
	if err := m.install(updated); err != nil {
		if restoreErr := m.install(old); restoreErr != nil {
			m.logger.Error("Failed to restore notify service", "service", old.ServiceID, "err", restoreErr)
		}
		return err
	}
	return nil
}

// Load installs a service for every record, as done at startup. Failures
// are logged and counted; the remaining records still load.
func (m *Manager) Load(records []device.Record) int {
	failed := 0
	for _, rec := range records {
		if err := m.OnCreate(rec); err != nil {
			failed++
			m.logger.Error("Failed to load device", "entry_id", rec.EntryID, "err", err)
		}
	}
	m.logger.Info("Devices loaded", "count", len(records)-failed, "failed", failed)
	return failed
}

// install must be called with mu held.
func (m *Manager) install(rec device.Record) error {
	if err := m.table.Register(rec.ServiceID, m.handlerFor(rec)); err != nil {
		return fmt.Errorf("failed to install service for entry %s: %w", rec.EntryID, err)
	}
	m.installed[rec.EntryID] = rec.ServiceID
	m.logger.Info("Notify service installed", "service", rec.ServiceID, "device_id", rec.ShortID(), "production", rec.Production)
	return nil
}

// uninstall must be called with mu held.
func (m *Manager) uninstall(entryID string) (string, bool) {
	service, ok := m.installed[entryID]
	if !ok {
		return "", false
	}
	m.table.Remove(service)
	delete(m.installed, entryID)
	return service, true
}

func (m *Manager) reportDevices() {
	if m.recorder != nil {
		m.recorder.SetDevices(len(m.installed))
	}
}

func (m *Manager) handlerFor(rec device.Record) services.Handler {
	return func(ctx context.Context, call services.Call) {
		start := time.Now()
		res := m.dispatcher.Send(ctx, rec, NotificationFromCall(call))
		if m.recorder != nil {
			m.recorder.RecordDispatch(res.Outcome.String(), time.Since(start).Seconds())
		}
	}
}

// NotificationFromCall maps a service call onto the push content. badge
// and sound are lifted out of data; every other key becomes an extra.
func NotificationFromCall(call services.Call) dispatch.Notification {
	n := dispatch.Notification{
		Title: DefaultTitle,
		Body:  call.Message,
	}
	if call.Title != nil {
		n.Title = *call.Title
	}

	for k, v := range call.Data {
		switch k {
		case "badge":
			if v != nil {
				n.Badge = fmt.Sprint(v)
			}
		case "sound":
			if v != nil {
				n.Sound = fmt.Sprint(v)
			}
		default:
			if n.Extras == nil {
				n.Extras = make(map[string]any)
			}
			n.Extras[k] = v
		}
	}
	return n
}
