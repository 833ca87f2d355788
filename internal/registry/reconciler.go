// Package registry reconciles device registrations against the stored
// device table and assigns each device a unique service id.
package registry

import (
	"time"

	"github.com/tinywideclouds/go-huian-notify-service/pkg/device"
)

// Status reports what a reconciliation did to the device table.
type Status int

const (
	Created Status = iota
	Updated
	Unchanged
)

func (s Status) String() string {
	switch s {
	case Created:
		return "created"
	case Updated:
		return "updated"
	case Unchanged:
		return "unchanged"
	default:
		return "unknown"
	}
}

// Reconciliation is the result of Reconcile. Previous is set only for
// Updated and holds the record as it was before the rename, so the caller
// can tear down the service registered under the old id.
type Reconciliation struct {
	Record   device.Record
	Status   Status
	Previous *device.Record
}

// Reconcile decides whether a registration is a new device, a renamed
// device or a repeat of a known one. It does not touch storage; the caller
// persists Record when Status is not Unchanged and must serialize calls.
// newEntryID is only invoked for Created.
func Reconcile(
	records []device.Record,
	registrationID, deviceName string,
	production bool,
	now time.Time,
	newEntryID func() string,
) Reconciliation {
	idx := -1
	for i := range records {
		if records[i].RegistrationID == registrationID {
			idx = i
			break
		}
	}

	if idx < 0 {
		rec := device.Record{
			EntryID:        newEntryID(),
			RegistrationID: registrationID,
			DeviceName:     deviceName,
			Production:     production,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		rec.ServiceID = UniqueServiceID(ServiceID(deviceName, registrationID), takenServiceIDs(records, ""))
		return Reconciliation{Record: rec, Status: Created}
	}

	existing := records[idx]
	if existing.DeviceName == deviceName {
		return Reconciliation{Record: existing, Status: Unchanged}
	}

	prev := existing
	updated := existing
	updated.DeviceName = deviceName
	updated.Production = production
	updated.UpdatedAt = now
	updated.ServiceID = UniqueServiceID(ServiceID(deviceName, registrationID), takenServiceIDs(records, existing.EntryID))

	return Reconciliation{Record: updated, Status: Updated, Previous: &prev}
}

// takenServiceIDs collects the service ids in use, skipping the record with
// the given entry id.
func takenServiceIDs(records []device.Record, skipEntryID string) map[string]struct{} {
	taken := make(map[string]struct{}, len(records))
	for _, r := range records {
		if skipEntryID != "" && r.EntryID == skipEntryID {
			continue
		}
		if r.ServiceID != "" {
			taken[r.ServiceID] = struct{}{}
		}
	}
	return taken
}
