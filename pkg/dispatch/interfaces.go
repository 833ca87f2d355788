// --- File: pkg/dispatch/interfaces.go ---
package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/tinywideclouds/go-huian-notify-service/pkg/device"
)

// ErrNotFound is returned by a DeviceStore when no record exists for the key.
var ErrNotFound = errors.New("device not found")

// Notification is the content of a single push. Zero values for Badge and
// Sound are replaced by the gateway defaults ("+1" and "default").
type Notification struct {
	Title  string
	Body   string
	Badge  string
	Sound  string
	Extras map[string]any
}

// Outcome classifies a send attempt.
type Outcome int

const (
	Delivered Outcome = iota
	Rejected
	TransportError
)

func (o Outcome) String() string {
	switch o {
	case Delivered:
		return "delivered"
	case Rejected:
		return "rejected"
	case TransportError:
		return "transport_error"
	default:
		return "unknown"
	}
}

// Result is what a Dispatcher reports for one send. Only the fields that
// belong to the Outcome are populated.
type Result struct {
	Outcome Outcome

	// Delivered
	MessageID string

	// Rejected
	StatusCode int
	Body       string

	// TransportError
	Err     error
	Timeout bool
}

func (r Result) String() string {
	switch r.Outcome {
	case Delivered:
		return fmt.Sprintf("delivered msg_id=%q", r.MessageID)
	case Rejected:
		return fmt.Sprintf("rejected status=%d body=%q", r.StatusCode, r.Body)
	default:
		return fmt.Sprintf("transport_error timeout=%t err=%v", r.Timeout, r.Err)
	}
}

// Dispatcher defines the contract for a component that can push a
// notification to one registered device. It never returns an error: every
// failure is folded into the Result.
type Dispatcher interface {
	Send(ctx context.Context, rec device.Record, n Notification) Result
}

// DeviceStore defines the contract for persisting device records.
// It is the key-value table the registry reconciles against.
type DeviceStore interface {
	// List returns every stored record.
	List(ctx context.Context) ([]device.Record, error)

	// Get returns the record for an entry id, or ErrNotFound.
	Get(ctx context.Context, entryID string) (device.Record, error)

	// Put creates or replaces the record keyed by rec.EntryID.
	Put(ctx context.Context, rec device.Record) error

	// Delete removes the record. Deleting a missing record is not an error.
	Delete(ctx context.Context, entryID string) error
}
