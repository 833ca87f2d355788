package huiannotify_test

import (
	"context"
	"sync"

	"github.com/tinywideclouds/go-huian-notify-service/pkg/device"
	"github.com/tinywideclouds/go-huian-notify-service/pkg/dispatch"
)

// recordingGateway accepts every push and remembers what it was asked to send.
type recordingGateway struct {
	mu     sync.Mutex
	sent   []sentPush
	probes []string
}

type sentPush struct {
	Record       device.Record
	Notification dispatch.Notification
}

func (g *recordingGateway) Send(_ context.Context, rec device.Record, n dispatch.Notification) dispatch.Result {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sent = append(g.sent, sentPush{Record: rec, Notification: n})
	return dispatch.Result{Outcome: dispatch.Delivered, MessageID: "msg-1"}
}

func (g *recordingGateway) Probe(_ context.Context, registrationID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.probes = append(g.probes, registrationID)
	return nil
}

func (g *recordingGateway) Sent() []sentPush {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]sentPush(nil), g.sent...)
}
