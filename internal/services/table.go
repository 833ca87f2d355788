// Package services holds the per-device notify handlers that callers address
// by service id.
package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

var ErrUnknownService = errors.New("unknown notify service")

// Call is a request to send a notification through one service. A nil
// Title means the caller did not set one; an empty Title is sent as is.
type Call struct {
	Service string         `json:"service"`
	Message string         `json:"message"`
	Title   *string        `json:"title,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}

// Handler performs a call. Handlers report their own failures; callers do
// not wait on an outcome.
type Handler func(ctx context.Context, call Call)

// Table maps service ids to handlers.
type Table struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewTable() *Table {
	return &Table{handlers: make(map[string]Handler)}
}

// Register installs a handler. A service id can only be held once.
func (t *Table) Register(service string, h Handler) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.handlers[service]; exists {
		return fmt.Errorf("service %s already registered", service)
	}
	t.handlers[service] = h
	return nil
}

// Remove uninstalls a handler and reports whether one was present.
func (t *Table) Remove(service string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, exists := t.handlers[service]
	delete(t.handlers, service)
	return exists
}

func (t *Table) Has(service string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, exists := t.handlers[service]
	return exists
}

// Services returns the registered ids in sorted order.
func (t *Table) Services() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]string, 0, len(t.handlers))
	for name := range t.handlers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Call runs the handler for call.Service on the calling goroutine.
func (t *Table) Call(ctx context.Context, call Call) error {
	t.mu.RLock()
	h, exists := t.handlers[call.Service]
	t.mu.RUnlock()

	if !exists {
		return fmt.Errorf("%w: %s", ErrUnknownService, call.Service)
	}
	h(ctx, call)
	return nil
}
