// Package api holds the HTTP handlers for device registration, device
// management and notify service calls.
package api

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/tinywideclouds/go-microservice-base/pkg/response"

	"github.com/tinywideclouds/go-huian-notify-service/internal/registry"
	"github.com/tinywideclouds/go-huian-notify-service/internal/services"
	"github.com/tinywideclouds/go-huian-notify-service/pkg/device"
)

// Lifecycle is told about every change to the device table so the notify
// services follow it.
type Lifecycle interface {
	OnCreate(rec device.Record) error
	OnRemove(rec device.Record)
	OnOptionsChanged(old, updated device.Record) error
}

// RegistrationRecorder counts registrations by outcome.
type RegistrationRecorder interface {
	RecordRegistration(status string)
}

type DeviceAPI struct {
	Registry  *registry.Registry
	Lifecycle Lifecycle
	Services  *services.Table
	Probe     registry.ProbeFunc
	Metrics   RegistrationRecorder
	Logger    *slog.Logger

	// inflight tracks detached notify sends.
	inflight sync.WaitGroup
}

// NewDeviceAPI builds the handlers. metrics may be nil.
func NewDeviceAPI(
	reg *registry.Registry,
	lifecycle Lifecycle,
	table *services.Table,
	probe registry.ProbeFunc,
	metrics RegistrationRecorder,
	logger *slog.Logger,
) *DeviceAPI {
	return &DeviceAPI{
		Registry:  reg,
		Lifecycle: lifecycle,
		Services:  table,
		Probe:     probe,
		Metrics:   metrics,
		Logger:    logger.With("component", "DeviceAPI"),
	}
}

// Wait blocks until every notify send started by the API has finished.
func (api *DeviceAPI) Wait() {
	api.inflight.Wait()
}

type messageResponse struct {
	Message string `json:"message"`
}

// writeMessage is the {"message": ...} body the mobile app expects from
// the register endpoint.
func writeMessage(w http.ResponseWriter, status int, msg string) {
	response.WriteJSON(w, status, messageResponse{Message: msg})
}
