package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tinywideclouds/go-microservice-base/pkg/response"

	"github.com/tinywideclouds/go-huian-notify-service/internal/registry"
	"github.com/tinywideclouds/go-huian-notify-service/pkg/device"
)

type AddDeviceRequest struct {
	RegistrationID string `json:"registration_id"`
	Production     bool   `json:"production"`
}

type DeviceOptionsRequest struct {
	Production *bool `json:"production"`
}

type DeviceView struct {
	device.Record
	Title string `json:"title"`
}

func newDeviceView(rec device.Record) DeviceView {
	return DeviceView{Record: rec, Title: rec.Title()}
}

// ListDevices handles GET /api/huian_notify/devices.
func (api *DeviceAPI) ListDevices(w http.ResponseWriter, r *http.Request) {
	records, err := api.Registry.List(r.Context())
	if err != nil {
		api.Logger.Error("ListDevices: failed to list devices", "err", err)
		response.WriteJSONError(w, http.StatusInternalServerError, "storage failed")
		return
	}

	views := make([]DeviceView, 0, len(records))
	for _, rec := range records {
		views = append(views, newDeviceView(rec))
	}
	response.WriteJSON(w, http.StatusOK, views)
}

// AddDevice handles POST /api/huian_notify/devices: the id is verified by
// a live push before anything is stored.
func (api *DeviceAPI) AddDevice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req AddDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.WriteJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}

	rec, err := api.Registry.AddVerified(ctx, req.RegistrationID, req.Production, api.Probe, api.Lifecycle.OnCreate)
	switch {
	case errors.Is(err, registry.ErrMissingIdentifier), errors.Is(err, registry.ErrInvalidIdentifier):
		api.Logger.Warn("AddDevice: Validation failed", "device_id", device.ShortID(req.RegistrationID), "err", err)
		response.WriteJSONError(w, http.StatusBadRequest, "invalid_format")
		return
	case errors.Is(err, registry.ErrAlreadyConfigured):
		response.WriteJSONError(w, http.StatusConflict, "already_configured")
		return
	case errors.Is(err, registry.ErrProbeFailed):
		api.Logger.Warn("AddDevice: probe failed", "device_id", device.ShortID(req.RegistrationID), "err", err)
		response.WriteJSONError(w, http.StatusBadGateway, "cannot_connect")
		return
	case errors.Is(err, registry.ErrApplyFailed):
		api.Logger.Error("AddDevice: failed to install notify service", "err", err)
		response.WriteJSONError(w, http.StatusInternalServerError, "failed to install notify service")
		return
	case err != nil:
		api.Logger.Error("AddDevice: failed to add device", "err", err)
		response.WriteJSONError(w, http.StatusInternalServerError, "storage failed")
		return
	}
	if api.Metrics != nil {
		api.Metrics.RecordRegistration(registry.Created.String())
	}

	api.Logger.Info("AddDevice: device verified and added", "service", rec.ServiceID, "device_id", rec.ShortID())
	response.WriteJSON(w, http.StatusCreated, newDeviceView(rec))
}

// UpdateDevice handles PATCH /api/huian_notify/devices/{entry_id}.
func (api *DeviceAPI) UpdateDevice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	entryID := r.PathValue("entry_id")

	var req DeviceOptionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.WriteJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Production == nil {
		response.WriteJSONError(w, http.StatusBadRequest, "missing production")
		return
	}

	_, after, err := api.Registry.SetProduction(ctx, entryID, *req.Production, api.Lifecycle.OnOptionsChanged)
	switch {
	case registry.IsNotFound(err):
		response.WriteJSONError(w, http.StatusNotFound, "device not found")
		return
	case errors.Is(err, registry.ErrApplyFailed):
		api.Logger.Error("UpdateDevice: failed to reload notify service", "entry_id", entryID, "err", err)
		response.WriteJSONError(w, http.StatusInternalServerError, "failed to reload notify service")
		return
	case err != nil:
		api.Logger.Error("UpdateDevice: failed to update device", "entry_id", entryID, "err", err)
		response.WriteJSONError(w, http.StatusInternalServerError, "storage failed")
		return
	}

	api.Logger.Info("UpdateDevice: options changed", "service", after.ServiceID, "production", after.Production)
	response.WriteJSON(w, http.StatusOK, newDeviceView(after))
}

// DeleteDevice handles DELETE /api/huian_notify/devices/{entry_id}.
func (api *DeviceAPI) DeleteDevice(w http.ResponseWriter, r *http.Request) {
	entryID := r.PathValue("entry_id")

	rec, err := api.Registry.Remove(r.Context(), entryID, api.Lifecycle.OnRemove)
	if registry.IsNotFound(err) {
		response.WriteJSONError(w, http.StatusNotFound, "device not found")
		return
	}
	if err != nil {
		api.Logger.Error("DeleteDevice: failed to remove device", "entry_id", entryID, "err", err)
		response.WriteJSONError(w, http.StatusInternalServerError, "storage failed")
		return
	}

	api.Logger.Info("DeleteDevice: device removed", "service", rec.ServiceID, "device_id", rec.ShortID())
	w.WriteHeader(http.StatusNoContent)
}
