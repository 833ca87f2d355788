package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tinywideclouds/go-microservice-base/pkg/response"

	"github.com/tinywideclouds/go-huian-notify-service/internal/registry"
	"github.com/tinywideclouds/go-huian-notify-service/pkg/device"
)

const defaultDeviceName = "Unknown Device"

type RegisterRequest struct {
	RegistrationID string  `json:"registration_id"`
	DeviceName     *string `json:"device_name"`
	Production     bool    `json:"production"`
}

type RegisterResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Message string `json:"message"`
	EntryID string `json:"entry_id"`
}

// Register handles POST /api/huian_notify/register from the mobile app.
func (api *DeviceAPI) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Logger.Error("Register: JSON Decode failed", "err", err)
		writeMessage(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	deviceName := defaultDeviceName
	if req.DeviceName != nil {
		deviceName = *req.DeviceName
	}

	api.Logger.Info("Register: request received", "device_name", deviceName, "device_id", device.ShortID(req.RegistrationID))

	result, err := api.Registry.Register(ctx, req.RegistrationID, deviceName, req.Production, api.applyRegistration)
	if errors.Is(err, registry.ErrMissingIdentifier) {
		api.Logger.Warn("Register: Validation failed", "reason", "missing registration_id")
		writeMessage(w, http.StatusBadRequest, "Missing registration_id")
		return
	}
	if err != nil {
		api.Logger.Error("Register: failed to register device", "err", err)
		writeMessage(w, http.StatusInternalServerError, "Failed to register device")
		return
	}

	rec := result.Record
	resp := RegisterResponse{Service: rec.ServiceID, EntryID: rec.EntryID}
	switch result.Status {
	case registry.Created:
		resp.Status = "success"
		resp.Message = "Device registered as notify." + rec.ServiceID
	case registry.Updated:
		resp.Status = "updated"
		resp.Message = "Device updated as notify." + rec.ServiceID
	default:
		resp.Status = "already_exists"
		resp.Message = "Device already registered as notify." + rec.ServiceID
	}

	if api.Metrics != nil {
		api.Metrics.RecordRegistration(result.Status.String())
	}
	api.Logger.Info("Register: device reconciled", "status", resp.Status, "service", rec.ServiceID, "device_id", rec.ShortID())
	response.WriteJSON(w, http.StatusOK, resp)
}

// applyRegistration keeps the notify services in step with a reconciled
// registration. It runs under the registry lock. A known device whose
// service is missing gets it installed again.
func (api *DeviceAPI) applyRegistration(result registry.Reconciliation) error {
	rec := result.Record
	switch result.Status {
	case registry.Created:
		return api.Lifecycle.OnCreate(rec)
	case registry.Updated:
		return api.Lifecycle.OnOptionsChanged(*result.Previous, rec)
	default:
		if api.Services.Has(rec.ServiceID) {
			return nil
		}
		api.Logger.Warn("Register: notify service missing for known device, reinstalling", "service", rec.ServiceID, "device_id", rec.ShortID())
		return api.Lifecycle.OnCreate(rec)
	}
}
