package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/tinywideclouds/go-microservice-base/pkg/response"

	"github.com/tinywideclouds/go-huian-notify-service/internal/services"
)

type NotifyRequest struct {
	Message string         `json:"message"`
	Title   *string        `json:"title"`
	Data    map[string]any `json:"data"`
}

// Notify handles POST /api/notify/{service}. The send runs after the
// response is written; the caller only learns that it was accepted. A
// missing message is sent as an empty body.
func (api *DeviceAPI) Notify(w http.ResponseWriter, r *http.Request) {
	service := strings.TrimPrefix(r.PathValue("service"), "notify.")

	var req NotifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.WriteJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if !api.Services.Has(service) {
		response.WriteJSONError(w, http.StatusNotFound, "unknown notify service")
		return
	}

	call := services.Call{Service: service, Message: req.Message, Title: req.Title, Data: req.Data}
	ctx := context.WithoutCancel(r.Context())

	api.inflight.Add(1)
	go func() {
		defer api.inflight.Done()
		if err := api.Services.Call(ctx, call); err != nil {
			// The service was removed between the check and the send.
			api.Logger.Warn("Notify: service call dropped", "service", service, "err", err)
		}
	}()

	w.WriteHeader(http.StatusAccepted)
}
