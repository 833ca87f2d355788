package huiannotify_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinywideclouds/go-huian-notify-service/huiannotify"
	"github.com/tinywideclouds/go-huian-notify-service/huiannotify/config"
	"github.com/tinywideclouds/go-huian-notify-service/internal/storage/memory"
	"github.com/tinywideclouds/go-huian-notify-service/pkg/device"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func noopAuth(h http.Handler) http.Handler { return h }

func post(t *testing.T, srv *httptest.Server, path, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(srv.URL+path, "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestWrapper_EndToEndOverHTTP(t *testing.T) {
	ctx := context.Background()

	stored := device.Record{
		EntryID:        "stored-1",
		RegistrationID: "1a0018970a8b0000",
		DeviceName:     "Kitchen iPad",
		ServiceID:      "kitchen_ipad",
		CreatedAt:      time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	store := memory.NewDeviceStore(stored)
	gateway := &recordingGateway{}

	cfg := &config.Config{ListenAddr: ":0", NumPipelineWorkers: 1}
	svc, err := huiannotify.New(cfg, nil, store, gateway, noopAuth, newTestLogger())
	require.NoError(t, err)

	require.NoError(t, svc.LoadDevices(ctx))
	assert.Equal(t, []string{"kitchen_ipad"}, svc.Services(), "stored devices are loaded at startup")

	srv := httptest.NewServer(svc.Handler())
	t.Cleanup(srv.Close)

	// Register a phone from the mobile app.
	resp := post(t, srv, "/api/huian_notify/register", `{"registration_id":"1a0018970a8b1234","device_name":"iPhone 65050"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var reg map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&reg))
	assert.Equal(t, "success", reg["status"])
	assert.Equal(t, "iphone_65050", reg["service"])
	assert.ElementsMatch(t, []string{"iphone_65050", "kitchen_ipad"}, svc.Services())

	// Send through the new service.
	resp = post(t, srv, "/api/notify/iphone_65050", `{"message":"Washer done","data":{"sound":"bell.caf","room":"utility"}}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	require.Eventually(t, func() bool { return len(gateway.Sent()) == 1 }, 2*time.Second, 10*time.Millisecond)
	push := gateway.Sent()[0]
	assert.Equal(t, "1a0018970a8b1234", push.Record.RegistrationID)
	assert.Equal(t, "Home Assistant", push.Notification.Title)
	assert.Equal(t, "Washer done", push.Notification.Body)
	assert.Equal(t, "bell.caf", push.Notification.Sound)
	assert.Equal(t, map[string]any{"room": "utility"}, push.Notification.Extras)

	// Rename: the old service goes away.
	resp = post(t, srv, "/api/huian_notify/register", `{"registration_id":"1a0018970a8b1234","device_name":"Work Phone"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.ElementsMatch(t, []string{"work_phone", "kitchen_ipad"}, svc.Services())

	resp = post(t, srv, "/api/notify/iphone_65050", `{"message":"gone"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
