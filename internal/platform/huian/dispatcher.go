// --- File: internal/platform/huian/dispatcher.go ---
// Package huian provides the client for the Huian push gateway, a
// JPush-compatible HTTPS API that delivers to iOS devices.
package huian

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/tinywideclouds/go-huian-notify-service/huiannotify/config"
	"github.com/tinywideclouds/go-huian-notify-service/pkg/device"
	"github.com/tinywideclouds/go-huian-notify-service/pkg/dispatch"
)

const (
	pushPath = "/v3/push"

	// maxResponseBody bounds how much of a gateway reply we keep for logs.
	maxResponseBody = 64 << 10
)

type Dispatcher struct {
	endpoint   string
	authHeader string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewDispatcher builds the Basic credential once; every Send reuses it.
func NewDispatcher(cfg config.HuianConfig, logger *slog.Logger) *Dispatcher {
	credentials := cfg.AppKey + ":" + cfg.MasterSecret
	return &Dispatcher{
		endpoint:   strings.TrimRight(cfg.BaseURL, "/") + pushPath,
		authHeader: "Basic " + base64.StdEncoding.EncodeToString([]byte(credentials)),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.With("component", "HuianDispatcher"),
	}
}

// Send performs exactly one POST to the gateway. It never retries; a
// failed send is reported in the Result and left to the caller.
func (d *Dispatcher) Send(ctx context.Context, rec device.Record, n dispatch.Notification) dispatch.Result {
	log := d.logger.With("device_id", rec.ShortID(), "service", rec.ServiceID)

	res := d.post(ctx, newPushRequest(rec, n))
	switch res.Outcome {
	case dispatch.Delivered:
		log.Info("Huian notification sent", "msg_id", res.MessageID)
	case dispatch.Rejected:
		log.Error("Huian notification rejected", "status", res.StatusCode, "response", res.Body)
	default:
		log.Error("Huian notification transport failed", "timeout", res.Timeout, "err", res.Err)
	}
	return res
}

func (d *Dispatcher) post(ctx context.Context, payload any) dispatch.Result {
	body, err := json.Marshal(payload)
	if err != nil {
		return dispatch.Result{Outcome: dispatch.TransportError, Err: fmt.Errorf("failed to marshal payload: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(body))
	if err != nil {
		return dispatch.Result{Outcome: dispatch.TransportError, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Authorization", d.authHeader)
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return dispatch.Result{Outcome: dispatch.TransportError, Err: err, Timeout: isTimeout(err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil && resp.StatusCode == http.StatusOK {
		// The push was accepted; only the receipt is unreadable.
		d.logger.Warn("Failed to read gateway response body", "err", err)
	}

	if resp.StatusCode != http.StatusOK {
		return dispatch.Result{Outcome: dispatch.Rejected, StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	return dispatch.Result{Outcome: dispatch.Delivered, MessageID: parseMessageID(respBody)}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
