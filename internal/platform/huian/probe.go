package huian

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/tinywideclouds/go-huian-notify-service/internal/registry"
	"github.com/tinywideclouds/go-huian-notify-service/pkg/dispatch"
)

// ProbeMessage is the alert a device receives when it is added by hand.
const ProbeMessage = "✅ Huian configured successfully! The Home Assistant integration is ready."

var (
	// ErrTooShort is caught locally; no request is sent.
	ErrTooShort = fmt.Errorf("%w: registration id must be at least %d characters", registry.ErrInvalidIdentifier, registry.MinVerifiedIDLength)
	// ErrRejected means the gateway answered the probe with a non-200 status.
	ErrRejected = errors.New("gateway rejected the registration id")
	// ErrTimeout means the probe did not complete before the client timeout.
	ErrTimeout = errors.New("gateway did not answer in time")
	// ErrTransport covers any other failure to reach the gateway.
	ErrTransport = errors.New("cannot connect to gateway")
)

// Probe sends the canned confirmation alert to registrationID. It always
// targets the production environment.
func (d *Dispatcher) Probe(ctx context.Context, registrationID string) error {
	if utf8.RuneCountInString(registrationID) < registry.MinVerifiedIDLength {
		return ErrTooShort
	}

	payload := pushRequest{
		Platform: []string{"ios"},
		Audience: audience{RegistrationID: []string{registrationID}},
		Notification: notificationBlock{
			IOS: iosNotification{Alert: ProbeMessage, Badge: DefaultBadge, Sound: DefaultSound},
		},
		Options: pushOptions{APNSProduction: true},
	}

	res := d.post(ctx, payload)
	return probeError(res)
}

func probeError(res dispatch.Result) error {
	switch {
	case res.Outcome == dispatch.Delivered:
		return nil
	case res.Outcome == dispatch.Rejected:
		return fmt.Errorf("%w: status %d: %s", ErrRejected, res.StatusCode, res.Body)
	case res.Timeout:
		return fmt.Errorf("%w: %v", ErrTimeout, res.Err)
	default:
		return fmt.Errorf("%w: %v", ErrTransport, res.Err)
	}
}
