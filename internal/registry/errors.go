package registry

import "errors"

// MinVerifiedIDLength is the shortest registration id accepted by the
// interactive add-device flow.
const MinVerifiedIDLength = 10

var (
	// ErrMissingIdentifier means the request carried no registration id.
	ErrMissingIdentifier = errors.New("missing registration_id")

	// ErrInvalidIdentifier means the registration id is present but cannot
	// be a valid provider id (too short for interactive verification).
	ErrInvalidIdentifier = errors.New("invalid registration_id")

	// ErrAlreadyConfigured is returned by the add-device flow when the
	// registration id is already stored.
	ErrAlreadyConfigured = errors.New("device already configured")

	// ErrProbeFailed wraps whatever the probe returned when the gateway
	// could not confirm the id.
	ErrProbeFailed = errors.New("registration id could not be verified")

	// ErrApplyFailed means the change was stored but the notify service
	// could not follow it; the store write has been rolled back.
	ErrApplyFailed = errors.New("failed to apply device change")
)
