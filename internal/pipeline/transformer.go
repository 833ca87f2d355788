// --- File: internal/pipeline/transformer.go ---
// Package pipeline contains the core message processing components for the service.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"

	"github.com/tinywideclouds/go-huian-notify-service/internal/services"
)

// ServiceCallTransformer is a dataflow Transformer that unmarshals and
// validates a raw message payload into a services.Call.
func ServiceCallTransformer(
	_ context.Context,
	msg *messagepipeline.Message,
) (*services.Call, bool, error) {
	var call services.Call

	// Malformed payloads are skipped so the StreamingService can handle
	// the Nack/DLQ logic.
	if err := json.Unmarshal(msg.Payload, &call); err != nil {
		return nil, true, fmt.Errorf("failed to unmarshal service call from message %s: %w", msg.ID, err)
	}

	call.Service = strings.TrimPrefix(strings.TrimSpace(call.Service), "notify.")
	if call.Service == "" {
		return nil, true, fmt.Errorf("service call in message %s has no service", msg.ID)
	}

	return &call, false, nil
}
