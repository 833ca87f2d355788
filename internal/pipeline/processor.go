package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"

	"github.com/tinywideclouds/go-huian-notify-service/internal/services"
)

// NewProcessor routes each call to the notify service it names. The send
// itself never fails the message: a gateway result is final and retrying
// would duplicate the push.
func NewProcessor(table *services.Table, logger *slog.Logger) messagepipeline.StreamProcessor[services.Call] {
	return func(ctx context.Context, original messagepipeline.Message, call *services.Call) error {
		procLogger := logger.With(
			"service", call.Service,
			"pubsub_msg_id", original.ID,
		)

		err := table.Call(ctx, *call)
		if errors.Is(err, services.ErrUnknownService) {
			procLogger.Warn("No device holds this notify service; dropping notification.")
			return nil
		}
		if err != nil {
			procLogger.Error("Service call failed", "err", err)
			return err
		}

		procLogger.Debug("Service call handled")
		return nil
	}
}
