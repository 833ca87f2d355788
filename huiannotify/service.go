// --- File: huiannotify/service.go ---
package huiannotify

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-microservice-base/pkg/microservice"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"

	"github.com/tinywideclouds/go-huian-notify-service/huiannotify/config"
	"github.com/tinywideclouds/go-huian-notify-service/internal/api"
	"github.com/tinywideclouds/go-huian-notify-service/internal/lifecycle"
	"github.com/tinywideclouds/go-huian-notify-service/internal/metrics"
	"github.com/tinywideclouds/go-huian-notify-service/internal/pipeline"
	"github.com/tinywideclouds/go-huian-notify-service/internal/registry"
	"github.com/tinywideclouds/go-huian-notify-service/internal/services"
	"github.com/tinywideclouds/go-huian-notify-service/pkg/dispatch"
)

// Gateway sends pushes and verifies registration ids.
type Gateway interface {
	dispatch.Dispatcher
	Probe(ctx context.Context, registrationID string) error
}

type Wrapper struct {
	*microservice.BaseServer
	pipelineService *messagepipeline.StreamingService[services.Call]
	registry        *registry.Registry
	lifecycle       *lifecycle.Manager
	services        *services.Table
	deviceAPI       *api.DeviceAPI
	routes          *http.ServeMux
	logger          *slog.Logger
}

// New assembles the service. consumer may be nil, in which case send
// requests only arrive over HTTP.
func New(
	cfg *config.Config,
	consumer messagepipeline.MessageConsumer,
	store dispatch.DeviceStore,
	gateway Gateway,
	authMiddleware func(http.Handler) http.Handler,
	logger *slog.Logger,
) (*Wrapper, error) {

	// 1. Base Server
	baseServer := microservice.NewBaseServer(logger, cfg.ListenAddr)

	// 2. Metrics (optional)
	var (
		promRegistry      *metrics.Registry
		dispatchRecorder  lifecycle.Recorder
		registrationStats api.RegistrationRecorder
	)
	if cfg.Metrics.Enabled {
		promRegistry = metrics.NewRegistry()
		dispatchRecorder = promRegistry
		registrationStats = promRegistry
	}

	// 3. Device table, notify services and their lifecycle
	table := services.NewTable()
	manager := lifecycle.NewManager(table, gateway, dispatchRecorder, logger)
	reg := registry.New(store, logger)

	w := &Wrapper{
		BaseServer: baseServer,
		registry:   reg,
		lifecycle:  manager,
		services:   table,
		logger:     logger,
	}

	// 4. Pipeline
	if consumer != nil {
		streamingService, err := messagepipeline.NewStreamingService(
			messagepipeline.StreamingServiceConfig{NumWorkers: cfg.NumPipelineWorkers},
			consumer,
			pipeline.ServiceCallTransformer,
			pipeline.NewProcessor(table, logger),
			logger,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create streaming service: %w", err)
		}
		w.pipelineService = streamingService
	}

	// 5. API
	w.deviceAPI = api.NewDeviceAPI(reg, manager, table, gateway.Probe, registrationStats, logger)

	corsMiddleware := middleware.NewCorsMiddleware(cfg.CorsConfig, logger)
	instrument := func(h http.Handler) http.Handler { return h }
	if promRegistry != nil {
		instrument = metrics.HTTPMiddleware(promRegistry)
	}

	routes := http.NewServeMux()
	handle := func(pattern string, handlerFunc http.HandlerFunc) {
		routes.Handle(pattern, instrument(corsMiddleware(authMiddleware(handlerFunc))))
	}

	// Registration from the mobile app
	handle("POST /api/huian_notify/register", w.deviceAPI.Register)

	// Device management
	handle("GET /api/huian_notify/devices", w.deviceAPI.ListDevices)
	handle("POST /api/huian_notify/devices", w.deviceAPI.AddDevice)
	handle("PATCH /api/huian_notify/devices/{entry_id}", w.deviceAPI.UpdateDevice)
	handle("DELETE /api/huian_notify/devices/{entry_id}", w.deviceAPI.DeleteDevice)

	// Notify service calls
	handle("POST /api/notify/{service}", w.deviceAPI.Notify)

	// CORS preflight for the API namespace
	routes.Handle("OPTIONS /api/", corsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))

	w.routes = routes
	mux := baseServer.Mux()
	mux.Handle("/api/", routes)
	if promRegistry != nil {
		mux.Handle(cfg.Metrics.Path, promRegistry.Handler())
	}

	return w, nil
}

// Handler returns the API routes without the base server's probes.
func (w *Wrapper) Handler() http.Handler {
	return w.routes
}

// Services lists the notify services currently installed.
func (w *Wrapper) Services() []string {
	return w.services.Services()
}

// LoadDevices installs a notify service for every stored device.
func (w *Wrapper) LoadDevices(ctx context.Context) error {
	records, err := w.registry.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to load devices: %w", err)
	}
	w.lifecycle.Load(records)
	return nil
}

func (w *Wrapper) Start(ctx context.Context) error {
	if err := w.LoadDevices(ctx); err != nil {
		return err
	}

	if w.pipelineService != nil {
		w.logger.Info("Core processing pipeline starting...")
		if err := w.pipelineService.Start(ctx); err != nil {
			return fmt.Errorf("failed to start processing service: %w", err)
		}
	}
	w.SetReady(true)
	w.logger.Info("Service is now ready.", "services", len(w.Services()))
	return w.BaseServer.Start()
}

func (w *Wrapper) Shutdown(ctx context.Context) error {
	w.logger.Info("Shutting down service components...")
	var finalErr error
	if w.pipelineService != nil {
		if err := w.pipelineService.Stop(ctx); err != nil {
			w.logger.Error("Processing pipeline shutdown failed.", "err", err)
			finalErr = err
		}
	}
	if err := w.BaseServer.Shutdown(ctx); err != nil {
		w.logger.Error("HTTP server shutdown failed.", "err", err)
		finalErr = err
	}
	w.deviceAPI.Wait()
	w.logger.Info("Service shutdown complete.")
	return finalErr
}
