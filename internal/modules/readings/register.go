package readings

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"

	"climalog/internal/config"
	"climalog/internal/metrics"
	"climalog/internal/modules/readings/controller"
	"climalog/internal/modules/readings/repository"
	"climalog/internal/modules/readings/service"
	"climalog/internal/modules/readings/stream"
)

// Feature is the wired readings module. Close it before closing the database.
type Feature struct {
	Service *service.Service
	Hub     *stream.Hub
	writer  *repository.QueuedWriter
}

func RegisterFeature(mux *http.ServeMux, db *sql.DB, cfg config.Config, m *metrics.Metrics, logger *slog.Logger) *Feature {
	writer := repository.NewQueuedWriter(
		repository.NewRepository(db),
		cfg.WriteQueueSize,
		repository.WithDepthObserver(m.SetQueueDepth),
	)
	hub := stream.NewHub(stream.DefaultConfig(), m, logger)
	svc := service.NewService(writer,
		service.WithPublisher(hub),
		service.WithMetrics(m),
		service.WithLogger(logger),
		service.WithLimits(cfg.QueryDefaultLimit, cfg.QueryMaxLimit),
	)

	readingsController := controller.NewReadingsController(svc, hub)
	readingsController.RegisterRoutes(mux)

	return &Feature{Service: svc, Hub: hub, writer: writer}
}

// Close drains pending appends and disconnects stream clients.
func (f *Feature) Close(ctx context.Context) error {
	f.Hub.Close()
	return f.writer.Close(ctx)
}
