package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tkeffer/weewx-xaggs/internal/metrics"
	"github.com/tkeffer/weewx-xaggs/internal/store"
	"github.com/tkeffer/weewx-xaggs/internal/xtypes"
)

// Server is the REST API server.
type Server struct {
	httpServer *http.Server
	handlers   *Handlers
}

// NewServer creates a new API server with all routes registered. m may be
// nil; gatherer backs /metrics and defaults to the global registry.
func NewServer(reg *xtypes.Registry, db store.DaySummaryStore, m *metrics.Collector,
	gatherer prometheus.Gatherer, logger *slog.Logger) *Server {
	h := &Handlers{
		Registry:  reg,
		Store:     db,
		Logger:    logger,
		StartTime: time.Now(),
	}

	srv := &http.Server{
		Handler:      newRouter(h, m, gatherer),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{httpServer: srv, handlers: h}
}

func newRouter(h *Handlers, m *metrics.Collector, gatherer prometheus.Gatherer) http.Handler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	router := mux.NewRouter()
	router.Use(Metrics(m))
	router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(ContentType)
	api.HandleFunc("/aggregates", h.ListAggregates).Methods(http.MethodGet)
	api.HandleFunc("/aggregates/{obs_type}", h.GetAggregate).Methods(http.MethodGet)
	api.HandleFunc("/health", h.Health).Methods(http.MethodGet)

	// Apply middleware (outermost runs first).
	var handler http.Handler = router
	handler = SecurityHeaders(handler)
	handler = CORS("")(handler) // Empty string disables CORS headers.
	handler = Logger(handler)
	handler = RequestID(handler)
	handler = Recovery(handler)
	return handler
}

// ListenAndServe starts the HTTP server. Blocks until context is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	s.httpServer.Addr = addr
	slog.Info("api server starting", "addr", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("api server: %w", err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// SetVersion sets the version string for the health endpoint.
func (s *Server) SetVersion(v string) { s.handlers.Version = v }

// SetStorageDriver sets the storage driver reported by the health endpoint.
func (s *Server) SetStorageDriver(driver string) { s.handlers.StorageDriver = driver }
