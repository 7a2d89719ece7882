// Package http provides the HTTP server and handlers.
package http //nolint:revive // package name conflicts with stdlib but is acceptable in this context

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/jobrunner/geoview/internal/application"
	"github.com/jobrunner/geoview/internal/config"
)

// Server wraps the HTTP server with application handlers.
type Server struct {
	server      *http.Server
	router      *mux.Router
	conversion  *application.ConversionService
	registry    *application.MapRegistry
	health      *application.HealthService
	syncService *application.SyncService
	httpMetrics HTTPMetrics
	logger      *slog.Logger
	config      config.ServerConfig
}

// HTTPMetrics records per-request metrics. It is optional.
type HTTPMetrics interface {
	ObserveRequest(method, route string, status int, seconds float64)
}

// NewServer creates a new HTTP server. syncService and httpMetrics may be
// nil.
func NewServer(
	cfg config.ServerConfig,
	conversion *application.ConversionService,
	registry *application.MapRegistry,
	health *application.HealthService,
	syncService *application.SyncService,
	httpMetrics HTTPMetrics,
	logger *slog.Logger,
) *Server {
	s := &Server{
		conversion:  conversion,
		registry:    registry,
		health:      health,
		syncService: syncService,
		httpMetrics: httpMetrics,
		logger:      logger,
		config:      cfg,
	}

	s.router = s.setupRoutes()

	s.server = &http.Server{
		Addr:         cfg.Address(),
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() *mux.Router {
	r := mux.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	if s.httpMetrics != nil {
		r.Use(s.metricsMiddleware)
	}
	if s.config.CORS.Enabled() {
		r.Use(s.corsMiddleware)
	}

	// Health endpoints
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/health/live", s.handleLiveness).Methods(http.MethodGet)
	r.HandleFunc("/health/ready", s.handleReadiness).Methods(http.MethodGet)

	// API v1
	api := r.PathPrefix("/api/v1").Subrouter()

	// Map endpoints
	api.HandleFunc("/maps", s.handleListMaps).Methods(http.MethodGet)
	api.HandleFunc("/maps/{mapId}", s.handleGetMap).Methods(http.MethodGet)
	api.HandleFunc("/maps/{mapId}/regions", s.handleListRegions).Methods(http.MethodGet)
	api.HandleFunc("/maps/{mapId}/regions/{name}", s.handleGetRegion).Methods(http.MethodGet)
	api.HandleFunc("/maps/{mapId}/coords/{name}", s.handleGeoCoord).Methods(http.MethodGet)
	api.HandleFunc("/maps/{mapId}/region-at", s.handleRegionAt).Methods(http.MethodGet)

	// Conversion endpoints
	api.HandleFunc("/convert/to-pixel", s.handleToPixel).Methods(http.MethodPost)
	api.HandleFunc("/convert/from-pixel", s.handleFromPixel).Methods(http.MethodPost)

	if s.syncService != nil {
		api.HandleFunc("/sync", s.handleSync).Methods(http.MethodPost)
	}

	// OpenAPI spec and Swagger UI
	r.HandleFunc("/openapi.json", s.handleOpenAPI).Methods(http.MethodGet)
	r.HandleFunc("/docs", s.handleSwaggerUI).Methods(http.MethodGet)
	r.HandleFunc("/swagger", s.handleSwaggerUI).Methods(http.MethodGet)

	// Middleware only runs on matched routes, so preflights need a route of
	// their own. corsMiddleware answers them before the handler is reached.
	if s.config.CORS.Enabled() {
		r.PathPrefix("/").Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})
	}

	return r
}

// Router returns the mux router.
func (s *Server) Router() *mux.Router {
	return s.router
}

// Handler returns the root handler, e.g. for a TLS listener.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "address", s.config.Address())
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.server.Shutdown(ctx)
}
