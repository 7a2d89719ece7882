// Package app provides application initialization and wiring.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/jobrunner/geoview/internal/adapters/geopackage"
	httpAdapter "github.com/jobrunner/geoview/internal/adapters/http"
	"github.com/jobrunner/geoview/internal/adapters/metrics"
	"github.com/jobrunner/geoview/internal/adapters/storage"
	tlsAdapter "github.com/jobrunner/geoview/internal/adapters/tls"
	"github.com/jobrunner/geoview/internal/adapters/watcher"
	"github.com/jobrunner/geoview/internal/application"
	"github.com/jobrunner/geoview/internal/config"
	"github.com/jobrunner/geoview/internal/observability"
	"github.com/jobrunner/geoview/internal/ports/output"
)

// App holds all application components.
type App struct {
	Config            *config.Config
	Logger            *slog.Logger
	Version           string
	Storage           output.ObjectStorage
	Exporter          *geopackage.Exporter
	Registry          *application.MapRegistry
	ConversionService *application.ConversionService
	HealthService     *application.HealthService
	SyncService       *application.SyncService
	HTTPServer        *httpAdapter.Server
	TLSServer         *tlsAdapter.Server
	Watcher           *watcher.Watcher
	Metrics           *metrics.Collector
	MetricsServer     *metrics.Server

	metricsRegistry *prometheus.Registry
	shutdownTracing observability.ShutdownFunc
}

// New creates and initializes a new application.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, version string) (*App, error) {
	app := &App{
		Config:  cfg,
		Logger:  logger,
		Version: version,
	}

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		Version:     version,
		Exporter:    cfg.Tracing.Exporter,
		Endpoint:    cfg.Tracing.Endpoint,
		SampleRatio: cfg.Tracing.SampleRatio,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("initializing tracing: %w", err)
	}
	app.shutdownTracing = shutdownTracing

	// Initialize metrics
	var metricsCollector output.MetricsCollector = &output.NoOpMetrics{}
	var httpMetrics httpAdapter.HTTPMetrics
	if cfg.Metrics.Enabled {
		app.metricsRegistry = prometheus.NewRegistry()
		app.metricsRegistry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		app.Metrics = metrics.NewCollector("geoview", app.metricsRegistry)
		metricsCollector = app.Metrics
		httpMetrics = app.Metrics

		if cfg.Metrics.Port != 0 {
			app.MetricsServer = metrics.NewServer(
				cfg.Metrics.Port,
				cfg.Metrics.Path,
				metrics.Handler(app.metricsRegistry),
				logger,
			)
		}
	}

	// Initialize storage adapter
	store, err := initStorage(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("initializing storage: %w", err)
	}
	app.Storage = store

	app.Exporter = geopackage.NewExporter()

	app.Registry = application.NewMapRegistry(
		app.Storage,
		app.Exporter,
		metricsCollector,
		logger,
		application.RegistryConfig{
			CacheDir:     cfg.Maps.CacheDir,
			NameProperty: cfg.Maps.NameProperty,
			Series:       cfg.Maps.Series,
			Layer:        cfg.Maps.GeoPackage.Layer,
			NameColumn:   cfg.Maps.GeoPackage.NameColumn,
		},
	)

	app.ConversionService = application.NewConversionService(
		app.Registry,
		metricsCollector,
		logger,
		cfg.Maps.DefaultView.Rect(),
	)

	app.HealthService = application.NewHealthService(app.Registry)
	app.SyncService = application.NewSyncService(app.Registry, cfg.Sync.Interval, logger)

	app.HTTPServer = httpAdapter.NewServer(
		cfg.Server,
		app.ConversionService,
		app.Registry,
		app.HealthService,
		app.SyncService,
		httpMetrics,
		logger,
	)
	if app.Metrics != nil && app.MetricsServer == nil {
		app.HTTPServer.Router().Handle(cfg.Metrics.Path, metrics.Handler(app.metricsRegistry)).Methods(http.MethodGet)
	}

	// Initialize TLS server if enabled
	if cfg.TLS.Enabled {
		tlsServer, err := tlsAdapter.NewServer(
			tlsAdapter.Config{
				Enabled:  cfg.TLS.Enabled,
				Domains:  cfg.TLS.Domains,
				Email:    cfg.TLS.Email,
				CacheDir: cfg.TLS.CacheDir,
				Staging:  cfg.TLS.Staging,
				DNS: tlsAdapter.DNSConfig{
					SubscriptionID:    cfg.TLS.DNS.SubscriptionID,
					ResourceGroupName: cfg.TLS.DNS.ResourceGroupName,
					ClientID:          cfg.TLS.DNS.ClientID,
				},
			},
			app.HTTPServer.Handler(),
			logger,
		)
		if err != nil {
			return nil, fmt.Errorf("initializing TLS: %w", err)
		}
		app.TLSServer = tlsServer
	}

	// Initialize file watcher for hot-reload
	if cfg.Storage.Type == "local" && cfg.Watch.Enabled {
		w, err := watcher.New(
			watcher.Config{
				Paths:    []string{cfg.Storage.LocalPath},
				Debounce: cfg.Watch.Debounce,
			},
			app.handleFileEvents,
			logger,
		)
		if err != nil {
			logger.Warn("failed to initialize file watcher", "error", err)
		} else {
			app.Watcher = w
		}
	}

	return app, nil
}

// Start loads the maps, starts the background components and blocks
// serving the API.
func (a *App) Start(ctx context.Context) error {
	if err := a.Registry.LoadAll(ctx); err != nil {
		a.Logger.Warn("failed to load maps", "error", err)
	}

	if a.Config.Sync.Enabled {
		a.SyncService.Start(ctx)
	}

	if a.Watcher != nil {
		if err := a.Watcher.Start(ctx); err != nil {
			a.Logger.Warn("failed to start file watcher", "error", err)
		}
	}

	if a.MetricsServer != nil {
		go func() {
			if err := a.MetricsServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.Logger.Error("metrics server error", "error", err)
			}
		}()
	}

	if a.TLSServer != nil {
		if err := a.TLSServer.ManageCertificates(ctx); err != nil {
			return err
		}
		return a.TLSServer.ListenAndServe(a.Config.Server.Address())
	}
	return a.HTTPServer.Start()
}

// Shutdown gracefully shuts down all components.
func (a *App) Shutdown(ctx context.Context) error {
	a.Logger.Info("shutting down application")

	if a.Watcher != nil {
		_ = a.Watcher.Stop()
	}
	if a.Config.Sync.Enabled {
		a.SyncService.Stop()
	}

	if a.MetricsServer != nil {
		if err := a.MetricsServer.Shutdown(ctx); err != nil {
			a.Logger.Error("metrics server shutdown error", "error", err)
		}
	}

	if a.TLSServer != nil {
		if err := a.TLSServer.Shutdown(ctx); err != nil {
			a.Logger.Error("TLS server shutdown error", "error", err)
		}
	} else if err := a.HTTPServer.Shutdown(ctx); err != nil {
		a.Logger.Error("HTTP server shutdown error", "error", err)
	}

	maps, _ := a.Registry.ListMaps(ctx)
	for _, m := range maps {
		if err := a.Registry.UnloadMap(ctx, m.ID); err != nil {
			a.Logger.Error("failed to unload map", "map", m.ID, "error", err)
		}
	}

	if err := a.Exporter.Close(); err != nil {
		a.Logger.Warn("failed to close GeoPackage exporter", "error", err)
	}

	observability.Shutdown(ctx, a.shutdownTracing, a.Logger)
	return nil
}

// handleFileEvents syncs the registry after a batch of file changes. The
// sync compares storage versions, so changed documents and sidecars are
// reloaded and deleted documents unloaded.
func (a *App) handleFileEvents(ctx context.Context, events []watcher.Event) error {
	a.Logger.Info("map files changed", "events", len(events))

	result, err := a.SyncService.SyncNow(ctx)
	if err != nil {
		return err
	}
	a.Logger.Info("hot reload completed",
		"added", result.MapsAdded,
		"reloaded", result.MapsReloaded,
		"removed", result.MapsRemoved,
	)
	return nil
}

// initStorage initializes the appropriate storage adapter.
func initStorage(ctx context.Context, cfg config.StorageConfig) (output.ObjectStorage, error) {
	switch cfg.Type {
	case "local":
		return storage.NewLocalStorage(cfg.LocalPath), nil

	case "s3":
		return storage.NewS3Storage(ctx, storage.S3Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Prefix:          cfg.S3.Prefix,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
		})

	case "azure":
		return storage.NewAzureStorage(storage.AzureConfig{
			Container:        cfg.Azure.Container,
			AccountName:      cfg.Azure.AccountName,
			AccountKey:       cfg.Azure.AccountKey,
			ConnectionString: cfg.Azure.ConnectionString,
			Prefix:           cfg.Azure.Prefix,
		})

	case "http":
		return storage.NewHTTPStorage(storage.HTTPConfig{
			BaseURL:   cfg.HTTP.BaseURL,
			IndexFile: cfg.HTTP.IndexFile,
			Timeout:   cfg.HTTP.Timeout,
			Username:  cfg.HTTP.Username,
			Password:  cfg.HTTP.Password,
		}), nil

	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
