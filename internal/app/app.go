// Package app provides application lifecycle management for the
// Vanadium backend.
package app

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"sync"

	log "github.com/sirupsen/logrus"

	httpapi "github.com/ion-oset/Electorate-Vanadium-Backend/internal/api/http"
	"github.com/ion-oset/Electorate-Vanadium-Backend/internal/config"
	"github.com/ion-oset/Electorate-Vanadium-Backend/internal/observability"
	"github.com/ion-oset/Electorate-Vanadium-Backend/internal/query"
	"github.com/ion-oset/Electorate-Vanadium-Backend/internal/registration"
	"github.com/ion-oset/Electorate-Vanadium-Backend/internal/schema"
	"github.com/ion-oset/Electorate-Vanadium-Backend/internal/server"
	"github.com/ion-oset/Electorate-Vanadium-Backend/internal/storage"
)

// App manages the Vanadium service lifecycle.
type App struct {
	cfg *config.Config

	registry  *schema.Registry
	warehouse storage.Warehouse
	regStore  *registration.Store
	stats     *observability.PredicateStats
	shutdown  *server.ShutdownManager

	httpServer *http.Server

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a new App with the given configuration.
func New(cfg *config.Config) (*App, error) {
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}

	return &App{
		cfg: cfg,
	}, nil
}

// Start initializes shared resources and starts the HTTP server.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return fmt.Errorf("app is already running")
	}
	a.running = true
	a.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	if err := a.initSharedResources(ctx); err != nil {
		a.cleanup()
		return fmt.Errorf("failed to initialize shared resources: %w", err)
	}

	if err := a.startHTTPServer(); err != nil {
		a.cleanup()
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	log.Info("vanadium started")
	return nil
}

// initSharedResources opens the warehouse, loads the schema registry,
// and opens the registration store.
func (a *App) initSharedResources(ctx context.Context) error {
	warehousePath := a.cfg.Warehouse.Path

	// An s3-backed warehouse is a read-only snapshot downloaded once at
	// startup, then opened like a local one.
	if a.cfg.Warehouse.Type == "s3" {
		fetcher, err := storage.NewSnapshotFetcher(ctx, a.cfg.Warehouse.S3.Bucket, storage.S3Config{
			Region:       a.cfg.Warehouse.S3.Region,
			Endpoint:     a.cfg.Warehouse.S3.Endpoint,
			UsePathStyle: a.cfg.Warehouse.S3.UsePathStyle,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize snapshot fetcher: %w", err)
		}
		warehousePath = filepath.Join(a.cfg.DataDir, "snapshot.db")
		log.WithFields(log.Fields{
			"bucket": a.cfg.Warehouse.S3.Bucket,
			"key":    a.cfg.Warehouse.Snapshot,
		}).Info("downloading warehouse snapshot")
		if err := fetcher.Fetch(ctx, a.cfg.Warehouse.Snapshot, warehousePath); err != nil {
			return fmt.Errorf("failed to download warehouse snapshot: %w", err)
		}
	}

	warehouse, err := storage.NewSQLiteWarehouse(warehousePath)
	if err != nil {
		return fmt.Errorf("failed to open warehouse: %w", err)
	}
	a.warehouse = warehouse
	log.WithField("path", warehousePath).Info("warehouse opened")

	schemas, err := schema.LoadFile(a.cfg.Schema.Path)
	if err != nil {
		return fmt.Errorf("failed to load entity schemas: %w", err)
	}
	a.registry, err = schema.NewRegistry(schemas...)
	if err != nil {
		return fmt.Errorf("failed to build schema registry: %w", err)
	}
	log.WithField("entities", len(a.registry.Entities())).Info("schema registry loaded")

	a.regStore, err = registration.NewStore(a.cfg.Registration.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open registration store: %w", err)
	}

	a.stats = observability.NewPredicateStats(a.cfg.Query.StatsWindow)
	a.shutdown = server.NewShutdownManager(server.ShutdownConfig{})
	a.shutdown.RegisterCloser(a.warehouse)
	a.shutdown.RegisterCloser(a.regStore)

	return nil
}

// startHTTPServer wires the handlers and starts the API server.
func (a *App) startHTTPServer() error {
	svc := query.NewService(a.registry, a.warehouse, query.Config{
		DefaultPageSize: a.cfg.Query.DefaultPageSize,
		MaxPageSize:     a.cfg.Query.MaxPageSize,
		MaxFilterDepth:  a.cfg.Query.MaxFilterDepth,
		Timeout:         a.cfg.Query.Timeout,
	}, a.stats)

	mux := http.NewServeMux()
	middleware := httpapi.ChainMiddleware(
		server.ShutdownMiddleware(a.shutdown),
		httpapi.RecoveryMiddleware,
		httpapi.RequestIDMiddleware,
		httpapi.LoggingMiddleware,
		httpapi.ContentTypeMiddleware,
	)
	mux.Handle("/v1/query", middleware(httpapi.NewQueryHandler(svc)))
	mux.Handle("/v1/entities", middleware(httpapi.NewEntitiesHandler(a.registry)))
	mux.Handle("/v1/entities/", middleware(httpapi.NewEntitiesHandler(a.registry)))
	mux.Handle("/v1/stats/predicates", middleware(httpapi.NewStatsHandler(a.stats)))
	mux.Handle("/v1/voter/registration", middleware(httpapi.NewRegistrationHandler(a.regStore)))
	mux.Handle("/v1/voter/registration/", middleware(httpapi.NewRegistrationHandler(a.regStore)))
	mux.HandleFunc("/health", a.healthHandler())

	a.httpServer = &http.Server{
		Addr:         a.cfg.HTTP.Addr,
		Handler:      mux,
		ReadTimeout:  a.cfg.HTTP.ReadTimeout,
		WriteTimeout: a.cfg.HTTP.WriteTimeout,
		IdleTimeout:  a.cfg.HTTP.IdleTimeout,
	}

	graceful := server.NewGracefulHTTPServer(a.httpServer, a.shutdown)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		log.WithField("addr", a.cfg.HTTP.Addr).Info("HTTP server listening")
		if err := graceful.ListenAndServe(); err != nil {
			log.WithError(err).Error("HTTP server error")
		}
	}()

	return nil
}

func (a *App) healthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if a.shutdown.IsShuttingDown() {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprintf(w, `{"status":"shutting_down","service":"vanadium"}`)
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"ok","service":"vanadium"}`)
	}
}

// Wait blocks until a shutdown signal arrives, then shuts down.
func (a *App) Wait(ctx context.Context) error {
	return a.shutdown.ListenForSignals(ctx)
}

// Stop shuts down the service and releases resources.
func (a *App) Stop(ctx context.Context) error {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return nil
	}
	a.running = false
	a.mu.Unlock()

	err := a.shutdown.Shutdown(ctx, "stop requested")
	a.cleanup()
	a.wg.Wait()
	return err
}

func (a *App) cleanup() {
	if a.cancel != nil {
		a.cancel()
	}
}
