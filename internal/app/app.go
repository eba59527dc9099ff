// Package app wires the service together: configuration, logging, telemetry,
// the record store, the verification engine and the HTTP server lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"licensegate/internal/config"
	apperrors "licensegate/internal/errors"
	"licensegate/internal/infrastructure"
	"licensegate/internal/middleware"
	"licensegate/internal/store"
	handlers "licensegate/internal/transport/http"
	"licensegate/internal/verify"
)

// Application is the composed service.
type Application struct {
	Config  *config.Config
	Logger  *slog.Logger
	Router  *chi.Mux
	Server  *http.Server
	Store   store.Store
	Engine  *verify.Engine
	Metrics *infrastructure.Metrics
	OTel    *infrastructure.OTelProviders
}

// NewApplication loads configuration and constructs every component. A
// missing or unreachable store is not fatal: the server starts and protocol
// requests fail closed until the store comes back.
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info("application starting",
		slog.String("service", infrastructure.ServiceName),
		slog.String("version", infrastructure.ServiceVersion),
		slog.Int("port", cfg.Server.Port))

	if !cfg.Security.HasSecret() {
		logger.Warn("HMAC secret not configured, all signatures will be rejected")
	}

	metrics := infrastructure.NewMetrics()

	otelProviders, err := infrastructure.InitializeOTel(cfg.Tracing.Stdout, metrics.Registry, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	recordStore := newStore(cfg, logger)
	engine := verify.NewEngine(cfg.Security.SecretKey, cfg.Security.ReplayWindow, recordStore, logger)

	app := &Application{
		Config:  cfg,
		Logger:  logger,
		Store:   recordStore,
		Engine:  engine,
		Metrics: metrics,
		OTel:    otelProviders,
	}
	app.Router = app.setupRouter()
	app.Server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      app.Router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return app, nil
}

// newStore constructs the record store once for the process lifetime.
// Construction failure degrades to the unconfigured store so requests get a
// clear 500 instead of a crash.
func newStore(cfg *config.Config, logger *slog.Logger) store.Store {
	if !cfg.Store.IsConfigured() {
		logger.Warn("record store not configured, verification will fail closed")
		return store.Unconfigured{}
	}

	pg, err := store.NewPostgres(cfg.Store.DSN, cfg.Store.QueryTimeout, logger)
	if err != nil {
		logger.Error("record store initialization failed",
			slog.String("error", err.Error()),
			slog.Bool("configured", !errors.Is(err, apperrors.ErrStoreNotConfigured)))
		return store.Unconfigured{}
	}

	logger.Info("record store connected")
	return pg
}

func (a *Application) setupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.StructuredLogger(a.Logger))
	r.Use(middleware.Recoverer(a.Logger))
	r.Use(middleware.CORS)
	r.Use(middleware.Timeout(a.Config.Server.RequestTimeout))

	verifyHandler := handlers.NewVerifyHandler(a.Engine, a.Store, a.Metrics, a.Logger, a.Config.Store.QueryTimeout)
	healthHandler := handlers.NewHealthHandler(a.Store, a.Config.Security.HasSecret(), a.Config.Store.IsConfigured(), a.Logger)

	r.Post("/verify", verifyHandler.Verify)
	r.Get("/health", healthHandler.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(a.Metrics.Registry, promhttp.HandlerOpts{}))

	return r
}

// Run serves until the context is canceled, then drains connections within
// the shutdown timeout.
func (a *Application) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.Info("http server listening", slog.String("addr", a.Server.Addr))
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		a.Logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
		defer cancel()

		if err := a.Server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		if err := a.OTel.Shutdown(shutdownCtx); err != nil {
			a.Logger.Warn("telemetry shutdown error", slog.String("error", err.Error()))
		}
		if closer, ok := a.Store.(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil {
				a.Logger.Warn("store close error", slog.String("error", err.Error()))
			}
		}
		return nil
	})

	return g.Wait()
}
