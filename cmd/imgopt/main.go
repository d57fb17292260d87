package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"imgopt/internal/config"
	"imgopt/internal/handlers"
	"imgopt/internal/middleware"
	"imgopt/internal/optimizer"
	"imgopt/internal/router"
	"imgopt/internal/storage"
	"imgopt/internal/telemetry"
)

const version = "1.0.0"

type App struct {
	Server *http.Server
	Logger *slog.Logger
	Config *config.Config
}

func NewApp(cfg *config.Config, logger *slog.Logger, handler http.Handler) *App {
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.Timeouts.Read,
		WriteTimeout: cfg.HTTP.Timeouts.Write,
		IdleTimeout:  cfg.HTTP.Timeouts.Idle,
	}

	return &App{
		Server: server,
		Logger: logger,
		Config: cfg,
	}
}

func (a *App) Run(ctx context.Context) error {
	srvErrChan := make(chan error, 1)

	go func() {
		a.Logger.Info("server starting", "addr", a.Server.Addr)
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvErrChan <- err
		}
	}()

	select {
	case err := <-srvErrChan:
		return fmt.Errorf("server startup failed: %w", err)
	case <-ctx.Done():
		a.Logger.Info("shutdown signal received")
	}

	// attempt clean shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.HTTP.Timeouts.Shutdown)
	defer cancel()

	a.Logger.Info("draining connections...")
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		// graceful shutdown timed out
		if closeErr := a.Server.Close(); closeErr != nil {
			return fmt.Errorf("graceful shutdown failed: %w", errors.Join(err, closeErr))
		}
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	a.Logger.Info("server stopped")
	return nil
}

func newSourceProvider(cfg *config.Config) (storage.Provider, error) {
	switch cfg.Storage.Backend {
	case "s3":
		return storage.NewS3Store(cfg.Storage.S3)
	default:
		return storage.NewLocalStore(cfg.App.PublicDir), nil
	}
}

func main() {
	cfg := config.LoadWithDefaults()
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("invalid configuration: %v", err))
	}

	logHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Logger.Level})
	logger := slog.New(logHandler).With("app", cfg.App.Name)

	logger.Info("application starting", "pid", os.Getpid())
	logger.Info("configuration loaded",
		"name", cfg.App.Name,
		"env", cfg.App.Environment,
		"public_dir", cfg.App.PublicDir,
		"storage_backend", cfg.Storage.Backend,
		"handler_path", cfg.Optimizer.HandlerPath,
		"parallelism", cfg.Optimizer.Parallelism,
		"port", cfg.HTTP.Port,
		"rate_limit_rps", cfg.Limiter.RPS,
		"trusted_proxy", cfg.Proxy.Trusted,
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tel, err := telemetry.Init(rootCtx, cfg.App.Name, version, cfg.App.Environment,
		cfg.Metrics.OtelEndpoint, cfg.Metrics.EnableTelemetry, logger)
	if err != nil {
		logger.Error("telemetry initialisation failed", "err", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown", "err", err)
		}
	}()

	metrics, err := telemetry.NewMetrics(tel.Meter)
	if err != nil {
		logger.Error("could not create metrics", "err", err)
		os.Exit(1)
	}

	sources, err := newSourceProvider(cfg)
	if err != nil {
		logger.Error("could not create storage provider", "err", err)
		os.Exit(1)
	}

	opt, err := optimizer.NewWithPreload(rootCtx, optimizer.Config{
		HandlerPath: cfg.Optimizer.HandlerPath,
		Root:        cfg.App.PublicDir,
		Parallelism: cfg.Optimizer.Parallelism,
		NoUpscale:   cfg.Optimizer.NoUpscale,
		BlurTTL:     cfg.Optimizer.BlurTTL,
	}, sources, logger, metrics)
	if err != nil {
		logger.Error("could not initialise the optimizer", "err", err)
		os.Exit(1)
	}

	limiter := middleware.NewIPRateLimiter(rootCtx, cfg.Limiter.RPS, cfg.Limiter.Burst, cfg.Proxy.Trusted, metrics)

	imageHandler := &handlers.ImageHandler{
		Optimizer: opt,
		Tracer:    tel.Tracer,
		Logger:    logger,
	}

	mux := router.NewRouter(router.RouterDependencies{
		Cfg:          cfg,
		Logger:       logger,
		ImageHandler: imageHandler,
		Limiter:      limiter,
		Tracer:       tel.Tracer,
		Metrics:      metrics,
		Prometheus:   tel.PrometheusHandler,
		StartedAt:    time.Now(),
	})

	app := NewApp(cfg, logger, mux)

	if err := app.Run(rootCtx); err != nil {
		logger.Error("server crashed", "err", err)
		os.Exit(1)
	}

	logger.Info("application exited successfully")
	os.Exit(0)
}
