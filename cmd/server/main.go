package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ai-companion-demo/companion/pkg/config"
	"ai-companion-demo/companion/pkg/di"
	"ai-companion-demo/companion/pkg/health"
	"ai-companion-demo/companion/pkg/logger"
	"ai-companion-demo/companion/pkg/router"
	"ai-companion-demo/companion/pkg/secrets"
	"ai-companion-demo/companion/shared/observability"
)

func main() {
	cfg := config.New()

	// Initialize structured logger
	logConfig := logger.DefaultConfig()
	logConfig.Level = cfg.Logging.Level
	logConfig.JSON = cfg.Logging.Format != "text"
	logConfig.File.Path = cfg.Logging.File

	log := logger.New(logConfig)
	logger.SetGlobal(log)
	defer log.Close()

	log.Info("Starting companion service", "version", os.Getenv("APP_VERSION"), "env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := secrets.Init(cfg, log); err != nil {
		log.LogError(err, "Failed to initialize secrets manager")
		os.Exit(1)
	}
	secrets.Resolve(ctx, cfg)

	if cfg.Observability.TracingEnabled {
		shutdown, err := observability.SetupTracing(cfg.Observability.ServiceName)
		if err != nil {
			log.LogError(err, "Failed to set up tracing")
		} else {
			defer func() {
				sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = shutdown(sctx)
			}()
		}
	}

	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		m, err := observability.SetupPrometheusMetrics(cfg.Observability.ServiceName)
		if err != nil {
			log.LogError(err, "Failed to set up metrics")
		} else {
			metrics = m
		}
	}

	container, err := di.New(ctx, cfg, log)
	if err != nil {
		log.LogError(err, "Failed to initialize dependency container")
		os.Exit(1)
	}
	defer func() {
		if err := container.Close(); err != nil {
			log.LogError(err, "Failed to release resources")
		}
	}()

	r, err := router.New(container)
	if err != nil {
		log.LogError(err, "Failed to initialize router")
		os.Exit(1)
	}
	r.SetupRoutes()
	if metrics != nil {
		r.MountMetrics(metrics.Handler)
	}
	defer r.Close()

	if err := r.RunHub(ctx); err != nil {
		log.LogError(err, "Failed to start websocket hub")
		os.Exit(1)
	}

	container.Health.Start(ctx)

	grpcHealth := health.NewGRPCServer(container.Health, cfg.Observability.ServiceName, log)
	go func() {
		if err := grpcHealth.Serve(":" + cfg.Server.GRPCPort); err != nil {
			log.LogError(err, "gRPC health server stopped")
		}
	}()

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("Server starting", "port", cfg.Server.Port, "store", cfg.Store.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.LogError(err, "Server failed to start")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.Timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.LogError(err, "Server forced to shutdown")
	}
	grpcHealth.Stop()

	log.Info("Server exited gracefully")
}
