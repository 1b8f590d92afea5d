package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"obras/internal/amqp"
	"obras/internal/cli"
	apphttp "obras/internal/http"
	"obras/internal/log"
	"obras/internal/metrics"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Stdout, os.Getenv("LOG_LEVEL"))
	cfg := cli.MustLoadConfig(logger)
	metrics.Init()

	ctx, cancel := cli.ShutdownContext(logger)
	defer cancel()

	var appOpts []cli.AppOption
	if cfg.AMQPEnabled() {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			// Reports are still served; only the ready announcements are lost.
			logger.Warn("Failed to initialize AMQP client, report announcements disabled", log.FieldError, err)
		} else {
			appOpts = append(appOpts, cli.WithPublisher(client))
			logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange)
		}
	}

	app, err := cli.NewApp(ctx, cfg, logger, appOpts...)
	if err != nil {
		logger.Error("Failed to initialize report stack", log.FieldError, err)
		os.Exit(1)
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Error("Cleanup failed", log.FieldError, err)
		}
	}()

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Dependencies{
		Reports:     app.Reports,
		Ready:       app.Backend.Ready,
		DefaultMode: app.DefaultMode(),
		Logger:      logger,
	}, apphttp.WithTrustedProxies(cfg.TrustedProxies...))

	// Configure server timeouts and limits
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
	}()

	logger.Info("Starting obras server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"fallback_scope", string(app.Engine.FallbackScope()),
		log.FieldMode, cfg.RollupFailureMode)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	logger.Info("Server stopped gracefully")
}
