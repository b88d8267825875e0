// Command household serves the web UI for meter readings and utility prices.
package main

import (
	"context"
	"errors"
	"os"

	"household/internal/backend"
	"household/internal/cli"
	apphttp "household/internal/http"
	applog "household/internal/log"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	backendConfig, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", applog.FieldError, err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger.WithComponent(applog.ComponentBackend).Logger).
		CreateBackend(ctx, backendConfig)
	if err != nil {
		logger.Error("Failed to create backend", applog.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer func() {
		if result.Cleanup == nil {
			return
		}
		if err := result.Cleanup(); err != nil {
			logger.Warn("Backend cleanup failed", applog.FieldError, err)
		}
	}()

	srv, err := apphttp.NewServer(":"+cfg.Port, result.Backend, apphttp.Options{
		Logger:             logger,
		GasFactor:          cfg.GasConversionFactor,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})
	if err != nil {
		logger.Error("Failed to create web server", applog.FieldError, err)
		os.Exit(1)
	}

	logger.Info("Starting household web server", "port", cfg.Port, "backend", cfg.DataBackend)
	if err := cli.RunServer(ctx, logger, srv, cli.ShutdownTimeout); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
