// Command household-api serves the REST API for meter readings and utility prices.
package main

import (
	"context"
	"errors"
	"os"

	"household/internal/amqp"
	"household/internal/api"
	"household/internal/cli"
	"household/internal/importer"
	applog "household/internal/log"
	"household/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	// Without a broker readings stay pending until the worker's scan exports them.
	var publisher services.ReadingPublisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without events", applog.FieldError, err)
		} else {
			defer client.Close()
			publisher = client
		}
	}

	readings := services.NewReadingService(repo, publisher)
	prices := services.NewPriceService(repo)
	im := importer.New(repo)

	if cfg.ImportCSVPath != "" {
		created, err := im.ImportFile(ctx, cfg.ImportCSVPath)
		if err != nil {
			logger.WithComponent(applog.ComponentImporter).Error("Startup import failed",
				applog.FieldError, err,
				"path", cfg.ImportCSVPath)
		} else {
			logger.WithComponent(applog.ComponentImporter).Info("Startup import completed",
				applog.FieldCreatedCount, created,
				"path", cfg.ImportCSVPath)
		}
	}

	srv := api.NewServer(":"+cfg.APIPort, readings, prices, im, api.Options{
		Logger:             logger,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})

	logger.Info("Starting household API", "port", cfg.APIPort, "version", api.Version)
	if err := cli.RunServer(ctx, logger, srv, cli.ShutdownTimeout); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.APIPort)
		os.Exit(1)
	}
	logger.Info("API stopped gracefully")
}
