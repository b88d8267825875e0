// Command household-worker exports recorded readings to the yearly Google Sheets workbook.
package main

import (
	"context"
	"errors"
	"os"

	"household/internal/amqp"
	"household/internal/cli"
	applog "household/internal/log"
	"household/internal/services"
	"household/internal/sheets"
	gsheet "household/internal/sheets/google"
	memsheet "household/internal/sheets/memory"
	"household/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)
	logger = logger.WithComponent(applog.ComponentWorker)

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	var exporter sheets.ReadingExporter
	if cfg.GoogleSpreadsheetID != "" {
		client, err := gsheet.New(ctx, cfg.GoogleSpreadsheetID, cfg.GoogleSheetName)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", applog.FieldError, err)
			os.Exit(1)
		}
		exporter = client
		logger.Info("Google Sheets export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		exporter = memsheet.New()
		logger.Warn("GOOGLE_SPREADSHEET_ID not set, exporting to memory only")
	}

	// Keep the interface nil when AMQP is disabled so Run falls back to the scan.
	var consumer worker.MessageConsumer
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
			os.Exit(1)
		}
		defer client.Close()
		consumer = client
	}

	processor := services.NewSyncProcessor(repo, exporter, services.SyncProcessorConfig{
		PollInterval: cfg.SyncInterval,
		BatchSize:    cfg.SyncBatchSize,
	})
	w := worker.NewSyncWorker(processor, cfg.SyncBatchSize)

	logger.Info("Starting household worker",
		"sync_interval", cfg.SyncInterval,
		"batch_size", cfg.SyncBatchSize,
		"amqp_enabled", consumer != nil)
	if err := w.Run(ctx, consumer); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}
