package main

import (
	"context"
	"errors"
	"os"

	"cashbot/internal/cli"
	"cashbot/internal/log"
	"cashbot/internal/sheets"
	"cashbot/internal/sheets/google"
	"cashbot/internal/sheets/memory"
	"cashbot/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentWorker)
	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	var appender sheets.TransactionAppender
	if cfg.GoogleSpreadsheetID != "" {
		client, err := google.New(ctx, cfg)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err)
			os.Exit(1)
		}
		appender = client
		logger.Info("Google Sheets export enabled",
			"spreadsheet_id", cfg.GoogleSpreadsheetID,
			"sheet", cfg.GoogleSheetName)
	} else {
		appender = memory.New()
		logger.Info("Sheets export disabled - using in-memory sink")
	}

	w := worker.NewSyncWorker(repo, appender, cfg.SyncBatchSize, cfg.SyncInterval, logger)

	logger.Info("Starting export worker", "interval", cfg.SyncInterval, "batch_size", cfg.SyncBatchSize)
	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Export worker failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Export worker stopped")
}
