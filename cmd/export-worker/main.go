package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/ruktech/income-tracker/internal/amqp"
	"github.com/ruktech/income-tracker/internal/config"
	"github.com/ruktech/income-tracker/internal/crypto"
	"github.com/ruktech/income-tracker/internal/log"
	gsheet "github.com/ruktech/income-tracker/internal/sheets/google"
	"github.com/ruktech/income-tracker/internal/storage"
	"github.com/ruktech/income-tracker/internal/worker"
)

func main() {
	_ = godotenv.Load()

	logger := log.New(slog.LevelInfo, log.ComponentWorker)
	log.SetDefault(logger)

	logger.Info("Starting export-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	if cfg.SpreadsheetID == "" {
		logger.Error("GOOGLE_SPREADSHEET_ID must be set for the export worker")
		os.Exit(1)
	}

	cipher, err := crypto.New(cfg.EncryptionSecret)
	if err != nil {
		logger.Error("Failed to initialize field cipher", log.FieldError, err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath, cipher)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository",
			log.FieldError, err,
			"path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sheetsClient, err := gsheet.New(ctx, cfg.SpreadsheetID, cfg.SheetName)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized",
		"spreadsheet_id", cfg.SpreadsheetID,
		"sheet", cfg.SheetName)

	// AMQP is optional: without it the sweep alone drives the export.
	var events worker.EventSource
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, running sweep-only",
				log.FieldError, err)
		} else {
			defer amqpClient.Close()
			events = amqpClient
			logger.Info("AMQP client initialized", "queue", cfg.AMQPQueue)
		}
	} else {
		logger.Info("AMQP disabled - running sweep-only")
	}

	exportWorker := worker.NewExportWorker(repo, sheetsClient, cfg.ExportBatchSize, logger)

	// Catch up on anything that changed while the worker was down.
	if err := exportWorker.ProcessPending(ctx); err != nil {
		logger.Error("Startup sweep failed", log.FieldError, err)
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())
		cancel()
	}()

	if err := exportWorker.Run(ctx, events, cfg.SweepInterval); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker stopped")
}
