package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ruktech/income-tracker/internal/config"
	"github.com/ruktech/income-tracker/internal/crypto"
	"github.com/ruktech/income-tracker/internal/log"
	"github.com/ruktech/income-tracker/internal/services"
	"github.com/ruktech/income-tracker/internal/storage"
	"github.com/ruktech/income-tracker/internal/whatsapp"
)

func main() {
	interval := flag.Duration("interval", 0, "run continuously with this interval between passes (one-shot when 0)")
	flag.Parse()

	_ = godotenv.Load()

	logger := log.New(slog.LevelInfo, log.ComponentReminder)
	log.SetDefault(logger)

	logger.Info("Starting send-reminders")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	if err := cfg.ValidateGateway(); err != nil {
		logger.Error("Gateway configuration validation failed", log.FieldError, err)
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

	sender, err := whatsapp.NewClient(cfg.TwilioAccountSID, cfg.TwilioAuthToken,
		cfg.TwilioFromNumber, cfg.TwilioTemplateSID, logger)
	if err != nil {
		logger.Error("Failed to initialize WhatsApp gateway", log.FieldError, err)
		os.Exit(1)
	}

	job := services.NewReminderJob(repo, sender, cfg.LookaheadDays, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())
		cancel()
	}()

	runOnce := func(now time.Time) {
		stats, err := job.Run(ctx, now)
		if err != nil {
			logger.Error("Reminder run failed", log.FieldError, err)
			return
		}
		logger.Info("Reminder run finished",
			"candidates", stats.Candidates,
			"selected", stats.Selected,
			"sent", stats.Sent,
			"failed", stats.Failed)
	}

	if *interval <= 0 {
		// One-shot mode for cron. Per-record send failures are already counted
		// in the stats; only a failed run aborts with a non-zero exit.
		if _, err := job.Run(ctx, time.Now()); err != nil {
			logger.Error("Reminder run failed", log.FieldError, err)
			os.Exit(1)
		}
		return
	}

	logger.Info("Running continuously", "interval", interval.String())
	runOnce(time.Now())

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("Stopped")
			return
		case now := <-ticker.C:
			runOnce(now)
		}
	}
}
