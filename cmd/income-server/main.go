package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ruktech/income-tracker/internal/amqp"
	"github.com/ruktech/income-tracker/internal/config"
	"github.com/ruktech/income-tracker/internal/crypto"
	apphttp "github.com/ruktech/income-tracker/internal/http"
	"github.com/ruktech/income-tracker/internal/log"
	"github.com/ruktech/income-tracker/internal/services"
	"github.com/ruktech/income-tracker/internal/storage"
)

func main() {
	// Load .env for local development; in containers the variables are set.
	_ = godotenv.Load()

	logger := log.New(slog.LevelInfo, log.ComponentApp)
	log.SetDefault(logger)

	logger.Info("Starting income-server")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	if err := cfg.ValidateServer(); err != nil {
		logger.Error("Server configuration validation failed", log.FieldError, err)
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

	// AMQP is optional: without it, exports rely on the worker's pending sweep.
	var publisher services.EventPublisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without export events",
				log.FieldError, err)
		} else {
			defer amqpClient.Close()
			publisher = amqpClient
			logger.Info("AMQP client initialized")
		}
	} else {
		logger.Info("AMQP disabled - export events will not be published")
	}

	incomeService := services.NewIncomeService(repo, publisher, logger)
	reportService := services.NewReportService(repo, logger)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Users:     repo,
		Incomes:   incomeService,
		Reports:   reportService,
		JWTSecret: cfg.JWTSecret,
		JWTTTL:    cfg.JWTTTL,
		Logger:    logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		cancel()
	}()

	logger.Info("Listening", "port", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped")
}
