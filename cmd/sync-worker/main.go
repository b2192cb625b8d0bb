package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/astelwilliam/expense-tracker/internal/amqp"
	"github.com/astelwilliam/expense-tracker/internal/config"
	gsheet "github.com/astelwilliam/expense-tracker/internal/sheets/google"
	"github.com/astelwilliam/expense-tracker/internal/storage"
	"github.com/astelwilliam/expense-tracker/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("Starting sync worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	if cfg.AMQPURL == "" {
		logger.Error("Sync worker requires AMQP_URL")
		os.Exit(1)
	}
	if cfg.GoogleSpreadsheetID == "" {
		logger.Error("Sync worker requires GOOGLE_SPREADSHEET_ID")
		os.Exit(1)
	}

	repo, err := storage.NewRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize storage", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	sheetsClient, err := gsheet.NewFromEnv(context.Background())
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", "error", err)
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()
	amqpClient.SetPrefetch(cfg.SyncBatchSize)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())
		cancel()
	}()

	syncWorker := worker.NewSyncWorker(amqpClient, repo, sheetsClient, cfg.SyncInterval)
	if err := syncWorker.Run(ctx); err != nil {
		logger.Error("Sync worker failed", "error", err)
		os.Exit(1)
	}

	logger.Info("Sync worker stopped gracefully")
}
