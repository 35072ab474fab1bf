package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/gigcredit/backend/internal/config"
	"github.com/gigcredit/backend/internal/db"
	"github.com/gigcredit/backend/internal/jobs"
	"github.com/gigcredit/backend/internal/observability"
	postgresrepo "github.com/gigcredit/backend/internal/repository/postgres"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger := observability.NewLogger(cfg.Env)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.NewPostgresPool(ctx, cfg)
	if err != nil {
		logger.Error("failed to connect postgres", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	outboxRepo := postgresrepo.NewOutboxRepository(pool)
	worker := jobs.NewWorker(outboxRepo, postgresrepo.NewFeedRepository(pool))
	scanner := jobs.NewOverdueScanner(postgresrepo.NewLoanRepository(pool), outboxRepo)

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.OverdueScanSchedule, func() {
		runCtx, runCancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer runCancel()
		emitted, err := scanner.RunOnce(runCtx)
		if err != nil {
			logger.Error("overdue scan failed", "err", err)
			return
		}
		if emitted > 0 {
			logger.Info("overdue scan complete", "events", emitted)
		}
	}); err != nil {
		logger.Error("invalid overdue scan schedule", "schedule", cfg.OverdueScanSchedule, "err", err)
		os.Exit(1)
	}
	scheduler.Start()
	defer scheduler.Stop()

	interval := cfg.OutboxPollInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("worker started", "interval", interval.String(), "batch_size", cfg.OutboxBatchSize, "overdue_schedule", cfg.OverdueScanSchedule)
	for {
		select {
		case <-sigCtx.Done():
			logger.Info("worker stopped")
			return
		case <-ticker.C:
			runCtx, runCancel := context.WithTimeout(context.Background(), 30*time.Second)
			err := worker.RunOnce(runCtx, cfg.OutboxBatchSize)
			runCancel()
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("worker run failed", "err", err)
			}
		}
	}
}
