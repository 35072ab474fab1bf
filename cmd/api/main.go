package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/gigcredit/backend/internal/auth"
	"github.com/gigcredit/backend/internal/config"
	"github.com/gigcredit/backend/internal/db"
	loandomain "github.com/gigcredit/backend/internal/domain/loan"
	"github.com/gigcredit/backend/internal/http/handlers"
	"github.com/gigcredit/backend/internal/observability"
	postgresrepo "github.com/gigcredit/backend/internal/repository/postgres"
	"github.com/gigcredit/backend/internal/server"
	"github.com/gigcredit/backend/internal/ws"
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

	jwtManager := auth.NewJWTManager(cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTSigningKey)
	loanService := loandomain.NewService(
		postgresrepo.NewLoanRepository(pool),
		postgresrepo.NewCreditRepository(pool),
		postgresrepo.NewOutboxRepository(pool),
		logger,
	)
	feedRepo := postgresrepo.NewFeedRepository(pool)

	hub := ws.NewHub()
	notifier := ws.NewNotifier(feedRepo, hub, cfg.WSPollInterval)

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: int(cfg.RedisDB)})
		defer rdb.Close()
	}

	r := server.NewRouter(cfg, logger, server.Dependencies{
		Pinger:              pool,
		LoanHandler:         handlers.NewLoanHandler(loanService),
		LenderHandler:       handlers.NewLenderHandler(loanService),
		NotificationHandler: handlers.NewNotificationHandler(feedRepo),
		WSHandler:           ws.NewHandler(hub),
		JWTManager:          jwtManager,
		Redis:               rdb,
	})
	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	notifierCtx, notifierCancel := context.WithCancel(context.Background())
	defer notifierCancel()
	go func() {
		if err := notifier.Run(notifierCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("notifier stopped", "err", err)
		}
	}()

	go func() {
		logger.Info("api server starting", "addr", cfg.Addr())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-sigCtx.Done()

	notifierCancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = httpServer.Shutdown(shutdownCtx)
	logger.Info("api server stopped")
}
