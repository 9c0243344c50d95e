package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tripflow/payment-coordinator/internal/application"
	"github.com/tripflow/payment-coordinator/internal/application/services"
	"github.com/tripflow/payment-coordinator/internal/config"
	"github.com/tripflow/payment-coordinator/internal/infrastructure/gateway"
	"github.com/tripflow/payment-coordinator/internal/infrastructure/lock"
	"github.com/tripflow/payment-coordinator/internal/infrastructure/persistence"
	"github.com/tripflow/payment-coordinator/internal/infrastructure/persistence/postgres"
	"github.com/tripflow/payment-coordinator/internal/interfaces/rest/handlers"
	"github.com/tripflow/payment-coordinator/internal/interfaces/rest/middleware"
	"github.com/tripflow/payment-coordinator/internal/worker"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := cfg.Logger.NewLogger()
	slog.SetDefault(logger)

	logger.Info("starting payment coordinator",
		"port", cfg.Server.Port,
		"gateway", cfg.Gateway.Name,
		"lock_driver", cfg.Locking.Driver,
	)

	ctx := context.Background()
	db, err := persistence.Connect(ctx, &cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	repo := postgres.NewTransactionRepository(db)

	var txnLock application.TransactionLock
	if cfg.Locking.Driver == "redis" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer redisClient.Close()
		txnLock = lock.NewRedisLock(redisClient)
	} else {
		txnLock = lock.NewPostgresLock(db, logger)
	}

	gw := gateway.New(cfg.Gateway)
	resolver := services.NewOutcomeResolver(cfg.Reconciliation)

	paymentService := services.NewPaymentService(
		repo,
		txnLock,
		gw,
		resolver,
		cfg.Retry,
		cfg.Locking,
		logger,
	)

	h := handlers.NewHandlers(paymentService, logger)

	mux := http.NewServeMux()
	h.Register(mux)

	handler := middleware.Recovery(logger)(mux)
	handler = middleware.Logging(logger)(handler)
	handler = middleware.Timeout(cfg.Server.ReadTimeout)(handler)

	server := &http.Server{
		Addr:         "0.0.0.0:" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	reconciler := worker.NewReconciler(
		repo,
		txnLock,
		gw,
		resolver,
		cfg.Reconciliation,
		cfg.Locking,
		logger,
	)

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	go reconciler.Start(workerCtx)

	go func() {
		logger.Info("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	cancelWorkers()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("forced shutdown", "error", err)
	}

	logger.Info("stopped")
}
