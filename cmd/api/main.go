package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/rs/cors"

	"github.com/ruangai/backend/internal/auth"
	"github.com/ruangai/backend/internal/cache"
	"github.com/ruangai/backend/internal/config"
	"github.com/ruangai/backend/internal/generation"
	"github.com/ruangai/backend/internal/ledger"
	"github.com/ruangai/backend/internal/payment"
	"github.com/ruangai/backend/internal/ratelimit"
	"github.com/ruangai/backend/internal/reconcile"
	"github.com/ruangai/backend/internal/router"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := config.Load()
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Unable to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		slog.Error("Cannot reach PostgreSQL. Ensure Postgres is running, e.g. docker-compose up -d", "error", err)
		os.Exit(1)
	}
	slog.Info("Connected to PostgreSQL")

	if err := migrateSchema(ctx, pool); err != nil {
		slog.Error("Schema migration failed", "error", err)
		os.Exit(1)
	}

	// River migrations (job queue tables)
	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		slog.Error("Failed to create River migrator", "error", err)
		os.Exit(1)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		slog.Error("River migrate up failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Migrations applied")

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		// Rate limiting and result caching degrade gracefully without Redis.
		slog.Warn("Cannot reach Redis; rate limiting and result caching disabled", "error", err)
		redisClient = nil
	}

	var limiter *ratelimit.Limiter
	var resultCache *cache.ResultCache
	if redisClient != nil {
		limiter = ratelimit.NewLimiter(redisClient)
		resultCache = cache.NewResultCache(redisClient)
	} else {
		limiter = ratelimit.NewLimiter(nil)
		resultCache = cache.NewResultCache(nil)
	}

	// Ledger
	ledgerRepo := ledger.NewRepository(pool, cfg.FreeCreditSeed)
	ledgerSvc := ledger.NewService(ledgerRepo)
	ledgerHandler := ledger.NewHandler(ledgerSvc, logger)

	// Payment provider, selected by configuration
	var provider payment.Provider
	switch cfg.PaymentProvider {
	case "xendit":
		provider = payment.NewXendit(cfg.XenditAPIKey, cfg.XenditCallbackToken, cfg.BaseURL)
	default:
		provider = payment.NewMidtrans(cfg.MidtransServerKey, cfg.MidtransHostURL)
	}
	slog.Info("Payment provider configured", "provider", provider.Name())

	// Reconciler worker + River client
	workers := river.NewWorkers()
	river.AddWorker(workers, reconcile.NewPaymentEventWorker(ledgerSvc, logger))

	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: 10},
		},
		Workers: workers,
	})
	if err != nil {
		slog.Error("Failed to create River client", "error", err)
		os.Exit(1)
	}

	enqueueEvent := func(ctx context.Context, ev payment.Event) error {
		_, err := riverClient.Insert(ctx, reconcile.PaymentEventArgs{
			Provider:          ev.Provider,
			OrderID:           ev.OrderID,
			TransactionStatus: ev.TransactionStatus,
			GrossAmount:       ev.GrossAmount,
			Settled:           ev.Settled,
			Metadata:          ev.Metadata,
		}, nil)
		return err
	}

	paymentHandler := payment.NewHandler(provider, enqueueEvent, logger)
	webhookHandler, err := payment.NewWebhookHandler(provider, enqueueEvent, logger)
	if err != nil {
		slog.Error("Failed to build webhook handler", "error", err)
		os.Exit(1)
	}

	// Generation gate
	genClient := generation.NewReplicateClient(cfg.ReplicateAPIKey, cfg.ReplicateHost, cfg.GenPollInterval, cfg.GenMaxAttempts)
	genSvc := generation.NewService(ledgerSvc, genClient, resultCache, provider, logger)
	genHandler := generation.NewHandler(genSvc, limiter, logger)

	authSvc := auth.NewService(cfg.JWTSecret)

	healthz := func(w http.ResponseWriter, r *http.Request) {
		status := map[string]bool{"postgres": pool.Ping(r.Context()) == nil, "redis": false}
		if redisClient != nil {
			status["redis"] = redisClient.Ping(r.Context()).Err() == nil
		}
		w.Header().Set("Content-Type", "application/json")
		if !status["postgres"] {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(status)
	}

	mux := router.New(authSvc, ledgerHandler, paymentHandler, webhookHandler, genHandler, limiter, healthz, logger)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", cfg.BaseURL},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		AllowCredentials: true,
	}).Handler(mux)

	riverCtx, stopRiver := context.WithCancel(ctx)
	defer stopRiver()
	go func() {
		if err := riverClient.Start(riverCtx); err != nil && riverCtx.Err() == nil {
			slog.Error("River client stopped", "error", err)
		}
	}()

	serverAddr := "0.0.0.0:" + cfg.Port
	slog.Info("Starting HTTP server", "addr", serverAddr)
	if err := http.ListenAndServe(serverAddr, corsHandler); err != nil {
		slog.Error("HTTP server failed", "error", err)
		os.Exit(1)
	}
}
