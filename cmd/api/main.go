package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/cors"

	"github.com/devasign/task-escrow/internal/auth"
	"github.com/devasign/task-escrow/internal/config"
	"github.com/devasign/task-escrow/internal/escrow"
	"github.com/devasign/task-escrow/internal/execution"
	"github.com/devasign/task-escrow/internal/handlers"
	"github.com/devasign/task-escrow/internal/jobs"
	"github.com/devasign/task-escrow/internal/ledger"
	"github.com/devasign/task-escrow/internal/logging"
	"github.com/devasign/task-escrow/internal/memstore"
	"github.com/devasign/task-escrow/internal/metrics"
	"github.com/devasign/task-escrow/internal/repository"
	"github.com/devasign/task-escrow/internal/router"
	"github.com/devasign/task-escrow/internal/services"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	escrowHandler := &handlers.EscrowHandler{Logger: logger}

	var backend escrow.Backend
	switch cfg.Storage {
	case config.StorageMemory:
		store := memstore.New()
		store.Subscribe(func(ev escrow.Event) {
			logger.Info("Escrow event", "topic", ev.Topic, "task_id", ev.TaskID, "event_id", ev.ID)
		})
		backend = store
		escrowHandler.Events = memoryEvents{store}
		if cfg.Dev.Faucet {
			escrowHandler.Faucet = memoryFaucet{store}
		}
		logger.Warn("Using in-memory storage; state is lost on restart")

	case config.StoragePostgres:
		pool, err := pgxpool.New(ctx, cfg.Database.URL)
		if err != nil {
			slog.Error("Unable to create database pool", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		if err := pool.Ping(ctx); err != nil {
			slog.Error("Cannot reach PostgreSQL. Ensure Postgres is running, e.g. docker-compose up -d", "error", err)
			os.Exit(1)
		}
		slog.Info("Connected to PostgreSQL database successfully!")

		if err := repository.Migrate(ctx, pool); err != nil {
			slog.Error("Escrow migrations failed", "error", err)
			os.Exit(1)
		}
		if err := jobs.Migrate(ctx, pool); err != nil {
			slog.Error("River migrate up failed", "error", err)
			os.Exit(1)
		}
		slog.Info("Migrations applied")

		// Events are always queued; this process only delivers them when an
		// indexer webhook is configured.
		var worker *execution.DeliverEventWorker
		if cfg.Indexer.WebhookURL != "" {
			worker = execution.NewDeliverEventWorker(cfg.Indexer.WebhookURL, cfg.Indexer.Timeout, m)
		}
		riverClient, err := jobs.NewClient(pool, jobs.ClientConfig{
			Worker:     worker,
			MaxWorkers: cfg.Indexer.Workers,
			Logger:     logger,
		})
		if err != nil {
			slog.Error("Failed to create River client", "error", err)
			os.Exit(1)
		}
		if worker != nil {
			go func() {
				if err := riverClient.Start(ctx); err != nil && ctx.Err() == nil {
					slog.Error("River client stopped", "error", err)
				}
			}()
			defer func() {
				stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				_ = riverClient.Stop(stopCtx)
			}()
		}

		ledgerRepo := ledger.NewRepository(pool)
		eventRepo := repository.NewEventRepo(pool)
		backend = repository.NewBackend(pool, eventRepo, ledgerRepo, jobs.Publisher(riverClient))
		escrowHandler.Events = eventRepo
		if cfg.Dev.Faucet {
			escrowHandler.Faucet = ledgerFaucet{ledgerRepo}
		}
	}

	svc := escrow.NewService(backend, auth.NewVerifier(cfg.Auth.Leeway), escrow.Address(cfg.Contract.Address), escrow.Options{
		Logger:   logger,
		Observer: m,
	})
	escrowHandler.Escrow = svc

	validator, err := services.NewValidator()
	if err != nil {
		slog.Error("Schema validator init failed", "error", err)
		os.Exit(1)
	}

	api := router.New(router.Config{
		Escrow:    escrowHandler,
		Validator: validator,
		Metrics:   m.Handler(),
		Observer:  m,
		Logger:    logger,
	})

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Escrow-Signature", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
	}).Handler(api)

	srv := &http.Server{
		Addr:              "0.0.0.0:" + strconv.Itoa(cfg.Server.Port),
		Handler:           corsHandler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("Starting HTTP server", "addr", srv.Addr, "storage", cfg.Storage, "contract", cfg.Contract.Address)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("HTTP server failed", "error", err)
		os.Exit(1)
	}
}
