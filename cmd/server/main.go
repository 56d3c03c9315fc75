package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/spf13/pflag"
	"github.com/umar/familychat/internal/backend"
	"github.com/umar/familychat/internal/chat"
	"github.com/umar/familychat/internal/config"
	"github.com/umar/familychat/internal/database"
	"github.com/umar/familychat/internal/handlers"
	"github.com/umar/familychat/internal/identity"
	"github.com/umar/familychat/internal/realtime"
	redisc "github.com/umar/familychat/internal/redis"
)

func main() {
	flags, err := config.ParseFlags(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		os.Exit(2)
	}
	cfg, err := config.Load(flags.EnvFile)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(2)
	}

	logger := logs.GetLoggerFromString(cfg.LogLevel)
	slog.SetDefault(logger)

	slog.Info("starting chat server", "configured", cfg.Configured())

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	var (
		store    database.Store
		presence *redisc.Presence
		broker   *realtime.Broker
	)

	if cfg.Configured() {
		db, err := database.InitDB(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("failed to init database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		slog.Info("connected to PostgreSQL")

		if err := database.RunMigrations(ctx, db); err != nil {
			slog.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}
		slog.Info("database migrations complete")
		if flags.MigrateOnly {
			return
		}

		redisClient, err := redisc.InitRedis(ctx, cfg.RedisURL)
		if err != nil {
			slog.Error("failed to init Redis", "error", err)
			os.Exit(1)
		}
		defer redisClient.Close()
		slog.Info("connected to Redis")

		broker = realtime.NewBroker(redisc.NewChangeTransport(redisClient, logger), logger)
		store = backend.New(database.NewPostgres(db), broker, logger)
		presence = redisc.NewPresence(redisClient)
	} else {
		slog.Warn("DATABASE_URL or REDIS_URL missing, running local-only: the room is not persisted and conversations are unavailable")
		if flags.MigrateOnly {
			slog.Error("--migrate-only needs DATABASE_URL")
			os.Exit(2)
		}
		broker = realtime.NewBroker(realtime.NewLocalTransport(256), logger)
	}

	go func() {
		if err := broker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("change channel stopped", "error", err)
		}
	}()

	issuer := identity.NewIssuer(cfg.SessionSecret, cfg.SessionTTL)

	var hubPresence chat.Presence
	var presenceLister handlers.PresenceLister
	if presence != nil {
		hubPresence = presence
		presenceLister = presence
	}

	// WebSocket hub
	hub := chat.NewHub(store, broker, hubPresence, issuer, logger)
	go hub.Run()

	router := newRouter(cfg, store, hub, issuer, presenceLister)

	// HTTP server
	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("server listening", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutting down", "signal", sig.String())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	hub.Shutdown()
	stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped gracefully")
}
