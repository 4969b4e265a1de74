// Grooky API server: chat proxy, handoff endpoints, reply card.
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

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/grookylabs/grooky/internal/api"
	"github.com/grookylabs/grooky/internal/config"
	"github.com/grookylabs/grooky/internal/middleware"
	"github.com/grookylabs/grooky/internal/proxy"
	"github.com/grookylabs/grooky/internal/seed"
	"github.com/grookylabs/grooky/internal/upstream"
	"github.com/grookylabs/grooky/internal/xlog"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "remote_seed_store", cfg.UseRemoteSeedStore())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Handoff store: remote when credentials are present, local SQLite
	// with an expiry sweeper otherwise.
	var seedStore seed.Store
	if cfg.UseRemoteSeedStore() {
		seedStore = seed.NewRESTStore(cfg.RedisRESTURL, cfg.RedisRESTToken)
		slog.Info("Handoff store: remote key-value")
	} else {
		local, err := seed.NewSQLite(cfg.SeedDBPath)
		if err != nil {
			slog.Error("Failed to initialize handoff database", "error", err)
			os.Exit(1)
		}
		defer func() {
			if closeErr := local.Close(); closeErr != nil {
				slog.Error("Failed to close handoff database", "error", closeErr)
			}
		}()
		if err := local.Ping(context.Background()); err != nil {
			slog.Error("Handoff database health check failed", "error", err)
			os.Exit(1)
		}
		local.StartSweeper(ctx, cfg.SeedSweepInterval)
		seedStore = local
		slog.Info("Handoff store: local sqlite", "path", cfg.SeedDBPath, "sweep_interval", cfg.SeedSweepInterval)
	}

	exchangeLog, err := xlog.New(xlog.Config{
		Enabled:   cfg.ExchangeLog.Enabled,
		Dir:       cfg.ExchangeLog.Dir,
		QueueSize: cfg.ExchangeLog.QueueSize,
	})
	if err != nil {
		slog.Error("Failed to initialize exchange logger", "error", err)
		os.Exit(1)
	}
	defer func() { _ = exchangeLog.Close() }()

	completer := upstream.NewClient(upstream.ClientConfig{
		BaseURL: cfg.GroqBaseURL,
		APIKey:  cfg.GroqAPIKey,
	})
	if !completer.Configured() {
		slog.Warn("GROQ_API_KEY not set; chat proxy will reject requests")
	}

	chatHandler := proxy.NewHandler(completer, cfg.Model, exchangeLog)
	seedHandler := seed.NewHandler(seedStore)

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS([]string{"*"}))

	chatHandler.RegisterRoutes(r)
	seedHandler.RegisterRoutes(r)
	r.Get("/api/ui", api.ReplyCard)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
