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

	"github.com/MikeSquared-Agency/credence/internal/api"
	"github.com/MikeSquared-Agency/credence/internal/config"
	"github.com/MikeSquared-Agency/credence/internal/credibility"
	"github.com/MikeSquared-Agency/credence/internal/hermes"
	"github.com/MikeSquared-Agency/credence/internal/metrics"
	"github.com/MikeSquared-Agency/credence/internal/notify"
	"github.com/MikeSquared-Agency/credence/internal/processor"
	"github.com/MikeSquared-Agency/credence/internal/store"
)

func main() {
	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	slog.Info("credence starting", "port", cfg.Port, "store", cfg.StoreBackend)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// State store
	backend, err := store.Open(ctx, store.Options{
		Backend:     cfg.StoreBackend,
		DatabaseURL: cfg.DatabaseURL,
		RedisURL:    cfg.RedisURL,
		StateDir:    cfg.StateDir,
	})
	if err != nil {
		slog.Error("failed to open state store", "backend", cfg.StoreBackend, "error", err)
		os.Exit(1)
	}
	defer backend.Close()
	slog.Info("state store ready", "backend", cfg.StoreBackend)

	engine, err := credibility.NewEngine()
	if err != nil {
		slog.Error("invalid credibility configuration", "error", err)
		os.Exit(1)
	}

	// NATS/Hermes
	hermesClient, err := hermes.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, slog.Default())
	if err != nil {
		slog.Error("failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer hermesClient.Close()
	slog.Info("NATS connected", "url", cfg.NatsURL)

	m := metrics.New()
	proc := processor.New(backend, engine, notify.NewPublisher(hermesClient), m, cfg.DecayOnSessionStart, slog.Default())

	if err := proc.Subscribe(hermesClient); err != nil {
		slog.Error("failed to subscribe to task events", "error", err)
		os.Exit(1)
	}

	// HTTP API
	srv := api.NewServer(cfg.Port, cfg.APIToken, proc, m)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	if cfg.APIToken == "" {
		slog.Warn("CREDENCE_API_TOKEN not set, credibility API is unauthenticated")
	}

	slog.Info("credence ready", "port", cfg.Port)

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("HTTP shutdown", "error", err)
	}
	cancel()
	slog.Info("credence stopped")
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
