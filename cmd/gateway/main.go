// Package main is the entry point for the tutofino edge gateway. It loads
// configuration, establishes the database and Redis connections the
// configured backends need, wires the request pipeline, and starts the
// HTTP server.
package main

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tutofino/gateway/internal/app"
	"github.com/tutofino/gateway/internal/config"
	"github.com/tutofino/gateway/internal/database"
)

func main() {
	// --- Load Configuration ---
	// Policy misconfiguration (bad origins, unknown backends) dies here,
	// before a single request is served.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	// Configure structured logging based on environment.
	setupLogging(cfg)

	slog.Info("starting tutofino gateway",
		slog.String("env", cfg.Env),
		slog.Int("port", cfg.Port),
		slog.String("store_backend", cfg.Gateway.StoreBackend),
		slog.String("rate_limit_strategy", cfg.Gateway.RateLimitStrategy),
		slog.Bool("enforce_protected", cfg.Gateway.EnforceProtectedRoutes),
	)

	// --- Connect to MariaDB (role store + audit log) ---
	// Optional: without it the gateway still runs, with role-less
	// sessions and audit logging disabled.
	var db *sql.DB
	if cfg.Database.Enabled() {
		db, err = database.NewMariaDB(cfg.Database)
		if err != nil {
			slog.Error("failed to connect to MariaDB", slog.Any("error", err))
			os.Exit(1)
		}
		defer db.Close()
		slog.Info("connected to MariaDB")
	} else {
		slog.Warn("no database configured: role lookups and audit logging are disabled")
	}

	// --- Connect to Redis (shared-store backends only) ---
	var rdb *redis.Client
	if cfg.Gateway.StoreBackend == config.BackendRedis {
		rdb, err = database.NewRedis(cfg.Redis)
		if err != nil {
			slog.Error("failed to connect to Redis", slog.Any("error", err))
			os.Exit(1)
		}
		defer rdb.Close()
		slog.Info("connected to Redis")
	}

	// --- Create Application ---
	application := app.New(cfg, db, rdb)
	application.RegisterRoutes()

	// --- Graceful Shutdown ---
	// Listen for interrupt/term signals to drain connections cleanly.
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		slog.Info("shutting down gateway...")

		// Give in-flight requests 10 seconds to complete.
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := application.Echo.Shutdown(ctx); err != nil {
			slog.Error("server forced shutdown", slog.Any("error", err))
		}
	}()

	// --- Start Server ---
	if err := application.Start(); err != nil {
		// Echo returns http.ErrServerClosed on graceful shutdown, which is expected.
		slog.Info("server stopped", slog.Any("reason", err))
	}
}

// setupLogging configures the global slog logger based on the environment.
// Development uses text format for readability. Production uses JSON for
// structured log aggregation.
func setupLogging(cfg *config.Config) {
	var handler slog.Handler

	if cfg.IsDevelopment() {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}

	slog.SetDefault(slog.New(handler))
}
