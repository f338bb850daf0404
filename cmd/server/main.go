package main

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/bcshine/midcamstone-data-app-25120702/internal/analysis"
	"github.com/bcshine/midcamstone-data-app-25120702/internal/config"
	"github.com/bcshine/midcamstone-data-app-25120702/internal/core"
	"github.com/bcshine/midcamstone-data-app-25120702/internal/logging"
	"github.com/bcshine/midcamstone-data-app-25120702/internal/store"
	"github.com/bcshine/midcamstone-data-app-25120702/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging based on config
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"db_max_conns", cfg.Database.MaxConns,
		"upload_max_concurrent", cfg.Upload.MaxConcurrent,
		"trash_retention_days", cfg.Trash.RetentionDays,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	// Parse and configure connection pool
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		slog.Error("failed to parse database URL", "error", err)
		os.Exit(1)
	}
	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

	// Connect to database
	ctx := context.Background()
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		slog.Error("failed to ping database", "error", err)
		os.Exit(1)
	}
	if u, err := url.Parse(cfg.Database.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}

	// Wire the service over the shared store
	service := core.NewService(store.New(pool), cfg, slog.Default())

	// Ledger and trash tables must exist before traffic arrives
	if err := service.EnsureSchema(ctx); err != nil {
		slog.Error("failed to create bookkeeping tables", "error", err)
		os.Exit(1)
	}

	analysisClient := analysis.New(cfg.Analysis.URL, cfg.Analysis.Timeout)
	if analysisClient.Enabled() {
		slog.Info("analysis engine configured", "url", cfg.Analysis.URL)
	}

	server := web.NewServer(service, analysisClient, cfg)

	// Background trash sweeper
	jobCtx, cancelJobs := context.WithCancel(context.Background())
	go runTrashSweeper(jobCtx, service, cfg.Trash.SweepInterval)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Let in-flight uploads finish before closing the pool
		if active := service.Limiter().ActiveCount(); active > 0 {
			slog.Info("waiting for uploads to complete", "active", active)
			if err := service.Limiter().WaitForDrain(shutdownCtx); err != nil {
				slog.Warn("uploads did not complete in time", "error", err)
			} else {
				slog.Info("all uploads completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	slog.Info("server starting", "addr", cfg.Server.Addr())
	if err := server.Start(cfg.Server.Addr()); err != nil && err != http.ErrServerClosed {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

// runTrashSweeper purges expired trash entries on a fixed interval
// until ctx is cancelled.
func runTrashSweeper(ctx context.Context, service *core.Service, interval time.Duration) {
	if interval <= 0 {
		interval = 12 * time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := service.SweepExpired(ctx)
			if err != nil {
				slog.Warn("trash sweep failed", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("expired trash purged", "entries", n)
			}
		}
	}
}
