// Package application wires configuration, comparison and the web server
// into a runnable process.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/JonMunkholm/colcompare/internal/config"
	"github.com/JonMunkholm/colcompare/internal/core"
	"github.com/JonMunkholm/colcompare/internal/upload"
	"github.com/JonMunkholm/colcompare/internal/web"
)

// App owns the long-lived components of the server.
type App struct {
	cfg     *config.Config
	limiter *core.Limiter
	server  *web.Server
}

// New builds the comparison stack described by cfg.
func New(cfg *config.Config) *App {
	limiter := core.NewLimiter(cfg.Compare.MaxConcurrent, cfg.Compare.MaxWaitTime)
	store := upload.NewStore(cfg.Upload)
	return &App{
		cfg:     cfg,
		limiter: limiter,
		server:  web.NewServer(cfg, core.NewComparator(nil), limiter, store),
	}
}

// Server exposes the HTTP server, mainly for tests.
func (a *App) Server() *web.Server { return a.server }

// Run serves until ctx is cancelled, then shuts down gracefully within
// the configured timeout, letting in-flight comparisons finish.
func (a *App) Run(ctx context.Context) error {
	slog.Info("configuration loaded",
		"addr", a.cfg.Server.Addr(),
		"upload_dir", a.cfg.Upload.Dir,
		"max_file_size", a.cfg.Upload.MaxFileSize,
		"compare_max_concurrent", a.cfg.Compare.MaxConcurrent,
		"rate_limit_enabled", a.cfg.Rate.Enabled,
	)

	errCh := make(chan error, 1)
	go func() { errCh <- a.server.Start() }()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if active := a.limiter.ActiveCount(); active > 0 {
		slog.Info("waiting for comparisons to complete", "active", active)
	}

	start := time.Now()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			slog.Warn("comparisons did not complete in time", "waited", time.Since(start))
		}
		return fmt.Errorf("shutdown: %w", err)
	}

	slog.Info("server stopped")
	return <-errCh
}
