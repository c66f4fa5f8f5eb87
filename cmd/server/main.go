// Package main provides the entry point for the media chunker HTTP worker.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/maauso/media-chunker/internal/bootstrap"
	"github.com/maauso/media-chunker/internal/config"
	"github.com/maauso/media-chunker/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	logger.Info("starting media chunker",
		slog.Int("port", cfg.Port),
		slog.String("log_format", cfg.LogFormat),
		slog.String("log_level", cfg.LogLevel),
		slog.String("temp_dir", cfg.TempDir),
		slog.Int("chunk_seconds", cfg.ChunkSeconds),
		slog.Bool("s3_enabled", cfg.S3Enabled()),
	)
	logger.Debug("configuration", slog.String("config", cfg.String()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := bootstrap.NewDependencies(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize dependencies: %w", err)
	}

	handlers := server.NewHandlers(deps.IngestService, logger)
	router := server.NewRouter(handlers, logger, server.Config{AllowedOrigins: cfg.CORSAllowedOrigins})

	// Ingest answers 202 before the pipeline starts, so WriteTimeout only
	// covers the request itself.
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server failed: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	case err := <-errCh:
		return err
	}
	stop()

	return shutdown(srv, handlers, cfg.ShutdownTimeout(), logger)
}

// shutdown stops accepting requests, then waits for the pipeline runs the
// server started. Both steps share one deadline.
func shutdown(srv *http.Server, handlers *server.Handlers, timeout time.Duration, logger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	logger.Info("shutting down server", slog.Duration("timeout", timeout))
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}

	if n := handlers.InFlight(); n > 0 {
		logger.Info("waiting for in-flight jobs", slog.Int("jobs", n))
	}
	if err := handlers.Wait(ctx); err != nil {
		logger.Warn("jobs still running at shutdown deadline",
			slog.Int("jobs", handlers.InFlight()),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("wait for jobs: %w", err)
	}

	logger.Info("server stopped gracefully")
	return nil
}
