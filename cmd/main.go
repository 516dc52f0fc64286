/*
Package main is the entry point for the relay hub.

It loads configuration, initializes the global logging system, constructs the room Registry,
serves the HTTP and signaling endpoints, and on SIGINT/SIGTERM shuts the HTTP server down
before closing every open signaling connection.
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"relayhub/internal/app/hub"
	"relayhub/internal/configs"
	"relayhub/internal/handler"
	"relayhub/internal/pkg/logx"
)

const shutdownTimeout = 5 * time.Second

func main() {
	cfg, err := configs.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logx.InitGlobalLogger(cfg.IsDevelopment(), cfg.LogLevel)
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Str("addr", cfg.Addr()).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Int("send_queue_size", cfg.SendQueueSize).
		Int64("max_message_bytes", cfg.MaxMessageBytes).
		Msg("Configuration loaded successfully")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := hub.NewRegistry(hub.Options{
		SendQueueSize:  cfg.SendQueueSize,
		MaxMessageSize: cfg.MaxMessageBytes,
	})

	deps := &handler.AppDeps{
		Registry: registry,
		Config:   cfg,
	}

	// No WriteTimeout: signaling handlers hold the connection for the whole session.
	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler.Router(ctx, deps),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logx.Info(fmt.Sprintf("Relay hub starting on http://%s", cfg.Addr()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logx.Info("Received shutdown signal. Starting graceful shutdown...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logx.Error(err, "HTTP server forced to shutdown")
		}

		return registry.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logx.Fatal(err, "Relay hub stopped with error")
	}

	logx.Info("Server gracefully stopped.")
}
