// Package main provides the MCP server entry point for medical report processing.
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

	"github.com/joho/godotenv"

	"github.com/bull/oncodoc/internal/app"
	"github.com/bull/oncodoc/internal/config"
	mcpserver "github.com/bull/oncodoc/internal/mcp"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	envErr := godotenv.Load()

	// Create context that cancels on SIGTERM/SIGINT
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// stdout carries the MCP stdio protocol, so logs always go to stderr
	logger := app.NewLogger(os.Stderr, cfg)
	slog.SetDefault(logger)
	if envErr != nil {
		logger.Debug("No .env file found, using environment variables")
	}

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	server := mcpserver.NewServer(&mcpserver.Config{
		Pipeline:        a.Pipeline,
		Finder:          a.Finder,
		Store:           a.Store,
		EmbeddingSource: a.Generator.Source(),
	})

	// Create HTTP server with multiple endpoints
	mux := http.NewServeMux()
	mux.HandleFunc("/health", mcpserver.NewHealthHandler(server))
	mux.Handle("/mcp", mcpserver.NewHTTPHandler(server, nil))

	httpServer := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	if cfg.ServerMode {
		// HTTP mode: serve MCP over HTTP for remote clients
		logger.Info("Starting HTTP server", "addr", httpServer.Addr, "backend", cfg.StoreBackend,
			"embeddings", a.Generator.Source())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
		return
	}

	// Stdio mode: run MCP server over stdin/stdout for local clients
	// Also start HTTP health endpoint in background for local testing
	go func() {
		logger.Info("Starting health server", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("Health server error", "error", err)
		}
	}()

	logger.Info("Starting medical report MCP server (stdio mode)", "backend", cfg.StoreBackend,
		"embeddings", a.Generator.Source())
	if err := server.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
