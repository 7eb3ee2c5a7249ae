// Manual Purchases - records store payments on behalf of buyers without checkout.
// Serves the admin pages, a JSON API, and MCP tools in front of an EDD store.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"edd-manual-purchases/internal/config"
	"edd-manual-purchases/internal/edd"
	"edd-manual-purchases/internal/handler"
	"edd-manual-purchases/internal/license"
	"edd-manual-purchases/internal/middleware"
	"edd-manual-purchases/internal/nonce"
	"edd-manual-purchases/internal/purchase"
)

// Version is the release reported to the licensing server. Set with -ldflags.
var Version = "1.1.4"

const itemName = "Manual Purchases"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// .env is a development convenience; production sets the environment directly
	if os.Getenv("ENVIRONMENT") != "production" {
		_ = godotenv.Load()
	}

	// Initialize structured logger
	logger := initLogger()

	// Load configuration
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger.Info("configuration loaded",
		slog.String("environment", cfg.Environment),
		slog.String("store_url", cfg.Store.StoreURL),
		slog.String("completion_mode", cfg.CompletionMode),
		slog.Bool("fingerprint", cfg.Store.Fingerprint),
	)

	store, err := edd.New(edd.Config{
		StoreURL:    cfg.Store.StoreURL,
		Username:    cfg.Store.Username,
		AppPassword: cfg.Store.AppPassword,
		Fingerprint: cfg.Store.Fingerprint,
	})
	if err != nil {
		return fmt.Errorf("creating store client: %w", err)
	}

	nonces, err := nonce.NewManager(cfg.Store.NonceSecret)
	if err != nil {
		return fmt.Errorf("creating nonce manager: %w", err)
	}

	payments := purchase.NewService(store, nonces, purchase.Config{
		Currency:       cfg.Store.Currency,
		Backdate:       cfg.Backdate,
		CompletionMode: purchase.CompletionMode(cfg.CompletionMode),
	}, logger)

	licenses := license.New(license.Config{
		APIURL:   cfg.LicenseAPIURL,
		ItemName: itemName,
		Version:  Version,
	}, store, logger)

	h := handler.New(handler.Deps{
		Payments:    payments,
		Nonces:      nonces,
		License:     licenses,
		Options:     store,
		MCPOperator: cfg.Store.AdminUser,
		Version:     Version,
	}, logger)

	// Setup routes; admin, API, and MCP routes sit behind basic auth
	mux := http.NewServeMux()
	h.RegisterRoutes(mux, middleware.AdminAuth(cfg.Store.AdminUser, cfg.Store.AdminPassword, itemName, logger))

	// Apply middleware chain: recovery → logging → fetch metadata → handler
	// Recovery must be outermost to catch panics from logging middleware
	httpHandler := middleware.Chain(
		middleware.Recovery(logger),
		middleware.Logging(logger),
		middleware.FetchMetadata(logger),
	)(mux)

	// Create HTTP server with timeouts
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      httpHandler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// License and update checks run until shutdown
	checker := license.NewChecker(licenses, cfg.LicenseCheckInterval, logger)
	go checker.Run(ctx)

	// Channel for server errors
	serverErr := make(chan error, 1)

	// Start server in goroutine
	go func() {
		logger.Info("server starting",
			slog.String("port", cfg.Port),
			slog.String("addr", server.Addr),
			slog.String("version", Version),
		)
		serverErr <- server.ListenAndServe()
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-serverErr:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case <-ctx.Done():
		logger.Info("shutdown signal received")

		// Give outstanding requests time to complete
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			// Force close if graceful shutdown fails
			server.Close()
			return fmt.Errorf("shutdown error: %w", err)
		}
	}

	logger.Info("server stopped")
	return nil
}

// initLogger creates a structured logger configured for the environment.
// Production uses JSON format for GCP Cloud Logging compatibility.
// Development uses text format for readability.
func initLogger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(os.Getenv("LOG_LEVEL"))); err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
		// Add source location in debug mode
		AddSource: level == slog.LevelDebug,
	}

	// JSON for production (Cloud Logging compatible), text for development
	if os.Getenv("ENVIRONMENT") == "production" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
