package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pwalcher/defectdoc/internal"
	"github.com/pwalcher/defectdoc/internal/handler"
	"github.com/pwalcher/defectdoc/internal/metrics"
	"github.com/pwalcher/defectdoc/internal/middleware"
	"github.com/pwalcher/defectdoc/internal/report"
	"github.com/pwalcher/defectdoc/internal/storage"
)

const version = "0.3.0"

func run() error {
	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Initialize storage backend
	store, err := newStorage(cfg, logger)
	if err != nil {
		return fmt.Errorf("storage initialization failed: %w", err)
	}
	logger.Info("Storage ready", "provider", cfg.StorageProvider)

	// Initialize the report generator
	layout := report.DefaultLayoutConfig()
	layout.MaxImageHeight = cfg.MaxImageHeightMM
	layout.ProbeTimeout = cfg.ProbeTimeout
	generator := report.NewPDFGeneratorWithConfig(layout, logger)

	// Initialize middleware
	isSecure := cfg.Env != "development"
	securityMw := middleware.NewSecurityHeadersMiddleware(isSecure)
	loggingMw := middleware.NewRequestLoggingMiddleware(logger)
	metricsAuthMw := middleware.NewMetricsAuthMiddleware(cfg.MetricsUsername, cfg.MetricsPassword)

	limiter := middleware.NewRateLimiter(cfg.GenerateRateLimit, cfg.GenerateRateWindow, logger)
	rateLimitMw := middleware.NewRateLimitMiddleware(limiter, logger)

	// Initialize handlers
	reportHandler := handler.NewReportHandler(generator, store, logger, cfg.MaxUploadBytes)
	healthHandler := handler.NewHealthHandler(version)

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", healthHandler.HandleHealth)

	// Report generation is rate limited per client IP
	mux.Handle("POST /reports", rateLimitMw.Limit(http.HandlerFunc(reportHandler.HandleGenerate)))
	mux.HandleFunc("GET /reports/{id}/{filename}", reportHandler.HandleDownload)

	// Prometheus metrics behind basic auth
	mux.Handle("GET /metrics", metricsAuthMw.Handler(promhttp.Handler()))

	// Outer middleware stack
	root := securityMw.Handler(metrics.Middleware(loggingMw.Handler(mux)))

	// ==========================================================================
	// Start server
	// ==========================================================================

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           root,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Channel to listen for interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		logger.Info("Server started", "address", server.Addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
		}
	}()

	// Wait for interrupt signal
	<-sigChan
	logger.Info("Shutdown signal received, initiating graceful shutdown...")

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	logger.Info("Graceful shutdown complete")
	return nil
}

// newStorage selects the archive backend from configuration.
func newStorage(cfg *internal.Config, logger *slog.Logger) (storage.Storage, error) {
	switch cfg.StorageProvider {
	case storage.ProviderS3:
		return storage.NewS3Storage(storage.S3Config{
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			BucketName:      cfg.S3BucketName,
			Region:          cfg.S3Region,
			PublicURL:       cfg.S3PublicURL,
		}, logger)
	case storage.ProviderLocal:
		return storage.NewLocalStorage(storage.LocalConfig{
			BasePath: cfg.LocalStoragePath,
			BaseURL:  cfg.LocalStorageURL,
		})
	default:
		return nil, fmt.Errorf("unknown storage provider %q", cfg.StorageProvider)
	}
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
