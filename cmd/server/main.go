package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/Mide008/Roothaus-1/internal/api"
	"github.com/Mide008/Roothaus-1/internal/api/middleware"
	"github.com/Mide008/Roothaus-1/internal/catalog"
	"github.com/Mide008/Roothaus-1/internal/config"
	"github.com/Mide008/Roothaus-1/internal/currency"
	"github.com/Mide008/Roothaus-1/internal/email"
	"github.com/Mide008/Roothaus-1/internal/metrics"
	"github.com/Mide008/Roothaus-1/internal/payments"
	"github.com/Mide008/Roothaus-1/internal/repository"
	"github.com/Mide008/Roothaus-1/internal/repository/backends"
	"github.com/Mide008/Roothaus-1/internal/service"
)

const housekeepingInterval = time.Hour

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	var logger *zap.Logger
	if cfg.Environment == "production" {
		logger, _ = zap.NewProduction()
	} else {
		logger, _ = zap.NewDevelopment()
	}
	defer logger.Sync()

	if err := cfg.ValidateServer(); err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}
	if cfg.Stripe.WebhookSecret == "" {
		logger.Warn("STRIPE_WEBHOOK_SECRET is not set: the webhook endpoint will answer 503")
	}

	logger.Info("Starting RootHaus storefront server",
		zap.String("port", cfg.Port),
		zap.String("environment", cfg.Environment),
		zap.String("ledger", cfg.Dedup.Backend),
	)

	products, err := catalog.Load()
	if err != nil {
		logger.Fatal("Failed to load catalog", zap.Error(err))
	}

	// Initialize the notification ledger (runs migrations for postgres)
	repos, closeLedger, err := backends.Open(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal("Failed to open notification ledger", zap.Error(err))
	}
	defer closeLedger()

	serverMetrics := metrics.NewServerMetrics(prometheus.DefaultRegisterer)
	stripeClient := payments.NewStripeClient(cfg.Stripe, logger)

	processor := service.NewOrderProcessor(service.ProcessorDeps{
		Verifier: stripeClient,
		Sessions: stripeClient,
		Renderer: email.NewRenderer(cfg.SiteURL, cfg.Stripe.DashboardURL, cfg.Currency.Locale),
		Sender:   email.NewSMTPSender(cfg.SMTP, logger),
		Ledger:   repos.Notification,
		Metrics:  serverMetrics,
	}, cfg.Notify, logger)

	detector := currency.NewDetector(
		currency.NewGeoClient(cfg.Currency.GeoAPIURL, logger),
		currency.NewRatesClient(cfg.Currency.RatesAPIURL, cfg.Currency.RatesTTL, logger),
		cfg.Currency.Locale,
		logger,
	)
	rateLimiter := middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)

	// Initialize router
	router := api.NewRouter(cfg, &api.Services{
		Catalog:      products,
		Sessions:     stripeClient,
		Processor:    processor,
		Detector:     detector,
		Repositories: repos,
		Metrics:      serverMetrics,
		Gatherer:     prometheus.DefaultGatherer,
		RateLimiter:  rateLimiter,
	}, logger)

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // a webhook may retry both emails before answering
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	housekeepingCtx, stopHousekeeping := context.WithCancel(context.Background())
	defer stopHousekeeping()
	go runHousekeeping(housekeepingCtx, cfg, repos, rateLimiter, logger)

	logger.Info("Server started successfully", zap.String("address", srv.Addr))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	stopHousekeeping()

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

// runHousekeeping purges old ledger rows and idle rate limiters until ctx is done
func runHousekeeping(ctx context.Context, cfg *config.Config, repos *repository.Repositories, limiter *middleware.RateLimiter, logger *zap.Logger) {
	ticker := time.NewTicker(housekeepingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			purged, err := repos.Notification.Purge(ctx, time.Now().Add(-cfg.Dedup.Retention))
			if err != nil {
				logger.Warn("Failed to purge notification ledger", zap.Error(err))
			} else if purged > 0 {
				logger.Info("Purged notification ledger", zap.Int64("rows", purged))
			}
			if n := limiter.Cleanup(); n > 0 {
				logger.Debug("Dropped idle rate limiters", zap.Int("count", n))
			}
		}
	}
}
