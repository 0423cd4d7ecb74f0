package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/Mide008/Roothaus-1/internal/api/handlers"
	"github.com/Mide008/Roothaus-1/internal/api/middleware"
	"github.com/Mide008/Roothaus-1/internal/catalog"
	"github.com/Mide008/Roothaus-1/internal/config"
	"github.com/Mide008/Roothaus-1/internal/metrics"
	"github.com/Mide008/Roothaus-1/internal/payments"
	"github.com/Mide008/Roothaus-1/internal/repository"
)

// Services are the collaborators the HTTP handlers need
type Services struct {
	Catalog      *catalog.Catalog
	Sessions     payments.SessionCreator
	Processor    handlers.WebhookProcessor
	Detector     handlers.DisplayDetector
	Repositories *repository.Repositories
	Metrics      *metrics.ServerMetrics
	Gatherer     prometheus.Gatherer
	RateLimiter  *middleware.RateLimiter
}

// NewRouter creates and configures the Gin router
func NewRouter(cfg *config.Config, svc *Services, logger *zap.Logger) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "Method not allowed"})
	})
	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	// Middleware
	router.Use(customRecovery(logger))
	router.Use(middleware.RequestID())
	router.Use(loggingMiddleware(logger))
	if svc.Metrics != nil {
		router.Use(middleware.Metrics(svc.Metrics))
	}

	// Root: friendly response so GET / returns 200 instead of 404
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service": "RootHaus Storefront API",
			"endpoints": []string{
				"GET /health",
				"GET /metrics",
				"GET /api/products",
				"GET /api/products/:id",
				"GET /api/currency",
				"POST /api/checkout-sessions",
				"POST /webhooks/stripe",
				"GET /api/admin/notifications",
			},
		})
	})

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	if svc.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(metrics.Handler(svc.Gatherer)))
	}

	// Stripe webhook: checkout.session.completed sends the order emails.
	// The Netlify function path is kept so the existing Stripe endpoint keeps working.
	stripeWebhook := handlers.HandleStripeWebhook(cfg, svc.Processor, logger)
	router.POST("/webhooks/stripe", stripeWebhook)
	router.POST("/.netlify/functions/stripe-webhook", stripeWebhook)

	rateLimiter := svc.RateLimiter
	if rateLimiter == nil {
		rateLimiter = middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	}
	createSession := handlers.HandleCreateCheckoutSession(cfg, svc.Catalog, svc.Sessions, logger)
	checkoutChain := []gin.HandlerFunc{
		middleware.RateLimit(rateLimiter, logger),
		middleware.IdempotencyMiddleware(logger),
		createSession,
	}
	// path used by the original storefront script
	router.POST("/create-checkout-session", checkoutChain...)

	apiRoutes := router.Group("/api")
	{
		apiRoutes.GET("/products", handlers.HandleListProducts(svc.Catalog, svc.Detector, logger))
		apiRoutes.GET("/products/:id", handlers.HandleGetProduct(svc.Catalog, svc.Detector, logger))
		apiRoutes.GET("/currency", handlers.HandleGetCurrency(svc.Detector))
		apiRoutes.POST("/checkout-sessions", checkoutChain...)

		// Operator routes (bearer token checked against ADMIN_API_KEY_HASH)
		adminRoutes := apiRoutes.Group("/admin")
		adminRoutes.Use(middleware.AdminAuth(cfg.Admin.APIKeyHash, logger))
		{
			adminRoutes.GET("/notifications", handlers.HandleListNotifications(svc.Repositories, logger))
		}
	}

	return router
}

// customRecovery is a custom recovery middleware that logs panics
func customRecovery(logger *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.Error("Panic recovered",
			zap.Any("error", recovered),
			zap.String("path", c.Request.URL.Path),
			zap.String("method", c.Request.Method),
			zap.String("request_id", middleware.GetRequestID(c)),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	})
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		status := c.Writer.Status()
		logger.Info("HTTP request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.String("request_id", middleware.GetRequestID(c)),
		)
	}
}
