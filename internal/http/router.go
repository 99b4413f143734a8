// Package httpapi wires the HTTP transport (Gin) to the delivery engine,
// webhook pipeline, and route handlers. It centralizes cross-cutting
// concerns such as tracing, correlation IDs, logging, panic recovery,
// metrics, CORS, security headers, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - The webhook ingestion path stays outside the edge rate limiter: the
//     platform controls that traffic and throttling it only delays retries
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/azatarm-prog/telegive-bot-service/internal/config"
	"github.com/azatarm-prog/telegive-bot-service/internal/http/handlers"
	"github.com/azatarm-prog/telegive-bot-service/internal/http/middleware"
	"github.com/azatarm-prog/telegive-bot-service/internal/repo"
)

// Deps carries the collaborators the HTTP layer serves. Built in main and
// injected here so the router stays deterministic and testable.
type Deps struct {
	DB       *gorm.DB
	Queue    handlers.DeliveryQueue
	Ingest   handlers.UpdateIngester
	Admin    handlers.WebhookAdmin
	Platform handlers.Platform

	// Auth validates service-to-service bearer tokens for the management
	// API. Nil disables the guard.
	Auth middleware.TokenValidator
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Logger: structured request logs
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Rate limiter (per IP; webhook, health and metrics paths exempt)
//  8. CORS and security headers
func RegisterRoutes(r *gin.Engine, deps Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured request logging
	r.Use(middleware.Logger())

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit
	r.Use(limitBody(cfg.MaxBodyBytes))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Compress status-query responses; recipient lists get large.
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	// 7) Token-bucket rate limiter per IP. The webhook path is exempt: the
	// platform controls its own retry cadence and a 429 there only stalls
	// update flow.
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByIP()).
		SkipPrefixes("/webhook", "/health", "/metrics")
	r.Use(rl.Handler())

	// 8) CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS: cfg.Security.EnableHSTS,
		HSTSMaxAge: cfg.Security.HSTSMaxAge,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/readiness: degraded when the ledger is unreachable.
	r.GET("/health", func(c *gin.Context) {
		if err := repo.Ping(c.Request.Context(), deps.DB); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	h := handlers.New(deps.Queue, deps.Ingest, deps.Admin, deps.Platform, deps.DB, cfg.BotToken)

	// Inbound platform updates; the token segment is the shared secret.
	r.POST("/webhook/:token", h.ReceiveUpdate)

	// Management API for upstream services.
	api := r.Group("/api/v1", middleware.ServiceAuth(deps.Auth))
	{
		// Outbound triggers
		api.POST("/messages", h.SendMessage)
		api.POST("/messages/bulk", h.SendBulk)
		api.POST("/announcements", h.PostAnnouncement)

		// Status queries
		api.GET("/tasks/:id", h.GetTask)
		api.DELETE("/tasks/:id", h.CancelTask)
		api.GET("/batches/:id/status", h.GetBatchStatus)
		api.GET("/giveaways/:id/delivery-status", h.GetGiveawayStatus)

		// Webhook management passthrough
		api.POST("/webhook", h.SetWebhook)
		api.DELETE("/webhook", h.DeleteWebhook)

		// Direct bot-API lookups for sibling services
		api.POST("/check-membership", h.CheckMembership)
		api.GET("/user-info/:id", h.GetUserInfo)
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the
// cap will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
