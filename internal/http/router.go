// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, identity extraction, logging with phone
// masking, panic recovery, metrics, CORS, and security headers.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → identity → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/veiled-app/moments-backend/internal/config"
	"github.com/veiled-app/moments-backend/internal/generation"
	"github.com/veiled-app/moments-backend/internal/http/handlers"
	"github.com/veiled-app/moments-backend/internal/http/middleware"
	"github.com/veiled-app/moments-backend/internal/notify"
	"github.com/veiled-app/moments-backend/internal/services"
)

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), identity extraction,
// CORS and security headers, health and metrics endpoints, and then mounts the
// versioned public API under cfg.APIBasePath.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. IdentityExtractor: guest/auth identifiers for downstream handlers
//  4. Logger: structured logs with phone masking (after identity so both ids
//     appear in the access line)
//  5. Recovery: capture panics after logger
//  6. Body size limiter
//  7. Metrics
//  8. Compression
//  9. CORS and security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Guest/auth identity extraction
	r.Use(middleware.IdentityExtractor())

	// 4) Structured logging (phone numbers masked)
	r.Use(middleware.Logger())

	// 5) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 6) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// 7) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 8) Response compression
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	// 9) CORS posture (safe defaults: allow all if none configured)
	allowHeaders := []string{
		"Origin", "Content-Type", "Accept", "Authorization",
		middleware.HeaderGuestID, middleware.HeaderAuthUser,
	}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    []string{"X-Request-ID", "ETag", "Content-Length"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    []string{"X-Request-ID", "ETag", "Content-Length"},
			AllowCredentials: true, // guest cookie support for allowlisted origins
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// API docs (opt-in)
	if cfg.SwaggerEnabled {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: services ← db + external clients
	identitySvc := &services.IdentityService{DB: db}
	entitlementSvc := &services.EntitlementService{DB: db}
	codeGen := &services.CodeGenerator{
		DB:          db,
		Length:      cfg.CodeLength,
		MaxAttempts: cfg.CodeMaxAttempts,
	}

	var notifier notify.Notifier
	if cfg.WhatsApp.BaseURL != "" {
		notifier = notify.NewWhatsAppClient(cfg.WhatsApp.BaseURL, cfg.WhatsApp.Token, cfg.WhatsApp.RatePerSec)
	}

	momentSvc := &services.MomentService{
		DB:             db,
		Identities:     identitySvc,
		Entitlements:   entitlementSvc,
		Codes:          codeGen,
		Notifier:       notifier,
		MaxTeaserRunes: cfg.MaxTeaserRunes,
		MaxHiddenRunes: cfg.MaxHiddenRunes,
	}
	replySvc := &services.ReplyService{
		DB:            db,
		Identities:    identitySvc,
		Notifier:      notifier,
		MaxReplyRunes: cfg.MaxReplyRunes,
	}
	truthSvc := &services.TruthService{
		DB:           db,
		Identities:   identitySvc,
		Entitlements: entitlementSvc,
		Generator: generation.NewClient(
			cfg.Generation.BaseURL,
			cfg.Generation.APIKey,
			cfg.Generation.Model,
			cfg.Generation.Timeout,
		),
		SystemPrompt: cfg.Generation.SystemPrompt,
		GenParams: generation.Params{
			Model:       cfg.Generation.Model,
			MaxTokens:   cfg.Generation.MaxTokens,
			Temperature: cfg.Generation.Temperature,
		},
	}

	h := handlers.New(momentSvc, replySvc, truthSvc)

	// Public API
	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		// Moments
		api.POST("/moments", h.CreateMoment)
		api.GET("/moments", h.ListMoments)
		api.GET("/moments/:code", h.GetMoment)
		api.PUT("/moments/:code/hidden", h.SetHidden)
		api.POST("/moments/:code/unlock", h.UnlockHidden)

		// Replies
		api.POST("/moments/:code/replies", h.CreateReply)
		api.POST("/moments/:code/replies/:replyId/reaction", h.CreateReaction)
		api.PUT("/moments/:code/replies/:replyId/sender-response", h.SetSenderResponse)

		// Paid analysis
		api.POST("/moments/:code/deep-truth", h.RunDeepTruth)
		api.POST("/moments/:code/replies/:replyId/followups", h.RunTruthLevel2)
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
