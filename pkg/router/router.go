package router

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"ai-companion-demo/companion/api"
	companionapi "ai-companion-demo/companion/internal/api"
	"ai-companion-demo/companion/internal/ws"
	"ai-companion-demo/companion/pkg/config"
	"ai-companion-demo/companion/pkg/di"
	"ai-companion-demo/companion/pkg/errors"
	"ai-companion-demo/companion/pkg/logger"
	"ai-companion-demo/companion/pkg/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// Track server start time for uptime calculations
var startTime = time.Now()

// Router is the main router for the application
type Router struct {
	Engine      *gin.Engine
	Container   *di.Container
	Logger      *logger.Logger
	Hub         *ws.Hub
	Config      *config.Config
	RateLimiter *middleware.RateLimiter
}

// New creates the engine and installs the global middleware chain:
// request id, request logging, error envelope, panic recovery, CORS, body
// limit and, when enabled, OpenAPI request validation.
func New(container *di.Container) (*Router, error) {
	logger.SetGlobal(container.Logger)
	cfg := container.Config

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.Security.TrustedProxies); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}

	engine.Use(middleware.RequestIDMiddleware())
	engine.Use(logger.Middleware(container.Logger))
	engine.Use(errors.ErrorHandler())
	engine.Use(errors.RecoveryWithLogger())
	engine.Use(corsMiddleware(cfg))
	engine.Use(bodyLimit(cfg.Security.MaxBodySize))

	r := &Router{
		Engine:    engine,
		Container: container,
		Logger:    container.Logger,
		Hub:       ws.NewHub(container.Sessions, cfg.Security.AllowedOrigins, container.Logger),
		Config:    cfg,
		RateLimiter: middleware.NewRateLimiter(container.Logger, middleware.RateLimiterOptions{
			Limit:          rate.Limit(cfg.Security.RateLimit),
			Burst:          cfg.Security.RateLimitBurst,
			ExpiryDuration: time.Hour,
			KeyFunc:        middleware.UserOrIPKey,
		}),
	}

	if cfg.OpenAPI.Validate {
		if err := r.AddOpenAPIValidation(api.OpenAPI); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// SetupRoutes registers all application routes
func (r *Router) SetupRoutes() {
	r.setupHealthRoutes()
	r.setupDocsRoutes(api.OpenAPI)

	jwtAuth := middleware.JWTAuthMiddleware(r.Container.JWT, r.Logger)

	wizardHandler := companionapi.NewWizardHandler(r.Container.Wizard)
	companionHandler := companionapi.NewCompanionHandler(r.Container.Sessions)

	v1 := r.Engine.Group("/api/v1")
	v1.GET("/health", gin.WrapF(r.Container.Health.HTTPHandler()))

	// Limits are keyed by user, so the limiter runs after authentication
	protected := v1.Group("")
	protected.Use(jwtAuth, r.RateLimiter.Middleware())
	{
		wizardHandler.RegisterRoutes(protected)
		companionHandler.RegisterRoutes(protected)
	}

	// Browsers cannot set headers on a websocket handshake, so the token
	// may come in the query string
	r.Engine.GET("/ws", jwtAuth, func(c *gin.Context) {
		ws.ServeWs(r.Hub, c)
	})
}

// MountMetrics serves h on /metrics
func (r *Router) MountMetrics(h http.Handler) {
	r.Engine.GET("/metrics", gin.WrapH(h))
}

// RunHub subscribes the websocket hub to the event bus until ctx is done
func (r *Router) RunHub(ctx context.Context) error {
	events, err := r.Container.Bus.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("hub subscription: %w", err)
	}
	go r.Hub.Run(ctx, events)
	return nil
}

// Close stops background work owned by the router
func (r *Router) Close() {
	r.RateLimiter.Stop()
}

func corsMiddleware(cfg *config.Config) gin.HandlerFunc {
	corsCfg := cors.DefaultConfig()
	corsCfg.AllowOrigins = cfg.Security.AllowedOrigins
	corsCfg.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsCfg.AllowHeaders = []string{
		"Origin", "Content-Type", "Content-Length", "Accept", "Authorization",
		middleware.TabIDHeader, "X-Request-ID", "Upgrade", "Connection",
	}
	corsCfg.ExposeHeaders = []string{"X-Request-ID", "Retry-After"}
	corsCfg.AllowCredentials = true
	corsCfg.MaxAge = 24 * time.Hour
	return cors.New(corsCfg)
}

func bodyLimit(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limit > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}
		c.Next()
	}
}
