package bootstrap

import (
	"context"
	"net/http"
	"time"

	"github.com/danielkropka/social-flow-sub001/internal/config"
	"github.com/danielkropka/social-flow-sub001/internal/metrics"
	"github.com/danielkropka/social-flow-sub001/internal/middleware"
	"github.com/danielkropka/social-flow-sub001/internal/store"
	"github.com/danielkropka/social-flow-sub001/internal/util"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const sessionCookieName = "sf_session"

// setupRouter configures the Gin router with all routes and middleware
func setupRouter(app *Application) *gin.Engine {
	cfg := app.Config

	// Setup Gin mode
	setupGinMode(cfg, app.Log)
	r := gin.New()

	// Setup middleware
	r.Use(metrics.HTTPMetricsMiddleware(app.MetricsRecorder))
	r.Use(middleware.RequestLogger(app.Log), gin.Recovery())
	r.Use(util.IPMiddleware())

	// Setup session middleware
	setupSessionMiddleware(r, cfg)

	// Health check endpoint
	r.GET("/health", createHealthCheckHandler(app.DB, app.RateLimitRedisClient))

	// Setup metrics endpoint
	setupMetricsEndpoint(r, cfg, app.Log)

	// Setup rate limiting
	rateLimiters := setupRateLimiting(app)

	// Setup all routes
	setupAllRoutes(r, cfg, app.HandlerSet, rateLimiters)

	app.Log.Info("connect service configured",
		zap.String("addr", cfg.ServerAddr),
		zap.String("base_url", cfg.BaseURL),
		zap.String("frontend_url", cfg.FrontendURL))
	return r
}

// setupSessionMiddleware configures session handling middleware
func setupSessionMiddleware(r *gin.Engine, cfg *config.Config) {
	sessionStore := cookie.NewStore([]byte(cfg.SessionSecret))
	sessionStore.Options(sessions.Options{
		Path:     "/",
		MaxAge:   cfg.SessionMaxAge,
		HttpOnly: true,
		Secure:   cfg.IsProduction,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions(sessionCookieName, sessionStore))
}

// setupMetricsEndpoint configures the Prometheus metrics endpoint
func setupMetricsEndpoint(r *gin.Engine, cfg *config.Config, log *zap.Logger) {
	switch {
	case !cfg.MetricsEnabled:
		log.Info("prometheus metrics endpoint disabled")
	case cfg.MetricsToken != "":
		log.Info("prometheus metrics enabled at /metrics with bearer token authentication")
		r.GET(
			"/metrics",
			middleware.MetricsAuthMiddleware(cfg.MetricsToken),
			gin.WrapH(promhttp.Handler()),
		)
	default:
		log.Info("prometheus metrics enabled at /metrics without authentication")
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}
}

// setupAllRoutes configures all application routes
func setupAllRoutes(
	r *gin.Engine,
	cfg *config.Config,
	h handlerSet,
	rateLimiters rateLimitMiddlewares,
) {
	requireAuth := middleware.RequireAuth(h.userService)

	// Session routes
	r.POST("/login", rateLimiters.login, h.auth.Login)
	r.POST("/logout", requireAuth, h.auth.Logout)

	// Provider connect flow (browser navigation, no CSRF header available)
	connect := r.Group("/connect")
	connect.Use(requireAuth, rateLimiters.api)
	{
		connect.GET("/:provider", h.connect.Initiate)
		connect.GET("/:provider/callback", h.connect.Callback)
	}

	// Account API (requires login + CSRF)
	api := r.Group("/api")
	api.Use(requireAuth, middleware.CSRFMiddleware(), rateLimiters.api)
	{
		api.GET("/accounts", h.accounts.List)
		api.GET("/accounts/:id", h.accounts.Get)
		api.GET("/accounts/:id/history", h.accounts.History)
		api.DELETE("/accounts/:id", h.accounts.Delete)
		api.POST("/accounts/refresh-stats", h.accounts.RefreshStats)
	}

	// Scheduler endpoints
	cron := r.Group("/internal/cron")
	cron.Use(middleware.CronAuthMiddleware(cfg.CronSecret))
	{
		cron.POST("/refresh-stats", h.cron.RefreshStats)
		cron.POST("/refresh-tokens", h.cron.RefreshTokens)
	}
}

// createHealthCheckHandler reports database and, when configured, redis health.
func createHealthCheckHandler(db *store.Store, redisClient *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		body := gin.H{"status": "healthy", "database": "connected"}
		status := http.StatusOK

		if err := db.Health(); err != nil {
			body["status"] = "unhealthy"
			body["database"] = "disconnected"
			status = http.StatusServiceUnavailable
		}

		if redisClient != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := redisClient.Ping(ctx).Err(); err != nil {
				body["status"] = "unhealthy"
				body["redis"] = "disconnected"
				status = http.StatusServiceUnavailable
			} else {
				body["redis"] = "connected"
			}
		}

		c.JSON(status, body)
	}
}

// setupGinMode sets Gin mode based on environment configuration
func setupGinMode(cfg *config.Config, log *zap.Logger) {
	mode := ginModeMap[cfg.IsProduction]
	gin.SetMode(mode)
	log.Info("gin mode", zap.String("mode", mode))
}

var ginModeMap = map[bool]string{
	true:  gin.ReleaseMode,
	false: gin.DebugMode,
}
