package bootstrap

import (
	"github.com/danielkropka/social-flow-sub001/internal/config"
	"github.com/danielkropka/social-flow-sub001/internal/middleware"
	"github.com/danielkropka/social-flow-sub001/internal/ratelimit"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// rateLimitMiddlewares holds one middleware per endpoint class
type rateLimitMiddlewares struct {
	login gin.HandlerFunc
	api   gin.HandlerFunc
}

// initializeRateLimitCounter picks the counter store. Nil when rate
// limiting is disabled.
func initializeRateLimitCounter(cfg *config.Config, redisClient *redis.Client) ratelimit.Counter {
	switch {
	case !cfg.EnableRateLimit:
		return nil
	case redisClient != nil:
		return ratelimit.NewRedisCounter(redisClient)
	default:
		return ratelimit.NewMemoryCounter()
	}
}

// setupRateLimiting builds the per-route limiters, or no-ops when disabled.
func setupRateLimiting(app *Application) rateLimitMiddlewares {
	if app.RateLimitCounter == nil {
		noOp := func(c *gin.Context) { c.Next() }
		app.Log.Info("rate limiting disabled")
		return rateLimitMiddlewares{login: noOp, api: noOp}
	}

	app.Log.Info("rate limiting enabled", zap.String("store", app.Config.RateLimitStore))
	limiter := ratelimit.New(app.RateLimitCounter)

	create := func(policy ratelimit.Policy, key middleware.KeyFunc) gin.HandlerFunc {
		return middleware.RateLimit(middleware.RateLimitConfig{
			Limiter: limiter,
			Policy:  policy,
			Key:     key,
			Metrics: app.MetricsRecorder,
			Audit:   app.AuditService,
			Logger:  app.Log,
		})
	}

	return rateLimitMiddlewares{
		login: create(ratelimit.PolicyAuth, middleware.EmailKey),
		api:   create(ratelimit.PolicyDefault, middleware.ClientIPKey),
	}
}
