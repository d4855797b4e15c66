package middleware

import (
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/danielkropka/social-flow-sub001/internal/core"
	"github.com/danielkropka/social-flow-sub001/internal/models"
	"github.com/danielkropka/social-flow-sub001/internal/ratelimit"
	"github.com/danielkropka/social-flow-sub001/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.uber.org/zap"
)

// KeyFunc derives the rate limit subject of a request.
type KeyFunc func(c *gin.Context) string

// RateLimitConfig wires one policy onto a route group.
type RateLimitConfig struct {
	Limiter *ratelimit.Limiter
	Policy  ratelimit.Policy
	Key     KeyFunc // defaults to ClientIPKey
	Metrics core.Recorder
	Audit   services.AuditLogger // optional
	Logger  *zap.Logger
}

// RateLimit rejects requests over the policy budget with 429 and a
// Retry-After header. When the counter store fails the request is let
// through and a warning is logged.
func RateLimit(cfg RateLimitConfig) gin.HandlerFunc {
	keyFn := cfg.Key
	if keyFn == nil {
		keyFn = ClientIPKey
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("component", "ratelimit"), zap.String("policy", cfg.Policy.Name))

	return func(c *gin.Context) {
		subject := keyFn(c)
		if subject == "" {
			c.Next()
			return
		}

		allowed, err := cfg.Limiter.Allow(
			c.Request.Context(),
			cfg.Policy.Key(subject),
			cfg.Policy.MaxRequests,
			cfg.Policy.Window,
		)
		if err != nil {
			log.Warn("rate limit store unavailable, allowing request", zap.Error(err))
			c.Next()
			return
		}
		if allowed {
			c.Next()
			return
		}

		retryAfter := int(math.Ceil(cfg.Limiter.RetryAfter(cfg.Policy.Window).Seconds()))

		if cfg.Metrics != nil {
			cfg.Metrics.RecordRateLimitRejection(cfg.Policy.Name)
		}
		if cfg.Audit != nil {
			cfg.Audit.Log(c.Request.Context(), services.AuditLogEntry{
				EventType:    models.EventRateLimitExceeded,
				Severity:     models.SeverityWarning,
				ResourceType: models.ResourceUser,
				Action:       "Rate limit exceeded",
				Details: models.AuditDetails{
					"policy": cfg.Policy.Name,
					"path":   c.FullPath(),
				},
				Success: false,
			})
		}

		c.Header("Retry-After", strconv.Itoa(retryAfter))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error":             "rate_limit_exceeded",
			"error_description": "Too many requests. Please try again later.",
			"retryAfter":        retryAfter,
		})
	}
}

// ClientIPKey keys requests by client IP.
func ClientIPKey(c *gin.Context) string {
	return c.ClientIP()
}

// EmailKey keys login attempts by the submitted email, falling back to the
// client IP when none is present. JSON bodies stay readable by the handler
// through ShouldBindBodyWith.
func EmailKey(c *gin.Context) string {
	var email string
	if strings.HasPrefix(c.ContentType(), binding.MIMEJSON) {
		var body struct {
			Email string `json:"email"`
		}
		if err := c.ShouldBindBodyWith(&body, binding.JSON); err == nil {
			email = body.Email
		}
	} else {
		email = c.PostForm("email")
	}

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "ip:" + c.ClientIP()
	}
	return "email:" + email
}
