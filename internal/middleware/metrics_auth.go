package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// MetricsAuthMiddleware protects the metrics endpoint with a Bearer token.
// An empty token leaves the endpoint open.
func MetricsAuthMiddleware(token string) gin.HandlerFunc {
	if token == "" {
		return func(c *gin.Context) { c.Next() }
	}
	return bearerAuth("Metrics", token)
}

// CronAuthMiddleware protects the cron entry points with the shared cron
// secret. Without a configured secret every call is rejected.
func CronAuthMiddleware(secret string) gin.HandlerFunc {
	if secret == "" {
		return func(c *gin.Context) {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"error":             "cron_disabled",
				"error_description": "CRON_SECRET is not configured",
			})
		}
	}
	return bearerAuth("Cron", secret)
}

func bearerAuth(realm, token string) gin.HandlerFunc {
	challenge := `Bearer realm="` + realm + `"`

	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")

		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			c.Header("WWW-Authenticate", challenge)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":             "unauthorized",
				"error_description": "Bearer token required",
			})
			return
		}

		providedToken := strings.TrimPrefix(authHeader, "Bearer ")

		// Constant-time comparison to prevent timing attacks
		if subtle.ConstantTimeCompare([]byte(providedToken), []byte(token)) != 1 {
			c.Header("WWW-Authenticate", challenge)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":             "unauthorized",
				"error_description": "Invalid token",
			})
			return
		}

		c.Next()
	}
}
