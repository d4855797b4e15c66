package util

import (
	"context"

	"github.com/gin-gonic/gin"
)

type contextKey int

const (
	clientIPKey contextKey = iota
	userIDKey
)

// IPMiddleware copies the client IP into the request context so services
// that only receive a context.Context can still attribute audit events.
func IPMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request = c.Request.WithContext(SetIPContext(c.Request.Context(), c.ClientIP()))
		c.Next()
	}
}

// SetIPContext stores the client IP in ctx. Empty values are ignored.
func SetIPContext(ctx context.Context, ip string) context.Context {
	if ip == "" {
		return ctx
	}
	return context.WithValue(ctx, clientIPKey, ip)
}

// GetIPFromContext extracts the client IP address from the context
func GetIPFromContext(ctx context.Context) string {
	if ginCtx, ok := ctx.(*gin.Context); ok {
		return ginCtx.ClientIP()
	}
	if ip, ok := ctx.Value(clientIPKey).(string); ok {
		return ip
	}
	return ""
}

// SetUserIDContext stores the authenticated user ID in ctx.
func SetUserIDContext(ctx context.Context, userID string) context.Context {
	if userID == "" {
		return ctx
	}
	return context.WithValue(ctx, userIDKey, userID)
}

// GetUserIDFromContext returns the authenticated user ID, or "" for anonymous requests.
func GetUserIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(userIDKey).(string); ok {
		return id
	}
	return ""
}
