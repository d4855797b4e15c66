package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielkropka/social-flow-sub001/internal/models"
	"github.com/danielkropka/social-flow-sub001/internal/services"
	"github.com/danielkropka/social-flow-sub001/internal/util"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

const (
	SessionUserID = "user_id"

	contextUserID = "user_id"
	contextUser   = "user"
)

// UserGetter loads the session principal.
type UserGetter interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// RequireAuth rejects requests without a logged-in, active user with a 401
// JSON body. Lookup failures other than a missing user answer 500 and leave
// the session intact. The user ID is copied into the request context for services.
func RequireAuth(users UserGetter) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		userID, _ := session.Get(SessionUserID).(string)

		if userID == "" {
			abortUnauthorized(c, "Login required")
			return
		}

		user, err := users.GetUserByID(c.Request.Context(), userID)
		switch {
		case errors.Is(err, services.ErrUserNotFound), err == nil && !user.IsActive:
			// Stale session for a deleted or disabled user.
			session.Clear()
			_ = session.Save()
			abortUnauthorized(c, "Login required")
			return
		case err != nil:
			// Keep the session; the lookup may succeed on retry.
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error":             "server_error",
				"error_description": "Failed to load the session user",
			})
			return
		}

		c.Set(contextUserID, userID)
		c.Set(contextUser, user)
		c.Request = c.Request.WithContext(util.SetUserIDContext(c.Request.Context(), userID))
		c.Next()
	}
}

// GetUserID returns the authenticated user ID set by RequireAuth.
func GetUserID(c *gin.Context) string {
	return c.GetString(contextUserID)
}

// GetUser returns the authenticated user set by RequireAuth.
func GetUser(c *gin.Context) *models.User {
	if v, ok := c.Get(contextUser); ok {
		if u, ok := v.(*models.User); ok {
			return u
		}
	}
	return nil
}

func abortUnauthorized(c *gin.Context, description string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error":             "unauthorized",
		"error_description": description,
	})
}
