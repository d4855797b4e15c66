package middleware

import (
	"net/http"

	"github.com/danielkropka/social-flow-sub001/internal/util"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

const (
	csrfTokenKey    = "csrf_token"
	CSRFHeaderField = "X-CSRF-Token"
)

// CSRFMiddleware protects cookie-authenticated state-changing requests.
// Every response carries the session's token in the X-CSRF-Token header,
// and POST, PUT, PATCH and DELETE requests must echo it back in the same header.
func CSRFMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)

		token, _ := session.Get(csrfTokenKey).(string)
		if token == "" {
			var err error
			if token, err = util.RandomState(); err != nil {
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error":             "server_error",
					"error_description": "Failed to generate CSRF token",
				})
				return
			}
			session.Set(csrfTokenKey, token)
			if err := session.Save(); err != nil {
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error":             "server_error",
					"error_description": "Failed to save CSRF token",
				})
				return
			}
		}

		c.Set(csrfTokenKey, token)
		c.Header(CSRFHeaderField, token)

		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
			submitted := c.GetHeader(CSRFHeaderField)
			if submitted == "" || !util.SecureEqual(submitted, token) {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
					"error":             "csrf_failed",
					"error_description": "CSRF token validation failed",
				})
				return
			}
		}

		c.Next()
	}
}

// GetCSRFToken retrieves the CSRF token from the context
func GetCSRFToken(c *gin.Context) string {
	return c.GetString(csrfTokenKey)
}
