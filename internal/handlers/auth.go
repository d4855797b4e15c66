package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/danielkropka/social-flow-sub001/internal/middleware"
	"github.com/danielkropka/social-flow-sub001/internal/services"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

type AuthHandler struct {
	userService *services.UserService
}

func NewAuthHandler(us *services.UserService) *AuthHandler {
	return &AuthHandler{userService: us}
}

type loginRequest struct {
	Email    string `json:"email"    binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login verifies email and password and starts a session.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	// The rate limiter may already have read the body.
	if err := c.ShouldBindBodyWith(&req, binding.JSON); err != nil {
		respondBadRequest(c, "email and password are required")
		return
	}

	user, err := h.userService.Authenticate(
		c.Request.Context(),
		strings.TrimSpace(req.Email),
		req.Password,
	)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":             "invalid_credentials",
				"error_description": "Invalid email or password",
			})
			return
		}
		respondError(c, err)
		return
	}

	session := sessions.Default(c)
	session.Clear()
	session.Set(middleware.SessionUserID, user.ID)
	if err := session.Save(); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}

// Logout ends the session.
func (h *AuthHandler) Logout(c *gin.Context) {
	userID := middleware.GetUserID(c)

	session := sessions.Default(c)
	session.Clear()
	session.Options(sessions.Options{Path: "/", MaxAge: -1})
	if err := session.Save(); err != nil {
		respondError(c, err)
		return
	}

	if userID != "" {
		h.userService.Logout(c.Request.Context(), userID)
	}
	c.JSON(http.StatusOK, gin.H{"status": "logged_out"})
}
