package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/danielkropka/social-flow-sub001/internal/auth"
	"github.com/danielkropka/social-flow-sub001/internal/middleware"
	"github.com/danielkropka/social-flow-sub001/internal/models"
	"github.com/danielkropka/social-flow-sub001/internal/services"
	"github.com/danielkropka/social-flow-sub001/internal/util"

	"github.com/gin-gonic/gin"
)

const stateCookieName = "oauth_state"

// ConnectHandler serves the browser side of the connect flow.
type ConnectHandler struct {
	connect      *services.ConnectService
	frontendURL  string
	stateTTL     time.Duration
	secureCookie bool
}

func NewConnectHandler(
	cs *services.ConnectService,
	frontendURL string,
	stateTTL time.Duration,
	secureCookie bool,
) *ConnectHandler {
	return &ConnectHandler{
		connect:      cs,
		frontendURL:  strings.TrimRight(frontendURL, "/"),
		stateTTL:     stateTTL,
		secureCookie: secureCookie,
	}
}

// Initiate starts connecting :provider for the logged-in user. Browsers are
// redirected to the provider; clients sending Accept: application/json get
// the authorize URL instead.
func (h *ConnectHandler) Initiate(c *gin.Context) {
	provider, ok := models.ParseProvider(c.Param("provider"))
	if !ok {
		respondError(c, notConfigured(c.Param("provider")))
		return
	}

	result, err := h.connect.Initiate(
		c.Request.Context(),
		middleware.GetUserID(c),
		provider,
		c.Query("redirect"),
	)
	if err != nil {
		respondError(c, err)
		return
	}

	if result.State != "" {
		h.setStateCookie(c, provider, result.State, int(h.stateTTL.Seconds()))
	}

	if wantsJSON(c) {
		c.JSON(http.StatusOK, gin.H{
			"provider":      provider.Slug(),
			"authorize_url": result.AuthorizeURL,
		})
		return
	}
	c.Redirect(http.StatusFound, result.AuthorizeURL)
}

// Callback completes the connect attempt and sends the browser back to the
// frontend with ?connected=<provider> or ?error=<code>.
func (h *ConnectHandler) Callback(c *gin.Context) {
	slug := c.Param("provider")
	provider, ok := models.ParseProvider(slug)
	if !ok {
		c.Redirect(http.StatusFound, h.frontendRedirect("", "error", services.CodeProviderNotConfigured))
		return
	}

	cookieState, _ := c.Cookie(stateCookieName)
	// The state cookie is single use.
	h.setStateCookie(c, provider, "", -1)

	result, err := h.connect.Complete(
		c.Request.Context(),
		middleware.GetUserID(c),
		provider,
		callbackParams(c),
		cookieState,
	)
	if err != nil {
		code, redirectTo := services.CodeProviderUnavailable, ""
		var ce *services.ConnectError
		if errors.As(err, &ce) {
			code, redirectTo = ce.Code, ce.RedirectTo
		}
		c.Redirect(http.StatusFound, h.frontendRedirect(redirectTo, "error", code))
		return
	}

	c.Redirect(http.StatusFound, h.frontendRedirect(result.RedirectTo, "connected", provider.Slug()))
}

func (h *ConnectHandler) setStateCookie(c *gin.Context, provider models.Provider, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(stateCookieName, value, maxAge, "/connect/"+provider.Slug(), "", h.secureCookie, true)
}

func (h *ConnectHandler) frontendRedirect(path, key, value string) string {
	if path = util.SafeRedirectPath(path); path == "" {
		path = "/"
	}
	return util.AppendQuery(h.frontendURL+path, key, value)
}

func callbackParams(c *gin.Context) auth.CallbackParams {
	return auth.CallbackParams{
		Code:             c.Query("code"),
		State:            c.Query("state"),
		OAuthToken:       c.Query("oauth_token"),
		OAuthVerifier:    c.Query("oauth_verifier"),
		Denied:           c.Query("denied"),
		Error:            c.Query("error"),
		ErrorReason:      c.Query("error_reason"),
		ErrorDescription: c.Query("error_description"),
	}
}

func notConfigured(slug string) *services.ConnectError {
	return &services.ConnectError{
		Stage:   services.StageInitiate,
		Kind:    services.KindConfiguration,
		Code:    services.CodeProviderNotConfigured,
		Message: "provider " + strings.ToLower(slug) + " is not supported",
		Err:     services.ErrProviderNotConfigured,
	}
}

func wantsJSON(c *gin.Context) bool {
	return strings.Contains(c.GetHeader("Accept"), "application/json")
}
