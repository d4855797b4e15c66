package handlers

import (
	"net/http"

	"github.com/danielkropka/social-flow-sub001/internal/services"

	"github.com/gin-gonic/gin"
)

// CronHandler is the entry point for the external scheduler.
type CronHandler struct {
	stats  *services.StatsRefresher
	tokens *services.TokenRefreshService
}

func NewCronHandler(sr *services.StatsRefresher, tr *services.TokenRefreshService) *CronHandler {
	return &CronHandler{stats: sr, tokens: tr}
}

// RefreshStats refreshes every active account.
func (h *CronHandler) RefreshStats(c *gin.Context) {
	results, err := h.stats.Refresh(c.Request.Context(), services.RefreshRequest{
		Scope: services.ScopeAllActive,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, refreshResponse(services.ScopeAllActive, results))
}

// RefreshTokens renews tokens that expire within the refresh window.
func (h *CronHandler) RefreshTokens(c *gin.Context) {
	results, err := h.tokens.RefreshExpiring(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	refreshed, failed := 0, 0
	for _, r := range results {
		switch r.Status {
		case services.RefreshSuccess:
			refreshed++
		case services.RefreshError:
			failed++
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"targets":   len(results),
		"refreshed": refreshed,
		"failed":    failed,
		"results":   results,
	})
}
