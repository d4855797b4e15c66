package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/danielkropka/social-flow-sub001/internal/middleware"
	"github.com/danielkropka/social-flow-sub001/internal/models"
	"github.com/danielkropka/social-flow-sub001/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// AccountHistory reads audit entries recorded against one resource.
type AccountHistory interface {
	ResourceHistory(
		ctx context.Context,
		resourceType models.ResourceType,
		resourceID string,
		limit int,
	) ([]models.AuditLog, error)
}

// AccountHandler exposes the logged-in user's connected accounts.
type AccountHandler struct {
	connect *services.ConnectService
	stats   *services.StatsRefresher
	history AccountHistory
}

func NewAccountHandler(
	cs *services.ConnectService,
	sr *services.StatsRefresher,
	history AccountHistory,
) *AccountHandler {
	return &AccountHandler{connect: cs, stats: sr, history: history}
}

// List returns the user's ACTIVE and ERROR accounts. Credentials are never serialized.
func (h *AccountHandler) List(c *gin.Context) {
	accounts, err := h.connect.ListAccounts(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"accounts": accounts})
}

func (h *AccountHandler) Get(c *gin.Context) {
	acct, err := h.connect.GetAccount(c.Request.Context(), middleware.GetUserID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"account": acct})
}

// History returns the newest audit entries of one of the user's accounts,
// newest first. ?limit caps the page size.
func (h *AccountHandler) History(c *gin.Context) {
	ctx := c.Request.Context()
	acct, err := h.connect.GetAccount(ctx, middleware.GetUserID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxHistoryLimit {
			respondBadRequest(c, "limit must be between 1 and "+strconv.Itoa(maxHistoryLimit))
			return
		}
		limit = n
	}

	entries, err := h.history.ResourceHistory(ctx, models.ResourceConnectedAccount, acct.ID, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": entries})
}

// Delete disconnects the account.
func (h *AccountHandler) Delete(c *gin.Context) {
	if err := h.connect.Disconnect(c.Request.Context(), middleware.GetUserID(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type refreshStatsRequest struct {
	AccountID string `json:"account_id"`
}

// RefreshStats refreshes one account when account_id is given, otherwise
// every active account of the user.
func (h *AccountHandler) RefreshStats(c *gin.Context) {
	var body refreshStatsRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindBodyWith(&body, binding.JSON); err != nil {
			respondBadRequest(c, "Invalid JSON body")
			return
		}
	}

	req := services.RefreshRequest{
		Scope:  services.ScopeAllForUser,
		UserID: middleware.GetUserID(c),
	}
	if body.AccountID != "" {
		req.Scope = services.ScopeSingleAccount
		req.AccountID = body.AccountID
	}

	results, err := h.stats.Refresh(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, services.ErrInvalidScope) {
			respondBadRequest(c, err.Error())
			return
		}
		respondError(c, err)
		return
	}
	if req.Scope == services.ScopeSingleAccount && len(results) == 0 {
		c.JSON(http.StatusNotFound, gin.H{
			"error":             services.CodeAccountNotFound,
			"error_description": "No active account with this id",
		})
		return
	}

	c.JSON(http.StatusOK, refreshResponse(req.Scope, results))
}

func refreshResponse(scope services.RefreshScope, results []services.RefreshResult) gin.H {
	counts := map[services.RefreshStatus]int{}
	for _, r := range results {
		counts[r.Status]++
	}
	return gin.H{
		"scope":         scope,
		"targets":       len(results),
		"succeeded":     counts[services.RefreshSuccess],
		"failed":        counts[services.RefreshError],
		"not_supported": counts[services.RefreshNotSupported],
		"results":       results,
	}
}
