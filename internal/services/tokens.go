package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/danielkropka/social-flow-sub001/internal/auth"
	"github.com/danielkropka/social-flow-sub001/internal/core"
	"github.com/danielkropka/social-flow-sub001/internal/models"
	"github.com/danielkropka/social-flow-sub001/internal/store"
	"github.com/danielkropka/social-flow-sub001/internal/util"

	"go.uber.org/zap"
)

const DefaultTokenRefreshWindow = 7 * 24 * time.Hour

// TokenRefreshResult is the outcome of renewing one account's tokens.
type TokenRefreshResult struct {
	AccountID string          `json:"account_id"`
	Provider  models.Provider `json:"provider"`
	Status    RefreshStatus   `json:"status"`
	ExpiresAt *time.Time      `json:"expires_at,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// TokenRefreshService renews provider tokens that are about to expire.
type TokenRefreshService struct {
	store    *store.Store
	registry *auth.Registry
	cipher   *util.TokenCipher
	metrics  core.Recorder
	audit    AuditLogger
	window   time.Duration
	log      *zap.Logger
	now      func() time.Time
}

func NewTokenRefreshService(
	s *store.Store,
	registry *auth.Registry,
	cipher *util.TokenCipher,
	m core.Recorder,
	audit AuditLogger,
	window time.Duration,
	log *zap.Logger,
) *TokenRefreshService {
	if window <= 0 {
		window = DefaultTokenRefreshWindow
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &TokenRefreshService{
		store:    s,
		registry: registry,
		cipher:   cipher,
		metrics:  m,
		audit:    audit,
		window:   window,
		log:      log.With(zap.String("component", "token_refresh")),
		now:      time.Now,
	}
}

// RefreshExpiring renews every ACTIVE account whose token expires within the
// refresh window. Per-account failures are reported in the results.
func (s *TokenRefreshService) RefreshExpiring(ctx context.Context) ([]TokenRefreshResult, error) {
	accounts, err := s.store.ListAccountsExpiringBefore(ctx, s.now().Add(s.window))
	if err != nil {
		s.metrics.RecordDatabaseQueryError("list_expiring_accounts")
		return nil, fmt.Errorf("failed to list expiring accounts: %w", err)
	}

	results := make([]TokenRefreshResult, 0, len(accounts))
	for i := range accounts {
		results = append(results, s.refreshOne(ctx, &accounts[i]))
	}
	return results, nil
}

func (s *TokenRefreshService) refreshOne(ctx context.Context, acct *models.ConnectedAccount) TokenRefreshResult {
	result := TokenRefreshResult{AccountID: acct.ID, Provider: acct.Provider}

	var refresher auth.TokenRefresher
	if ex, ok := s.registry.Get(acct.Provider); ok {
		refresher, _ = ex.(auth.TokenRefresher)
	}
	if refresher == nil {
		result.Status = RefreshNotSupported
		return result
	}

	fail := func(cause error, markErrored bool) TokenRefreshResult {
		s.metrics.RecordTokenRefresh(acct.Provider.Slug(), false)
		result.Status = RefreshError
		result.Error = cause.Error()
		if err := s.store.RecordAccountError(ctx, acct.ID, cause.Error(), s.now(), markErrored); err != nil {
			s.log.Error("failed to record account error", zap.String("account_id", acct.ID), zap.Error(err))
		}
		fields := []zap.Field{
			zap.String("account_id", acct.ID),
			zap.String("provider", acct.Provider.Slug()),
			zap.Error(cause),
		}
		if body := auth.UpstreamBody(cause); body != "" {
			fields = append(fields, zap.String("upstream_body", body))
		}
		s.log.Warn("token refresh failed", fields...)
		return result
	}

	creds, err := decryptCredentials(s.cipher, acct)
	if err != nil {
		return fail(err, true)
	}

	tokens, err := refresher.RefreshTokens(ctx, creds)
	if err != nil {
		var pe *auth.ProviderError
		return fail(err, errors.As(err, &pe) && pe.IsAuthFailure())
	}

	access, err := s.cipher.Encrypt(tokens.AccessToken)
	if err != nil {
		return fail(err, false)
	}
	refresh, err := s.cipher.Encrypt(tokens.RefreshToken)
	if err != nil {
		return fail(err, false)
	}

	if err := s.store.UpdateAccountTokens(ctx, acct.ID, access, refresh, tokens.ExpiresAt); err != nil {
		s.metrics.RecordDatabaseQueryError("update_account_tokens")
		return fail(err, false)
	}

	s.metrics.RecordTokenRefresh(acct.Provider.Slug(), true)
	s.audit.Log(ctx, AuditLogEntry{
		EventType:    models.EventProviderTokenRefreshed,
		Severity:     models.SeverityInfo,
		ActorUserID:  acct.UserID,
		ResourceType: models.ResourceConnectedAccount,
		ResourceID:   acct.ID,
		Provider:     acct.Provider,
		Action:       "Provider token refreshed",
		Success:      true,
	})

	result.Status = RefreshSuccess
	result.ExpiresAt = tokens.ExpiresAt
	return result
}
