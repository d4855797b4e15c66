package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/danielkropka/social-flow-sub001/internal/auth"
	"github.com/danielkropka/social-flow-sub001/internal/core"
	"github.com/danielkropka/social-flow-sub001/internal/models"
	"github.com/danielkropka/social-flow-sub001/internal/store"
	"github.com/danielkropka/social-flow-sub001/internal/util"

	"go.uber.org/zap"
)

// RefreshScope selects the accounts a stats refresh covers.
type RefreshScope string

const (
	ScopeSingleAccount RefreshScope = "single-account"
	ScopeAllForUser    RefreshScope = "all-for-user"
	ScopeAllActive     RefreshScope = "all-active"
)

// RefreshStatus is the per-account outcome of a refresh.
type RefreshStatus string

const (
	RefreshSuccess      RefreshStatus = "success"
	RefreshError        RefreshStatus = "error"
	RefreshNotSupported RefreshStatus = "not_supported"
)

// RefreshRequest describes one stats refresh run.
type RefreshRequest struct {
	Scope     RefreshScope
	UserID    string
	AccountID string
}

// RefreshResult is the outcome for one account.
type RefreshResult struct {
	AccountID      string          `json:"account_id"`
	Provider       models.Provider `json:"provider"`
	Status         RefreshStatus   `json:"status"`
	FollowersCount int64           `json:"followers_count,omitempty"`
	PostsCount     int64           `json:"posts_count,omitempty"`
	Error          string          `json:"error,omitempty"`
}

// StatsRefresher pulls engagement counters from the providers into the
// account cache. Credentials are read, never written.
type StatsRefresher struct {
	store       *store.Store
	registry    *auth.Registry
	cipher      *util.TokenCipher
	metrics     core.Recorder
	audit       AuditLogger
	log         *zap.Logger
	concurrency int
	now         func() time.Time
}

func NewStatsRefresher(
	s *store.Store,
	registry *auth.Registry,
	cipher *util.TokenCipher,
	m core.Recorder,
	audit AuditLogger,
	concurrency int,
	log *zap.Logger,
) *StatsRefresher {
	if concurrency < 1 {
		concurrency = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &StatsRefresher{
		store:       s,
		registry:    registry,
		cipher:      cipher,
		metrics:     m,
		audit:       audit,
		log:         log.With(zap.String("component", "stats")),
		concurrency: concurrency,
		now:         time.Now,
	}
}

func (req RefreshRequest) filter() (store.RefreshFilter, error) {
	switch req.Scope {
	case ScopeSingleAccount:
		if req.AccountID == "" {
			return store.RefreshFilter{}, fmt.Errorf("%w: %s requires an account id", ErrInvalidScope, req.Scope)
		}
		return store.RefreshFilter{UserID: req.UserID, AccountID: req.AccountID}, nil
	case ScopeAllForUser:
		if req.UserID == "" {
			return store.RefreshFilter{}, fmt.Errorf("%w: %s requires a user id", ErrInvalidScope, req.Scope)
		}
		return store.RefreshFilter{UserID: req.UserID}, nil
	case ScopeAllActive:
		return store.RefreshFilter{}, nil
	default:
		return store.RefreshFilter{}, fmt.Errorf("%w: %q", ErrInvalidScope, req.Scope)
	}
}

// Refresh updates the counters of every ACTIVE account in scope and returns
// one result per account, in target order. A failing account never aborts
// the run; the error return is reserved for an invalid scope or a failed
// target lookup.
func (r *StatsRefresher) Refresh(ctx context.Context, req RefreshRequest) ([]RefreshResult, error) {
	filter, err := req.filter()
	if err != nil {
		return nil, err
	}

	targets, err := r.store.ListRefreshTargets(ctx, filter)
	if err != nil {
		r.metrics.RecordDatabaseQueryError("list_refresh_targets")
		return nil, fmt.Errorf("failed to list refresh targets: %w", err)
	}

	results := make([]RefreshResult, len(targets))
	if r.concurrency == 1 || len(targets) < 2 {
		for i := range targets {
			results[i] = r.refreshOne(ctx, &targets[i])
		}
	} else {
		sem := make(chan struct{}, r.concurrency)
		var wg sync.WaitGroup
		for i := range targets {
			wg.Add(1)
			sem <- struct{}{}
			go func(i int) {
				defer wg.Done()
				defer func() { <-sem }()
				results[i] = r.refreshOne(ctx, &targets[i])
			}(i)
		}
		wg.Wait()
	}

	r.logSummary(ctx, req, results)
	return results, nil
}

func (r *StatsRefresher) refreshOne(ctx context.Context, acct *models.ConnectedAccount) RefreshResult {
	result := RefreshResult{AccountID: acct.ID, Provider: acct.Provider}
	defer func() {
		r.metrics.RecordStatsRefresh(acct.Provider.Slug(), string(result.Status))
	}()

	var fetcher auth.MetricsFetcher
	if ex, ok := r.registry.Get(acct.Provider); ok {
		fetcher, _ = ex.(auth.MetricsFetcher)
	}
	if fetcher == nil {
		result.Status = RefreshNotSupported
		return result
	}

	creds, err := decryptCredentials(r.cipher, acct)
	if err != nil {
		// A credential we cannot read will not recover on its own.
		r.recordError(ctx, acct, &result, err, true)
		return result
	}

	start := time.Now()
	m, err := fetcher.FetchMetrics(ctx, creds)
	r.metrics.RecordExternalAPICall(acct.Provider.Slug(), "fetch_metrics", time.Since(start))
	if err != nil {
		var pe *auth.ProviderError
		markErrored := errors.As(err, &pe) && pe.IsAuthFailure()
		r.recordError(ctx, acct, &result, err, markErrored)
		return result
	}

	if err := r.store.UpdateAccountStats(ctx, acct.ID, m.FollowersCount, m.PostsCount, r.now()); err != nil {
		r.metrics.RecordDatabaseQueryError("update_account_stats")
		result.Status = RefreshError
		result.Error = err.Error()
		return result
	}

	result.Status = RefreshSuccess
	result.FollowersCount = m.FollowersCount
	result.PostsCount = m.PostsCount
	return result
}

func (r *StatsRefresher) recordError(
	ctx context.Context,
	acct *models.ConnectedAccount,
	result *RefreshResult,
	cause error,
	markErrored bool,
) {
	result.Status = RefreshError
	result.Error = cause.Error()

	if err := r.store.RecordAccountError(ctx, acct.ID, cause.Error(), r.now(), markErrored); err != nil {
		r.log.Error("failed to record account error",
			zap.String("account_id", acct.ID),
			zap.Error(err))
	}
	fields := []zap.Field{
		zap.String("account_id", acct.ID),
		zap.String("provider", acct.Provider.Slug()),
		zap.Bool("marked_errored", markErrored),
		zap.Error(cause),
	}
	if body := auth.UpstreamBody(cause); body != "" {
		fields = append(fields, zap.String("upstream_body", body))
	}
	r.log.Warn("stats refresh failed", fields...)
}

func (r *StatsRefresher) logSummary(ctx context.Context, req RefreshRequest, results []RefreshResult) {
	counts := map[RefreshStatus]int{}
	for _, res := range results {
		counts[res.Status]++
	}

	r.log.Info("stats refresh finished",
		zap.String("scope", string(req.Scope)),
		zap.Int("targets", len(results)),
		zap.Int("succeeded", counts[RefreshSuccess]),
		zap.Int("failed", counts[RefreshError]),
		zap.Int("not_supported", counts[RefreshNotSupported]))

	r.audit.Log(ctx, AuditLogEntry{
		EventType:    models.EventStatsRefreshed,
		Severity:     models.SeverityInfo,
		ActorUserID:  req.UserID,
		ResourceType: models.ResourceConnectedAccount,
		ResourceID:   req.AccountID,
		Action:       "Stats refreshed",
		Details: models.AuditDetails{
			"scope":         string(req.Scope),
			"targets":       len(results),
			"succeeded":     counts[RefreshSuccess],
			"failed":        counts[RefreshError],
			"not_supported": counts[RefreshNotSupported],
		},
		Success: counts[RefreshError] == 0,
	})
}

// decryptCredentials opens the stored secrets of acct.
func decryptCredentials(cipher *util.TokenCipher, acct *models.ConnectedAccount) (auth.AccountCredentials, error) {
	creds := auth.AccountCredentials{ProviderAccountID: acct.ProviderAccountID}

	var err error
	if creds.AccessToken, err = cipher.Decrypt(acct.AccessToken); err != nil {
		return creds, fmt.Errorf("failed to decrypt access token: %w", err)
	}
	if creds.AccessTokenSecret, err = cipher.Decrypt(acct.AccessTokenSecret); err != nil {
		return creds, fmt.Errorf("failed to decrypt access token secret: %w", err)
	}
	if creds.RefreshToken, err = cipher.Decrypt(acct.RefreshToken); err != nil {
		return creds, fmt.Errorf("failed to decrypt refresh token: %w", err)
	}
	return creds, nil
}
