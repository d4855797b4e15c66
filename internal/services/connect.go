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

const (
	resultSuccess = "success"
	resultError   = "error"
)

// InitiateResult is what the caller needs to send the user to the provider.
type InitiateResult struct {
	Provider     models.Provider
	Protocol     auth.Protocol
	AuthorizeURL string
	// State is the OAuth2 anti-forgery value to mirror in a cookie.
	// Empty for OAuth1.
	State string
}

// CompleteResult is a successfully connected account.
type CompleteResult struct {
	Account    *models.ConnectedAccount
	RedirectTo string
}

// ConnectService runs the connect flow and manages connected accounts.
type ConnectService struct {
	store      *store.Store
	registry   *auth.Registry
	handshakes *HandshakeStore
	cipher     *util.TokenCipher
	metrics    core.Recorder
	audit      AuditLogger
	log        *zap.Logger
	now        func() time.Time
}

func NewConnectService(
	s *store.Store,
	registry *auth.Registry,
	handshakes *HandshakeStore,
	cipher *util.TokenCipher,
	m core.Recorder,
	audit AuditLogger,
	log *zap.Logger,
) *ConnectService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ConnectService{
		store:      s,
		registry:   registry,
		handshakes: handshakes,
		cipher:     cipher,
		metrics:    m,
		audit:      audit,
		log:        log.With(zap.String("component", "connect")),
		now:        time.Now,
	}
}

// Providers lists the providers that can be connected.
func (s *ConnectService) Providers() []models.Provider {
	return s.registry.Providers()
}

func (s *ConnectService) exchanger(provider models.Provider) (auth.Exchanger, error) {
	ex, ok := s.registry.Get(provider)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotConfigured, provider.Slug())
	}
	return ex, nil
}

// Initiate starts a connect attempt for userID and stores its handshake.
func (s *ConnectService) Initiate(
	ctx context.Context,
	userID string,
	provider models.Provider,
	redirectTo string,
) (*InitiateResult, error) {
	result, err := s.initiate(ctx, userID, provider, redirectTo)
	if err != nil {
		ce := newConnectError(provider, StageInitiate, err)
		s.recordFailure(ctx, userID, provider, ce)
		return nil, ce
	}

	s.metrics.RecordConnectAttempt(provider.Slug(), string(StageInitiate), resultSuccess)
	s.audit.Log(ctx, AuditLogEntry{
		EventType:    models.EventConnectInitiated,
		Severity:     models.SeverityInfo,
		ActorUserID:  userID,
		ResourceType: models.ResourceHandshake,
		Provider:     provider,
		Action:       "Connect initiated",
		Success:      true,
	})
	return result, nil
}

func (s *ConnectService) initiate(
	ctx context.Context,
	userID string,
	provider models.Provider,
	redirectTo string,
) (*InitiateResult, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	ex, err := s.exchanger(provider)
	if err != nil {
		return nil, err
	}

	var state string
	if ex.Protocol() == auth.ProtocolOAuth2 {
		if state, err = util.RandomState(); err != nil {
			return nil, fmt.Errorf("failed to generate state: %w", err)
		}
	}

	init, err := ex.Initiate(ctx, state)
	if err != nil {
		return nil, err
	}

	secret, err := s.cipher.Encrypt(init.HandshakeSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt handshake secret: %w", err)
	}

	if err := s.handshakes.Put(ctx, &models.PendingHandshake{
		Token:      init.HandshakeToken,
		UserID:     userID,
		Provider:   provider,
		Secret:     secret,
		RedirectTo: util.SafeRedirectPath(redirectTo),
	}); err != nil {
		return nil, err
	}

	return &InitiateResult{
		Provider:     provider,
		Protocol:     ex.Protocol(),
		AuthorizeURL: init.AuthorizeURL,
		State:        state,
	}, nil
}

// Complete finishes a connect attempt from the provider callback. For OAuth2
// providers cookieState is the state value issued by Initiate. The account is
// persisted only after both the token exchange and the profile fetch succeed.
func (s *ConnectService) Complete(
	ctx context.Context,
	userID string,
	provider models.Provider,
	params auth.CallbackParams,
	cookieState string,
) (*CompleteResult, error) {
	ex, h, err := s.resolveHandshake(ctx, userID, provider, params, cookieState)
	if err != nil {
		ce := newConnectError(provider, StageCallback, err)
		s.recordFailure(ctx, userID, provider, ce)
		return nil, ce
	}

	fail := func(stage Stage, err error) (*CompleteResult, error) {
		ce := newConnectError(provider, stage, err)
		ce.RedirectTo = h.RedirectTo
		s.recordFailure(ctx, userID, provider, ce)
		return nil, ce
	}

	// The handshake is single use whatever the outcome.
	defer func() {
		if err := s.handshakes.Delete(ctx, userID, h.Token); err != nil {
			s.log.Warn("failed to delete handshake",
				zap.String("provider", provider.Slug()),
				zap.Error(err))
		}
	}()

	secret, err := s.cipher.Decrypt(h.Secret)
	if err != nil {
		return fail(StageCallback, fmt.Errorf("%w: %v", ErrSessionExpired, err))
	}

	start := time.Now()
	cred, err := ex.Complete(ctx, auth.Handshake{Token: h.Token, Secret: secret}, params)
	s.metrics.RecordExternalAPICall(provider.Slug(), string(StageExchange), time.Since(start))
	if err != nil {
		return fail(StageExchange, err)
	}

	acct, err := s.buildAccount(userID, cred)
	if err != nil {
		return fail(StagePersist, err)
	}

	saved, err := s.store.UpsertConnectedAccount(ctx, acct)
	if err != nil {
		s.metrics.RecordDatabaseQueryError("upsert_connected_account")
		return fail(StagePersist, err)
	}

	s.metrics.RecordConnectAttempt(provider.Slug(), string(StagePersist), resultSuccess)
	s.audit.Log(ctx, AuditLogEntry{
		EventType:    models.EventAccountConnected,
		Severity:     models.SeverityInfo,
		ActorUserID:  userID,
		ResourceType: models.ResourceConnectedAccount,
		ResourceID:   saved.ID,
		Provider:     provider,
		Action:       "Account connected",
		Details: models.AuditDetails{
			"provider_account_id": saved.ProviderAccountID,
			"username":            saved.Username,
		},
		Success: true,
	})
	s.log.Info("account connected",
		zap.String("provider", provider.Slug()),
		zap.String("account_id", saved.ID),
		zap.String("user_id", userID))

	return &CompleteResult{Account: saved, RedirectTo: h.RedirectTo}, nil
}

// resolveHandshake validates the callback against the caller's session and
// loads the pending handshake. No provider call happens before it succeeds.
func (s *ConnectService) resolveHandshake(
	ctx context.Context,
	userID string,
	provider models.Provider,
	params auth.CallbackParams,
	cookieState string,
) (auth.Exchanger, *models.PendingHandshake, error) {
	if userID == "" {
		return nil, nil, ErrUnauthenticated
	}
	ex, err := s.exchanger(provider)
	if err != nil {
		return nil, nil, err
	}

	var token string
	switch ex.Protocol() {
	case auth.ProtocolOAuth2:
		if params.State == "" || cookieState == "" || !util.SecureEqual(params.State, cookieState) {
			return nil, nil, ErrStateMismatch
		}
		token = params.State
	default:
		token = params.OAuthToken
		if token == "" {
			// A declined OAuth1 authorization only echoes the request token as "denied".
			token = params.Denied
		}
		if token == "" {
			return nil, nil, auth.ErrMissingCode
		}
	}

	h, err := s.handshakes.Get(ctx, userID, token)
	if err != nil {
		return nil, nil, err
	}
	if h.Provider != provider {
		return nil, nil, ErrSessionExpired
	}
	return ex, h, nil
}

func (s *ConnectService) buildAccount(
	userID string,
	cred *auth.Credential,
) (*models.ConnectedAccount, error) {
	access, err := s.cipher.Encrypt(cred.Tokens.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt access token: %w", err)
	}
	accessSecret, err := s.cipher.Encrypt(cred.Tokens.AccessTokenSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt access token secret: %w", err)
	}
	refresh, err := s.cipher.Encrypt(cred.Tokens.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt refresh token: %w", err)
	}

	now := s.now()
	p := cred.Profile
	acct := &models.ConnectedAccount{
		UserID:            userID,
		Provider:          cred.Provider,
		ProviderAccountID: p.ProviderAccountID,
		AccessToken:       access,
		AccessTokenSecret: accessSecret,
		RefreshToken:      refresh,
		TokenExpiresAt:    cred.Tokens.ExpiresAt,
		Scopes:            cred.Tokens.Scopes,
		ConnectedAt:       now,
		Username:          p.Username,
		DisplayName:       p.DisplayName,
		ProfileImageURL:   p.ProfileImageURL,
		ProfileURL:        p.ProfileURL,
		Locale:            p.Locale,
		Timezone:          p.Timezone,
	}
	if p.FollowersCount != nil || p.PostsCount != nil {
		if p.FollowersCount != nil {
			acct.FollowersCount = *p.FollowersCount
		}
		if p.PostsCount != nil {
			acct.PostsCount = *p.PostsCount
		}
		acct.LastStatsUpdate = &now
	}
	return acct, nil
}

func (s *ConnectService) recordFailure(
	ctx context.Context,
	userID string,
	provider models.Provider,
	ce *ConnectError,
) {
	s.metrics.RecordConnectAttempt(provider.Slug(), string(ce.Stage), resultError)

	severity := models.SeverityWarning
	if ce.Kind == KindUpstream || ce.Kind == KindPersistence {
		severity = models.SeverityError
	}
	details := models.AuditDetails{
		"stage": string(ce.Stage),
		"kind":  string(ce.Kind),
		"code":  ce.Code,
	}
	fields := []zap.Field{
		zap.String("provider", provider.Slug()),
		zap.String("stage", string(ce.Stage)),
		zap.String("code", ce.Code),
		zap.Error(ce.Err),
	}
	// The provider's reply is kept for operators, never sent to the client.
	if body := auth.UpstreamBody(ce.Err); body != "" {
		details["upstream_body"] = body
		fields = append(fields, zap.String("upstream_body", body))
	}

	s.audit.Log(ctx, AuditLogEntry{
		EventType:    models.EventConnectFailed,
		Severity:     severity,
		ActorUserID:  userID,
		ResourceType: models.ResourceHandshake,
		Provider:     provider,
		Action:       "Connect failed",
		Details:      details,
		Success:      false,
		ErrorMessage: ce.Message,
	})

	if ce.Kind == KindUpstream || ce.Kind == KindPersistence {
		s.log.Error("connect failed", fields...)
	} else {
		s.log.Info("connect rejected", fields...)
	}
}

// ListAccounts returns the user's connected accounts, newest connect last.
func (s *ConnectService) ListAccounts(
	ctx context.Context,
	userID string,
) ([]models.ConnectedAccount, error) {
	if userID == "" {
		return nil, newConnectError("", StageManage, ErrUnauthenticated)
	}
	accounts, err := s.store.ListConnectedAccounts(ctx, userID)
	if err != nil {
		s.metrics.RecordDatabaseQueryError("list_connected_accounts")
		return nil, newConnectError("", StageManage, err)
	}
	return accounts, nil
}

// GetAccount returns one of the user's accounts.
func (s *ConnectService) GetAccount(
	ctx context.Context,
	userID, accountID string,
) (*models.ConnectedAccount, error) {
	if userID == "" {
		return nil, newConnectError("", StageManage, ErrUnauthenticated)
	}
	acct, err := s.store.GetUserConnectedAccount(ctx, userID, accountID)
	if err != nil {
		return nil, newConnectError("", StageManage, err)
	}
	if acct.Status == models.AccountStatusRevoked {
		return nil, newConnectError(acct.Provider, StageManage, ErrAccountNotFound)
	}
	return acct, nil
}

// Disconnect revokes one of the user's accounts and removes its publish targets.
func (s *ConnectService) Disconnect(ctx context.Context, userID, accountID string) error {
	acct, err := s.GetAccount(ctx, userID, accountID)
	if err != nil {
		return err
	}

	if err := s.store.RevokeConnectedAccount(ctx, userID, accountID, s.now()); err != nil {
		if !errors.Is(err, store.ErrRecordNotFound) {
			s.metrics.RecordDatabaseQueryError("revoke_connected_account")
		}
		return newConnectError(acct.Provider, StageManage, err)
	}

	s.audit.Log(ctx, AuditLogEntry{
		EventType:    models.EventAccountRevoked,
		Severity:     models.SeverityInfo,
		ActorUserID:  userID,
		ResourceType: models.ResourceConnectedAccount,
		ResourceID:   accountID,
		Provider:     acct.Provider,
		Action:       "Account disconnected",
		Details: models.AuditDetails{
			"username": acct.Username,
		},
		Success: true,
	})
	return nil
}
