package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/danielkropka/social-flow-sub001/internal/auth"
	"github.com/danielkropka/social-flow-sub001/internal/cache"
	"github.com/danielkropka/social-flow-sub001/internal/config"
	"github.com/danielkropka/social-flow-sub001/internal/metrics"
	"github.com/danielkropka/social-flow-sub001/internal/middleware"
	"github.com/danielkropka/social-flow-sub001/internal/models"
	"github.com/danielkropka/social-flow-sub001/internal/services"
	"github.com/danielkropka/social-flow-sub001/internal/store"
	"github.com/danielkropka/social-flow-sub001/internal/util"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	testFrontendURL = "https://app.example.com"
	testPassword    = "correct-horse-battery"
)

type nopAudit struct{}

func (nopAudit) Log(context.Context, services.AuditLogEntry) {}

// stubExchanger is an OAuth2 exchanger with a scripted Complete and metrics.
type stubExchanger struct {
	provider  models.Provider
	mu        sync.Mutex
	completed []auth.CallbackParams
	followers int64
}

func (s *stubExchanger) Provider() models.Provider { return s.provider }
func (s *stubExchanger) Protocol() auth.Protocol   { return auth.ProtocolOAuth2 }

func (s *stubExchanger) Initiate(_ context.Context, state string) (*auth.Initiation, error) {
	return &auth.Initiation{
		AuthorizeURL:   "https://provider.example/authorize?state=" + state,
		HandshakeToken: state,
	}, nil
}

func (s *stubExchanger) Complete(
	_ context.Context,
	_ auth.Handshake,
	params auth.CallbackParams,
) (*auth.Credential, error) {
	s.mu.Lock()
	s.completed = append(s.completed, params)
	s.mu.Unlock()

	if params.Error != "" {
		return nil, &auth.ProviderError{
			Provider: s.provider,
			Op:       "callback",
			Code:     params.Error,
			Err:      auth.ErrConsentDenied,
		}
	}
	return &auth.Credential{
		Provider: s.provider,
		Tokens: auth.Tokens{
			AccessToken:  "ACCESS-" + params.Code,
			RefreshToken: "REFRESH-" + params.Code,
		},
		Profile: auth.Profile{
			ProviderAccountID: "open-id-1",
			Username:          "creator",
			DisplayName:       "Creator",
		},
	}, nil
}

func (s *stubExchanger) FetchMetrics(context.Context, auth.AccountCredentials) (*auth.Metrics, error) {
	return &auth.Metrics{FollowersCount: s.followers, PostsCount: 3}, nil
}

func (s *stubExchanger) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.completed)
}

type testApp struct {
	router    *gin.Engine
	store     *store.Store
	exchanger *stubExchanger
	user      *models.User
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{AccountUniqueness: config.AccountUniquenessGlobal}
	db, err := store.New(context.Background(), "sqlite", ":memory:", cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cipher, err := util.NewTokenCipher("handlers-test-key")
	require.NoError(t, err)

	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)
	user := &models.User{
		ID:           uuid.New().String(),
		Username:     "owner",
		Email:        "owner@example.com",
		PasswordHash: string(hash),
		Role:         models.RoleUser,
		IsActive:     true,
	}
	require.NoError(t, db.CreateUser(context.Background(), user))

	ex := &stubExchanger{provider: models.ProviderTikTok, followers: 1200}
	registry := auth.NewRegistry(ex)
	noop := metrics.NewNoopMetrics()
	audit := nopAudit{}

	handshakes := services.NewHandshakeStore(cache.NewMemoryCache[models.PendingHandshake](), 10*time.Minute)
	connectSvc := services.NewConnectService(db, registry, handshakes, cipher, noop, audit, nil)
	stats := services.NewStatsRefresher(db, registry, cipher, noop, audit, 1, nil)
	tokens := services.NewTokenRefreshService(db, registry, cipher, noop, audit, 0, nil)
	users := services.NewUserService(
		db, auth.NewLocalAuthProvider(db), noop, audit,
		cache.NewMemoryCache[models.User](), time.Minute, nil,
	)

	authH := NewAuthHandler(users)
	connectH := NewConnectHandler(connectSvc, testFrontendURL+"/", 10*time.Minute, false)
	history := services.NewAuditService(db, true, 10, nil)
	t.Cleanup(func() { _ = history.Shutdown(context.Background()) })
	accountH := NewAccountHandler(connectSvc, stats, history)
	cronH := NewCronHandler(stats, tokens)

	r := gin.New()
	r.Use(sessions.Sessions("sf_session", cookie.NewStore([]byte("handlers-session-secret"))))
	r.POST("/login", authH.Login)

	requireAuth := middleware.RequireAuth(users)
	r.POST("/logout", requireAuth, authH.Logout)
	r.GET("/connect/:provider", requireAuth, connectH.Initiate)
	r.GET("/connect/:provider/callback", requireAuth, connectH.Callback)

	api := r.Group("/api", requireAuth)
	api.GET("/accounts", accountH.List)
	api.GET("/accounts/:id", accountH.Get)
	api.GET("/accounts/:id/history", accountH.History)
	api.DELETE("/accounts/:id", accountH.Delete)
	api.POST("/accounts/refresh-stats", accountH.RefreshStats)

	r.POST("/internal/cron/refresh-stats", cronH.RefreshStats)
	r.POST("/internal/cron/refresh-tokens", cronH.RefreshTokens)

	return &testApp{router: r, store: db, exchanger: ex, user: user}
}

// browser keeps cookies across requests, ignoring paths.
type browser struct {
	app     *testApp
	cookies map[string]*http.Cookie
}

func (a *testApp) browser() *browser {
	return &browser{app: a, cookies: map[string]*http.Cookie{}}
}

func (b *browser) do(method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	req, _ := http.NewRequestWithContext(context.Background(), method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	for _, ck := range b.cookies {
		req.AddCookie(ck)
	}

	w := httptest.NewRecorder()
	b.app.router.ServeHTTP(w, req)

	for _, ck := range w.Result().Cookies() {
		if ck.MaxAge < 0 || ck.Value == "" {
			delete(b.cookies, ck.Name)
			continue
		}
		b.cookies[ck.Name] = ck
	}
	return w
}

func (b *browser) login(t *testing.T) {
	t.Helper()
	w := b.do(http.MethodPost, "/login",
		`{"email":"owner@example.com","password":"`+testPassword+`"}`, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}
