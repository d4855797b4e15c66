package bootstrap

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danielkropka/social-flow-sub001/internal/auth"
	"github.com/danielkropka/social-flow-sub001/internal/config"
	"github.com/danielkropka/social-flow-sub001/internal/middleware"
	"github.com/danielkropka/social-flow-sub001/internal/models"
	"github.com/danielkropka/social-flow-sub001/internal/ratelimit"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testAdminPassword = "admin-test-password"
	testCronSecret    = "cron-test-secret"
)

func testConfig() *config.Config {
	return &config.Config{
		ServerAddr:              ":0",
		BaseURL:                 "http://localhost:8080",
		FrontendURL:             "http://localhost:3000",
		Environment:             config.EnvDevelopment,
		SessionSecret:           "bootstrap-session-secret",
		SessionMaxAge:           3600,
		DatabaseDriver:          "sqlite",
		DatabaseDSN:             ":memory:",
		DBInitTimeout:           10 * time.Second,
		DefaultAdminPwd:         testAdminPassword,
		RedisConnTimeout:        time.Second,
		EncryptionKey:           "bootstrap-encryption-key",
		AccountUniqueness:       config.AccountUniquenessGlobal,
		HandshakeStore:          config.StoreMemory,
		HandshakeTTL:            10 * time.Minute,
		OAuthTimeout:            5 * time.Second,
		InstagramLoginMode:      config.InstagramLoginDirect,
		TikTokEnabled:           true,
		TikTokClientKey:         "tiktok-key",
		TikTokClientSecret:      "tiktok-secret",
		TikTokRedirectURL:       "http://localhost:8080/connect/tiktok/callback",
		TikTokScopes:            []string{"user.info.basic"},
		TikTokAuthURL:           "https://www.tiktok.com",
		TikTokAPIURL:            "https://open.tiktokapis.com",
		EnableRateLimit:         true,
		RateLimitStore:          config.StoreMemory,
		RateLimitCleanupPeriod:  time.Minute,
		StatsRefreshConcurrency: 2,
		StatsMaxRetries:         1,
		StatsRetryDelay:         10 * time.Millisecond,
		StatsMaxRetryDelay:      50 * time.Millisecond,
		CronSecret:              testCronSecret,
		MetricsCacheType:        config.StoreMemory,
		AuditLogBufferSize:      10,
	}
}

func newTestApplication(t *testing.T, cfg *config.Config) *Application {
	t.Helper()
	gin.SetMode(gin.TestMode)

	app, err := New(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	app.initializeHTTPLayer()
	return app
}

func TestValidateAllConfiguration(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(c *config.Config)
		errorMsg string
	}{
		{
			name:   "development defaults",
			mutate: func(c *config.Config) {},
		},
		{
			name: "production with default session secret",
			mutate: func(c *config.Config) {
				c.IsProduction = true
				c.SessionSecret = defaultSessionSecret
			},
			errorMsg: "SESSION_SECRET must be set in production",
		},
		{
			name: "production with insecure provider TLS",
			mutate: func(c *config.Config) {
				c.IsProduction = true
				c.OAuthInsecureSkipVerify = true
			},
			errorMsg: "OAUTH_INSECURE_SKIP_VERIFY cannot be enabled in production",
		},
		{
			name:     "missing encryption key",
			mutate:   func(c *config.Config) { c.EncryptionKey = "" },
			errorMsg: "ENCRYPTION_KEY is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(cfg)
			err := validateAllConfiguration(cfg, zap.NewNop())
			if tt.errorMsg == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorMsg)
		})
	}
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.EncryptionKey = ""

	app, err := New(context.Background(), cfg, nil)
	require.Error(t, err)
	assert.Nil(t, app)
}

func TestInitializeRateLimitCounter(t *testing.T) {
	cfg := testConfig()

	cfg.EnableRateLimit = false
	assert.Nil(t, initializeRateLimitCounter(cfg, nil))

	cfg.EnableRateLimit = true
	assert.IsType(t, &ratelimit.MemoryCounter{}, initializeRateLimitCounter(cfg, nil))

	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	t.Cleanup(func() { _ = client.Close() })
	assert.IsType(t, &ratelimit.RedisCounter{}, initializeRateLimitCounter(cfg, client))
}

func TestInitializeRateLimitRedisClient_SkippedForMemoryStore(t *testing.T) {
	client, err := initializeRateLimitRedisClient(context.Background(), testConfig(), zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, client)
}

func TestInitializeMetricsCache_DisabledWithoutGauge(t *testing.T) {
	c, err := initializeMetricsCache(context.Background(), testConfig(), zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestInitializeProviderRegistry(t *testing.T) {
	httpClient, err := createProviderHTTPClient(testConfig(), zap.NewNop())
	require.NoError(t, err)

	t.Run("only enabled providers are registered", func(t *testing.T) {
		cfg := testConfig()
		cfg.TwitterEnabled = true
		cfg.TwitterConsumerKey = "ck"
		cfg.TwitterConsumerSecret = "cs"

		registry := initializeProviderRegistry(cfg, httpClient, zap.NewNop())
		assert.ElementsMatch(t,
			[]models.Provider{models.ProviderTwitter, models.ProviderTikTok},
			registry.Providers())

		_, ok := registry.Get(models.ProviderFacebook)
		assert.False(t, ok)
	})

	t.Run("instagram login mode selects the exchanger", func(t *testing.T) {
		cfg := testConfig()
		cfg.InstagramEnabled = true

		ex, ok := initializeProviderRegistry(cfg, httpClient, zap.NewNop()).Get(models.ProviderInstagram)
		require.True(t, ok)
		assert.IsType(t, &auth.InstagramExchanger{}, ex)

		cfg.InstagramLoginMode = config.InstagramLoginFacebookPage
		ex, ok = initializeProviderRegistry(cfg, httpClient, zap.NewNop()).Get(models.ProviderInstagram)
		require.True(t, ok)
		assert.IsType(t, &auth.InstagramBusinessExchanger{}, ex)
	})
}

func TestRouter_Health(t *testing.T) {
	app := newTestApplication(t, testConfig())

	w := httptest.NewRecorder()
	app.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "connected", body["database"])
	assert.NotContains(t, body, "redis")
}

func TestRouter_ProtectedRoutesRequireSession(t *testing.T) {
	app := newTestApplication(t, testConfig())

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/accounts"},
		{http.MethodGet, "/connect/tiktok"},
		{http.MethodPost, "/logout"},
	} {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			app.Router.ServeHTTP(w, httptest.NewRequest(tc.method, tc.path, nil))
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestRouter_CronRoutes(t *testing.T) {
	app := newTestApplication(t, testConfig())

	w := httptest.NewRecorder()
	app.Router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/internal/cron/refresh-stats", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	for _, path := range []string{"/internal/cron/refresh-stats", "/internal/cron/refresh-tokens"} {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		req.Header.Set("Authorization", "Bearer "+testCronSecret)
		w := httptest.NewRecorder()
		app.Router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code, path)
		var body map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.EqualValues(t, 0, body["targets"])
	}
}

func TestRouter_LoginAndConnect(t *testing.T) {
	app := newTestApplication(t, testConfig())

	login := httptest.NewRequest(http.MethodPost, "/login",
		strings.NewReader(`{"email":"admin@localhost","password":"`+testAdminPassword+`"}`))
	login.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	app.Router.ServeHTTP(w, login)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)
	withSession := func(req *http.Request) *http.Request {
		for _, c := range cookies {
			req.AddCookie(c)
		}
		return req
	}

	t.Run("account list exposes the CSRF token", func(t *testing.T) {
		w := httptest.NewRecorder()
		app.Router.ServeHTTP(w, withSession(httptest.NewRequest(http.MethodGet, "/api/accounts", nil)))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.NotEmpty(t, w.Header().Get(middleware.CSRFHeaderField))
	})

	t.Run("state changing API calls need the CSRF header", func(t *testing.T) {
		w := httptest.NewRecorder()
		app.Router.ServeHTTP(w, withSession(httptest.NewRequest(http.MethodPost, "/api/accounts/refresh-stats", nil)))
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("enabled provider returns an authorize url", func(t *testing.T) {
		req := withSession(httptest.NewRequest(http.MethodGet, "/connect/tiktok", nil))
		req.Header.Set("Accept", "application/json")
		w := httptest.NewRecorder()
		app.Router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var body map[string]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.True(t, strings.HasPrefix(body["authorize_url"], "https://www.tiktok.com/v2/auth/authorize/"))
		assert.Contains(t, body["authorize_url"], "client_key=tiktok-key")
	})

	t.Run("disabled provider is a configuration error", func(t *testing.T) {
		req := withSession(httptest.NewRequest(http.MethodGet, "/connect/twitter", nil))
		req.Header.Set("Accept", "application/json")
		w := httptest.NewRecorder()
		app.Router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestRouter_LoginRateLimited(t *testing.T) {
	app := newTestApplication(t, testConfig())

	var last int
	for range ratelimit.PolicyAuth.MaxRequests + 1 {
		req := httptest.NewRequest(http.MethodPost, "/login",
			strings.NewReader(`{"email":"someone@example.com","password":"wrong"}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		app.Router.ServeHTTP(w, req)
		last = w.Code
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
}
