package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit(t *testing.T) {
	m := Init(true)
	assert.NotNil(t, m)

	// Type assert to concrete Metrics to access fields
	metrics, ok := m.(*Metrics)
	require.True(t, ok, "Init(true) should return *Metrics")
	assert.NotNil(t, metrics.ConnectAttemptsTotal)
	assert.NotNil(t, metrics.StatsRefreshTotal)
	assert.NotNil(t, metrics.RateLimitRejectionsTotal)
	assert.NotNil(t, metrics.HTTPRequestsTotal)

	// Repeated Init must not re-register collectors
	assert.Same(t, metrics, Init(true))
}

func TestInitNoop(t *testing.T) {
	m := Init(false)
	assert.NotNil(t, m)

	_, ok := m.(*NoopMetrics)
	assert.True(t, ok, "Init(false) should return *NoopMetrics")
}

func TestRecordConnectAttempt(t *testing.T) {
	m := Init(true).(*Metrics)

	before := testutil.ToFloat64(
		m.ConnectAttemptsTotal.WithLabelValues("twitter", "callback", resultSuccess),
	)
	m.RecordConnectAttempt("twitter", "callback", resultSuccess)
	after := testutil.ToFloat64(
		m.ConnectAttemptsTotal.WithLabelValues("twitter", "callback", resultSuccess),
	)

	assert.Equal(t, before+1, after)
}

func TestRecordTokenRefresh(t *testing.T) {
	m := Init(true).(*Metrics)

	before := testutil.ToFloat64(m.TokenRefreshTotal.WithLabelValues("tiktok", resultError))
	m.RecordTokenRefresh("tiktok", false)
	after := testutil.ToFloat64(m.TokenRefreshTotal.WithLabelValues("tiktok", resultError))

	assert.Equal(t, before+1, after)
}

func TestSetConnectedAccountsCount(t *testing.T) {
	m := Init(true).(*Metrics)

	m.SetConnectedAccountsCount("ACTIVE", 7)
	assert.Equal(t, float64(7), testutil.ToFloat64(m.ConnectedAccounts.WithLabelValues("ACTIVE")))
}

func TestRecordMisc(t *testing.T) {
	m := Init(true)

	// Prometheus recording has no error path; these must simply not panic.
	m.RecordExternalAPICall("instagram", "metrics", 120*time.Millisecond)
	m.RecordStatsRefresh("instagram", "not_supported")
	m.RecordLogin(true, 30*time.Millisecond)
	m.RecordLogin(false, 10*time.Millisecond)
	m.RecordLogout()
	m.RecordRateLimitRejection("auth")
	m.RecordDatabaseQueryError("count_accounts_active")
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := Init(true).(*Metrics)

	r := gin.New()
	r.Use(HTTPMetricsMiddleware(m))
	r.GET("/api/accounts/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	before := testutil.ToFloat64(
		m.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/api/accounts/:id", "204"),
	)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/accounts/abc", nil))
	require.Equal(t, http.StatusNoContent, w.Code)

	after := testutil.ToFloat64(
		m.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/api/accounts/:id", "204"),
	)
	assert.Equal(t, before+1, after)
}

func TestHTTPMetricsMiddleware_Noop(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(HTTPMetricsMiddleware(NewNoopMetrics()))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
