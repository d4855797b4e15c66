package metrics

import (
	"sync"
	"time"

	"github.com/danielkropka/social-flow-sub001/internal/core"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder is the metrics interface consumed by services and handlers.
type Recorder = core.Recorder

// Ensure Metrics implements Recorder interface at compile time
var _ Recorder = (*Metrics)(nil)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// Connect flow
	ConnectAttemptsTotal    *prometheus.CounterVec
	ProviderAPICallDuration *prometheus.HistogramVec

	// Background refresh
	StatsRefreshTotal *prometheus.CounterVec
	TokenRefreshTotal *prometheus.CounterVec

	// Authentication
	AuthLoginTotal    *prometheus.CounterVec
	AuthLoginDuration prometheus.Histogram
	AuthLogoutTotal   prometheus.Counter

	// Rate limiting
	RateLimitRejectionsTotal *prometheus.CounterVec

	// Connected accounts
	ConnectedAccounts *prometheus.GaugeVec

	// HTTP Request Metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Database Query Metrics
	DatabaseQueryErrorsTotal *prometheus.CounterVec
}

var (
	defaultMetrics *Metrics
	once           sync.Once
)

// Init initializes metrics based on enabled flag
// If enabled=true, returns Prometheus-based Metrics
// If enabled=false, returns NoopMetrics (zero overhead)
// Uses sync.Once to ensure Prometheus metrics are only registered once
func Init(enabled bool) Recorder {
	if !enabled {
		return NewNoopMetrics()
	}

	once.Do(func() {
		defaultMetrics = initMetrics()
	})
	return defaultMetrics
}

// initMetrics creates and registers all Prometheus metrics
func initMetrics() *Metrics {
	return &Metrics{
		ConnectAttemptsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "connect_attempts_total",
				Help: "Total number of provider connect steps by outcome",
			},
			[]string{"provider", "stage", "result"}, // stage: initiate, callback, ...; result: success, error
		),
		ProviderAPICallDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "provider_api_call_duration_seconds",
				Help:    "Time taken by outbound calls to social providers",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider", "operation"}, // operation: complete, metrics, refresh
		),

		StatsRefreshTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stats_refresh_total",
				Help: "Total number of per-account stats refreshes",
			},
			[]string{"provider", "result"}, // success, error, not_supported
		),
		TokenRefreshTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "token_refresh_total",
				Help: "Total number of provider token refresh attempts",
			},
			[]string{"provider", "result"}, // success, error
		),

		AuthLoginTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_login_total",
				Help: "Total number of login attempts",
			},
			[]string{"result"}, // success, failure
		),
		AuthLoginDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "auth_login_duration_seconds",
				Help:    "Time taken to complete login",
				Buckets: prometheus.DefBuckets,
			},
		),
		AuthLogoutTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "auth_logout_total",
				Help: "Total number of logouts",
			},
		),

		RateLimitRejectionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rate_limit_rejections_total",
				Help: "Total number of requests rejected by a rate limit policy",
			},
			[]string{"policy"},
		),

		ConnectedAccounts: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "connected_accounts",
				Help: "Current number of connected accounts by status",
			},
			[]string{"status"},
		),

		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "http_request_duration_seconds",
				Help: "HTTP request latency in seconds",
				Buckets: []float64{
					0.001,
					0.005,
					0.010,
					0.025,
					0.050,
					0.100,
					0.250,
					0.500,
					1.0,
					2.5,
					5.0,
					10.0,
				},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Current number of HTTP requests being served",
			},
		),

		DatabaseQueryErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "database_query_errors_total",
				Help: "Total number of database query errors during metric collection",
			},
			[]string{"operation"},
		),
	}
}

func resultLabel(success bool) string {
	if success {
		return resultSuccess
	}
	return resultError
}

// RecordConnectAttempt records one connect step outcome.
func (m *Metrics) RecordConnectAttempt(provider, stage, result string) {
	m.ConnectAttemptsTotal.WithLabelValues(provider, stage, result).Inc()
}

// RecordExternalAPICall records the latency of a provider call.
func (m *Metrics) RecordExternalAPICall(provider, operation string, duration time.Duration) {
	m.ProviderAPICallDuration.WithLabelValues(provider, operation).Observe(duration.Seconds())
}

// RecordStatsRefresh records a per-account stats refresh result.
func (m *Metrics) RecordStatsRefresh(provider, result string) {
	m.StatsRefreshTotal.WithLabelValues(provider, result).Inc()
}

// RecordTokenRefresh records a provider token refresh attempt.
func (m *Metrics) RecordTokenRefresh(provider string, success bool) {
	m.TokenRefreshTotal.WithLabelValues(provider, resultLabel(success)).Inc()
}

// RecordLogin records a login attempt
func (m *Metrics) RecordLogin(success bool, duration time.Duration) {
	result := resultSuccess
	if !success {
		result = resultFailure
	}
	m.AuthLoginTotal.WithLabelValues(result).Inc()
	m.AuthLoginDuration.Observe(duration.Seconds())
}

// RecordLogout records a logout
func (m *Metrics) RecordLogout() {
	m.AuthLogoutTotal.Inc()
}

// RecordRateLimitRejection records a request rejected by policy.
func (m *Metrics) RecordRateLimitRejection(policy string) {
	m.RateLimitRejectionsTotal.WithLabelValues(policy).Inc()
}

// SetConnectedAccountsCount sets the connected accounts gauge for status.
func (m *Metrics) SetConnectedAccountsCount(status string, count int) {
	m.ConnectedAccounts.WithLabelValues(status).Set(float64(count))
}

// RecordDatabaseQueryError records a failed gauge query
func (m *Metrics) RecordDatabaseQueryError(operation string) {
	m.DatabaseQueryErrorsTotal.WithLabelValues(operation).Inc()
}
