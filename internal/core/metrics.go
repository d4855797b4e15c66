package core

import (
	"context"
	"time"
)

// Recorder defines the interface for recording application metrics.
// Implementations include Metrics (Prometheus-based) and NoopMetrics (no-op).
type Recorder interface {
	// Connect flow
	RecordConnectAttempt(provider, stage, result string)
	RecordExternalAPICall(provider, operation string, duration time.Duration)

	// Background work
	RecordStatsRefresh(provider, result string)
	RecordTokenRefresh(provider string, success bool)

	// Authentication
	RecordLogin(success bool, duration time.Duration)
	RecordLogout()

	// Rate limiting
	RecordRateLimitRejection(policy string)

	// Gauge Setters (for periodic updates)
	SetConnectedAccountsCount(status string, count int)

	// Database Operations
	RecordDatabaseQueryError(operation string)
}

// MetricsStore defines the DB operations needed by the gauge cache wrapper.
type MetricsStore interface {
	CountConnectedAccountsByStatus(ctx context.Context, status string) (int64, error)
}
