package metrics

import "time"

// NoopMetrics is a no-operation implementation of Recorder
// All methods are empty and do nothing, providing zero overhead when metrics are disabled
type NoopMetrics struct{}

// Ensure NoopMetrics implements Recorder interface at compile time
var _ Recorder = (*NoopMetrics)(nil)

// NewNoopMetrics creates a new no-operation metrics recorder
func NewNoopMetrics() Recorder {
	return &NoopMetrics{}
}

func (n *NoopMetrics) RecordConnectAttempt(provider, stage, result string) {}

func (n *NoopMetrics) RecordExternalAPICall(
	provider, operation string,
	duration time.Duration,
) {
}

func (n *NoopMetrics) RecordStatsRefresh(provider, result string)         {}
func (n *NoopMetrics) RecordTokenRefresh(provider string, success bool)   {}
func (n *NoopMetrics) RecordLogin(success bool, duration time.Duration)   {}
func (n *NoopMetrics) RecordLogout()                                      {}
func (n *NoopMetrics) RecordRateLimitRejection(policy string)             {}
func (n *NoopMetrics) SetConnectedAccountsCount(status string, count int) {}
func (n *NoopMetrics) RecordDatabaseQueryError(operation string)          {}
