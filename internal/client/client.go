// Package client builds the outbound HTTP clients used to talk to providers.
package client

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/danielkropka/social-flow-sub001/internal/auth"

	httpclient "github.com/appleboy/go-httpclient"
	retry "github.com/appleboy/go-httpretry"
)

// NewProviderClient returns the shared client for OAuth exchanges and
// provider API calls. timeout bounds every request end to end.
func NewProviderClient(timeout time.Duration, insecureSkipVerify bool) (*http.Client, error) {
	c, err := httpclient.NewClient(
		httpclient.WithTimeout(timeout),
		httpclient.WithTransport(newTransport(insecureSkipVerify)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider HTTP client: %w", err)
	}
	return c, nil
}

func newTransport(insecureSkipVerify bool) *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
		TLSClientConfig: &tls.Config{
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: insecureSkipVerify, //nolint:gosec // opt-in for local provider fakes
		},
	}
}

// RetryConfig controls retries of idempotent provider reads.
type RetryConfig struct {
	MaxRetries    int
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
}

// NewRetryingRead returns an auth.ReadFunc that retries GETs with
// exponential backoff. The caller's client is reused so per-request
// authentication set on it is kept.
func NewRetryingRead(cfg RetryConfig) auth.ReadFunc {
	return func(ctx context.Context, c *http.Client, rawURL string) (*http.Response, error) {
		rc, err := retry.NewRealtimeClient(
			retry.WithHTTPClient(c),
			retry.WithMaxRetries(cfg.MaxRetries),
			retry.WithInitialRetryDelay(cfg.RetryDelay),
			retry.WithMaxRetryDelay(cfg.MaxRetryDelay),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create retry client: %w", err)
		}
		return rc.Get(ctx, rawURL)
	}
}
