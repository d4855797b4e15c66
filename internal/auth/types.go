package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/danielkropka/social-flow-sub001/internal/models"
)

// Protocol is the OAuth flavour an exchanger speaks.
type Protocol string

const (
	ProtocolOAuth1 Protocol = "oauth1"
	ProtocolOAuth2 Protocol = "oauth2"
)

// Initiation is the result of starting a connect attempt.
type Initiation struct {
	AuthorizeURL string
	// HandshakeToken keys the pending handshake: the OAuth1 request token
	// or the OAuth2 state value.
	HandshakeToken string
	// HandshakeSecret is the OAuth1 request token secret, plaintext.
	// Empty for OAuth2.
	HandshakeSecret string
}

// Handshake is the pending state recovered at callback time.
type Handshake struct {
	Token  string
	Secret string
}

// CallbackParams carries everything the provider put on the redirect.
type CallbackParams struct {
	Code             string
	State            string
	OAuthToken       string
	OAuthVerifier    string
	Denied           string
	Error            string
	ErrorReason      string
	ErrorDescription string
}

// Tokens are the long-lived provider credentials, plaintext.
type Tokens struct {
	AccessToken       string
	AccessTokenSecret string
	RefreshToken      string
	ExpiresAt         *time.Time
	Scopes            string
}

// Profile is the verified provider identity fetched after the exchange.
type Profile struct {
	ProviderAccountID string
	Username          string
	DisplayName       string
	ProfileImageURL   string
	ProfileURL        string
	Locale            string
	Timezone          string
	FollowersCount    *int64
	PostsCount        *int64
}

// Credential is a completed connect attempt ready to be persisted.
type Credential struct {
	Provider models.Provider
	Tokens   Tokens
	Profile  Profile
}

// Metrics are the engagement counters a provider reports.
type Metrics struct {
	FollowersCount int64
	PostsCount     int64
}

// AccountCredentials are the decrypted credentials of a stored account.
type AccountCredentials struct {
	ProviderAccountID string
	AccessToken       string
	AccessTokenSecret string
	RefreshToken      string
}

// Exchanger runs the authorization handshake for one provider.
type Exchanger interface {
	Provider() models.Provider
	Protocol() Protocol
	// Initiate starts a connect attempt. state is used by OAuth2 providers
	// and ignored by OAuth1 ones, which key the handshake on the request token.
	Initiate(ctx context.Context, state string) (*Initiation, error)
	// Complete validates the callback against the handshake, exchanges it for
	// long-lived tokens and fetches the verified profile.
	Complete(ctx context.Context, h Handshake, params CallbackParams) (*Credential, error)
}

// MetricsFetcher is implemented by exchangers whose provider exposes counters.
type MetricsFetcher interface {
	FetchMetrics(ctx context.Context, creds AccountCredentials) (*Metrics, error)
}

// TokenRefresher is implemented by exchangers whose tokens can be renewed.
type TokenRefresher interface {
	RefreshTokens(ctx context.Context, creds AccountCredentials) (*Tokens, error)
}

// ReadFunc performs an idempotent GET. Metric reads go through it so that
// callers can plug in retries.
type ReadFunc func(ctx context.Context, client *http.Client, url string) (*http.Response, error)

// Options are the shared dependencies of every exchanger.
type Options struct {
	HTTPClient *http.Client
	Read       ReadFunc
	Now        func() time.Time
}
