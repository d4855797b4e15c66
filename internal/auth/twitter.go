package auth

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/danielkropka/social-flow-sub001/internal/models"

	"github.com/dghubble/oauth1"
)

// TwitterConfig configures the X/Twitter OAuth 1.0a exchanger.
type TwitterConfig struct {
	ConsumerKey    string
	ConsumerSecret string
	CallbackURL    string
	APIURL         string // e.g. https://api.twitter.com
}

// TwitterExchanger connects X/Twitter accounts with OAuth 1.0a.
type TwitterExchanger struct {
	base
	config *oauth1.Config
	apiURL string
}

var (
	_ Exchanger      = (*TwitterExchanger)(nil)
	_ MetricsFetcher = (*TwitterExchanger)(nil)
)

// NewTwitterExchanger creates the X/Twitter exchanger.
func NewTwitterExchanger(cfg TwitterConfig, opts Options) *TwitterExchanger {
	apiURL := strings.TrimRight(cfg.APIURL, "/")
	return &TwitterExchanger{
		base:   newBase(models.ProviderTwitter, opts),
		apiURL: apiURL,
		config: &oauth1.Config{
			ConsumerKey:    cfg.ConsumerKey,
			ConsumerSecret: cfg.ConsumerSecret,
			CallbackURL:    cfg.CallbackURL,
			Endpoint: oauth1.Endpoint{
				RequestTokenURL: apiURL + "/oauth/request_token",
				AuthorizeURL:    apiURL + "/oauth/authorize",
				AccessTokenURL:  apiURL + "/oauth/access_token",
			},
		},
	}
}

func (e *TwitterExchanger) Protocol() Protocol {
	return ProtocolOAuth1
}

// Initiate obtains a request token. The state argument is unused; the
// request token itself keys the handshake.
func (e *TwitterExchanger) Initiate(ctx context.Context, _ string) (*Initiation, error) {
	requestToken, requestSecret, err := e.tokenConfig(ctx).RequestToken()
	if err != nil {
		if strings.Contains(err.Error(), "oauth_callback_confirmed") {
			return nil, ErrCallbackNotConfirmed
		}
		return nil, e.oauth1Error("request_token", err)
	}

	authURL, err := e.config.AuthorizationURL(requestToken)
	if err != nil {
		return nil, e.providerError("authorize", err)
	}

	return &Initiation{
		AuthorizeURL:    authURL.String(),
		HandshakeToken:  requestToken,
		HandshakeSecret: requestSecret,
	}, nil
}

// Complete exchanges the verifier for an access token and loads the profile.
func (e *TwitterExchanger) Complete(
	ctx context.Context,
	h Handshake,
	params CallbackParams,
) (*Credential, error) {
	if params.Denied != "" {
		return nil, ErrConsentDenied
	}
	if params.OAuthToken == "" || params.OAuthToken != h.Token {
		return nil, ErrHandshakeMismatch
	}
	if params.OAuthVerifier == "" {
		return nil, ErrMissingCode
	}

	accessToken, accessSecret, err := e.tokenConfig(ctx).AccessToken(
		h.Token,
		h.Secret,
		params.OAuthVerifier,
	)
	if err != nil {
		return nil, e.oauth1Error("access_token", err)
	}

	user, err := e.me(ctx, "profile", accessToken, accessSecret)
	if err != nil {
		return nil, err
	}

	return &Credential{
		Provider: models.ProviderTwitter,
		Tokens: Tokens{
			AccessToken:       accessToken,
			AccessTokenSecret: accessSecret,
		},
		Profile: Profile{
			ProviderAccountID: user.ID,
			Username:          user.Username,
			DisplayName:       user.Name,
			ProfileImageURL:   user.ProfileImageURL,
			ProfileURL:        "https://x.com/" + user.Username,
			FollowersCount:    int64Ptr(user.PublicMetrics.FollowersCount),
			PostsCount:        int64Ptr(user.PublicMetrics.TweetCount),
		},
	}, nil
}

// FetchMetrics reads public_metrics from the users/me endpoint.
func (e *TwitterExchanger) FetchMetrics(
	ctx context.Context,
	creds AccountCredentials,
) (*Metrics, error) {
	user, err := e.me(ctx, "metrics", creds.AccessToken, creds.AccessTokenSecret)
	if err != nil {
		return nil, err
	}
	return &Metrics{
		FollowersCount: user.PublicMetrics.FollowersCount,
		PostsCount:     user.PublicMetrics.TweetCount,
	}, nil
}

type twitterUser struct {
	ID              string `json:"id"`
	Username        string `json:"username"`
	Name            string `json:"name"`
	ProfileImageURL string `json:"profile_image_url"`
	PublicMetrics   struct {
		FollowersCount int64 `json:"followers_count"`
		TweetCount     int64 `json:"tweet_count"`
	} `json:"public_metrics"`
}

func (e *TwitterExchanger) me(
	ctx context.Context,
	op, accessToken, accessSecret string,
) (*twitterUser, error) {
	// The signing client wraps the injected transport.
	signed := e.config.Client(
		context.WithValue(ctx, oauth1.HTTPClient, e.client),
		oauth1.NewToken(accessToken, accessSecret),
	)

	var payload struct {
		Data *twitterUser `json:"data"`
	}
	rawURL := e.apiURL + "/2/users/me?user.fields=profile_image_url,public_metrics"

	var err error
	if op == "metrics" {
		err = e.readJSON(ctx, signed, op, rawURL, &payload)
	} else {
		err = e.getJSONWith(ctx, signed, op, rawURL, &payload)
	}
	if err != nil {
		return nil, err
	}
	if payload.Data == nil || payload.Data.ID == "" {
		return nil, &ProviderError{
			Provider: e.provider,
			Op:       op,
			Code:     "missing_user",
			Err:      errors.New("response has no user id"),
		}
	}
	return payload.Data, nil
}

// tokenConfig returns a copy of the OAuth1 config whose request and access
// token calls go through the injected client and carry ctx.
func (e *TwitterExchanger) tokenConfig(ctx context.Context) *oauth1.Config {
	next := e.client.Transport
	if next == nil {
		next = http.DefaultTransport
	}
	c := *e.client
	c.Transport = contextRoundTripper{ctx: ctx, next: next}

	cfg := *e.config
	cfg.HTTPClient = &c
	return &cfg
}

// contextRoundTripper binds requests built without a context to ctx.
type contextRoundTripper struct {
	ctx  context.Context
	next http.RoundTripper
}

func (t contextRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.next.RoundTrip(req.WithContext(t.ctx))
}

var oauth1StatusPattern = regexp.MustCompile(`(?s)status (\d{3})(?::\s*(.*))?`)

// oauth1Error classifies handshake failures reported by the oauth1 package.
// Transport failures and 5xx replies are upstream. Anything else means the
// provider answered and refused.
func (e *TwitterExchanger) oauth1Error(op string, err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return e.providerError(op, err)
	}

	pe := &ProviderError{Provider: e.provider, Op: op, Err: err}
	if m := oauth1StatusPattern.FindStringSubmatch(err.Error()); m != nil {
		pe.StatusCode, _ = strconv.Atoi(m[1])
		pe.Body = truncate(strings.TrimSpace(m[2]), maxErrorBody)
	}
	if pe.StatusCode < http.StatusInternalServerError {
		pe.Code = "rejected"
	}
	return pe
}
