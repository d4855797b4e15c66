package auth

import (
	"context"
	"net/url"
	"strings"

	"github.com/danielkropka/social-flow-sub001/internal/models"

	"golang.org/x/oauth2"
)

// InstagramConfig configures the Instagram Login exchanger.
type InstagramConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	AuthURL      string // e.g. https://api.instagram.com
	GraphURL     string // e.g. https://graph.instagram.com
}

// Account types allowed to publish through the API.
var allowedInstagramAccountTypes = map[string]bool{
	"BUSINESS":      true,
	"CREATOR":       true,
	"MEDIA_CREATOR": true,
}

const instagramProfileFields = "user_id,username,name,account_type,profile_picture_url," +
	"followers_count,media_count"

// InstagramExchanger connects professional Instagram accounts through
// Instagram Login.
type InstagramExchanger struct {
	base
	config       *oauth2.Config
	clientSecret string
	graphURL     string
}

var (
	_ Exchanger      = (*InstagramExchanger)(nil)
	_ MetricsFetcher = (*InstagramExchanger)(nil)
	_ TokenRefresher = (*InstagramExchanger)(nil)
)

// NewInstagramExchanger creates the Instagram Login exchanger.
func NewInstagramExchanger(cfg InstagramConfig, opts Options) *InstagramExchanger {
	authURL := strings.TrimRight(cfg.AuthURL, "/")
	return &InstagramExchanger{
		base:         newBase(models.ProviderInstagram, opts),
		clientSecret: cfg.ClientSecret,
		graphURL:     strings.TrimRight(cfg.GraphURL, "/"),
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   authURL + "/oauth/authorize",
				TokenURL:  authURL + "/oauth/access_token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
	}
}

func (e *InstagramExchanger) Protocol() Protocol {
	return ProtocolOAuth2
}

func (e *InstagramExchanger) Initiate(_ context.Context, state string) (*Initiation, error) {
	return &Initiation{
		AuthorizeURL: e.config.AuthCodeURL(
			state,
			oauth2.SetAuthURLParam("scope", strings.Join(e.config.Scopes, ",")),
		),
		HandshakeToken: state,
	}, nil
}

// Complete exchanges the code, upgrades to a long-lived token and verifies
// the account type.
func (e *InstagramExchanger) Complete(
	ctx context.Context,
	h Handshake,
	params CallbackParams,
) (*Credential, error) {
	if err := e.checkOAuth2Callback(h, params); err != nil {
		return nil, err
	}

	// Instagram appends "#_" to the code on redirect.
	code := strings.TrimSuffix(params.Code, "#_")
	shortLived, err := e.exchangeCode(ctx, e.config, "code_exchange", code)
	if err != nil {
		return nil, err
	}

	var longLived struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	q := url.Values{
		"grant_type":    {"ig_exchange_token"},
		"client_secret": {e.clientSecret},
		"access_token":  {shortLived.AccessToken},
	}
	if err := e.getJSON(ctx, "long_lived_token", e.graphURL+"/access_token?"+q.Encode(),
		&longLived); err != nil {
		return nil, err
	}

	profile, err := e.profile(ctx, longLived.AccessToken)
	if err != nil {
		return nil, err
	}
	if !allowedInstagramAccountTypes[profile.AccountType] {
		return nil, &AccountTypeError{AccountType: profile.AccountType}
	}

	id := profile.UserID
	if id == "" {
		id = profile.ID
	}

	return &Credential{
		Provider: models.ProviderInstagram,
		Tokens: Tokens{
			AccessToken: longLived.AccessToken,
			ExpiresAt:   e.expiry(longLived.ExpiresIn),
			Scopes:      strings.Join(e.config.Scopes, ","),
		},
		Profile: Profile{
			ProviderAccountID: id,
			Username:          profile.Username,
			DisplayName:       profile.Name,
			ProfileImageURL:   profile.ProfilePictureURL,
			ProfileURL:        "https://www.instagram.com/" + profile.Username,
			FollowersCount:    int64Ptr(profile.FollowersCount),
			PostsCount:        int64Ptr(profile.MediaCount),
		},
	}, nil
}

// FetchMetrics reads followers_count and media_count.
func (e *InstagramExchanger) FetchMetrics(
	ctx context.Context,
	creds AccountCredentials,
) (*Metrics, error) {
	q := url.Values{
		"fields":       {"followers_count,media_count"},
		"access_token": {creds.AccessToken},
	}
	var out struct {
		FollowersCount int64 `json:"followers_count"`
		MediaCount     int64 `json:"media_count"`
	}
	if err := e.readJSON(ctx, e.client, "metrics", e.graphURL+"/me?"+q.Encode(), &out); err != nil {
		return nil, err
	}
	return &Metrics{FollowersCount: out.FollowersCount, PostsCount: out.MediaCount}, nil
}

// RefreshTokens extends a long-lived token by another lifetime.
func (e *InstagramExchanger) RefreshTokens(
	ctx context.Context,
	creds AccountCredentials,
) (*Tokens, error) {
	q := url.Values{
		"grant_type":   {"ig_refresh_token"},
		"access_token": {creds.AccessToken},
	}
	var out struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := e.getJSON(ctx, "refresh", e.graphURL+"/refresh_access_token?"+q.Encode(),
		&out); err != nil {
		return nil, err
	}
	return &Tokens{
		AccessToken: out.AccessToken,
		ExpiresAt:   e.expiry(out.ExpiresIn),
	}, nil
}

type instagramProfile struct {
	ID                string `json:"id"`
	UserID            string `json:"user_id"`
	Username          string `json:"username"`
	Name              string `json:"name"`
	AccountType       string `json:"account_type"`
	ProfilePictureURL string `json:"profile_picture_url"`
	FollowersCount    int64  `json:"followers_count"`
	MediaCount        int64  `json:"media_count"`
}

func (e *InstagramExchanger) profile(
	ctx context.Context,
	accessToken string,
) (*instagramProfile, error) {
	q := url.Values{
		"fields":       {instagramProfileFields},
		"access_token": {accessToken},
	}
	var p instagramProfile
	if err := e.getJSON(ctx, "profile", e.graphURL+"/me?"+q.Encode(), &p); err != nil {
		return nil, err
	}
	return &p, nil
}
