package auth

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/danielkropka/social-flow-sub001/internal/models"

	"golang.org/x/oauth2"
)

// TikTokConfig configures the TikTok Login Kit exchanger.
type TikTokConfig struct {
	ClientKey    string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	AuthURL      string // e.g. https://www.tiktok.com
	APIURL       string // e.g. https://open.tiktokapis.com
}

const tiktokUserFields = "open_id,union_id,avatar_url,display_name,username," +
	"profile_deep_link,follower_count,video_count"

// TikTokExchanger connects TikTok accounts. TikTok names the client ID
// client_key and separates scopes with commas.
type TikTokExchanger struct {
	base
	config       *oauth2.Config
	clientKey    string
	clientSecret string
	apiURL       string
}

var (
	_ Exchanger      = (*TikTokExchanger)(nil)
	_ MetricsFetcher = (*TikTokExchanger)(nil)
	_ TokenRefresher = (*TikTokExchanger)(nil)
)

// NewTikTokExchanger creates the TikTok exchanger.
func NewTikTokExchanger(cfg TikTokConfig, opts Options) *TikTokExchanger {
	apiURL := strings.TrimRight(cfg.APIURL, "/")
	return &TikTokExchanger{
		base:         newBase(models.ProviderTikTok, opts),
		clientKey:    cfg.ClientKey,
		clientSecret: cfg.ClientSecret,
		apiURL:       apiURL,
		config: &oauth2.Config{
			ClientID:     cfg.ClientKey,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   strings.TrimRight(cfg.AuthURL, "/") + "/v2/auth/authorize/",
				TokenURL:  apiURL + "/v2/oauth/token/",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
	}
}

func (e *TikTokExchanger) Protocol() Protocol {
	return ProtocolOAuth2
}

func (e *TikTokExchanger) Initiate(_ context.Context, state string) (*Initiation, error) {
	return &Initiation{
		AuthorizeURL: e.config.AuthCodeURL(
			state,
			oauth2.SetAuthURLParam("client_key", e.clientKey),
			oauth2.SetAuthURLParam("scope", strings.Join(e.config.Scopes, ",")),
		),
		HandshakeToken: state,
	}, nil
}

func (e *TikTokExchanger) Complete(
	ctx context.Context,
	h Handshake,
	params CallbackParams,
) (*Credential, error) {
	if err := e.checkOAuth2Callback(h, params); err != nil {
		return nil, err
	}

	token, err := e.exchangeCode(ctx, e.config, "code_exchange", params.Code,
		oauth2.SetAuthURLParam("client_key", e.clientKey))
	if err != nil {
		return nil, err
	}

	openID, _ := token.Extra("open_id").(string)
	scope, _ := token.Extra("scope").(string)

	user, err := e.userInfo(ctx, "profile", token.AccessToken, false)
	if err != nil {
		return nil, err
	}
	if user.OpenID != "" {
		openID = user.OpenID
	}
	if openID == "" {
		return nil, &ProviderError{
			Provider: e.provider,
			Op:       "profile",
			Code:     "missing_user",
			Err:      errors.New("no open_id in token or user info"),
		}
	}

	profileURL := user.ProfileDeepLink
	if profileURL == "" && user.Username != "" {
		profileURL = "https://www.tiktok.com/@" + user.Username
	}

	return &Credential{
		Provider: models.ProviderTikTok,
		Tokens: Tokens{
			AccessToken:  token.AccessToken,
			RefreshToken: token.RefreshToken,
			ExpiresAt:    tokenExpiry(token),
			Scopes:       scope,
		},
		Profile: Profile{
			ProviderAccountID: openID,
			Username:          user.Username,
			DisplayName:       user.DisplayName,
			ProfileImageURL:   user.AvatarURL,
			ProfileURL:        profileURL,
			FollowersCount:    int64Ptr(user.FollowerCount),
			PostsCount:        int64Ptr(user.VideoCount),
		},
	}, nil
}

// FetchMetrics reads follower_count and video_count.
func (e *TikTokExchanger) FetchMetrics(
	ctx context.Context,
	creds AccountCredentials,
) (*Metrics, error) {
	user, err := e.userInfo(ctx, "metrics", creds.AccessToken, true)
	if err != nil {
		return nil, err
	}
	return &Metrics{FollowersCount: user.FollowerCount, PostsCount: user.VideoCount}, nil
}

// RefreshTokens uses the refresh_token grant. TikTok may rotate the
// refresh token.
func (e *TikTokExchanger) RefreshTokens(
	ctx context.Context,
	creds AccountCredentials,
) (*Tokens, error) {
	if creds.RefreshToken == "" {
		return nil, &ProviderError{
			Provider: e.provider,
			Op:       "refresh",
			Code:     "missing_refresh_token",
			Err:      errors.New("account has no refresh token"),
		}
	}

	form := url.Values{
		"client_key":    {e.clientKey},
		"client_secret": {e.clientSecret},
		"grant_type":    {"refresh_token"},
		"refresh_token": {creds.RefreshToken},
	}
	var out struct {
		AccessToken      string `json:"access_token"`
		RefreshToken     string `json:"refresh_token"`
		ExpiresIn        int64  `json:"expires_in"`
		Scope            string `json:"scope"`
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	if err := e.postForm(ctx, "refresh", e.apiURL+"/v2/oauth/token/", form, &out); err != nil {
		return nil, err
	}
	if out.Error != "" || out.AccessToken == "" {
		return nil, &ProviderError{
			Provider: e.provider,
			Op:       "refresh",
			Code:     firstNonEmpty(out.Error, "missing_token"),
			Body:     truncate(out.ErrorDescription, maxErrorBody),
		}
	}

	return &Tokens{
		AccessToken:  out.AccessToken,
		RefreshToken: out.RefreshToken,
		ExpiresAt:    e.expiry(out.ExpiresIn),
		Scopes:       out.Scope,
	}, nil
}

type tiktokUser struct {
	OpenID          string `json:"open_id"`
	AvatarURL       string `json:"avatar_url"`
	DisplayName     string `json:"display_name"`
	Username        string `json:"username"`
	ProfileDeepLink string `json:"profile_deep_link"`
	FollowerCount   int64  `json:"follower_count"`
	VideoCount      int64  `json:"video_count"`
}

// userInfo calls v2/user/info. TikTok reports errors in the body with
// error.code != "ok", sometimes alongside a 200.
func (e *TikTokExchanger) userInfo(
	ctx context.Context,
	op, accessToken string,
	retryable bool,
) (*tiktokUser, error) {
	rawURL := e.apiURL + "/v2/user/info/?fields=" + tiktokUserFields
	client := bearerClient(e.client, accessToken)

	var out struct {
		Data struct {
			User tiktokUser `json:"user"`
		} `json:"data"`
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}

	var err error
	if retryable {
		err = e.readJSON(ctx, client, op, rawURL, &out)
	} else {
		err = e.getJSONWith(ctx, client, op, rawURL, &out)
	}
	if err != nil {
		return nil, err
	}
	if out.Error.Code != "" && out.Error.Code != "ok" {
		return nil, &ProviderError{
			Provider:   e.provider,
			Op:         op,
			StatusCode: http.StatusOK,
			Code:       out.Error.Code,
			Body:       truncate(out.Error.Message, maxErrorBody),
		}
	}
	return &out.Data.User, nil
}

// bearerClient returns a client that adds an Authorization header to every
// request while sharing the underlying transport.
func bearerClient(c *http.Client, accessToken string) *http.Client {
	return &http.Client{
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{
				AccessToken: accessToken,
				TokenType:   "Bearer",
			}),
			Base: c.Transport,
		},
		Timeout:       c.Timeout,
		CheckRedirect: c.CheckRedirect,
		Jar:           c.Jar,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
