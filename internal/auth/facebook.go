package auth

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/danielkropka/social-flow-sub001/internal/models"

	"golang.org/x/oauth2"
)

// FacebookConfig configures exchangers that log in through Facebook.
type FacebookConfig struct {
	AppID        string
	AppSecret    string
	RedirectURL  string
	Scopes       []string
	AuthURL      string // e.g. https://www.facebook.com
	GraphURL     string // e.g. https://graph.facebook.com
	GraphVersion string // e.g. v19.0
}

// graphLogin is the Facebook Login flow shared by the Facebook and the
// Instagram-through-Page exchangers.
type graphLogin struct {
	base
	config    *oauth2.Config
	appID     string
	appSecret string
	graphURL  string // includes the version segment
}

func newGraphLogin(provider models.Provider, cfg FacebookConfig, opts Options) graphLogin {
	authURL := strings.TrimRight(cfg.AuthURL, "/") + "/" + cfg.GraphVersion
	graphURL := strings.TrimRight(cfg.GraphURL, "/") + "/" + cfg.GraphVersion
	return graphLogin{
		base:      newBase(provider, opts),
		appID:     cfg.AppID,
		appSecret: cfg.AppSecret,
		graphURL:  graphURL,
		config: &oauth2.Config{
			ClientID:     cfg.AppID,
			ClientSecret: cfg.AppSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   authURL + "/dialog/oauth",
				TokenURL:  graphURL + "/oauth/access_token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
	}
}

func (g *graphLogin) Protocol() Protocol {
	return ProtocolOAuth2
}

func (g *graphLogin) Initiate(_ context.Context, state string) (*Initiation, error) {
	return &Initiation{
		AuthorizeURL: g.config.AuthCodeURL(
			state,
			oauth2.SetAuthURLParam("scope", strings.Join(g.config.Scopes, ",")),
		),
		HandshakeToken: state,
	}, nil
}

type graphToken struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// login runs the callback checks, the code exchange and the long-lived
// token upgrade.
func (g *graphLogin) login(
	ctx context.Context,
	h Handshake,
	params CallbackParams,
) (*graphToken, error) {
	if err := g.checkOAuth2Callback(h, params); err != nil {
		return nil, err
	}

	shortLived, err := g.exchangeCode(ctx, g.config, "code_exchange", params.Code)
	if err != nil {
		return nil, err
	}
	return g.exchangeLongLived(ctx, shortLived.AccessToken)
}

func (g *graphLogin) exchangeLongLived(ctx context.Context, token string) (*graphToken, error) {
	q := url.Values{
		"grant_type":        {"fb_exchange_token"},
		"client_id":         {g.appID},
		"client_secret":     {g.appSecret},
		"fb_exchange_token": {token},
	}
	var out graphToken
	if err := g.getJSON(ctx, "long_lived_token", g.graphURL+"/oauth/access_token?"+q.Encode(),
		&out); err != nil {
		return nil, err
	}
	if out.AccessToken == "" {
		return nil, &ProviderError{
			Provider: g.provider,
			Op:       "long_lived_token",
			Code:     "missing_token",
			Err:      errors.New("response has no access_token"),
		}
	}
	return &out, nil
}

// RefreshTokens re-exchanges the current long-lived token for a fresh one.
func (g *graphLogin) RefreshTokens(ctx context.Context, creds AccountCredentials) (*Tokens, error) {
	out, err := g.exchangeLongLived(ctx, creds.AccessToken)
	if err != nil {
		return nil, err
	}
	return &Tokens{AccessToken: out.AccessToken, ExpiresAt: g.expiry(out.ExpiresIn)}, nil
}

// FacebookExchanger connects Facebook profiles. It has no metrics support.
type FacebookExchanger struct {
	graphLogin
}

var (
	_ Exchanger      = (*FacebookExchanger)(nil)
	_ TokenRefresher = (*FacebookExchanger)(nil)
)

// NewFacebookExchanger creates the Facebook exchanger.
func NewFacebookExchanger(cfg FacebookConfig, opts Options) *FacebookExchanger {
	return &FacebookExchanger{graphLogin: newGraphLogin(models.ProviderFacebook, cfg, opts)}
}

func (e *FacebookExchanger) Complete(
	ctx context.Context,
	h Handshake,
	params CallbackParams,
) (*Credential, error) {
	token, err := e.login(ctx, h, params)
	if err != nil {
		return nil, err
	}

	q := url.Values{
		"fields":       {"id,name,picture,link"},
		"access_token": {token.AccessToken},
	}
	var me struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		Link    string `json:"link"`
		Picture struct {
			Data struct {
				URL string `json:"url"`
			} `json:"data"`
		} `json:"picture"`
	}
	if err := e.getJSON(ctx, "profile", e.graphURL+"/me?"+q.Encode(), &me); err != nil {
		return nil, err
	}
	if me.ID == "" {
		return nil, &ProviderError{
			Provider: e.provider,
			Op:       "profile",
			Code:     "missing_user",
			Err:      errors.New("response has no user id"),
		}
	}

	profileURL := me.Link
	if profileURL == "" {
		profileURL = "https://www.facebook.com/" + me.ID
	}

	return &Credential{
		Provider: models.ProviderFacebook,
		Tokens: Tokens{
			AccessToken: token.AccessToken,
			ExpiresAt:   e.expiry(token.ExpiresIn),
			Scopes:      strings.Join(e.config.Scopes, ","),
		},
		Profile: Profile{
			ProviderAccountID: me.ID,
			Username:          me.Name,
			DisplayName:       me.Name,
			ProfileImageURL:   me.Picture.Data.URL,
			ProfileURL:        profileURL,
		},
	}, nil
}
