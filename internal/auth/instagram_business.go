package auth

import (
	"context"
	"net/url"
	"strings"

	"github.com/danielkropka/social-flow-sub001/internal/models"
)

const igBusinessFields = "id,username,name,profile_picture_url,followers_count,media_count"

// InstagramBusinessExchanger connects an Instagram business account that is
// linked to one of the user's Facebook Pages.
type InstagramBusinessExchanger struct {
	graphLogin
}

var (
	_ Exchanger      = (*InstagramBusinessExchanger)(nil)
	_ MetricsFetcher = (*InstagramBusinessExchanger)(nil)
	_ TokenRefresher = (*InstagramBusinessExchanger)(nil)
)

// NewInstagramBusinessExchanger creates the Instagram exchanger that logs in
// through Facebook.
func NewInstagramBusinessExchanger(cfg FacebookConfig, opts Options) *InstagramBusinessExchanger {
	return &InstagramBusinessExchanger{graphLogin: newGraphLogin(models.ProviderInstagram, cfg, opts)}
}

// Complete logs in through Facebook and picks the first Page that has an
// Instagram business account attached.
func (e *InstagramBusinessExchanger) Complete(
	ctx context.Context,
	h Handshake,
	params CallbackParams,
) (*Credential, error) {
	token, err := e.login(ctx, h, params)
	if err != nil {
		return nil, err
	}

	igID, err := e.findBusinessAccount(ctx, token.AccessToken)
	if err != nil {
		return nil, err
	}

	profile, err := e.igAccount(ctx, "profile", igID, token.AccessToken, false)
	if err != nil {
		return nil, err
	}

	return &Credential{
		Provider: models.ProviderInstagram,
		Tokens: Tokens{
			AccessToken: token.AccessToken,
			ExpiresAt:   e.expiry(token.ExpiresIn),
			Scopes:      strings.Join(e.config.Scopes, ","),
		},
		Profile: Profile{
			ProviderAccountID: igID,
			Username:          profile.Username,
			DisplayName:       profile.Name,
			ProfileImageURL:   profile.ProfilePictureURL,
			ProfileURL:        "https://www.instagram.com/" + profile.Username,
			FollowersCount:    int64Ptr(profile.FollowersCount),
			PostsCount:        int64Ptr(profile.MediaCount),
		},
	}, nil
}

// FetchMetrics reads counters from the business account node.
func (e *InstagramBusinessExchanger) FetchMetrics(
	ctx context.Context,
	creds AccountCredentials,
) (*Metrics, error) {
	acct, err := e.igAccount(ctx, "metrics", creds.ProviderAccountID, creds.AccessToken, true)
	if err != nil {
		return nil, err
	}
	return &Metrics{FollowersCount: acct.FollowersCount, PostsCount: acct.MediaCount}, nil
}

func (e *InstagramBusinessExchanger) findBusinessAccount(
	ctx context.Context,
	accessToken string,
) (string, error) {
	q := url.Values{"access_token": {accessToken}}
	var pages struct {
		Data []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"data"`
	}
	if err := e.getJSON(ctx, "pages", e.graphURL+"/me/accounts?"+q.Encode(), &pages); err != nil {
		return "", err
	}

	for _, page := range pages.Data {
		pq := url.Values{
			"fields":       {"instagram_business_account"},
			"access_token": {accessToken},
		}
		var node struct {
			InstagramBusinessAccount *struct {
				ID string `json:"id"`
			} `json:"instagram_business_account"`
		}
		if err := e.getJSON(ctx, "page_probe",
			e.graphURL+"/"+url.PathEscape(page.ID)+"?"+pq.Encode(), &node); err != nil {
			return "", err
		}
		if node.InstagramBusinessAccount != nil && node.InstagramBusinessAccount.ID != "" {
			return node.InstagramBusinessAccount.ID, nil
		}
	}
	return "", ErrNoBusinessAccount
}

type igBusinessAccount struct {
	ID                string `json:"id"`
	Username          string `json:"username"`
	Name              string `json:"name"`
	ProfilePictureURL string `json:"profile_picture_url"`
	FollowersCount    int64  `json:"followers_count"`
	MediaCount        int64  `json:"media_count"`
}

func (e *InstagramBusinessExchanger) igAccount(
	ctx context.Context,
	op, igID, accessToken string,
	retryable bool,
) (*igBusinessAccount, error) {
	q := url.Values{
		"fields":       {igBusinessFields},
		"access_token": {accessToken},
	}
	rawURL := e.graphURL + "/" + url.PathEscape(igID) + "?" + q.Encode()

	var acct igBusinessAccount
	var err error
	if retryable {
		err = e.readJSON(ctx, e.client, op, rawURL, &acct)
	} else {
		err = e.getJSON(ctx, op, rawURL, &acct)
	}
	if err != nil {
		return nil, err
	}
	return &acct, nil
}
