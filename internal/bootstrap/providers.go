package bootstrap

import (
	"net/http"
	"time"

	"github.com/danielkropka/social-flow-sub001/internal/auth"
	"github.com/danielkropka/social-flow-sub001/internal/client"
	"github.com/danielkropka/social-flow-sub001/internal/config"

	"go.uber.org/zap"
)

// createProviderHTTPClient builds the client shared by every exchanger
func createProviderHTTPClient(cfg *config.Config, log *zap.Logger) (*http.Client, error) {
	if cfg.OAuthInsecureSkipVerify {
		log.Warn("TLS verification of provider endpoints is disabled")
	}
	return client.NewProviderClient(cfg.OAuthTimeout, cfg.OAuthInsecureSkipVerify)
}

// initializeProviderRegistry registers an exchanger for every enabled
// provider. Providers left out answer connect requests with a
// configuration error.
func initializeProviderRegistry(cfg *config.Config, httpClient *http.Client, log *zap.Logger) *auth.Registry {
	opts := auth.Options{
		HTTPClient: httpClient,
		Read: client.NewRetryingRead(client.RetryConfig{
			MaxRetries:    cfg.StatsMaxRetries,
			RetryDelay:    cfg.StatsRetryDelay,
			MaxRetryDelay: cfg.StatsMaxRetryDelay,
		}),
		Now: time.Now,
	}

	var exchangers []auth.Exchanger

	if cfg.TwitterEnabled {
		exchangers = append(exchangers, auth.NewTwitterExchanger(auth.TwitterConfig{
			ConsumerKey:    cfg.TwitterConsumerKey,
			ConsumerSecret: cfg.TwitterConsumerSecret,
			CallbackURL:    cfg.TwitterCallbackURL,
			APIURL:         cfg.TwitterAPIURL,
		}, opts))
	}

	if cfg.InstagramEnabled {
		switch cfg.InstagramLoginMode {
		case config.InstagramLoginFacebookPage:
			exchangers = append(exchangers, auth.NewInstagramBusinessExchanger(auth.FacebookConfig{
				AppID:        cfg.InstagramClientID,
				AppSecret:    cfg.InstagramClientSecret,
				RedirectURL:  cfg.InstagramRedirectURL,
				Scopes:       cfg.InstagramScopes,
				AuthURL:      cfg.FacebookAuthURL,
				GraphURL:     cfg.FacebookGraphURL,
				GraphVersion: cfg.FacebookGraphVersion,
			}, opts))
		default:
			exchangers = append(exchangers, auth.NewInstagramExchanger(auth.InstagramConfig{
				ClientID:     cfg.InstagramClientID,
				ClientSecret: cfg.InstagramClientSecret,
				RedirectURL:  cfg.InstagramRedirectURL,
				Scopes:       cfg.InstagramScopes,
				AuthURL:      cfg.InstagramAuthURL,
				GraphURL:     cfg.InstagramGraphURL,
			}, opts))
		}
	}

	if cfg.FacebookEnabled {
		exchangers = append(exchangers, auth.NewFacebookExchanger(auth.FacebookConfig{
			AppID:        cfg.FacebookAppID,
			AppSecret:    cfg.FacebookAppSecret,
			RedirectURL:  cfg.FacebookRedirectURL,
			Scopes:       cfg.FacebookScopes,
			AuthURL:      cfg.FacebookAuthURL,
			GraphURL:     cfg.FacebookGraphURL,
			GraphVersion: cfg.FacebookGraphVersion,
		}, opts))
	}

	if cfg.TikTokEnabled {
		exchangers = append(exchangers, auth.NewTikTokExchanger(auth.TikTokConfig{
			ClientKey:    cfg.TikTokClientKey,
			ClientSecret: cfg.TikTokClientSecret,
			RedirectURL:  cfg.TikTokRedirectURL,
			Scopes:       cfg.TikTokScopes,
			AuthURL:      cfg.TikTokAuthURL,
			APIURL:       cfg.TikTokAPIURL,
		}, opts))
	}

	registry := auth.NewRegistry(exchangers...)
	providers := registry.Providers()
	names := make([]string, 0, len(providers))
	for _, p := range providers {
		names = append(names, string(p))
	}
	if len(names) == 0 {
		log.Warn("no providers enabled, every connect request will fail")
	} else {
		log.Info("providers enabled", zap.Strings("providers", names))
	}
	return registry
}
