package bootstrap

import (
	"time"

	"github.com/danielkropka/social-flow-sub001/internal/auth"
	"github.com/danielkropka/social-flow-sub001/internal/services"
)

const userCacheTTL = 5 * time.Minute

// initializeServices creates all business services
func initializeServices(app *Application) (
	*services.UserService,
	*services.ConnectService,
	*services.StatsRefresher,
	*services.TokenRefreshService,
) {
	cfg := app.Config

	userService := services.NewUserService(
		app.DB,
		auth.NewLocalAuthProvider(app.DB),
		app.MetricsRecorder,
		app.AuditService,
		app.UserCache,
		userCacheTTL,
		app.Log,
	)
	connectService := services.NewConnectService(
		app.DB,
		app.Registry,
		services.NewHandshakeStore(app.HandshakeCache, cfg.HandshakeTTL),
		app.Cipher,
		app.MetricsRecorder,
		app.AuditService,
		app.Log,
	)
	statsRefresher := services.NewStatsRefresher(
		app.DB,
		app.Registry,
		app.Cipher,
		app.MetricsRecorder,
		app.AuditService,
		cfg.StatsRefreshConcurrency,
		app.Log,
	)
	tokenRefresher := services.NewTokenRefreshService(
		app.DB,
		app.Registry,
		app.Cipher,
		app.MetricsRecorder,
		app.AuditService,
		cfg.TokenRefreshWindow,
		app.Log,
	)

	return userService, connectService, statsRefresher, tokenRefresher
}
