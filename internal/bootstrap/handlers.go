package bootstrap

import (
	"github.com/danielkropka/social-flow-sub001/internal/config"
	"github.com/danielkropka/social-flow-sub001/internal/handlers"
	"github.com/danielkropka/social-flow-sub001/internal/services"
)

// handlerSet holds all HTTP handlers and services needed by the router
type handlerSet struct {
	auth        *handlers.AuthHandler
	connect     *handlers.ConnectHandler
	accounts    *handlers.AccountHandler
	cron        *handlers.CronHandler
	userService *services.UserService
}

// initializeHandlers creates all HTTP handlers
func initializeHandlers(cfg *config.Config, app *Application) handlerSet {
	return handlerSet{
		auth: handlers.NewAuthHandler(app.UserService),
		connect: handlers.NewConnectHandler(
			app.ConnectService,
			cfg.FrontendURL,
			cfg.HandshakeTTL,
			cfg.IsProduction,
		),
		accounts:    handlers.NewAccountHandler(app.ConnectService, app.StatsRefresher, app.AuditService),
		cron:        handlers.NewCronHandler(app.StatsRefresher, app.TokenRefresher),
		userService: app.UserService,
	}
}
