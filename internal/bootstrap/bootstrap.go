package bootstrap

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielkropka/social-flow-sub001/internal/auth"
	"github.com/danielkropka/social-flow-sub001/internal/config"
	"github.com/danielkropka/social-flow-sub001/internal/core"
	"github.com/danielkropka/social-flow-sub001/internal/metrics"
	"github.com/danielkropka/social-flow-sub001/internal/models"
	"github.com/danielkropka/social-flow-sub001/internal/ratelimit"
	"github.com/danielkropka/social-flow-sub001/internal/services"
	"github.com/danielkropka/social-flow-sub001/internal/store"
	"github.com/danielkropka/social-flow-sub001/internal/util"

	"github.com/appleboy/graceful"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Application holds all initialized components
type Application struct {
	Config *config.Config
	Log    *zap.Logger

	// Core infrastructure
	DB                   *store.Store
	MetricsRecorder      metrics.Recorder
	MetricsCache         core.Cache[int64]
	HandshakeCache       core.Cache[models.PendingHandshake]
	UserCache            core.Cache[models.User]
	RateLimitRedisClient *redis.Client
	RateLimitCounter     ratelimit.Counter
	Cipher               *util.TokenCipher
	ProviderClient       *http.Client
	Registry             *auth.Registry

	// Services
	AuditService   *services.AuditService
	UserService    *services.UserService
	ConnectService *services.ConnectService
	StatsRefresher *services.StatsRefresher
	TokenRefresher *services.TokenRefreshService

	// HTTP
	HandlerSet handlerSet
	Router     *gin.Engine
	Server     *http.Server
}

// New validates the configuration and builds infrastructure and services.
// The caller owns the result and must Close it.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Application, error) {
	if log == nil {
		log = zap.NewNop()
	}
	app := &Application{Config: cfg, Log: log}

	// Phase 1: Validate configuration
	if err := validateAllConfiguration(cfg, log); err != nil {
		return nil, err
	}

	// Phase 2: Initialize infrastructure
	if err := app.initializeInfrastructure(ctx); err != nil {
		_ = app.Close()
		return nil, err
	}

	// Phase 3: Initialize business layer
	app.initializeBusinessLayer()
	return app, nil
}

// Run starts the HTTP server and blocks until graceful shutdown completes.
func Run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	app, err := New(ctx, cfg, log)
	if err != nil {
		return err
	}

	// Phase 4: Initialize HTTP layer
	app.initializeHTTPLayer()

	// Phase 5: Start server with graceful shutdown
	app.startWithGracefulShutdown()
	return nil
}

// RunRefreshStats refreshes every active account once, for use by an
// external scheduler through the CLI.
func RunRefreshStats(ctx context.Context, cfg *config.Config, log *zap.Logger) ([]services.RefreshResult, error) {
	app, err := New(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	defer app.Close()

	return app.StatsRefresher.Refresh(ctx, services.RefreshRequest{Scope: services.ScopeAllActive})
}

// RunRefreshTokens renews expiring provider tokens once.
func RunRefreshTokens(
	ctx context.Context,
	cfg *config.Config,
	log *zap.Logger,
) ([]services.TokenRefreshResult, error) {
	app, err := New(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	defer app.Close()

	return app.TokenRefresher.RefreshExpiring(ctx)
}

// RunSetUserActive enables or disables login for one user.
func RunSetUserActive(
	ctx context.Context,
	cfg *config.Config,
	log *zap.Logger,
	userID string,
	active bool,
) error {
	app, err := New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer app.Close()

	return app.UserService.SetActive(ctx, userID, active)
}

// initializeInfrastructure sets up database, metrics, caches, Redis and provider clients
func (app *Application) initializeInfrastructure(ctx context.Context) error {
	var err error
	cfg := app.Config

	app.Cipher, err = util.NewTokenCipher(cfg.EncryptionKey)
	if err != nil {
		return err
	}

	// Database
	app.DB, err = initializeDatabase(ctx, cfg, app.Log)
	if err != nil {
		return err
	}

	// Metrics
	app.MetricsRecorder = initializeMetrics(cfg, app.Log)
	app.MetricsCache, err = initializeMetricsCache(ctx, cfg, app.Log)
	if err != nil {
		return err
	}

	// Handshake and user caches
	app.HandshakeCache, err = initializeHandshakeCache(ctx, cfg, app.Log)
	if err != nil {
		return err
	}
	app.UserCache, err = initializeUserCache(ctx, cfg, app.Log)
	if err != nil {
		return err
	}

	// Redis (for rate limiting)
	app.RateLimitRedisClient, err = initializeRateLimitRedisClient(ctx, cfg, app.Log)
	if err != nil {
		return err
	}
	app.RateLimitCounter = initializeRateLimitCounter(cfg, app.RateLimitRedisClient)

	// Providers
	app.ProviderClient, err = createProviderHTTPClient(cfg, app.Log)
	if err != nil {
		return err
	}
	app.Registry = initializeProviderRegistry(cfg, app.ProviderClient, app.Log)
	return nil
}

// initializeBusinessLayer sets up services
func (app *Application) initializeBusinessLayer() {
	// Audit service (required by other services)
	app.AuditService = services.NewAuditService(
		app.DB,
		app.Config.EnableAuditLogging,
		app.Config.AuditLogBufferSize,
		app.Log,
	)

	app.UserService,
		app.ConnectService,
		app.StatsRefresher,
		app.TokenRefresher = initializeServices(app)
}

// initializeHTTPLayer sets up handlers, router, and server
func (app *Application) initializeHTTPLayer() {
	app.HandlerSet = initializeHandlers(app.Config, app)
	app.Router = setupRouter(app)
	app.Server = createHTTPServer(app.Config, app.Router)
}

// startWithGracefulShutdown starts the server and handles graceful shutdown
func (app *Application) startWithGracefulShutdown() {
	m := graceful.NewManager()

	// Add jobs
	addServerRunningJob(m, app.Server, app.Log)
	addServerShutdownJob(m, app.Server, app.Log)
	addRedisClientShutdownJob(m, app.RateLimitRedisClient, app.Log)
	addAuditServiceShutdownJob(m, app.AuditService, app.Log)
	addAuditLogCleanupJob(m, app.Config, app.AuditService, app.Log)
	addMetricsGaugeUpdateJob(m, app.Config, app.DB, app.MetricsRecorder, app.MetricsCache, app.Log)
	addMemorySweepJob(m, app.Config, app.Log, app.RateLimitCounter, app.HandshakeCache, app.UserCache)
	addCacheCleanupJob(m, app.Log, app.MetricsCache, app.HandshakeCache, app.UserCache)
	addDatabaseCloseJob(m, app.DB, app.Log)

	// Wait for graceful shutdown
	<-m.Done()
}

// Close releases everything New opened. It is used by one-shot commands;
// the server releases the same resources through shutdown jobs.
func (app *Application) Close() error {
	var errs []error
	if app.AuditService != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		errs = append(errs, app.AuditService.Shutdown(ctx))
		cancel()
	}
	for _, c := range []interface{ Close() error }{
		app.MetricsCache, app.HandshakeCache, app.UserCache,
	} {
		if c != nil {
			errs = append(errs, c.Close())
		}
	}
	if app.RateLimitRedisClient != nil {
		errs = append(errs, app.RateLimitRedisClient.Close())
	}
	if app.DB != nil {
		errs = append(errs, app.DB.Close())
	}
	return errors.Join(errs...)
}
