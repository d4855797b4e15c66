package bootstrap

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/danielkropka/social-flow-sub001/internal/config"
	"github.com/danielkropka/social-flow-sub001/internal/core"
	"github.com/danielkropka/social-flow-sub001/internal/metrics"
	"github.com/danielkropka/social-flow-sub001/internal/models"
	"github.com/danielkropka/social-flow-sub001/internal/services"
	"github.com/danielkropka/social-flow-sub001/internal/store"

	"github.com/appleboy/graceful"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// createHTTPServer creates the HTTP server instance
func createHTTPServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

// addServerRunningJob adds the HTTP server running job
func addServerRunningJob(m *graceful.Manager, srv *http.Server, log *zap.Logger) {
	m.AddRunningJob(func(ctx context.Context) error {
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatal("failed to start server", zap.Error(err))
			}
		}()
		log.Info("server listening", zap.String("addr", srv.Addr))
		<-ctx.Done()
		return nil
	})
}

// addServerShutdownJob adds HTTP server shutdown handler
func addServerShutdownJob(m *graceful.Manager, srv *http.Server, log *zap.Logger) {
	m.AddShutdownJob(func() error {
		log.Info("shutting down server")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("server forced to shutdown", zap.Error(err))
			return err
		}

		log.Info("server exited")
		return nil
	})
}

// addRedisClientShutdownJob adds Redis client shutdown handler
func addRedisClientShutdownJob(m *graceful.Manager, redisClient *redis.Client, log *zap.Logger) {
	if redisClient == nil {
		return
	}

	m.AddShutdownJob(func() error {
		if err := redisClient.Close(); err != nil {
			log.Error("error closing redis client", zap.Error(err))
			return err
		}
		log.Info("redis connection closed")
		return nil
	})
}

// addAuditServiceShutdownJob flushes buffered audit entries on shutdown
func addAuditServiceShutdownJob(m *graceful.Manager, auditService *services.AuditService, log *zap.Logger) {
	m.AddShutdownJob(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := auditService.Shutdown(ctx); err != nil {
			log.Error("error shutting down audit service", zap.Error(err))
			return err
		}
		return nil
	})
}

// addAuditLogCleanupJob adds periodic audit log cleanup job
func addAuditLogCleanupJob(
	m *graceful.Manager,
	cfg *config.Config,
	auditService *services.AuditService,
	log *zap.Logger,
) {
	if !cfg.EnableAuditLogging || cfg.AuditLogRetention <= 0 {
		return
	}

	cleanup := func(ctx context.Context) {
		deleted, err := auditService.CleanupOldLogs(ctx, cfg.AuditLogRetention)
		switch {
		case err != nil:
			log.Warn("failed to cleanup old audit logs", zap.Error(err))
		case deleted > 0:
			log.Info("cleaned up old audit logs", zap.Int64("deleted", deleted))
		}
	}

	m.AddRunningJob(func(ctx context.Context) error {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()

		// Run cleanup immediately on startup
		cleanup(ctx)

		for {
			select {
			case <-ticker.C:
				cleanup(ctx)
			case <-ctx.Done():
				return nil
			}
		}
	})
}

// addMetricsGaugeUpdateJob adds periodic metrics gauge update job
func addMetricsGaugeUpdateJob(
	m *graceful.Manager,
	cfg *config.Config,
	db *store.Store,
	recorder metrics.Recorder,
	metricsCache core.Cache[int64],
	log *zap.Logger,
) {
	if !cfg.MetricsEnabled || !cfg.MetricsGaugeUpdateEnabled || metricsCache == nil {
		return
	}

	m.AddRunningJob(func(ctx context.Context) error {
		ticker := time.NewTicker(cfg.MetricsGaugeUpdateInterval)
		defer ticker.Stop()

		cacheWrapper := metrics.NewCacheWrapper(db, metricsCache)
		errLog := newErrorLogger(log)

		// Update immediately on startup
		updateGaugeMetricsWithCache(ctx, cacheWrapper, recorder, cfg.MetricsGaugeUpdateInterval, errLog)

		for {
			select {
			case <-ticker.C:
				updateGaugeMetricsWithCache(ctx, cacheWrapper, recorder, cfg.MetricsGaugeUpdateInterval, errLog)
			case <-ctx.Done():
				return nil
			}
		}
	})
}

// sweeper is implemented by the in-process stores that hold expiring keys.
type sweeper interface {
	Sweep() int
}

// addMemorySweepJob periodically drops expired entries from in-process
// counters and caches. Redis-backed stores expire keys on their own.
func addMemorySweepJob(m *graceful.Manager, cfg *config.Config, log *zap.Logger, stores ...any) {
	var targets []sweeper
	for _, s := range stores {
		if sw, ok := s.(sweeper); ok {
			targets = append(targets, sw)
		}
	}
	if len(targets) == 0 || cfg.RateLimitCleanupPeriod <= 0 {
		return
	}

	m.AddRunningJob(func(ctx context.Context) error {
		ticker := time.NewTicker(cfg.RateLimitCleanupPeriod)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				removed := 0
				for _, sw := range targets {
					removed += sw.Sweep()
				}
				if removed > 0 {
					log.Debug("swept expired in-memory entries", zap.Int("removed", removed))
				}
			case <-ctx.Done():
				return nil
			}
		}
	})
}

// closer matches every cache backend.
type closer interface {
	Close() error
}

// addCacheCleanupJob closes caches on shutdown
func addCacheCleanupJob(m *graceful.Manager, log *zap.Logger, caches ...closer) {
	m.AddShutdownJob(func() error {
		for _, c := range caches {
			if c == nil {
				continue
			}
			if err := c.Close(); err != nil {
				log.Warn("error closing cache", zap.Error(err))
			}
		}
		log.Info("caches closed")
		return nil
	})
}

// addDatabaseCloseJob closes the connection pool after everything else has
// stopped using it.
func addDatabaseCloseJob(m *graceful.Manager, db *store.Store, log *zap.Logger) {
	m.AddShutdownJob(func() error {
		if err := db.Close(); err != nil {
			log.Error("error closing database", zap.Error(err))
			return err
		}
		log.Info("database connection closed")
		return nil
	})
}

// errorLogger handles rate-limited error logging
type errorLogger struct {
	mu              sync.Mutex
	log             *zap.Logger
	lastErrorTimes  map[string]time.Time
	rateLimitWindow time.Duration
}

// newErrorLogger creates a new error logger with rate limiting
func newErrorLogger(log *zap.Logger) *errorLogger {
	return &errorLogger{
		log:             log,
		lastErrorTimes:  make(map[string]time.Time),
		rateLimitWindow: 5 * time.Minute, // Log at most once per 5 minutes per operation
	}
}

// logIfNeeded logs an error only if rate limit allows
func (e *errorLogger) logIfNeeded(operation string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := time.Now()
	lastTime, exists := e.lastErrorTimes[operation]
	if !exists || now.Sub(lastTime) >= e.rateLimitWindow {
		e.log.Warn("database query failed",
			zap.String("operation", operation),
			zap.Duration("suppressed_for", e.rateLimitWindow),
			zap.Error(err))
		e.lastErrorTimes[operation] = now
	}
}

// gaugeStatuses are the account statuses reported by the gauge.
var gaugeStatuses = []models.AccountStatus{
	models.AccountStatusActive,
	models.AccountStatusError,
}

// updateGaugeMetricsWithCache updates gauge metrics using a cache-backed store.
// The cache TTL matches the update interval so instances sharing a redis
// cache hit the database once per interval.
func updateGaugeMetricsWithCache(
	ctx context.Context,
	cacheWrapper *metrics.CacheWrapper,
	m metrics.Recorder,
	cacheTTL time.Duration,
	errLog *errorLogger,
) {
	for _, status := range gaugeStatuses {
		count, err := cacheWrapper.GetConnectedAccountsCount(ctx, string(status), cacheTTL)
		if err != nil {
			op := "count_accounts_" + string(status)
			m.RecordDatabaseQueryError(op)
			errLog.logIfNeeded(op, err)
			continue
		}
		m.SetConnectedAccountsCount(string(status), int(count))
	}
}
