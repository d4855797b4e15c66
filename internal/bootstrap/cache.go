package bootstrap

import (
	"context"
	"fmt"

	"github.com/danielkropka/social-flow-sub001/internal/cache"
	"github.com/danielkropka/social-flow-sub001/internal/config"
	"github.com/danielkropka/social-flow-sub001/internal/core"
	"github.com/danielkropka/social-flow-sub001/internal/metrics"
	"github.com/danielkropka/social-flow-sub001/internal/models"

	"go.uber.org/zap"
)

const cacheKeyPrefix = "socialflow:"

// initializeMetrics initializes Prometheus metrics
func initializeMetrics(cfg *config.Config, log *zap.Logger) metrics.Recorder {
	prometheusMetrics := metrics.Init(cfg.MetricsEnabled)
	if cfg.MetricsEnabled {
		log.Info("prometheus metrics initialized")
	} else {
		log.Info("metrics disabled, using noop implementation")
	}
	return prometheusMetrics
}

// newCache builds a memory or rueidis cache for T under prefix.
func newCache[T any](
	ctx context.Context,
	cfg *config.Config,
	backend, prefix string,
) (core.Cache[T], error) {
	switch backend {
	case config.StoreRedis:
		ctx, cancel := context.WithTimeout(ctx, cfg.RedisConnTimeout)
		defer cancel()

		c, err := cache.NewRueidisCache[T](ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, prefix)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return cache.NewMemoryCache[T](), nil
	}
}

// initializeMetricsCache initializes the gauge cache. It is nil when the
// gauge job does not run.
func initializeMetricsCache(
	ctx context.Context,
	cfg *config.Config,
	log *zap.Logger,
) (core.Cache[int64], error) {
	if !cfg.MetricsEnabled || !cfg.MetricsGaugeUpdateEnabled {
		return nil, nil //nolint:nilnil // cache not needed in this configuration
	}

	c, err := newCache[int64](ctx, cfg, cfg.MetricsCacheType, cacheKeyPrefix+"metrics:")
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s metrics cache: %w", cfg.MetricsCacheType, err)
	}
	log.Info("metrics cache initialized", zap.String("backend", cfg.MetricsCacheType))
	return c, nil
}

// initializeHandshakeCache initializes the pending handshake store backend.
// Multi-instance deployments need redis so the callback can land anywhere.
func initializeHandshakeCache(
	ctx context.Context,
	cfg *config.Config,
	log *zap.Logger,
) (core.Cache[models.PendingHandshake], error) {
	c, err := newCache[models.PendingHandshake](ctx, cfg, cfg.HandshakeStore, cacheKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s handshake store: %w", cfg.HandshakeStore, err)
	}
	log.Info("handshake store initialized",
		zap.String("backend", cfg.HandshakeStore),
		zap.Duration("ttl", cfg.HandshakeTTL))
	return c, nil
}

// initializeUserCache initializes the session user cache on the same
// backend as the handshake store.
func initializeUserCache(
	ctx context.Context,
	cfg *config.Config,
	log *zap.Logger,
) (core.Cache[models.User], error) {
	c, err := newCache[models.User](ctx, cfg, cfg.HandshakeStore, cacheKeyPrefix+"users:")
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s user cache: %w", cfg.HandshakeStore, err)
	}
	log.Info("user cache initialized", zap.String("backend", cfg.HandshakeStore))
	return c, nil
}
