package bootstrap

import (
	"context"
	"fmt"

	"github.com/danielkropka/social-flow-sub001/internal/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// initializeRateLimitRedisClient initializes the go-redis client behind the
// shared rate limit counters. Returns nil if rate limiting is disabled or
// uses the memory store.
func initializeRateLimitRedisClient(
	ctx context.Context,
	cfg *config.Config,
	log *zap.Logger,
) (*redis.Client, error) {
	if !cfg.EnableRateLimit || cfg.RateLimitStore != config.StoreRedis {
		return nil, nil //nolint:nilnil // redis client not needed in this configuration
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	// Test connection with timeout
	ctx, cancel := context.WithTimeout(ctx, cfg.RedisConnTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.RedisAddr, err)
	}

	log.Info("rate limit redis client initialized",
		zap.String("addr", cfg.RedisAddr),
		zap.Int("db", cfg.RedisDB))
	return client, nil
}
