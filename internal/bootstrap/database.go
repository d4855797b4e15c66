package bootstrap

import (
	"context"
	"fmt"

	"github.com/danielkropka/social-flow-sub001/internal/config"
	"github.com/danielkropka/social-flow-sub001/internal/logger"
	"github.com/danielkropka/social-flow-sub001/internal/store"

	"go.uber.org/zap"
)

// initializeDatabase creates and initializes the database connection
func initializeDatabase(ctx context.Context, cfg *config.Config, log *zap.Logger) (*store.Store, error) {
	// Create timeout context for this specific operation
	ctx, cancel := context.WithTimeout(ctx, cfg.DBInitTimeout)
	defer cancel()

	db, err := store.New(ctx, cfg.DatabaseDriver, cfg.DatabaseDSN, cfg, logger.WithComponent(log, "store"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	log.Info("database initialized",
		zap.String("driver", cfg.DatabaseDriver),
		zap.String("account_uniqueness", cfg.AccountUniqueness))
	return db, nil
}
