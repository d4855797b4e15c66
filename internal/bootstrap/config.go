package bootstrap

import (
	"errors"
	"fmt"

	"github.com/danielkropka/social-flow-sub001/internal/config"

	"go.uber.org/zap"
)

const defaultSessionSecret = "session-secret-change-in-production"

// validateAllConfiguration validates all configuration settings
func validateAllConfiguration(cfg *config.Config, log *zap.Logger) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := validateProductionConfig(cfg); err != nil {
		return fmt.Errorf("invalid production configuration: %w", err)
	}

	if cfg.CronSecret == "" {
		log.Warn("CRON_SECRET is not set, cron endpoints are disabled")
	}
	if cfg.MetricsEnabled && cfg.MetricsToken == "" {
		log.Warn("METRICS_TOKEN is not set, /metrics is served without authentication")
	}
	return nil
}

// validateProductionConfig rejects development defaults in production.
func validateProductionConfig(cfg *config.Config) error {
	if !cfg.IsProduction {
		return nil
	}
	if cfg.SessionSecret == "" || cfg.SessionSecret == defaultSessionSecret {
		return errors.New("SESSION_SECRET must be set in production")
	}
	if cfg.OAuthInsecureSkipVerify {
		return errors.New("OAUTH_INSECURE_SKIP_VERIFY cannot be enabled in production")
	}
	return nil
}
