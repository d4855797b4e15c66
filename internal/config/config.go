package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backend constants shared by the rate limiter and the handshake store
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Account uniqueness scopes
const (
	AccountUniquenessGlobal  = "global"
	AccountUniquenessPerUser = "per_user"
)

// Instagram login modes
const (
	InstagramLoginDirect       = "instagram"
	InstagramLoginFacebookPage = "facebook_page"
)

// Environments
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	// Server settings
	ServerAddr   string
	BaseURL      string
	Environment  string
	IsProduction bool
	LogLevel     string

	// Frontend redirect target for connect callbacks
	FrontendURL string

	// Session settings
	SessionSecret string
	SessionMaxAge int // seconds

	// Database
	DatabaseDriver  string // "sqlite", "postgres" or "mysql"
	DatabaseDSN     string
	DBInitTimeout   time.Duration
	DefaultAdminPwd string

	// Redis
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	RedisConnTimeout time.Duration

	// Token encryption
	EncryptionKey string

	// Credential store
	AccountUniqueness string

	// OAuth handshake
	HandshakeStore string
	HandshakeTTL   time.Duration

	// OAuth HTTP client settings
	OAuthTimeout            time.Duration
	OAuthInsecureSkipVerify bool

	// Twitter (OAuth 1.0a)
	TwitterEnabled        bool
	TwitterConsumerKey    string
	TwitterConsumerSecret string
	TwitterCallbackURL    string
	TwitterAPIURL         string

	// Instagram
	InstagramEnabled      bool
	InstagramLoginMode    string
	InstagramClientID     string
	InstagramClientSecret string
	InstagramRedirectURL  string
	InstagramScopes       []string
	InstagramAuthURL      string
	InstagramGraphURL     string

	// Facebook
	FacebookEnabled      bool
	FacebookAppID        string
	FacebookAppSecret    string
	FacebookRedirectURL  string
	FacebookScopes       []string
	FacebookAuthURL      string
	FacebookGraphURL     string
	FacebookGraphVersion string

	// TikTok
	TikTokEnabled      bool
	TikTokClientKey    string
	TikTokClientSecret string
	TikTokRedirectURL  string
	TikTokScopes       []string
	TikTokAuthURL      string
	TikTokAPIURL       string

	// Rate limiting
	EnableRateLimit        bool
	RateLimitStore         string
	RateLimitCleanupPeriod time.Duration

	// Stats refresh
	StatsRefreshConcurrency int
	StatsMaxRetries         int
	StatsRetryDelay         time.Duration
	StatsMaxRetryDelay      time.Duration

	// Token refresh
	TokenRefreshWindow time.Duration

	// Cron entry points
	CronSecret string

	// Audit logging
	EnableAuditLogging bool
	AuditLogRetention  time.Duration
	AuditLogBufferSize int

	// Prometheus metrics
	MetricsEnabled             bool
	MetricsToken               string
	MetricsGaugeUpdateEnabled  bool
	MetricsGaugeUpdateInterval time.Duration
	MetricsCacheType           string
}

func Load() *Config {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	driver := getEnv("DATABASE_DRIVER", "sqlite")
	var dsn string
	if driver == "sqlite" {
		dsn = getEnv("DATABASE_DSN", getEnv("DATABASE_PATH", "socialflow.db"))
	} else {
		dsn = getEnv("DATABASE_DSN", "")
	}

	env := getEnv("ENVIRONMENT", EnvDevelopment)

	return &Config{
		ServerAddr:   getEnv("SERVER_ADDR", ":8080"),
		BaseURL:      getEnv("BASE_URL", "http://localhost:8080"),
		Environment:  env,
		IsProduction: env == EnvProduction,
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		FrontendURL:  getEnv("FRONTEND_URL", "http://localhost:3000"),

		SessionSecret: getEnv("SESSION_SECRET", "session-secret-change-in-production"),
		SessionMaxAge: getEnvInt("SESSION_MAX_AGE", 86400*7),

		DatabaseDriver:  driver,
		DatabaseDSN:     dsn,
		DBInitTimeout:   getEnvDuration("DB_INIT_TIMEOUT", 30*time.Second),
		DefaultAdminPwd: getEnv("DEFAULT_ADMIN_PASSWORD", ""),

		RedisAddr:        getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		RedisDB:          getEnvInt("REDIS_DB", 0),
		RedisConnTimeout: getEnvDuration("REDIS_CONN_TIMEOUT", 5*time.Second),

		EncryptionKey:     getEnv("ENCRYPTION_KEY", ""),
		AccountUniqueness: getEnv("ACCOUNT_UNIQUENESS", AccountUniquenessGlobal),

		HandshakeStore: getEnv("HANDSHAKE_STORE", StoreMemory),
		HandshakeTTL:   getEnvDuration("OAUTH_HANDSHAKE_TTL", 10*time.Minute),

		OAuthTimeout:            getEnvDuration("OAUTH_TIMEOUT", 15*time.Second),
		OAuthInsecureSkipVerify: getEnvBool("OAUTH_INSECURE_SKIP_VERIFY", false),

		TwitterEnabled:        getEnvBool("TWITTER_ENABLED", false),
		TwitterConsumerKey:    getEnv("TWITTER_CONSUMER_KEY", ""),
		TwitterConsumerSecret: getEnv("TWITTER_CONSUMER_SECRET", ""),
		TwitterCallbackURL:    getEnv("TWITTER_CALLBACK_URL", ""),
		TwitterAPIURL:         getEnv("TWITTER_API_URL", "https://api.twitter.com"),

		InstagramEnabled:      getEnvBool("INSTAGRAM_ENABLED", false),
		InstagramLoginMode:    getEnv("INSTAGRAM_LOGIN_MODE", InstagramLoginDirect),
		InstagramClientID:     getEnv("INSTAGRAM_CLIENT_ID", ""),
		InstagramClientSecret: getEnv("INSTAGRAM_CLIENT_SECRET", ""),
		InstagramRedirectURL:  getEnv("INSTAGRAM_REDIRECT_URL", ""),
		InstagramScopes: getEnvSlice(
			"INSTAGRAM_SCOPES",
			[]string{"instagram_business_basic", "instagram_business_content_publish"},
		),
		InstagramAuthURL:  getEnv("INSTAGRAM_AUTH_URL", "https://api.instagram.com"),
		InstagramGraphURL: getEnv("INSTAGRAM_GRAPH_URL", "https://graph.instagram.com"),

		FacebookEnabled:     getEnvBool("FACEBOOK_ENABLED", false),
		FacebookAppID:       getEnv("FACEBOOK_APP_ID", ""),
		FacebookAppSecret:   getEnv("FACEBOOK_APP_SECRET", ""),
		FacebookRedirectURL: getEnv("FACEBOOK_REDIRECT_URL", ""),
		FacebookScopes: getEnvSlice(
			"FACEBOOK_SCOPES",
			[]string{
				"public_profile",
				"pages_show_list",
				"pages_read_engagement",
				"instagram_basic",
				"instagram_content_publish",
			},
		),
		FacebookAuthURL:      getEnv("FACEBOOK_AUTH_URL", "https://www.facebook.com"),
		FacebookGraphURL:     getEnv("FACEBOOK_GRAPH_URL", "https://graph.facebook.com"),
		FacebookGraphVersion: getEnv("FACEBOOK_GRAPH_VERSION", "v19.0"),

		TikTokEnabled:      getEnvBool("TIKTOK_ENABLED", false),
		TikTokClientKey:    getEnv("TIKTOK_CLIENT_KEY", ""),
		TikTokClientSecret: getEnv("TIKTOK_CLIENT_SECRET", ""),
		TikTokRedirectURL:  getEnv("TIKTOK_REDIRECT_URL", ""),
		TikTokScopes: getEnvSlice(
			"TIKTOK_SCOPES",
			[]string{"user.info.basic", "user.info.profile", "user.info.stats", "video.publish"},
		),
		TikTokAuthURL: getEnv("TIKTOK_AUTH_URL", "https://www.tiktok.com"),
		TikTokAPIURL:  getEnv("TIKTOK_API_URL", "https://open.tiktokapis.com"),

		EnableRateLimit:        getEnvBool("ENABLE_RATE_LIMIT", true),
		RateLimitStore:         getEnv("RATE_LIMIT_STORE", StoreMemory),
		RateLimitCleanupPeriod: getEnvDuration("RATE_LIMIT_CLEANUP_INTERVAL", 5*time.Minute),

		StatsRefreshConcurrency: getEnvInt("STATS_REFRESH_CONCURRENCY", 1),
		StatsMaxRetries:         getEnvInt("STATS_MAX_RETRIES", 2),
		StatsRetryDelay:         getEnvDuration("STATS_RETRY_DELAY", 500*time.Millisecond),
		StatsMaxRetryDelay:      getEnvDuration("STATS_MAX_RETRY_DELAY", 5*time.Second),

		TokenRefreshWindow: getEnvDuration("TOKEN_REFRESH_WINDOW", 7*24*time.Hour),

		CronSecret: getEnv("CRON_SECRET", ""),

		EnableAuditLogging: getEnvBool("ENABLE_AUDIT_LOGGING", true),
		AuditLogRetention:  getEnvDuration("AUDIT_LOG_RETENTION", 90*24*time.Hour),
		AuditLogBufferSize: getEnvInt("AUDIT_LOG_BUFFER_SIZE", 1000),

		MetricsEnabled:             getEnvBool("METRICS_ENABLED", false),
		MetricsToken:               getEnv("METRICS_TOKEN", ""),
		MetricsGaugeUpdateEnabled:  getEnvBool("METRICS_GAUGE_UPDATE_ENABLED", true),
		MetricsGaugeUpdateInterval: getEnvDuration("METRICS_GAUGE_UPDATE_INTERVAL", 5*time.Minute),
		MetricsCacheType:           getEnv("METRICS_CACHE_TYPE", StoreMemory),
	}
}

// Validate checks settings that would otherwise fail late at request time.
func (c *Config) Validate() error {
	if c.EncryptionKey == "" {
		return errors.New("ENCRYPTION_KEY is required")
	}

	switch c.DatabaseDriver {
	case "sqlite", "postgres", "mysql":
	default:
		return fmt.Errorf(
			"invalid DATABASE_DRIVER value: %q (must be sqlite, postgres or mysql)",
			c.DatabaseDriver,
		)
	}

	if c.RateLimitStore != StoreMemory && c.RateLimitStore != StoreRedis {
		return fmt.Errorf(
			"invalid RATE_LIMIT_STORE value: %q (must be %q or %q)",
			c.RateLimitStore, StoreMemory, StoreRedis,
		)
	}

	if c.HandshakeStore != StoreMemory && c.HandshakeStore != StoreRedis {
		return fmt.Errorf(
			"invalid HANDSHAKE_STORE value: %q (must be %q or %q)",
			c.HandshakeStore, StoreMemory, StoreRedis,
		)
	}
	if c.MetricsCacheType != StoreMemory && c.MetricsCacheType != StoreRedis {
		return fmt.Errorf(
			"invalid METRICS_CACHE_TYPE value: %q (must be %q or %q)",
			c.MetricsCacheType, StoreMemory, StoreRedis,
		)
	}
	if c.HandshakeTTL <= 0 {
		return fmt.Errorf("OAUTH_HANDSHAKE_TTL must be positive, got %s", c.HandshakeTTL)
	}

	if c.AccountUniqueness != AccountUniquenessGlobal &&
		c.AccountUniqueness != AccountUniquenessPerUser {
		return fmt.Errorf(
			"invalid ACCOUNT_UNIQUENESS value: %q (must be %q or %q)",
			c.AccountUniqueness, AccountUniquenessGlobal, AccountUniquenessPerUser,
		)
	}

	if c.InstagramLoginMode != InstagramLoginDirect &&
		c.InstagramLoginMode != InstagramLoginFacebookPage {
		return fmt.Errorf(
			"invalid INSTAGRAM_LOGIN_MODE value: %q (must be %q or %q)",
			c.InstagramLoginMode, InstagramLoginDirect, InstagramLoginFacebookPage,
		)
	}

	if c.StatsRefreshConcurrency < 1 {
		return fmt.Errorf(
			"STATS_REFRESH_CONCURRENCY must be at least 1, got %d",
			c.StatsRefreshConcurrency,
		)
	}

	return c.validateProviders()
}

// validateProviders fails for any enabled provider that lacks credentials.
func (c *Config) validateProviders() error {
	type providerSettings struct {
		name     string
		enabled  bool
		required map[string]string
	}

	providers := []providerSettings{
		{"TWITTER", c.TwitterEnabled, map[string]string{
			"TWITTER_CONSUMER_KEY":    c.TwitterConsumerKey,
			"TWITTER_CONSUMER_SECRET": c.TwitterConsumerSecret,
			"TWITTER_CALLBACK_URL":    c.TwitterCallbackURL,
		}},
		{"INSTAGRAM", c.InstagramEnabled, map[string]string{
			"INSTAGRAM_CLIENT_ID":     c.InstagramClientID,
			"INSTAGRAM_CLIENT_SECRET": c.InstagramClientSecret,
			"INSTAGRAM_REDIRECT_URL":  c.InstagramRedirectURL,
		}},
		{"FACEBOOK", c.FacebookEnabled, map[string]string{
			"FACEBOOK_APP_ID":       c.FacebookAppID,
			"FACEBOOK_APP_SECRET":   c.FacebookAppSecret,
			"FACEBOOK_REDIRECT_URL": c.FacebookRedirectURL,
		}},
		{"TIKTOK", c.TikTokEnabled, map[string]string{
			"TIKTOK_CLIENT_KEY":    c.TikTokClientKey,
			"TIKTOK_CLIENT_SECRET": c.TikTokClientSecret,
			"TIKTOK_REDIRECT_URL":  c.TikTokRedirectURL,
		}},
	}

	for _, p := range providers {
		if !p.enabled {
			continue
		}
		var missing []string
		for key, value := range p.required {
			if value == "" {
				missing = append(missing, key)
			}
		}
		if len(missing) > 0 {
			slices.Sort(missing)
			return fmt.Errorf(
				"%s is enabled but missing: %s",
				p.name, strings.Join(missing, ", "),
			)
		}
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var i int
		if _, err := fmt.Sscanf(value, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		if parts := splitAndTrim(value, ","); len(parts) > 0 {
			return parts
		}
	}
	return defaultValue
}

func splitAndTrim(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
