// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// Env is the application environment ("development", "production").
	Env string `mapstructure:"APP_ENV"`
	// LogLevel is the zap level name (debug, info, warn, error).
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// DatabaseDriver selects the database/sql driver: "pgx" (Postgres) or "sqlite" (modernc, local use).
	DatabaseDriver string `mapstructure:"DATABASE_DRIVER"`
	// DatabaseURL is the DSN for DatabaseDriver.
	DatabaseURL string `mapstructure:"DATABASE_URL"`

	// SessionTimeout is the idle timeout shared by the server gate and every client tracker.
	SessionTimeout string `mapstructure:"SESSION_TIMEOUT"`
	// SessionWarningRatio is the fraction of SessionTimeout after which clients warn about expiry.
	SessionWarningRatio float64 `mapstructure:"SESSION_WARNING_RATIO"`
	// SessionTokenTTL is the absolute lifetime of the signed sessionId token.
	SessionTokenTTL string `mapstructure:"SESSION_TOKEN_TTL"`
	// SessionCheckCacheTTL is how long a resolved identity may be reused by the gate. "0s" disables the cache.
	SessionCheckCacheTTL string `mapstructure:"SESSION_CHECK_CACHE_TTL"`
	// RedisAddr, when set, makes the recent-check cache shared across instances.
	RedisAddr string `mapstructure:"REDIS_ADDR"`

	CookieDomain   string `mapstructure:"COOKIE_DOMAIN"`
	CookieSecure   bool   `mapstructure:"COOKIE_SECURE"`
	CookieSameSite string `mapstructure:"COOKIE_SAMESITE"`

	// JWTPrivateKey is the PEM-encoded private key (RSA or ECDSA) or path to file used to sign session tokens.
	JWTPrivateKey string `mapstructure:"JWT_PRIVATE_KEY"`
	// JWTPublicKey is the PEM-encoded public key or path to file; used with JWT_PRIVATE_KEY.
	JWTPublicKey string `mapstructure:"JWT_PUBLIC_KEY"`
	JWTIssuer    string `mapstructure:"JWT_ISSUER"`
	JWTAudience  string `mapstructure:"JWT_AUDIENCE"`
	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`

	// Telegram alerting is disabled unless both token and chat id are set.
	TelegramBotToken string `mapstructure:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID   string `mapstructure:"TELEGRAM_CHAT_ID"`
	TelegramBaseURL  string `mapstructure:"TELEGRAM_BASE_URL"`

	// KafkaBrokers is a comma-separated list of Kafka broker addresses. Empty disables the activity stream.
	KafkaBrokers       string `mapstructure:"KAFKA_BROKERS"`
	ActivityKafkaTopic string `mapstructure:"ACTIVITY_KAFKA_TOPIC"`
	// Worker-only: consumer group and Loki push URL.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`
	LokiURL      string `mapstructure:"LOKI_URL"`

	OTLPEndpoint    string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTLPInsecure    bool   `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	OTelServiceName string `mapstructure:"OTEL_SERVICE_NAME"`

	// StorageDir is the root directory of the profile photo store.
	StorageDir string `mapstructure:"STORAGE_DIR"`
}

// SessionPolicy is the single idle-timeout policy consumed by the gate and published to clients.
type SessionPolicy struct {
	Timeout      time.Duration
	WarningAfter time.Duration
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DATABASE_DRIVER", "pgx")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("SESSION_TIMEOUT", "15m")
	v.SetDefault("SESSION_WARNING_RATIO", 0.8)
	v.SetDefault("SESSION_TOKEN_TTL", "12h")
	v.SetDefault("SESSION_CHECK_CACHE_TTL", "10s")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("COOKIE_DOMAIN", "")
	v.SetDefault("COOKIE_SECURE", true)
	v.SetDefault("COOKIE_SAMESITE", "lax")
	v.SetDefault("JWT_PRIVATE_KEY", "")
	v.SetDefault("JWT_PUBLIC_KEY", "")
	v.SetDefault("JWT_ISSUER", "soc-portal")
	v.SetDefault("JWT_AUDIENCE", "soc-portal-web")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("TELEGRAM_BOT_TOKEN", "")
	v.SetDefault("TELEGRAM_CHAT_ID", "")
	v.SetDefault("TELEGRAM_BASE_URL", "https://api.telegram.org")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("ACTIVITY_KAFKA_TOPIC", "soc-portal-activity")
	v.SetDefault("KAFKA_GROUP_ID", "soc-portal-activity-worker")
	v.SetDefault("LOKI_URL", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("OTEL_SERVICE_NAME", "soc-portal")
	v.SetDefault("STORAGE_DIR", "./storage")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}
	switch cfg.DatabaseDriver {
	case "pgx", "sqlite":
	default:
		return nil, errors.New("config: DATABASE_DRIVER must be pgx or sqlite")
	}
	if d, err := time.ParseDuration(cfg.SessionTimeout); err != nil || d <= 0 {
		return nil, errors.New("config: SESSION_TIMEOUT must be a positive duration")
	}
	if cfg.SessionWarningRatio <= 0 || cfg.SessionWarningRatio >= 1 {
		return nil, errors.New("config: SESSION_WARNING_RATIO must be between 0 and 1 (exclusive)")
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}
	if cfg.IsProduction() && (cfg.JWTPrivateKey == "" || cfg.JWTPublicKey == "") {
		return nil, errors.New("config: JWT_PRIVATE_KEY and JWT_PUBLIC_KEY are required when APP_ENV=production")
	}

	return &cfg, nil
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return c != nil && strings.EqualFold(c.Env, "production")
}

// SessionPolicy returns the shared idle-timeout policy. Timeout defaults to 15m when unparseable.
func (c *Config) SessionPolicy() SessionPolicy {
	timeout, err := time.ParseDuration(c.SessionTimeout)
	if err != nil || timeout <= 0 {
		timeout = 15 * time.Minute
	}
	ratio := c.SessionWarningRatio
	if ratio <= 0 || ratio >= 1 {
		ratio = 0.8
	}
	return SessionPolicy{
		Timeout:      timeout,
		WarningAfter: time.Duration(float64(timeout) * ratio),
	}
}

// TokenTTL parses SessionTokenTTL. Returns 12h if unset or invalid.
func (c *Config) TokenTTL() time.Duration {
	d, err := time.ParseDuration(c.SessionTokenTTL)
	if err != nil || d <= 0 {
		return 12 * time.Hour
	}
	return d
}

// CheckCacheTTL parses SessionCheckCacheTTL. Returns 0 (cache disabled) if invalid or negative.
func (c *Config) CheckCacheTTL() time.Duration {
	d, err := time.ParseDuration(c.SessionCheckCacheTTL)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// TelegramEnabled reports whether both Telegram credentials are configured.
func (c *Config) TelegramEnabled() bool {
	return c != nil && c.TelegramBotToken != "" && c.TelegramChatID != ""
}

// KafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if the activity stream is enabled (non-empty list) and to create the producer.
func (c *Config) KafkaBrokersList() []string {
	if c == nil || c.KafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.KafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
