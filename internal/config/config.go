package config

import (
	"fmt"
	"time"

	pkgconfig "github.com/rhvlabs/identity/pkg/config"
)

const defaultJWTSecret = "change-this-to-a-secure-secret"

// Config holds all configuration for the identity service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"HTTP_PORT" envDefault:"8080"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"identity"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"identity_secret"`
	PostgresDB   string `env:"POSTGRES_DB" envDefault:"identity_db"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// PostgreSQL pool tuning
	DBMaxConns            int32 `env:"DB_MAX_CONNS" envDefault:"20"`
	DBMinConns            int32 `env:"DB_MIN_CONNS" envDefault:"2"`
	DBMaxConnLifetimeMins int   `env:"DB_MAX_CONN_LIFETIME_MINS" envDefault:"60"`
	DBMaxConnIdleTimeMins int   `env:"DB_MAX_CONN_IDLE_TIME_MINS" envDefault:"10"`

	// Redis
	RedisHost string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPass string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`

	// Kafka
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// Tokens
	JWTSecret string        `env:"JWT_SECRET" envDefault:"change-this-to-a-secure-secret"`
	TokenTTL  time.Duration `env:"TOKEN_TTL" envDefault:"24h"`

	// Cache
	CacheDriver string        `env:"CACHE_DRIVER" envDefault:"memory"`
	CacheTTL    time.Duration `env:"CACHE_TTL" envDefault:"5m"`

	// Login lockout
	LoginThreshold int           `env:"LOGIN_THRESHOLD" envDefault:"10"`
	LoginWindow    time.Duration `env:"LOGIN_WINDOW" envDefault:"24h"`

	// One-time codes
	VerifyCodeTTL time.Duration `env:"VERIFY_CODE_TTL" envDefault:"24h"`
	ResetCodeTTL  time.Duration `env:"RESET_CODE_TTL" envDefault:"1h"`

	// Cookies
	CookieSecure   bool   `env:"COOKIE_SECURE" envDefault:"false"`
	CookieSameSite string `env:"COOKIE_SAME_SITE" envDefault:"lax"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// Rate limiting
	RateRPS   int `env:"RATE_RPS" envDefault:"20"`
	RateBurst int `env:"RATE_BURST" envDefault:"40"`

	// Debug endpoints
	PprofAllowedCIDRs []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"127.0.0.0/8,::1/128" envSeparator:","`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load identity config: %w", err)
	}
	if cfg.HTTPPort < 1 || cfg.HTTPPort > 65535 {
		return nil, fmt.Errorf("invalid HTTP port: %d", cfg.HTTPPort)
	}
	if cfg.CacheDriver != "memory" && cfg.CacheDriver != "redis" {
		return nil, fmt.Errorf("invalid cache driver: %q", cfg.CacheDriver)
	}
	if cfg.LoginThreshold < 1 {
		return nil, fmt.Errorf("login threshold must be positive, got %d", cfg.LoginThreshold)
	}

	// In non-development environments, require an explicitly set, strong JWT secret.
	if cfg.Environment != "development" {
		if cfg.JWTSecret == defaultJWTSecret {
			return nil, fmt.Errorf("JWT_SECRET must be explicitly set via environment variable in %q mode", cfg.Environment)
		}
		if len(cfg.JWTSecret) < 32 {
			return nil, fmt.Errorf("JWT_SECRET must be at least 32 characters long, got %d", len(cfg.JWTSecret))
		}
	}

	return cfg, nil
}

// PostgresDSN returns the PostgreSQL connection string.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.PostgresUser, c.PostgresPass, c.PostgresHost, c.PostgresPort, c.PostgresDB, c.PostgresSSL,
	)
}

// RedisAddr returns the Redis address in host:port form.
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}
