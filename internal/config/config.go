package config

import (
	"fmt"
	"slices"
	"time"

	"github.com/atelier-jewellery/storefront/internal/remote/postgrest"
	pkgconfig "github.com/atelier-jewellery/storefront/pkg/config"
	"github.com/atelier-jewellery/storefront/pkg/database"
	"github.com/atelier-jewellery/storefront/pkg/tracing"
)

// Remote store backends.
const (
	RemoteMemory    = "memory"
	RemotePostgres  = "postgres"
	RemotePostgREST = "postgrest"
)

// In-flight guard backends.
const (
	GuardLocal = "local"
	GuardRedis = "redis"
)

// Config holds all configuration for the wishlist server and CLI.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort           int      `env:"WISHLIST_HTTP_PORT" envDefault:"8012"`
	CookieSecure       bool     `env:"COOKIE_SECURE" envDefault:"false"`
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`

	// Remote store: memory, postgres or postgrest
	Remote string `env:"WISHLIST_REMOTE" envDefault:"memory"`

	// PostgreSQL
	PostgresURL      string `env:"DATABASE_URL" envDefault:""`
	PostgresHost     string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort     int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser     string `env:"POSTGRES_USER" envDefault:"atelier"`
	PostgresPassword string `env:"POSTGRES_PASSWORD" envDefault:"atelier"`
	PostgresDB       string `env:"POSTGRES_DB" envDefault:"atelier"`
	PostgresSSLMode  string `env:"POSTGRES_SSLMODE" envDefault:"disable"`
	PostgresMaxConns int32  `env:"POSTGRES_MAX_CONNS" envDefault:"10"`
	RunMigrations    bool   `env:"RUN_MIGRATIONS" envDefault:"true"`

	// Statements slower than this are logged; zero disables it
	SlowQueryThreshold time.Duration `env:"SLOW_QUERY_THRESHOLD" envDefault:"200ms"`

	// PostgREST (Supabase)
	PostgRESTURL    string `env:"SUPABASE_URL" envDefault:""`
	PostgRESTAPIKey string `env:"SUPABASE_ANON_KEY" envDefault:""`

	// In-flight guard: local or redis
	Guard     string        `env:"WISHLIST_GUARD" envDefault:"local"`
	GuardTTL  time.Duration `env:"WISHLIST_GUARD_TTL" envDefault:"30s"`
	RedisURL  string        `env:"REDIS_URL" envDefault:""`
	RedisAddr string        `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort int           `env:"REDIS_PORT" envDefault:"6379"`
	RedisPass string        `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB   int           `env:"REDIS_DB" envDefault:"0"`

	// Kafka; events are disabled when no brokers are configured
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`

	// Sessions and counter reconciliation
	SessionIdleTTL    time.Duration `env:"WISHLIST_SESSION_TTL" envDefault:"30m"`
	ReconcileInterval time.Duration `env:"WISHLIST_RECONCILE_INTERVAL" envDefault:"1m"`

	// Rate limiting of mutations per identity
	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS" envDefault:"5"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST" envDefault:"10"`

	// Tracing
	TracingEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	TracingEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	TracingSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load wishlist config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if !slices.Contains([]string{RemoteMemory, RemotePostgres, RemotePostgREST}, c.Remote) {
		return fmt.Errorf("invalid WISHLIST_REMOTE %q: want memory, postgres or postgrest", c.Remote)
	}
	if c.Remote == RemotePostgREST && (c.PostgRESTURL == "" || c.PostgRESTAPIKey == "") {
		return fmt.Errorf("SUPABASE_URL and SUPABASE_ANON_KEY are required for the postgrest remote")
	}
	if c.Guard != GuardLocal && c.Guard != GuardRedis {
		return fmt.Errorf("invalid WISHLIST_GUARD %q: want local or redis", c.Guard)
	}
	if c.GuardTTL <= 0 {
		return fmt.Errorf("WISHLIST_GUARD_TTL must be positive")
	}
	if c.ReconcileInterval <= 0 || c.SessionIdleTTL <= 0 {
		return fmt.Errorf("session TTL and reconcile interval must be positive")
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst < 1 {
		return fmt.Errorf("invalid rate limit: %v rps, burst %d", c.RateLimitRPS, c.RateLimitBurst)
	}
	if c.TracingSampleRate < 0 || c.TracingSampleRate > 1 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0 and 1, got %v", c.TracingSampleRate)
	}
	if c.SlowQueryThreshold < 0 {
		return fmt.Errorf("SLOW_QUERY_THRESHOLD must not be negative")
	}
	if slices.Contains(c.CORSAllowedOrigins, "*") {
		return fmt.Errorf("CORS_ALLOWED_ORIGINS must list explicit origins; the wishlist cookie needs credentials")
	}
	if c.Environment == "production" && !c.CookieSecure {
		return fmt.Errorf("COOKIE_SECURE must be enabled in production")
	}
	return nil
}

// Postgres returns the database connection settings.
func (c *Config) Postgres() database.PostgresConfig {
	pc := database.DefaultPostgresConfig()
	pc.URL = c.PostgresURL
	pc.Host = c.PostgresHost
	pc.Port = c.PostgresPort
	pc.User = c.PostgresUser
	pc.Password = c.PostgresPassword
	pc.DBName = c.PostgresDB
	pc.SSLMode = c.PostgresSSLMode
	pc.MaxConns = c.PostgresMaxConns
	return pc
}

// PostgREST returns the PostgREST endpoint settings.
func (c *Config) PostgREST() postgrest.Config {
	return postgrest.Config{BaseURL: c.PostgRESTURL, APIKey: c.PostgRESTAPIKey}
}

// Redis returns the Redis connection settings.
func (c *Config) Redis() database.RedisConfig {
	return database.RedisConfig{
		URL:      c.RedisURL,
		Host:     c.RedisAddr,
		Port:     c.RedisPort,
		Password: c.RedisPass,
		DB:       c.RedisDB,
	}
}

// Tracing returns the OpenTelemetry settings for serviceName.
func (c *Config) Tracing(serviceName, version string) tracing.Config {
	return tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: version,
		Environment:    c.Environment,
		OTLPEndpoint:   c.TracingEndpoint,
		SampleRate:     c.TracingSampleRate,
		Enabled:        c.TracingEnabled,
	}
}
