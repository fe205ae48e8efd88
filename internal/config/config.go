// Package config loads tracker settings from the environment (optionally
// seeded from a .env file) through viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/boddenberg/finance-tracker-go/internal/domain"
)

const devJWTSecret = "tracker-dev-secret-change-me"

// Config holds all application configuration.
type Config struct {
	// Server
	Env      string
	Port     int
	LogLevel string
	Timezone *time.Location

	// Database ("" selects the in-memory store)
	DatabaseURL   string
	DBMaxConns    int32
	RunMigrations bool

	// JWT / Auth
	JWTSecret    string
	JWTAccessTTL time.Duration
	AdminToken   string

	// Resilience
	MaxRetries     int
	InitialBackoff time.Duration

	// Cache
	CacheTTL time.Duration

	// Observability
	OTLPEndpoint string

	// Events ("" disables publishing)
	AMQPURL      string
	AMQPExchange string

	// Recurring batch
	RecurringWorkers     int
	RecurringRunAt       string
	RecurringRunOnStart  bool
	ReportRangePolicy    domain.FloorPolicy
	reportRangePolicyRaw string
}

// New returns a viper instance with every default registered and the
// environment bound. Callers may bind flags on it before FromViper.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("PORT", 8080)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("TIMEZONE", "Local")

	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("RUN_MIGRATIONS", true)

	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_ACCESS_TTL", 24*time.Hour)
	v.SetDefault("ADMIN_TOKEN", "")

	v.SetDefault("MAX_RETRIES", 3)
	v.SetDefault("INITIAL_BACKOFF", 100*time.Millisecond)
	v.SetDefault("CACHE_TTL", 10*time.Minute)
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")

	v.SetDefault("AMQP_URL", "")
	v.SetDefault("AMQP_EXCHANGE", "ledger.events")

	v.SetDefault("RECURRING_WORKERS", 4)
	v.SetDefault("RECURRING_RUN_AT", "00:00")
	v.SetDefault("RECURRING_RUN_ON_START", false)
	v.SetDefault("REPORT_RANGE_POLICY", "lookback:30")

	v.AutomaticEnv()
	return v
}

// Load reads an optional .env file, then the environment.
func Load(dotenvPath string) (*Config, error) {
	if err := LoadDotEnv(dotenvPath); err != nil {
		return nil, fmt.Errorf("load %s: %w", dotenvPath, err)
	}
	return FromViper(New())
}

// FromViper builds and validates a Config.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Env:      v.GetString("APP_ENV"),
		Port:     v.GetInt("PORT"),
		LogLevel: v.GetString("LOG_LEVEL"),

		DatabaseURL:   v.GetString("DATABASE_URL"),
		DBMaxConns:    v.GetInt32("DB_MAX_CONNS"),
		RunMigrations: v.GetBool("RUN_MIGRATIONS"),

		JWTSecret:    v.GetString("JWT_SECRET"),
		JWTAccessTTL: v.GetDuration("JWT_ACCESS_TTL"),
		AdminToken:   v.GetString("ADMIN_TOKEN"),

		MaxRetries:     v.GetInt("MAX_RETRIES"),
		InitialBackoff: v.GetDuration("INITIAL_BACKOFF"),
		CacheTTL:       v.GetDuration("CACHE_TTL"),
		OTLPEndpoint:   v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),

		AMQPURL:      v.GetString("AMQP_URL"),
		AMQPExchange: v.GetString("AMQP_EXCHANGE"),

		RecurringWorkers:     v.GetInt("RECURRING_WORKERS"),
		RecurringRunAt:       v.GetString("RECURRING_RUN_AT"),
		RecurringRunOnStart:  v.GetBool("RECURRING_RUN_ON_START"),
		reportRangePolicyRaw: v.GetString("REPORT_RANGE_POLICY"),
	}

	loc, err := time.LoadLocation(v.GetString("TIMEZONE"))
	if err != nil {
		return nil, fmt.Errorf("TIMEZONE: %w", err)
	}
	cfg.Timezone = loc

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the process cannot run with and fills the dev
// JWT secret.
func (c *Config) Validate() error {
	if _, _, err := ParseClock(c.RecurringRunAt); err != nil {
		return fmt.Errorf("RECURRING_RUN_AT: %w", err)
	}
	policy, err := domain.ParseFloorPolicy(c.reportRangePolicyRaw)
	if err != nil {
		return fmt.Errorf("REPORT_RANGE_POLICY: %w", err)
	}
	c.ReportRangePolicy = policy

	if c.JWTSecret == "" {
		if !c.IsDev() {
			return fmt.Errorf("JWT_SECRET is required when APP_ENV=%s", c.Env)
		}
		c.JWTSecret = devJWTSecret
	}
	if c.RecurringWorkers < 1 {
		c.RecurringWorkers = 1
	}
	return nil
}

// IsDev reports whether the process runs with development defaults.
func (c *Config) IsDev() bool {
	return strings.EqualFold(c.Env, "development") || strings.EqualFold(c.Env, "dev")
}

// Now is the wall clock in the configured timezone.
func (c *Config) Now() time.Time {
	return time.Now().In(c.Timezone)
}

// ParseClock parses "HH:MM" (24h).
func ParseClock(s string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, 0, fmt.Errorf("want HH:MM, got %q", s)
	}
	return t.Hour(), t.Minute(), nil
}
