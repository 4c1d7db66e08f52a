package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all service configuration
type Config struct {
	Service      ServiceConfig
	Source       SourceConfig       `envPrefix:"SOURCE_"`
	Target       TargetConfig       `envPrefix:"TARGET_"`
	ConfigSource ConfigSourceConfig `envPrefix:"CONFIG_SOURCE_"`
	Migration    MigrationConfig    `envPrefix:"MIGRATION_"`
	Database     DatabaseConfig     `envPrefix:"POSTGRES_"`
	Cache        CacheConfig
	Telemetry    TelemetryConfig
}

// ServiceConfig holds service-specific settings
type ServiceConfig struct {
	Name        string `env:"-"`
	Port        int    `env:"PORT" envDefault:"8080"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat   string `env:"LOG_FORMAT" envDefault:"text"`
}

// SourceConfig points at the tabular base records are read from
type SourceConfig struct {
	BaseURL     string        `env:"BASE_URL" envDefault:"https://api.airtable.com/v0"`
	BaseID      string        `env:"BASE_ID"`
	APIKey      string        `env:"API_KEY"`
	RecordLimit int           `env:"RECORD_LIMIT" envDefault:"100"`
	Tables      []string      `env:"TABLES"`
	Timeout     time.Duration `env:"TIMEOUT" envDefault:"30s"`
	RateLimit   float64       `env:"RATE_LIMIT" envDefault:"5"`
}

// TargetConfig points at the community entities are written to
type TargetConfig struct {
	BaseURL       string        `env:"BASE_URL" envDefault:"https://app.pubpub.org/api/v0/c"`
	CommunitySlug string        `env:"COMMUNITY_SLUG"`
	APIKey        string        `env:"API_KEY"`
	Timeout       time.Duration `env:"TIMEOUT" envDefault:"30s"`
	RateLimit     float64       `env:"RATE_LIMIT"` // requests per second, 0 is unlimited
}

// CommunityURL is the API root of the target community
func (t TargetConfig) CommunityURL() string {
	return communityURL(t.BaseURL, t.CommunitySlug)
}

// ConfigSourceConfig points at the community whose types, stages and fields
// are copied into the target. An empty slug disables config transfer.
type ConfigSourceConfig struct {
	BaseURL       string `env:"BASE_URL"`
	CommunitySlug string `env:"COMMUNITY_SLUG"`
	APIKey        string `env:"API_KEY"`
}

// Enabled reports whether config transfer should run
func (c ConfigSourceConfig) Enabled() bool {
	return c.CommunitySlug != ""
}

// CommunityURL is the API root of the config source community
func (c ConfigSourceConfig) CommunityURL() string {
	return communityURL(c.BaseURL, c.CommunitySlug)
}

// MigrationConfig shapes a migration run
type MigrationConfig struct {
	DryRun         bool              `env:"DRY_RUN" envDefault:"false"`
	TitleFallbacks []string          `env:"TITLE_FALLBACKS" envDefault:"Name,Title,Subject,ID"`
	DefaultStage   string            `env:"DEFAULT_STAGE"`
	TableTypes     map[string]string `env:"TABLE_TYPES"`
	Verify         bool              `env:"VERIFY" envDefault:"true"`
	Concurrency    int               `env:"CONCURRENCY" envDefault:"1"`
	OutputDir      string            `env:"OUTPUT_DIR" envDefault:"./reports"`
	SkipMigrated   bool              `env:"SKIP_MIGRATED" envDefault:"true"`
}

// DatabaseConfig holds Postgres connection settings for the audit store
type DatabaseConfig struct {
	Enabled     bool          `env:"ENABLED" envDefault:"false"`
	Host        string        `env:"HOST" envDefault:"localhost"`
	Port        int           `env:"PORT" envDefault:"5432"`
	Database    string        `env:"DB" envDefault:"pubmigrate"`
	User        string        `env:"USER" envDefault:"pubmigrate"`
	Password    string        `env:"PASSWORD" envDefault:"pubmigrate"`
	MaxConns    int           `env:"MAX_CONNS" envDefault:"10"`
	MinConns    int           `env:"MIN_CONNS" envDefault:"1"`
	MaxIdleTime time.Duration `env:"MAX_IDLE_TIME" envDefault:"30m"`
	MaxLifetime time.Duration `env:"MAX_LIFETIME" envDefault:"1h"`
}

// CacheConfig holds mapping cache settings
type CacheConfig struct {
	Backend       string        `env:"CACHE_BACKEND" envDefault:"memory"`
	TTL           time.Duration `env:"CACHE_TTL" envDefault:"0s"`
	RedisAddr     string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB" envDefault:"0"`
}

// TelemetryConfig holds observability settings
type TelemetryConfig struct {
	EnablePprof bool `env:"ENABLE_PPROF" envDefault:"false"`
	PprofPort   int  `env:"PPROF_PORT" envDefault:"6060"`
}

// LoadEnv loads the env files that exist, returning how many were found
func LoadEnv(envFiles []string) (int, error) {
	existing := make([]string, 0, len(envFiles))
	for _, file := range envFiles {
		if _, err := os.Stat(file); err == nil {
			existing = append(existing, file)
		}
	}
	if len(existing) == 0 {
		return 0, nil
	}
	return len(existing), godotenv.Load(existing...)
}

// Load loads configuration from .env files and environment variables
func Load(serviceName string) (*Config, error) {
	if _, err := LoadEnv([]string{".env", ".env.local"}); err != nil {
		return nil, fmt.Errorf("failed to load env files: %w", err)
	}
	return Parse(serviceName)
}

// Parse builds the configuration from the process environment only
func Parse(serviceName string) (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	cfg.Service.Name = serviceName
	if cfg.ConfigSource.BaseURL == "" {
		cfg.ConfigSource.BaseURL = cfg.Target.BaseURL
	}
	if cfg.ConfigSource.APIKey == "" {
		cfg.ConfigSource.APIKey = cfg.Target.APIKey
	}

	return cfg, cfg.Validate()
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.Service.Port < 1 || c.Service.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Service.Port)
	}

	if c.Source.RecordLimit < 1 {
		return fmt.Errorf("source record limit must be positive: %d", c.Source.RecordLimit)
	}

	if c.Migration.Concurrency < 1 {
		return fmt.Errorf("migration concurrency must be at least 1: %d", c.Migration.Concurrency)
	}

	switch c.Cache.Backend {
	case "memory", "redis", "none":
	default:
		return fmt.Errorf("unknown cache backend: %s", c.Cache.Backend)
	}

	if c.Database.Enabled && c.Database.MaxConns < c.Database.MinConns {
		return fmt.Errorf("max_conns must be >= min_conns")
	}

	return nil
}

// ValidateRun checks the settings a migration run cannot start without
func (c *Config) ValidateRun() error {
	var missing []string
	if c.Source.BaseID == "" {
		missing = append(missing, "SOURCE_BASE_ID")
	}
	if c.Source.APIKey == "" {
		missing = append(missing, "SOURCE_API_KEY")
	}
	if c.Target.CommunitySlug == "" {
		missing = append(missing, "TARGET_COMMUNITY_SLUG")
	}
	if !c.Migration.DryRun && c.Target.APIKey == "" {
		missing = append(missing, "TARGET_API_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required settings: %s", strings.Join(missing, ", "))
	}
	return nil
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
	)
}

func communityURL(base, slug string) string {
	return strings.TrimRight(base, "/") + "/" + slug
}
