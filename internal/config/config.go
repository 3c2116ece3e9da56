// Package config provides configuration management for the value-lay engine.
package config

import (
	"fmt"
	"time"

	"github.com/yourusername/value-lay/internal/models"
)

// Config represents the complete application configuration
type Config struct {
	App       AppConfig        `mapstructure:"app" validate:"required"`
	Database  DatabaseConfig   `mapstructure:"database" validate:"required"`
	Providers []ProviderConfig `mapstructure:"providers" validate:"required,min=1,dive"`
	Engine    EngineConfig     `mapstructure:"engine" validate:"required"`
	Metrics   MetricsConfig    `mapstructure:"metrics" validate:"required"`
	Health    HealthConfig     `mapstructure:"health"`
}

// AppConfig represents application-level configuration
type AppConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Environment string `mapstructure:"environment" validate:"required,environment"`
	LogLevel    string `mapstructure:"log_level" validate:"required,loglevel"`
}

// DatabaseConfig represents database connection configuration
type DatabaseConfig struct {
	Host           string `mapstructure:"host" validate:"required"`
	Port           int    `mapstructure:"port" validate:"required,min=1,max=65535"`
	Name           string `mapstructure:"name" validate:"required"`
	User           string `mapstructure:"user" validate:"required"`
	Password       string `mapstructure:"password" validate:"required"`
	SSLMode        string `mapstructure:"ssl_mode" validate:"required,oneof=disable require verify-full"`
	MaxConnections int    `mapstructure:"max_connections" validate:"required,gt=0"`
}

// ProviderConfig represents a single odds provider
type ProviderConfig struct {
	Name      string  `mapstructure:"name" validate:"required"`
	Enabled   bool    `mapstructure:"enabled"`
	BaseURL   string  `mapstructure:"base_url" validate:"omitempty,url"`
	APIKey    string  `mapstructure:"api_key"`
	RateLimit float64 `mapstructure:"rate_limit" validate:"omitempty,gt=0"`
}

// EngineConfig holds the detection and sizing parameters consumed by the
// core. Threshold monotonicity (conservative <= strong <= premium) is the
// caller's responsibility and is deliberately not enforced here; a
// misordered triple classifies literally.
type EngineConfig struct {
	Thresholds          models.Thresholds   `mapstructure:"thresholds"`
	Model               models.ModelParams  `mapstructure:"model" validate:"required"`
	Sizing              models.SizingParams `mapstructure:"sizing" validate:"required"`
	ExecutionSource     string              `mapstructure:"execution_source"`
	MinFieldSize        int                 `mapstructure:"min_field_size" validate:"gte=0"`
	MaxFieldSize        int                 `mapstructure:"max_field_size" validate:"gte=0"`
	PollIntervalSeconds int                 `mapstructure:"poll_interval_seconds" validate:"required,gt=0"`
	RacecardRefreshCron string              `mapstructure:"racecard_refresh_cron"`
	AnchorCacheTTL      int                 `mapstructure:"anchor_cache_ttl_seconds" validate:"gte=0"`
}

// MetricsConfig represents metrics and monitoring configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port" validate:"required,min=1,max=65535"`
	Path    string `mapstructure:"path" validate:"required"`
}

// HealthConfig represents the health check server configuration
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port" validate:"omitempty,min=1,max=65535"`
}

// IsProduction checks if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// GetDatabaseDSN returns a PostgreSQL DSN string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// PollInterval returns the evaluation cycle interval as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Engine.PollIntervalSeconds) * time.Second
}

// AnchorCacheTTL returns the opened-runner cache TTL as a duration.
func (c *Config) AnchorCacheTTL() time.Duration {
	return time.Duration(c.Engine.AnchorCacheTTL) * time.Second
}
