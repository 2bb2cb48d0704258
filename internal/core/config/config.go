package config

import (
	"time"

	redisclient "github.com/novik133/NovaBar-sub002/internal/infra/redis"
	"github.com/novik133/NovaBar-sub002/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server    ServerConfig       `yaml:"server"`
	Logging   LoggingConfig      `yaml:"logging"`
	Authority AuthorityConfig    `yaml:"authority"`
	Usage     UsageConfig        `yaml:"usage"`
	Recovery  RecoveryConfig     `yaml:"recovery"`
	Redis     redisclient.Config `yaml:"redis"`
	Database  postgres.Config    `yaml:"database"`
}

// ServerConfig holds status HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// AuthorityConfig tunes the authorization gateway.
type AuthorityConfig struct {
	CacheTTL         time.Duration `yaml:"cache_ttl"`
	ChallengeTimeout time.Duration `yaml:"challenge_timeout"`
}

// UsageConfig tunes the usage accountant.
type UsageConfig struct {
	ThresholdPercent float64                   `yaml:"threshold_percent"`
	PersistInterval  time.Duration             `yaml:"persist_interval"`
	Connections      []MeteredConnectionConfig `yaml:"connections"`
}

// MeteredConnectionConfig declares a metered connection to track.
type MeteredConnectionConfig struct {
	ID           string `yaml:"id"`
	Type         string `yaml:"type"` // wifi, ethernet, vpn, mobile_broadband, hotspot, bluetooth
	MonthlyLimit uint64 `yaml:"monthly_limit"`
	LimitEnabled bool   `yaml:"limit_enabled"`
	ResetDay     int    `yaml:"reset_day"`
}

// RecoveryConfig tunes the retry backoff.
type RecoveryConfig struct {
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
	MaxAttempts  int           `yaml:"max_attempts"`
}
