package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the application.
type Config struct {
	Server     ServerConfig
	DB         DBConfig
	Log        LogConfig
	Activation ActivationConfig
	Gateway    GatewayConfig
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Port            string `envconfig:"SERVER_PORT" default:"3000"`
	ShutdownTimeout int    `envconfig:"SHUTDOWN_TIMEOUT" default:"30"` // seconds
}

// DBConfig holds database-related configuration.
// WARNING: Default password is for local development only.
// In production, always set DB_PASSWORD via environment variable.
// In production, set DB_SSLMODE to "require" or "verify-full".
type DBConfig struct {
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     int    `envconfig:"DB_PORT" default:"5432"`
	User     string `envconfig:"DB_USER" default:"postgres"`
	Password string `envconfig:"DB_PASSWORD" default:"postgres"` // CHANGE IN PRODUCTION
	Name     string `envconfig:"DB_NAME" default:"enrollment_db"`
	SSLMode  string `envconfig:"DB_SSLMODE" default:"disable"` // Use "require" in production
	MaxConns int    `envconfig:"DB_MAX_CONNS" default:"25"`
	MinConns int    `envconfig:"DB_MIN_CONNS" default:"5"`
}

// DSN returns the PostgreSQL connection string.
func (c DBConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s&pool_max_conns=%d&pool_min_conns=%d",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode, c.MaxConns, c.MinConns)
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Pretty bool   `envconfig:"LOG_PRETTY" default:"false"`
}

// ActivationConfig holds the activation retry policy and the poller
// schedule. Defaults: 3 retries with capped exponential backoff, base
// 5 minutes, ceiling 15 minutes.
type ActivationConfig struct {
	MaxRetries         int `envconfig:"ACTIVATION_MAX_RETRIES" default:"3"`
	BackoffBaseSeconds int `envconfig:"ACTIVATION_BACKOFF_BASE" default:"300"`
	BackoffCapSeconds  int `envconfig:"ACTIVATION_BACKOFF_CAP" default:"900"`
	PollSeconds        int `envconfig:"ACTIVATION_POLL_INTERVAL" default:"30"`
	ClaimLeaseSeconds  int `envconfig:"ACTIVATION_CLAIM_LEASE" default:"60"`
	BatchSize          int `envconfig:"ACTIVATION_BATCH_SIZE" default:"20"`
}

// BackoffBase returns the backoff base as a duration.
func (c ActivationConfig) BackoffBase() time.Duration {
	return time.Duration(c.BackoffBaseSeconds) * time.Second
}

// BackoffCap returns the backoff ceiling as a duration.
func (c ActivationConfig) BackoffCap() time.Duration {
	return time.Duration(c.BackoffCapSeconds) * time.Second
}

// GatewayConfig holds payment-gateway related configuration. A charge
// that exceeds the timeout is recorded as a failed payment, never as a
// success.
type GatewayConfig struct {
	ChargeTimeoutSeconds int    `envconfig:"GATEWAY_CHARGE_TIMEOUT" default:"15"`
	Currency             string `envconfig:"GATEWAY_CURRENCY" default:"USD"`
}

// ChargeTimeout returns the gateway charge timeout as a duration.
func (c GatewayConfig) ChargeTimeout() time.Duration {
	return time.Duration(c.ChargeTimeoutSeconds) * time.Second
}

// Load parses environment variables into the Config struct.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
