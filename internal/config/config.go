package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the payments engine
type Config struct {
	Log        LogConfig
	Shards     int
	Postgres   PostgresConfig
	ClickHouse ClickHouseConfig
	RabbitMQ   RabbitMQConfig
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level  string
	Format string
}

// PostgresConfig holds the run export database configuration.
// An empty URL disables the export.
type PostgresConfig struct {
	URL string
}

// ClickHouseConfig holds ClickHouse connection configuration.
// An empty Host disables the export.
type ClickHouseConfig struct {
	Host        string
	Database    string
	User        string
	Password    string
	DialTimeout time.Duration
}

// RabbitMQConfig holds RabbitMQ publisher configuration.
// An empty URL disables publishing.
type RabbitMQConfig struct {
	URL        string
	Exchange   string
	RoutingKey string
}

// Load loads configuration from environment variables with default values
func Load() (*Config, error) {
	shards, err := strconv.Atoi(getEnv("LEDGER_SHARDS", "1"))
	if err != nil {
		return nil, fmt.Errorf("invalid LEDGER_SHARDS: %w", err)
	}

	dialTimeout, err := time.ParseDuration(getEnv("CLICKHOUSE_DIAL_TIMEOUT", "5s"))
	if err != nil {
		return nil, fmt.Errorf("invalid CLICKHOUSE_DIAL_TIMEOUT: %w", err)
	}

	cfg := &Config{
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Shards: shards,
		Postgres: PostgresConfig{
			URL: getEnv("DATABASE_URL", ""),
		},
		ClickHouse: ClickHouseConfig{
			Host:        getEnv("CLICKHOUSE_HOST", ""),
			Database:    getEnv("CLICKHOUSE_DB", "payments"),
			User:        getEnv("CLICKHOUSE_USER", "default"),
			Password:    getEnv("CLICKHOUSE_PASSWORD", ""),
			DialTimeout: dialTimeout,
		},
		RabbitMQ: RabbitMQConfig{
			URL:        getEnv("RABBITMQ_URL", ""),
			Exchange:   getEnv("RABBITMQ_EXCHANGE", "payments.ledger"),
			RoutingKey: getEnv("RABBITMQ_ROUTING_KEY", "payments.ledger.balances.computed"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that cannot be caught by parsing alone
func (c *Config) Validate() error {
	if c.ClickHouse.DialTimeout <= 0 {
		return fmt.Errorf("CLICKHOUSE_DIAL_TIMEOUT must be positive, got %s", c.ClickHouse.DialTimeout)
	}
	if c.Shards < 1 {
		return fmt.Errorf("LEDGER_SHARDS must be at least 1, got %d", c.Shards)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("unsupported LOG_FORMAT %q: must be json or console", c.Log.Format)
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value if not set
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
