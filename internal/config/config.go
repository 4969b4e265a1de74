// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all server configuration.
type Config struct {
	Port string

	// Upstream completions API.
	GroqAPIKey  string
	GroqBaseURL string
	Model       string

	// Remote handoff store (Upstash-style Redis REST). When unset, the
	// local SQLite backend is used instead.
	RedisRESTURL   string
	RedisRESTToken string

	// Local handoff backend.
	SeedDBPath        string
	SeedSweepInterval time.Duration

	ExchangeLog ExchangeLogConfig
}

// ExchangeLogConfig controls NDJSON exchange logging.
type ExchangeLogConfig struct {
	Enabled   bool
	Dir       string
	QueueSize int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	queueSize := getEnvInt("EXCHANGE_LOG_QUEUE_SIZE", 256)
	if queueSize <= 0 {
		queueSize = 256
	}

	cfg := &Config{
		Port:              getEnv("PORT", "8080"),
		GroqAPIKey:        getEnv("GROQ_API_KEY", ""),
		GroqBaseURL:       getEnv("GROQ_BASE_URL", ""),
		Model:             getEnv("GROQ_MODEL", ""),
		RedisRESTURL:      getEnv("UPSTASH_REDIS_REST_URL", ""),
		RedisRESTToken:    getEnv("UPSTASH_REDIS_REST_TOKEN", ""),
		SeedDBPath:        getEnv("SEED_DB_PATH", "./data/handoff.db"),
		SeedSweepInterval: getEnvDuration("SEED_SWEEP_INTERVAL", time.Minute),
		ExchangeLog: ExchangeLogConfig{
			Enabled:   getEnvBool("EXCHANGE_LOG_ENABLED", false),
			Dir:       getEnv("EXCHANGE_LOG_DIR", "./data/logs/exchanges"),
			QueueSize: queueSize,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if !c.UseRemoteSeedStore() && c.SeedDBPath == "" {
		return fmt.Errorf("SEED_DB_PATH cannot be empty without Redis credentials")
	}
	if c.ExchangeLog.Enabled && c.ExchangeLog.Dir == "" {
		return fmt.Errorf("EXCHANGE_LOG_DIR cannot be empty when logging is enabled")
	}
	return nil
}

// UseRemoteSeedStore reports whether Redis REST credentials are present.
func (c *Config) UseRemoteSeedStore() bool {
	return c.RedisRESTURL != "" && c.RedisRESTToken != ""
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
