package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Port        string `env:"PORT" envDefault:"8080"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevelRaw string `env:"LOG_LEVEL" envDefault:"info"`

	OracleProvider    string        `env:"ORACLE_PROVIDER" envDefault:"openai"`
	OracleBaseURL     string        `env:"ORACLE_BASE_URL"`
	OracleAPIKey      string        `env:"ORACLE_API_KEY"`
	OracleModel       string        `env:"ORACLE_MODEL"`
	OracleTemperature float64       `env:"ORACLE_TEMPERATURE" envDefault:"0.8"`
	OracleMaxTokens   int           `env:"ORACLE_MAX_TOKENS" envDefault:"2000"`
	OracleTimeout     time.Duration `env:"ORACLE_TIMEOUT" envDefault:"60s"`

	StorageBackend string        `env:"STORAGE_BACKEND" envDefault:"redis"`
	RedisURL       string        `env:"REDIS_URL" envDefault:"redis://localhost:6379"`
	SQLitePath     string        `env:"SQLITE_PATH" envDefault:"data/slots.db"`
	SlotTTL        time.Duration `env:"SLOT_TTL" envDefault:"0s"`

	FlavorEventProbability float64 `env:"FLAVOR_EVENT_PROBABILITY" envDefault:"0.2"`
	EventsEnabled          bool    `env:"EVENTS_ENABLED" envDefault:"true"`
}

const maxOracleTimeout = 2 * time.Minute

var (
	providers = []string{"openai", "venice", "anthropic", "gemini"}
	backends  = []string{"redis", "sqlite", "memory"}
)

// Load reads the environment and validates the result.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.OracleProvider = strings.ToLower(strings.TrimSpace(cfg.OracleProvider))
	cfg.StorageBackend = strings.ToLower(strings.TrimSpace(cfg.StorageBackend))
	if cfg.OracleTimeout > maxOracleTimeout {
		cfg.OracleTimeout = maxOracleTimeout
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that depend on each other.
func (c *Config) Validate() error {
	var errs []error
	if !contains(providers, c.OracleProvider) {
		errs = append(errs, fmt.Errorf("ORACLE_PROVIDER must be one of %s, got %q", strings.Join(providers, ", "), c.OracleProvider))
	}
	if c.OracleAPIKey == "" && c.OracleProvider != "openai" {
		errs = append(errs, fmt.Errorf("ORACLE_API_KEY is required for provider %s", c.OracleProvider))
	}
	if c.OracleProvider == "openai" && c.OracleAPIKey == "" && c.OracleBaseURL == "" {
		errs = append(errs, errors.New("ORACLE_API_KEY or ORACLE_BASE_URL is required for provider openai"))
	}
	if c.OracleMaxTokens <= 0 {
		errs = append(errs, errors.New("ORACLE_MAX_TOKENS must be positive"))
	}
	if c.OracleTimeout <= 0 {
		errs = append(errs, errors.New("ORACLE_TIMEOUT must be positive"))
	}
	if !contains(backends, c.StorageBackend) {
		errs = append(errs, fmt.Errorf("STORAGE_BACKEND must be one of %s, got %q", strings.Join(backends, ", "), c.StorageBackend))
	}
	if c.StorageBackend == "sqlite" && strings.TrimSpace(c.SQLitePath) == "" {
		errs = append(errs, errors.New("SQLITE_PATH is required for the sqlite backend"))
	}
	if c.SlotTTL < 0 {
		errs = append(errs, errors.New("SLOT_TTL cannot be negative"))
	}
	if c.FlavorEventProbability < 0 || c.FlavorEventProbability > 1 {
		errs = append(errs, errors.New("FLAVOR_EVENT_PROBABILITY must be between 0 and 1"))
	}
	return errors.Join(errs...)
}

// EventsActive reports whether events are published. Pub/sub needs Redis.
func (c *Config) EventsActive() bool {
	return c.EventsEnabled && c.StorageBackend == "redis"
}

func (c *Config) LogLevel() slog.Level {
	return parseLogLevel(c.LogLevelRaw)
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
