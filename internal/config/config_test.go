package config

import (
	"log/slog"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ORACLE_API_KEY", "sk-test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != "8080" || cfg.Environment != "development" {
		t.Errorf("Unexpected server defaults: %+v", cfg)
	}
	if cfg.OracleProvider != "openai" || cfg.OracleTemperature != 0.8 || cfg.OracleMaxTokens != 2000 {
		t.Errorf("Unexpected oracle defaults: %+v", cfg)
	}
	if cfg.OracleTimeout != 60*time.Second {
		t.Errorf("Expected 60s timeout, got %v", cfg.OracleTimeout)
	}
	if cfg.StorageBackend != "redis" || cfg.SlotTTL != 0 {
		t.Errorf("Unexpected storage defaults: %+v", cfg)
	}
	if cfg.FlavorEventProbability != 0.2 || !cfg.EventsActive() {
		t.Errorf("Unexpected event defaults: %+v", cfg)
	}
	if cfg.LogLevel() != slog.LevelInfo {
		t.Errorf("Expected info level, got %v", cfg.LogLevel())
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("ORACLE_PROVIDER", "Gemini")
	t.Setenv("ORACLE_API_KEY", "g-key")
	t.Setenv("ORACLE_TIMEOUT", "10m")
	t.Setenv("STORAGE_BACKEND", "sqlite")
	t.Setenv("SQLITE_PATH", "/tmp/slots.db")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.OracleProvider != "gemini" {
		t.Errorf("Expected provider to be lowercased, got %q", cfg.OracleProvider)
	}
	if cfg.OracleTimeout != 2*time.Minute {
		t.Errorf("Expected timeout clamped to 2m, got %v", cfg.OracleTimeout)
	}
	if cfg.EventsActive() {
		t.Error("Events need the redis backend")
	}
	if cfg.LogLevel() != slog.LevelDebug {
		t.Errorf("Expected debug level, got %v", cfg.LogLevel())
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			OracleProvider:  "openai",
			OracleAPIKey:    "k",
			OracleMaxTokens: 100,
			OracleTimeout:   time.Second,
			StorageBackend:  "memory",
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"local openai-compatible server needs no key", func(c *Config) { c.OracleAPIKey = ""; c.OracleBaseURL = "http://localhost:11434/v1" }, false},
		{"openai without key or url", func(c *Config) { c.OracleAPIKey = "" }, true},
		{"anthropic without key", func(c *Config) { c.OracleProvider = "anthropic"; c.OracleAPIKey = "" }, true},
		{"unknown provider", func(c *Config) { c.OracleProvider = "ollama" }, true},
		{"unknown backend", func(c *Config) { c.StorageBackend = "postgres" }, true},
		{"sqlite without path", func(c *Config) { c.StorageBackend = "sqlite" }, true},
		{"negative ttl", func(c *Config) { c.SlotTTL = -time.Second }, true},
		{"probability above one", func(c *Config) { c.FlavorEventProbability = 1.5 }, true},
		{"zero max tokens", func(c *Config) { c.OracleMaxTokens = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLogLevel(in); got != want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
