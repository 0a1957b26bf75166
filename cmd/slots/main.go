// Command slots inspects and maintains stored save slots.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/caarlos0/env/v11"
	istorage "github.com/jwebster45206/rule-horror/internal/storage"
	"github.com/jwebster45206/rule-horror/pkg/storage"
)

type slotsConfig struct {
	Backend    string `env:"STORAGE_BACKEND" envDefault:"redis"`
	RedisURL   string `env:"REDIS_URL" envDefault:"redis://localhost:6379"`
	SQLitePath string `env:"SQLITE_PATH" envDefault:"data/slots.db"`
}

func main() {
	cfg := slotsConfig{}
	if err := env.Parse(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	root := newRootCmd(&cfg, func(ctx context.Context, cfg *slotsConfig) (storage.Storage, error) {
		return openStorage(ctx, cfg, log)
	}, os.Stdout)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func openStorage(ctx context.Context, cfg *slotsConfig, log *slog.Logger) (storage.Storage, error) {
	var (
		slots storage.Storage
		err   error
	)
	switch cfg.Backend {
	case "redis":
		slots, err = istorage.NewRedisStorage(cfg.RedisURL, 0, log)
	case "sqlite":
		slots, err = istorage.OpenSQLite(ctx, cfg.SQLitePath, log)
	default:
		return nil, fmt.Errorf("unsupported backend %q: use redis or sqlite", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	if err := slots.Ping(ctx); err != nil {
		_ = slots.Close()
		return nil, fmt.Errorf("storage unreachable: %w", err)
	}
	return slots, nil
}
