package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/jwebster45206/rule-horror/internal/services/events"
	"github.com/jwebster45206/rule-horror/pkg/client"
)

type ConsoleConfig struct {
	APIBaseURL string        `env:"API_BASE_URL" envDefault:"http://localhost:8080"`
	SessionKey string        `env:"SESSION_KEY" envDefault:"local"`
	PlayerID   string        `env:"PLAYER_ID"`
	PlayerName string        `env:"PLAYER_NAME" envDefault:"Player"`
	Timeout    time.Duration `env:"API_TIMEOUT" envDefault:"3m"`
}

func main() {
	cfg := &ConsoleConfig{}
	if err := env.Parse(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid console configuration: %v\n", err)
		os.Exit(1)
	}
	if cfg.PlayerID == "" {
		cfg.PlayerID = uuid.NewString()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// commands can wait on several oracle calls
	api := client.New(cfg.APIBaseURL, &http.Client{Timeout: cfg.Timeout})
	if err := api.Health(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Could not connect to API (%v). Please ensure the API is running.\nTry: docker-compose up -d\n", err)
		os.Exit(1)
	}

	eventChan := make(chan events.Event, 16)
	// Events are optional: the API only serves them with the redis backend.
	// The stream gets a client without a timeout.
	go func() {
		_ = client.New(cfg.APIBaseURL, &http.Client{}).Events(ctx, cfg.SessionKey, eventChan)
	}()

	p := tea.NewProgram(NewConsoleUI(cfg, api, eventChan),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		os.Exit(1)
	}
}
