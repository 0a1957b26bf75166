package main

import (
	"strings"
	"testing"

	"github.com/jwebster45206/rule-horror/internal/handlers"
	"github.com/jwebster45206/rule-horror/internal/services/events"
)

func TestParseInput(t *testing.T) {
	tests := []struct {
		input       string
		wantCommand string
		wantArgs    string
	}{
		{"open the morgue door", "act", "open the morgue door"},
		{"/start solo", "start", "solo"},
		{"/reason the nurse is the building", "reason", "the nurse is the building"},
		{"/status", "status", ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			cmd, args := parseInput(tt.input)
			if cmd != tt.wantCommand || args != tt.wantArgs {
				t.Errorf("parseInput(%q) = (%q, %q), want (%q, %q)", tt.input, cmd, args, tt.wantCommand, tt.wantArgs)
			}
		})
	}
}

func TestWriteMetadata(t *testing.T) {
	cfg := &ConsoleConfig{SessionKey: "ward", PlayerName: "Ann"}

	if got := writeMetadata(cfg, nil); !strings.Contains(got, "No game running.") {
		t.Errorf("Expected idle hint, got %q", got)
	}

	s := &handlers.SessionView{
		SceneName:  "Pine Hill Hospital",
		RulesTitle: "Visitor Rules",
		Rules:      []string{"Sign in at the desk."},
		MaxPlayers: 5,
		Players: []handlers.PlayerView{
			{Name: "Ann", Alive: true, Sanity: 80},
			{Name: "Bob"},
		},
		SanityBreak: true,
	}
	got := writeMetadata(cfg, s)
	for _, want := range []string{"Pine Hill Hospital", "Players (2/5)", "Ann  sanity 80", "Bob  dead", "1. Sign in at the desk.", "Not everything you see is true."} {
		if !strings.Contains(got, want) {
			t.Errorf("Expected metadata to contain %q, got:\n%s", want, got)
		}
	}
}

func TestDescribeEvent(t *testing.T) {
	ev := events.Event{Type: events.EventTypePlayerJoined, Data: map[string]any{"name": "Bob"}}
	if got := describeEvent(ev); got != "Bob joined the game." {
		t.Errorf("Unexpected description %q", got)
	}
	if got := describeEvent(events.Event{Type: events.EventTypeTurnResolved}); got != "" {
		t.Errorf("Expected turn events to be silent, got %q", got)
	}
}
