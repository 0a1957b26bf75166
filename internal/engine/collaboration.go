package engine

import (
	"context"
	"errors"
	"strings"

	"github.com/jwebster45206/rule-horror/pkg/extract"
	"github.com/jwebster45206/rule-horror/pkg/prompts"
	"github.com/jwebster45206/rule-horror/pkg/state"
)

type collaborationResponse struct {
	Triggered    extract.Bool `json:"triggered"`
	Condition    string       `json:"condition"`
	Effect       string       `json:"effect"`
	Discovery    string       `json:"discovery"`
	Participants []string     `json:"participants"`
}

func (r collaborationResponse) Validate() error {
	if bool(r.Triggered) && strings.TrimSpace(r.Effect) == "" {
		return errors.New("effect is required when triggered")
	}
	return nil
}

// CheckCollaboration looks for a condition that needs several living
// players at once. It only runs in multi mode with two or more alive and
// returns nil when nothing triggered.
func (e *Engine) CheckCollaboration(ctx context.Context, s *state.Session) (*state.CollaborationEvent, error) {
	alive := s.AlivePlayers()
	if s.Mode != state.ModeMulti || len(alive) < 2 {
		return nil, nil
	}

	players := make([]prompts.CollaborationPlayer, 0, len(alive))
	for _, p := range alive {
		cp := prompts.CollaborationPlayer{
			Name:      p.Name,
			Location:  p.Location,
			Inventory: p.ItemNames(),
		}
		if n := len(p.Actions); n > 0 {
			cp.LastAct = p.Actions[n-1].Text
		}
		players = append(players, cp)
	}

	var r collaborationResponse
	err := e.ask(ctx, prompts.Collaboration, prompts.CollaborationData{
		Rules:   s.CurrentRules(),
		Players: players,
		Time:    s.Time,
		Recent:  s.Memory.Recent(promptRecentEvents),
	}, &r)
	if err != nil {
		return nil, err
	}
	if !r.Triggered {
		return nil, nil
	}

	ev := state.CollaborationEvent{
		At:           s.Time.Elapsed,
		Condition:    strings.TrimSpace(r.Condition),
		Effect:       strings.TrimSpace(r.Effect),
		Discovery:    strings.TrimSpace(r.Discovery),
		Participants: nonBlank(r.Participants),
	}
	s.Collaborations = append(s.Collaborations, ev)
	s.Memory.Record(state.MemoryEvent{
		At:        s.Time.Elapsed,
		TimeOfDay: s.Time.Label,
		Actor:     strings.Join(ev.Participants, ", "),
		Kind:      state.EventCollaboration,
		Text:      ev.Effect,
	})
	if ev.Discovery != "" {
		s.Network.Discover(ev.Discovery)
	}
	e.logger.Info("Collaboration triggered", "session_key", s.Key, "participants", len(ev.Participants))
	return &ev, nil
}
