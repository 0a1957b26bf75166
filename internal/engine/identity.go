package engine

import (
	"context"
	"errors"
	"strings"

	"github.com/jwebster45206/rule-horror/pkg/extract"
	"github.com/jwebster45206/rule-horror/pkg/prompts"
	"github.com/jwebster45206/rule-horror/pkg/scenario"
	"github.com/jwebster45206/rule-horror/pkg/state"
)

type identityResponse struct {
	Changed     extract.Bool `json:"identity_changed"`
	NewIdentity string       `json:"new_identity"`
	Reason      string       `json:"reason"`
}

func (r identityResponse) Validate() error {
	if bool(r.Changed) && strings.TrimSpace(r.NewIdentity) == "" {
		return errors.New("new_identity is required when identity_changed is true")
	}
	return nil
}

type identityRulesResponse struct {
	Rules []string `json:"rules"`
	Hint  string   `json:"hint"`
}

func (r identityRulesResponse) Validate() error {
	if len(nonBlank(r.Rules)) == 0 {
		return errors.New("at least one rule is required")
	}
	return nil
}

// IdentityChange reports a player becoming someone else.
type IdentityChange struct {
	PlayerID string
	From     string
	To       string
	Reason   string
	// Pending is set when identity rules were generated and now wait
	// to be discovered.
	Pending bool
}

// detectIdentityChange asks whether the actor's identity changed this turn
// and, if so, generates the rules for the new identity into PendingRules.
// A failed rules call still keeps the identity change.
func (e *Engine) detectIdentityChange(ctx context.Context, s *state.Session, p *state.Player, action, narrative string) (*IdentityChange, error) {
	var r identityResponse
	err := e.ask(ctx, prompts.Identity, prompts.IdentityData{
		Scenario:  s.Scenario,
		Player:    p,
		Action:    action,
		Narrative: narrative,
	}, &r)
	if err != nil {
		return nil, err
	}

	next := strings.TrimSpace(r.NewIdentity)
	if !bool(r.Changed) || strings.EqualFold(next, p.Identity) {
		return nil, nil
	}

	change := &IdentityChange{PlayerID: p.ID, From: p.Identity, To: next, Reason: r.Reason}
	p.Identity = next
	e.logger.Info("Player identity changed", "session_key", s.Key, "player_id", p.ID, "identity", next)

	var rr identityRulesResponse
	err = e.ask(ctx, prompts.IdentityRules, prompts.IdentityRulesData{
		Scenario: s.Scenario,
		Rules:    s.CurrentRules(),
		Identity: next,
	}, &rr)
	if err != nil {
		e.logger.Warn("Identity rules not generated", "session_key", s.Key, "player_id", p.ID, "error", err)
		return change, nil
	}

	rules := nonBlank(rr.Rules)
	if len(rules) > scenario.MaxRules {
		rules = rules[:scenario.MaxRules]
	}
	s.PendingRules = &state.PendingRules{
		PlayerID: p.ID,
		Identity: next,
		Rules:    rules,
		Hint:     strings.TrimSpace(rr.Hint),
		At:       s.Time.Elapsed,
	}
	change.Pending = true
	return change, nil
}

// promotePending makes the pending identity rules authoritative.
func (e *Engine) promotePending(s *state.Session) *state.MutationEvent {
	pending := s.PendingRules
	if pending == nil {
		return nil
	}
	prior := s.CurrentRules()
	ev := state.MutationEvent{
		At:      s.Time.Elapsed,
		Trigger: state.TriggerIdentityChange,
		Reason:  "rules for " + pending.Identity + " discovered",
		Prior:   prior,
		Next:    prior.WithRules(pending.Rules),
		Hint:    pending.Hint,
	}
	s.RecordMutation(ev)
	s.PendingRules = nil
	e.logger.Info("Identity rules promoted", "session_key", s.Key, "player_id", pending.PlayerID)
	return &ev
}
