package engine

import (
	"context"
	"errors"
	"strings"

	"github.com/jwebster45206/rule-horror/pkg/prompts"
	"github.com/jwebster45206/rule-horror/pkg/state"
)

// HintKind is what a hint points at.
type HintKind string

const (
	HintRule HintKind = "rule"
	HintClue HintKind = "clue"
)

// ParseHintKind accepts the canonical kinds and their aliases.
func ParseHintKind(s string) (HintKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rule", "rules", "规则":
		return HintRule, nil
	case "clue", "clues", "线索":
		return HintClue, nil
	}
	return "", ErrInvalidHintKind
}

type hintResponse struct {
	Hint string `json:"hint"`
}

func (r hintResponse) Validate() error {
	if strings.TrimSpace(r.Hint) == "" {
		return errors.New("hint is required")
	}
	return nil
}

// Hint spends one hint from the budget. The budget is checked before the
// oracle call and only consumed when a hint comes back.
func (e *Engine) Hint(ctx context.Context, s *state.Session, kind string) (string, error) {
	if !s.Active {
		return "", ErrSessionEnded
	}
	if s.Hints.Remaining() == 0 {
		return "", ErrHintsExhausted
	}
	k, err := ParseHintKind(kind)
	if err != nil {
		return "", err
	}

	var r hintResponse
	err = e.ask(ctx, prompts.Hint, prompts.HintData{
		Kind:       string(k),
		Scenario:   s.Scenario,
		Rules:      s.CurrentRules(),
		Discovered: s.Network.Discovered,
		Histories:  histories(s),
	}, &r)
	if err != nil {
		return "", err
	}

	s.Hints.Used++
	return strings.TrimSpace(r.Hint), nil
}
