package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jwebster45206/rule-horror/pkg/prompts"
	"github.com/jwebster45206/rule-horror/pkg/scenario"
	"github.com/jwebster45206/rule-horror/pkg/state"
)

type premiseResponse struct {
	scenario.Premise
}

func (r premiseResponse) Validate() error {
	if strings.TrimSpace(r.SceneName) == "" {
		return errors.New("scene_name is required")
	}
	if strings.TrimSpace(r.Background) == "" {
		return errors.New("background is required")
	}
	return nil
}

type structureResponse struct {
	scenario.Structure
}

func (r structureResponse) Validate() error {
	if len(r.Floors) == 0 {
		return errors.New("at least one floor is required")
	}
	return nil
}

type rulesResponse struct {
	scenario.RuleSet
}

func (r rulesResponse) Validate() error {
	if len(nonBlank(r.Rules)) == 0 {
		return errors.New("at least one rule is required")
	}
	if strings.TrimSpace(r.WinCondition) == "" {
		return errors.New("win_condition is required")
	}
	return nil
}

type networkResponse struct {
	scenario.Network
}

func nonBlank(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

// CreateScenario generates a new session for key. Each stage feeds the
// next; any failure aborts with no session.
func (e *Engine) CreateScenario(ctx context.Context, key string, mode state.Mode) (*state.Session, error) {
	premise, err := e.generatePremise(ctx)
	if err != nil {
		return nil, fmt.Errorf("premise: %w", err)
	}
	structure, err := e.generateStructure(ctx, premise)
	if err != nil {
		return nil, fmt.Errorf("structure: %w", err)
	}
	rules, err := e.generateRules(ctx, premise, structure)
	if err != nil {
		return nil, fmt.Errorf("rules: %w", err)
	}
	network, err := e.buildNetwork(ctx, rules)
	if err != nil {
		return nil, fmt.Errorf("network: %w", err)
	}

	sc := scenario.Scenario{Premise: premise, Structure: structure}
	s := state.NewSession(key, mode, sc, rules, network, e.now())
	s.Time.Label, s.Time.Description = e.catalogue.TimeOfDay(0)
	s.Environment = e.catalogue.EnvironmentFor(100)
	e.logger.Info("Scenario created",
		"session_key", key,
		"mode", mode,
		"scene", premise.SceneName,
		"rules", len(rules.Rules),
	)
	return s, nil
}

func (e *Engine) generatePremise(ctx context.Context) (scenario.Premise, error) {
	var r premiseResponse
	if err := e.ask(ctx, prompts.Premise, nil, &r); err != nil {
		return scenario.Premise{}, err
	}
	return r.Premise, nil
}

func (e *Engine) generateStructure(ctx context.Context, premise scenario.Premise) (scenario.Structure, error) {
	var r structureResponse
	if err := e.ask(ctx, prompts.Structure, prompts.StructureData{Premise: premise}, &r); err != nil {
		return scenario.Structure{}, err
	}
	return r.Structure, nil
}

func (e *Engine) generateRules(ctx context.Context, premise scenario.Premise, structure scenario.Structure) (scenario.RuleSet, error) {
	var r rulesResponse
	if err := e.ask(ctx, prompts.Rules, prompts.RulesData{Premise: premise, Structure: structure}, &r); err != nil {
		return scenario.RuleSet{}, err
	}
	rules := r.RuleSet
	rules.Rules = nonBlank(rules.Rules)
	if len(rules.Rules) > scenario.MaxRules {
		rules.Rules = rules.Rules[:scenario.MaxRules]
	}
	rules.DeathTriggers = nonBlank(rules.DeathTriggers)
	return rules, nil
}

func (e *Engine) buildNetwork(ctx context.Context, rules scenario.RuleSet) (scenario.Network, error) {
	var r networkResponse
	if err := e.ask(ctx, prompts.Network, prompts.NetworkData{Rules: rules}, &r); err != nil {
		return scenario.Network{}, err
	}
	n := r.Network
	n.Truths = nonBlank(n.Truths)
	n.Discovered = nil
	n.Normalize(len(rules.Rules))
	return n, nil
}
