package engine

import (
	"context"
	"slices"
	"strings"

	"github.com/jwebster45206/rule-horror/pkg/extract"
	"github.com/jwebster45206/rule-horror/pkg/prompts"
	"github.com/jwebster45206/rule-horror/pkg/scenario"
	"github.com/jwebster45206/rule-horror/pkg/state"
)

type mutationCheckResponse struct {
	ShouldMutate extract.Bool `json:"should_mutate"`
	Reason       string       `json:"reason"`
}

type mutationResponse struct {
	Changes []scenario.RuleChange `json:"changes"`
	Hint    string                `json:"hint"`
}

// periodicDue reports whether the cooldown since the last mutation of
// any kind has passed. Without a prior mutation it counts from minute 0.
func periodicDue(s *state.Session) bool {
	last, _ := s.LastMutationAt()
	return s.Time.Elapsed-last >= MutationCooldown
}

// MaybeMutate asks whether the rules should change and, if so, applies the
// oracle's changes as a new mutation event. It returns nil when nothing
// changed. Periodic triggers are gated by the cooldown before any call.
func (e *Engine) MaybeMutate(ctx context.Context, s *state.Session, trigger state.Trigger, keyItems []string) (*state.MutationEvent, error) {
	if trigger == state.TriggerPeriodic && !periodicDue(s) {
		return nil, nil
	}

	data := prompts.MutationData{
		Trigger:  trigger,
		Rules:    s.CurrentRules(),
		Time:     s.Time,
		Recent:   s.Memory.Recent(promptRecentEvents),
		KeyItems: keyItems,
	}

	var check mutationCheckResponse
	if err := e.ask(ctx, prompts.MutationCheck, data, &check); err != nil {
		return nil, err
	}
	if !check.ShouldMutate {
		return nil, nil
	}

	data.Reason = check.Reason
	var r mutationResponse
	if err := e.ask(ctx, prompts.Mutation, data, &r); err != nil {
		return nil, err
	}

	changes := make([]scenario.RuleChange, 0, MaxChangesPerMutation)
	for _, c := range r.Changes {
		c.Rule = strings.TrimSpace(c.Rule)
		if c.Rule == "" {
			continue
		}
		changes = append(changes, c)
		if len(changes) == MaxChangesPerMutation {
			break
		}
	}
	if len(changes) == 0 {
		return nil, nil
	}

	prior := s.CurrentRules()
	next := prior.Apply(changes)
	if slices.Equal(prior.Rules, next.Rules) {
		return nil, nil
	}

	ev := state.MutationEvent{
		At:      s.Time.Elapsed,
		Trigger: trigger,
		Reason:  check.Reason,
		Prior:   prior,
		Next:    next,
		Hint:    strings.TrimSpace(r.Hint),
	}
	s.RecordMutation(ev)
	e.logger.Info("Rules mutated", "session_key", s.Key, "trigger", trigger, "changes", len(changes))
	return &ev, nil
}
