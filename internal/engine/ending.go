package engine

import (
	"context"
	"strings"

	"github.com/jwebster45206/rule-horror/pkg/extract"
	"github.com/jwebster45206/rule-horror/pkg/prompts"
	"github.com/jwebster45206/rule-horror/pkg/state"
)

type clearResponse struct {
	Cleared      extract.Bool `json:"cleared"`
	Reason       string       `json:"reason"`
	ConditionMet extract.Bool `json:"condition_met"`
}

type perfectResponse struct {
	TruthRevealed extract.Bool `json:"truth_revealed"`
	WinMet        extract.Bool `json:"win_condition_met"`
	ResolveMet    extract.Bool `json:"resolve_condition_met"`
	Reason        string       `json:"reason"`
}

type endingResponse struct {
	perfectResponse
	Survivors []string `json:"survivors"`
}

// ClearVerdict is the outcome of a clear check.
type ClearVerdict struct {
	// First is true only on the call that set Cleared.
	First  bool
	Reason string
}

// EndingVerdict is the outcome of a perfect-ending or end-of-game judgement.
type EndingVerdict struct {
	TruthRevealed bool
	WinMet        bool
	ResolveMet    bool
	Reason        string
	// Ending is set when the session became terminal.
	Ending *state.Ending
}

// ClassifyEnding ranks an end of game. Checked in order: no win or nobody
// alive is failure; truth plus resolve is complete; truth alone is
// success; anything else is a plain clear.
func ClassifyEnding(truth, win, resolve bool, alive int) state.EndingTier {
	switch {
	case !win || alive == 0:
		return state.EndingFailure
	case truth && resolve:
		return state.EndingComplete
	case truth:
		return state.EndingSuccess
	default:
		return state.EndingClear
	}
}

// CheckClear asks whether the win condition has been met. It reports true
// only the first time; once cleared it returns false without a call.
func (e *Engine) CheckClear(ctx context.Context, s *state.Session) (bool, error) {
	v, err := e.checkClear(ctx, s)
	if err != nil {
		return false, err
	}
	return v.First, nil
}

func (e *Engine) checkClear(ctx context.Context, s *state.Session) (ClearVerdict, error) {
	if s.Cleared || len(s.Players) == 0 {
		return ClearVerdict{}, nil
	}

	var r clearResponse
	if err := e.ask(ctx, prompts.Clear, e.verdictData(s), &r); err != nil {
		return ClearVerdict{}, err
	}
	if !r.Cleared {
		return ClearVerdict{}, nil
	}

	first := s.MarkCleared(e.now())
	if first {
		e.logger.Info("Session cleared", "session_key", s.Key)
	}
	return ClearVerdict{First: first, Reason: strings.TrimSpace(r.Reason)}, nil
}

// EvaluatePerfectEnding judges a cleared session for the complete ending.
// Only a full verdict ends the session; otherwise it stays active.
func (e *Engine) EvaluatePerfectEnding(ctx context.Context, s *state.Session) (*EndingVerdict, error) {
	if !s.Active {
		return nil, ErrSessionEnded
	}
	if len(s.Players) == 0 {
		return nil, ErrNoPlayers
	}
	if !s.Cleared {
		return nil, ErrNotCleared
	}

	var r perfectResponse
	if err := e.ask(ctx, prompts.Perfect, e.verdictData(s), &r); err != nil {
		return nil, err
	}

	v := &EndingVerdict{
		TruthRevealed: bool(r.TruthRevealed),
		WinMet:        bool(r.WinMet),
		ResolveMet:    bool(r.ResolveMet),
		Reason:        strings.TrimSpace(r.Reason),
	}
	if v.TruthRevealed && v.WinMet && v.ResolveMet {
		ending := state.Ending{
			Tier:          state.EndingComplete,
			Reason:        v.Reason,
			TruthRevealed: true,
			WinMet:        true,
			ResolveMet:    true,
			Survivors:     survivorNames(s),
			EndedAt:       e.now(),
		}
		s.Terminate(ending)
		v.Ending = &ending
		e.logger.Info("Perfect ending reached", "session_key", s.Key)
	}
	return v, nil
}

// EndGame makes the final judgement and terminates the session whatever
// the outcome.
func (e *Engine) EndGame(ctx context.Context, s *state.Session) (*EndingVerdict, error) {
	if !s.Active {
		return nil, ErrSessionEnded
	}
	if len(s.Players) == 0 {
		return nil, ErrNoPlayers
	}

	var r endingResponse
	if err := e.ask(ctx, prompts.Ending, e.verdictData(s), &r); err != nil {
		return nil, err
	}

	survivors := survivorNames(s)
	v := &EndingVerdict{
		TruthRevealed: bool(r.TruthRevealed),
		WinMet:        bool(r.WinMet),
		ResolveMet:    bool(r.ResolveMet),
		Reason:        strings.TrimSpace(r.Reason),
	}
	ending := state.Ending{
		Tier:          ClassifyEnding(v.TruthRevealed, v.WinMet, v.ResolveMet, len(survivors)),
		Reason:        v.Reason,
		TruthRevealed: v.TruthRevealed,
		WinMet:        v.WinMet,
		ResolveMet:    v.ResolveMet,
		Survivors:     survivors,
		EndedAt:       e.now(),
	}
	s.Terminate(ending)
	v.Ending = &ending
	e.logger.Info("Session ended", "session_key", s.Key, "tier", ending.Tier)
	return v, nil
}

// deathEnding is the solo failure ending when the only player dies.
func (e *Engine) deathEnding(p *state.Player, cause string) state.Ending {
	reason := p.Name + " died."
	if cause != "" {
		reason = cause
	}
	return state.Ending{
		Tier:      state.EndingFailure,
		Reason:    reason,
		Survivors: []string{},
		EndedAt:   e.now(),
	}
}
