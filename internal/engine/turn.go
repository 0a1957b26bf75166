package engine

import (
	"context"
	"strings"

	"github.com/jwebster45206/rule-horror/pkg/state"
)

// ReasoningResult is the outcome of a reason command.
type ReasoningResult struct {
	PlayerID string
	Joined   bool // solo player created by this command
	Clear    ClearVerdict
}

// TurnResult is the outcome of an act command.
type TurnResult struct {
	PlayerID    string
	Joined      bool
	Time        state.TimeState
	FlavorEvent string
	// Judgements are in roster order.
	Judgements  []Judgement
	Deaths      []string
	SanityBroke bool // set for the first time this turn

	Identity      *IdentityChange
	Mutation      *state.MutationEvent
	Collaboration *state.CollaborationEvent
	// Ending is set when the turn ended the session.
	Ending *state.Ending
}

// ActorJudgement returns the acting player's judgement.
func (r *TurnResult) ActorJudgement() (Judgement, bool) {
	for _, j := range r.Judgements {
		if j.PlayerID == r.PlayerID {
			return j, true
		}
	}
	return Judgement{}, false
}

// playerFor finds the acting player. Solo sessions create their one
// player on first use.
func (e *Engine) playerFor(s *state.Session, actor Actor) (*state.Player, bool, error) {
	if !s.Active {
		return nil, false, ErrSessionEnded
	}
	if p, ok := s.Player(actor.ID); ok {
		if !p.Alive {
			return nil, false, ErrPlayerDead
		}
		return p, false, nil
	}
	if s.Mode == state.ModeSolo && len(s.Players) == 0 {
		name := strings.TrimSpace(actor.Name)
		if name == "" {
			name = actor.ID
		}
		p, err := s.AddPlayer(actor.ID, name, e.now())
		if err != nil {
			return nil, false, err
		}
		return p, true, nil
	}
	return nil, false, ErrNotInSession
}

// ResolveReasoning records a reasoning entry and then checks for a clear.
// A failed clear check is logged; the reasoning still stands.
func (e *Engine) ResolveReasoning(ctx context.Context, s *state.Session, actor Actor, text string) (*ReasoningResult, error) {
	p, joined, err := e.playerFor(s, actor)
	if err != nil {
		return nil, err
	}
	p.AddReasoning(s.Time.Elapsed, text)

	res := &ReasoningResult{PlayerID: p.ID, Joined: joined}
	v, err := e.checkClear(ctx, s)
	if err != nil {
		e.logger.Warn("Clear check failed", "session_key", s.Key, "player_id", p.ID, "error", err)
		return res, nil
	}
	res.Clear = v
	return res, nil
}

// ResolveAction runs one action turn. Any judgement failure is returned
// and the caller must not commit s.
func (e *Engine) ResolveAction(ctx context.Context, s *state.Session, actor Actor, text string) (*TurnResult, error) {
	p, joined, err := e.playerFor(s, actor)
	if err != nil {
		return nil, err
	}
	res := &TurnResult{PlayerID: p.ID, Joined: joined}

	p.AddAction(s.Time.Elapsed, text)
	s.AdvanceTime(e.catalogue)
	at := s.Time.Elapsed
	res.Time = s.Time

	s.Environment = e.catalogue.EnvironmentFor(p.Mental.Sanity)
	if e.flavorProbability > 0 && len(e.catalogue.FlavorEvents) > 0 && e.roll() < e.flavorProbability {
		res.FlavorEvent = e.catalogue.FlavorEvent(e.pick(len(e.catalogue.FlavorEvents)))
		s.Memory.Record(state.MemoryEvent{
			At:        at,
			TimeOfDay: s.Time.Label,
			Location:  p.Location,
			Kind:      state.EventFlavor,
			Text:      res.FlavorEvent,
		})
	}
	if s.NoteSanity(p.Mental.Sanity) {
		res.SanityBroke = true
	}

	targets, results, err := e.judgeAll(ctx, s, p, text, res.FlavorEvent)
	if err != nil {
		return nil, err
	}

	var (
		keyItems []string
		promoted *state.MutationEvent
	)
	for i, target := range targets {
		j := applyJudgement(target, results[i], target.ID == p.ID, at)
		res.Judgements = append(res.Judgements, j)
		keyItems = append(keyItems, j.KeyItems...)
		if j.Died {
			res.Deaths = append(res.Deaths, target.ID)
		}
		// a player who breaks and dies in the same turn still counts
		if s.NoteSanity(target.Mental.Sanity) {
			res.SanityBroke = true
		}
		if j.RulesDiscovered && target.Alive && s.PendingRules != nil && s.PendingRules.PlayerID == target.ID {
			promoted = e.promotePending(s)
		}
	}

	if !p.Alive && s.Mode == state.ModeSolo {
		actorJudgement, _ := res.ActorJudgement()
		ending := e.deathEnding(p, actorJudgement.Feedback)
		s.Terminate(ending)
		res.Ending = &ending
		e.logger.Info("Solo player died, session over", "session_key", s.Key, "player_id", p.ID)
		return res, nil
	}

	actorJudgement, _ := res.ActorJudgement()
	s.Memory.VisitLocation(p.Location, at)
	for _, obj := range nonBlank(results[indexOf(targets, p.ID)].Interacted) {
		s.Memory.Interact(obj, at)
	}
	eventText := text
	if actorJudgement.Feedback != "" {
		eventText = text + " -> " + actorJudgement.Feedback
	}
	s.Memory.Record(state.MemoryEvent{
		At:        at,
		TimeOfDay: s.Time.Label,
		Location:  p.Location,
		Actor:     p.Name,
		Kind:      state.EventAction,
		Text:      eventText,
	})

	if p.Alive && !s.SanityBreak {
		narrative := actorJudgement.Scene
		if actorJudgement.Feedback != "" {
			narrative = strings.TrimSpace(narrative + " " + actorJudgement.Feedback)
		}
		change, err := e.detectIdentityChange(ctx, s, p, text, narrative)
		if err != nil {
			e.logger.Warn("Identity check failed", "session_key", s.Key, "player_id", p.ID, "error", err)
		}
		res.Identity = change
	}

	// one mutation pathway per turn: identity, then key item, then periodic
	switch {
	case promoted != nil:
		res.Mutation = promoted
	case res.Identity != nil && res.Identity.Pending:
	case len(keyItems) > 0:
		res.Mutation = e.mutate(ctx, s, state.TriggerKeyItem, keyItems)
	default:
		res.Mutation = e.mutate(ctx, s, state.TriggerPeriodic, nil)
	}

	if s.Mode == state.ModeMulti {
		collab, err := e.CheckCollaboration(ctx, s)
		if err != nil {
			e.logger.Warn("Collaboration check failed", "session_key", s.Key, "error", err)
		}
		res.Collaboration = collab
	}

	return res, nil
}

// mutate runs a mutation pathway whose failure must not fail the turn.
func (e *Engine) mutate(ctx context.Context, s *state.Session, trigger state.Trigger, keyItems []string) *state.MutationEvent {
	ev, err := e.MaybeMutate(ctx, s, trigger, keyItems)
	if err != nil {
		e.logger.Warn("Rule mutation failed", "session_key", s.Key, "trigger", trigger, "error", err)
		return nil
	}
	return ev
}

func indexOf(players []*state.Player, id string) int {
	for i, p := range players {
		if p.ID == id {
			return i
		}
	}
	return -1
}
