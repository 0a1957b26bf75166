package engine

import (
	"context"
	"errors"
	"strings"

	"github.com/jwebster45206/rule-horror/pkg/extract"
	"github.com/jwebster45206/rule-horror/pkg/prompts"
	"github.com/jwebster45206/rule-horror/pkg/state"
	"golang.org/x/sync/errgroup"
)

type judgeResponse struct {
	IsDead   extract.Bool `json:"is_dead"`
	Scene    string       `json:"scene_description"`
	Physical struct {
		Health  *int    `json:"health"`
		Injury  *string `json:"injury"`
		Fatigue *string `json:"fatigue"`
	} `json:"physical_status"`
	Mental struct {
		Sanity  *int    `json:"sanity"`
		State   *string `json:"state"`
		Emotion *string `json:"emotion"`
	} `json:"mental_status"`
	Pressure struct {
		Fear    *int `json:"fear_level"`
		Anxiety *int `json:"anxiety_level"`
		Stress  *int `json:"stress_level"`
	} `json:"psychological_pressure"`
	FoundItems      []string     `json:"found_items"`
	KeyItems        []string     `json:"key_items"`
	Interacted      []string     `json:"interacted_objects"`
	Feedback        string       `json:"action_feedback"`
	NewLocation     string       `json:"new_location"`
	RulesDiscovered extract.Bool `json:"rules_discovered"`
}

func (r judgeResponse) Validate() error {
	if strings.TrimSpace(r.Scene) == "" && strings.TrimSpace(r.Feedback) == "" {
		return errors.New("scene_description or action_feedback is required")
	}
	return nil
}

func (r judgeResponse) update() state.StatusUpdate {
	u := state.StatusUpdate{
		Health:  r.Physical.Health,
		Injury:  r.Physical.Injury,
		Fatigue: r.Physical.Fatigue,
		Sanity:  r.Mental.Sanity,
		State:   r.Mental.State,
		Emotion: r.Mental.Emotion,
		Fear:    r.Pressure.Fear,
		Anxiety: r.Pressure.Anxiety,
		Stress:  r.Pressure.Stress,
	}
	if loc := strings.TrimSpace(r.NewLocation); loc != "" {
		u.Location = &loc
	}
	return u
}

// Judgement is the applied outcome of a turn for one player.
type Judgement struct {
	PlayerID        string
	Name            string
	Scene           string
	Feedback        string
	Location        string
	Died            bool
	FoundItems      []string
	KeyItems        []string // newly gained key items
	RulesDiscovered bool
}

// judgeAll asks for one judgement per living player. In solo mode that is
// only the actor. Calls run concurrently; results come back in roster
// order. Any failure fails the batch.
func (e *Engine) judgeAll(ctx context.Context, s *state.Session, actor *state.Player, action, flavor string) ([]*state.Player, []judgeResponse, error) {
	targets := []*state.Player{actor}
	if s.Mode == state.ModeMulti {
		targets = s.AlivePlayers()
	}

	recent := s.Memory.Recent(promptRecentEvents)
	rules := s.CurrentRules()
	data := make([]prompts.JudgeData, len(targets))
	for i, p := range targets {
		data[i] = prompts.JudgeData{
			Scenario:    s.Scenario,
			Rules:       rules,
			Player:      p,
			Actor:       actor,
			Action:      action,
			Time:        s.Time,
			Environment: s.Environment,
			FlavorEvent: flavor,
			Recent:      recent,
			Visits:      s.Memory.Locations[p.Location].Count,
			Corrupted:   s.SanityBreak,
			Solo:        s.Mode == state.ModeSolo,
			Pending:     s.PendingRules != nil && s.PendingRules.PlayerID == p.ID,
		}
	}

	results := make([]judgeResponse, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	for i := range targets {
		g.Go(func() error {
			return e.ask(gctx, prompts.Judge, data[i], &results[i])
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return targets, results, nil
}

// applyJudgement writes one result to its player. Only the actor picks
// up items.
func applyJudgement(p *state.Player, r judgeResponse, isActor bool, at int) Judgement {
	p.Apply(r.update())

	j := Judgement{
		PlayerID:        p.ID,
		Name:            p.Name,
		Scene:           strings.TrimSpace(r.Scene),
		Feedback:        strings.TrimSpace(r.Feedback),
		RulesDiscovered: bool(r.RulesDiscovered),
	}

	if isActor {
		keys := make(map[string]bool, len(r.KeyItems))
		for _, k := range nonBlank(r.KeyItems) {
			keys[strings.ToLower(k)] = true
		}
		found := nonBlank(append(append([]string(nil), r.FoundItems...), r.KeyItems...))
		for _, name := range found {
			key := keys[strings.ToLower(name)]
			if p.AddItem(name, key, at) {
				j.FoundItems = append(j.FoundItems, name)
				if key {
					j.KeyItems = append(j.KeyItems, name)
				}
			}
		}
	}

	if r.IsDead {
		p.Kill(at)
		j.Died = true
	}
	j.Location = p.Location
	return j
}
