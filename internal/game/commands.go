package game

import (
	"context"
	"fmt"
	"strings"

	"github.com/jwebster45206/rule-horror/internal/engine"
	"github.com/jwebster45206/rule-horror/internal/services/events"
	"github.com/jwebster45206/rule-horror/internal/session"
	"github.com/jwebster45206/rule-horror/pkg/state"
	"github.com/jwebster45206/rule-horror/pkg/storage"
)

var commandOrder = []string{
	"start", "force-start", "restore", "save", "load", "list-saves",
	"join", "leave", "status", "rules", "scene", "plot",
	"hint", "reason", "act", "continue", "end", "help",
}

var commandHelp = map[string]string{
	"start":       "start solo|multi - begin a new game (solo joins you automatically)",
	"force-start": "force-start solo|multi - begin a new game over an existing save",
	"restore":     "restore [slot] - resume the autosave or a named save",
	"save":        "save [slot] - save the game, optionally under a name",
	"load":        "load <slot> - replace the current game with a named save",
	"list-saves":  "list-saves - list saved games",
	"join":        "join - join a multiplayer game (up to 5 players)",
	"leave":       "leave - leave a multiplayer game",
	"status":      "status - players, vitals and hints",
	"rules":       "rules - the rules in force",
	"scene":       "scene - the place and its layout",
	"plot":        "plot - discoveries, changes and joint events so far",
	"hint":        "hint rule|clue - spend a hint",
	"reason":      "reason <text> - record your reasoning",
	"act":         "act <text> - do something",
	"continue":    "continue - after clearing, try for the complete ending",
	"end":         "end - finish the game and judge the ending",
	"help":        "help - this list",
}

func (c *Controller) start(ctx context.Context, cmd Command, force bool) (*outcome, error) {
	arg := strings.ToLower(strings.TrimSpace(cmd.Args))
	if arg == "" {
		return nil, refuse(StatusMissingInput, "Choose a mode: start solo or start multi.")
	}
	mode, err := state.ParseMode(arg)
	if err != nil {
		return nil, refuse(StatusInvalidMode, fmt.Sprintf("Unknown mode %q. Use solo or multi.", cmd.Args))
	}

	out := &outcome{}
	_, err = c.store.Update(ctx, cmd.SessionKey, func(tx *session.Tx) error {
		if !force {
			if s := tx.Session(); s != nil && s.Active {
				return refuse(StatusSessionActive, "A game is already running. Use end to finish it or force-start to replace it.")
			}
			saved, err := tx.HasActiveSave()
			if err != nil {
				return storageErr(err)
			}
			if saved {
				return refuse(StatusSaveExists, "A saved game exists. Use restore to continue it or force-start to overwrite it.")
			}
		}

		s, err := c.engine.CreateScenario(ctx, tx.Key(), mode)
		if err != nil {
			return err
		}
		if mode == state.ModeSolo && cmd.PlayerID != "" {
			if _, err := s.AddPlayer(cmd.PlayerID, cmd.displayName(), tx.Now()); err != nil {
				return err
			}
		}
		tx.Replace(s)

		out.say(renderIntro(s))
		out.emit(events.EventTypeSessionStarted, cmd.PlayerID, map[string]any{
			"mode":  s.Mode,
			"scene": s.Scenario.SceneName,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.logger.Info("Game started", "session_key", cmd.SessionKey, "mode", mode, "forced", force)
	return out, nil
}

func (c *Controller) restore(ctx context.Context, cmd Command) (*outcome, error) {
	slot := strings.TrimSpace(cmd.Args)
	out := &outcome{}
	_, err := c.store.Update(ctx, cmd.SessionKey, func(tx *session.Tx) error {
		if s := tx.Session(); s != nil && s.Active {
			return refuse(StatusSessionActive, "A game is already running.")
		}
		s, err := tx.LoadSlot(slot)
		if err != nil {
			return storageErr(err)
		}
		tx.Replace(s)
		out.say(fmt.Sprintf("Restored %s.", slotLabel(slot)))
		out.say(renderSummary(s))
		return nil
	})
	return settle(out, err)
}

func (c *Controller) save(ctx context.Context, cmd Command) (*outcome, error) {
	slot := strings.TrimSpace(cmd.Args)
	out := &outcome{}
	_, err := c.store.Update(ctx, cmd.SessionKey, func(tx *session.Tx) error {
		if _, err := requireSession(tx); err != nil {
			return err
		}
		if err := tx.SaveSlot(slot); err != nil {
			return storageErr(err)
		}
		out.say(fmt.Sprintf("Saved to %s.", slotLabel(slot)))
		return nil
	})
	return settle(out, err)
}

func (c *Controller) load(ctx context.Context, cmd Command) (*outcome, error) {
	slot := strings.TrimSpace(cmd.Args)
	if slot == "" {
		return nil, refuse(StatusMissingInput, "Name the save to load: load <slot>.")
	}
	out := &outcome{}
	_, err := c.store.Update(ctx, cmd.SessionKey, func(tx *session.Tx) error {
		s, err := tx.LoadSlot(slot)
		if err != nil {
			return storageErr(err)
		}
		tx.Replace(s)
		out.say(fmt.Sprintf("Loaded %s.", slotLabel(slot)))
		out.say(renderSummary(s))
		return nil
	})
	return settle(out, err)
}

func (c *Controller) listSaves(ctx context.Context, cmd Command) (*outcome, error) {
	if err := storage.ValidateKey(cmd.SessionKey); err != nil {
		return nil, err
	}
	infos, err := c.store.Slots().ListSlots(ctx, cmd.SessionKey)
	if err != nil {
		return nil, storageErr(err)
	}
	out := &outcome{}
	out.say(renderSlots(infos))
	return out, nil
}

func (c *Controller) join(ctx context.Context, cmd Command) (*outcome, error) {
	out := &outcome{}
	_, err := c.store.Update(ctx, cmd.SessionKey, func(tx *session.Tx) error {
		s, err := requireSession(tx)
		if err != nil {
			return err
		}
		if s.Mode == state.ModeSolo {
			return refuse(StatusSoloMode, "This is a solo game. Nobody else can join.")
		}
		returning := s.HasDeparted(cmd.PlayerID)
		p, err := s.AddPlayer(cmd.PlayerID, cmd.displayName(), tx.Now())
		if err != nil {
			return err
		}
		switch {
		case returning && !p.Alive:
			out.say(fmt.Sprintf("%s is back, but still dead.\n%s", p.Name, renderRoster(s)))
		case returning:
			out.say(fmt.Sprintf("%s rejoined the game.\n%s", p.Name, renderRoster(s)))
		default:
			out.say(fmt.Sprintf("%s joined the game.\n%s", p.Name, renderRoster(s)))
		}
		out.emit(events.EventTypePlayerJoined, p.ID, map[string]any{
			"name":    p.Name,
			"players": len(s.Players),
		})
		return nil
	})
	return settle(out, err)
}

func (c *Controller) leave(ctx context.Context, cmd Command) (*outcome, error) {
	out := &outcome{}
	_, err := c.store.Update(ctx, cmd.SessionKey, func(tx *session.Tx) error {
		s, err := requireSession(tx)
		if err != nil {
			return err
		}
		if s.Mode == state.ModeSolo {
			return refuse(StatusSoloMode, "You cannot leave a solo game. Use end to finish it.")
		}
		p, ok := s.Player(cmd.PlayerID)
		if !ok {
			return state.ErrNotInSession
		}
		if err := s.RemovePlayer(p.ID); err != nil {
			return err
		}
		out.say(fmt.Sprintf("%s left the game.\n%s", p.Name, renderRoster(s)))
		out.emit(events.EventTypePlayerLeft, p.ID, map[string]any{
			"name":    p.Name,
			"players": len(s.Players),
		})
		return nil
	})
	return settle(out, err)
}

// view renders a read-only view of the live session.
func (c *Controller) view(cmd Command, render func(*state.Session) string) (*outcome, error) {
	s, err := c.store.Snapshot(cmd.SessionKey)
	if err != nil {
		return nil, err
	}
	if s == nil || !s.Active {
		return nil, session.ErrNoSession
	}
	out := &outcome{}
	out.say(render(s))
	return out, nil
}

func (c *Controller) status(_ context.Context, cmd Command) (*outcome, error) {
	return c.view(cmd, renderStatus)
}

func (c *Controller) rules(_ context.Context, cmd Command) (*outcome, error) {
	return c.view(cmd, renderRules)
}

func (c *Controller) scene(_ context.Context, cmd Command) (*outcome, error) {
	return c.view(cmd, renderScene)
}

func (c *Controller) plot(_ context.Context, cmd Command) (*outcome, error) {
	return c.view(cmd, renderPlot)
}

func (c *Controller) hint(ctx context.Context, cmd Command) (*outcome, error) {
	kind := strings.TrimSpace(cmd.Args)
	if kind == "" {
		kind = string(engine.HintRule)
	}
	out := &outcome{}
	_, err := c.store.Update(ctx, cmd.SessionKey, func(tx *session.Tx) error {
		s, err := requireSession(tx)
		if err != nil {
			return err
		}
		text, err := c.engine.Hint(ctx, s, kind)
		if err != nil {
			return err
		}
		out.say(fmt.Sprintf("Hint (%d/%d used): %s", s.Hints.Used, s.Hints.Max, text))
		return nil
	})
	return settle(out, err)
}

func (c *Controller) reason(ctx context.Context, cmd Command) (*outcome, error) {
	text := strings.TrimSpace(cmd.Args)
	if text == "" {
		return nil, refuse(StatusMissingInput, "Tell us what you think: reason <text>.")
	}
	out := &outcome{}
	_, err := c.store.Update(ctx, cmd.SessionKey, func(tx *session.Tx) error {
		s, err := requireSession(tx)
		if err != nil {
			return err
		}
		res, err := c.engine.ResolveReasoning(ctx, s, engine.Actor{ID: cmd.PlayerID, Name: cmd.displayName()}, text)
		if err != nil {
			return err
		}
		p, _ := s.Player(res.PlayerID)
		out.say(fmt.Sprintf("%s's reasoning is noted (%d so far).", p.Name, len(p.Reasoning)))
		if res.Clear.First {
			out.say(renderCleared(res.Clear))
			out.emit(events.EventTypeSessionCleared, p.ID, map[string]any{"reason": res.Clear.Reason})
		}
		return nil
	})
	return settle(out, err)
}

func (c *Controller) act(ctx context.Context, cmd Command) (*outcome, error) {
	text := strings.TrimSpace(cmd.Args)
	if text == "" {
		return nil, refuse(StatusMissingInput, "Describe what you do: act <text>.")
	}
	out := &outcome{}
	_, err := c.store.Update(ctx, cmd.SessionKey, func(tx *session.Tx) error {
		s, err := requireSession(tx)
		if err != nil {
			return err
		}
		res, err := c.engine.ResolveAction(ctx, s, engine.Actor{ID: cmd.PlayerID, Name: cmd.displayName()}, text)
		if err != nil {
			return err
		}
		for _, msg := range renderTurn(s, res) {
			out.say(msg)
		}
		emitTurn(out, res)
		return nil
	})
	return settle(out, err)
}

func emitTurn(out *outcome, res *engine.TurnResult) {
	out.emit(events.EventTypeTurnResolved, res.PlayerID, map[string]any{
		"elapsed_minutes": res.Time.Elapsed,
		"time_of_day":     res.Time.Label,
		"judgements":      len(res.Judgements),
	})
	for _, j := range res.Judgements {
		if j.Died {
			out.emit(events.EventTypePlayerDied, j.PlayerID, map[string]any{"name": j.Name})
		}
	}
	if res.Mutation != nil {
		out.emit(events.EventTypeRulesMutated, res.PlayerID, map[string]any{
			"trigger": res.Mutation.Trigger,
			"hint":    res.Mutation.Hint,
		})
	}
	if res.Collaboration != nil {
		out.emit(events.EventTypeCollaborationTriggered, res.PlayerID, map[string]any{
			"effect":       res.Collaboration.Effect,
			"participants": res.Collaboration.Participants,
		})
	}
	if res.Ending != nil {
		out.emit(events.EventTypeSessionEnded, res.PlayerID, map[string]any{"tier": res.Ending.Tier})
	}
}

func (c *Controller) continueGame(ctx context.Context, cmd Command) (*outcome, error) {
	out := &outcome{}
	_, err := c.store.Update(ctx, cmd.SessionKey, func(tx *session.Tx) error {
		s, err := requireSession(tx)
		if err != nil {
			return err
		}
		v, err := c.engine.EvaluatePerfectEnding(ctx, s)
		if err != nil {
			return err
		}
		if v.Ending != nil {
			out.say(renderEnding(*v.Ending))
			out.emit(events.EventTypeSessionEnded, cmd.PlayerID, map[string]any{"tier": v.Ending.Tier})
			return nil
		}
		out.say(renderPartial(v))
		return nil
	})
	return settle(out, err)
}

func (c *Controller) end(ctx context.Context, cmd Command) (*outcome, error) {
	out := &outcome{}
	_, err := c.store.Update(ctx, cmd.SessionKey, func(tx *session.Tx) error {
		s, err := requireSession(tx)
		if err != nil {
			return err
		}
		v, err := c.engine.EndGame(ctx, s)
		if err != nil {
			return err
		}
		out.say(renderEnding(*v.Ending))
		out.emit(events.EventTypeSessionEnded, cmd.PlayerID, map[string]any{"tier": v.Ending.Tier})
		return nil
	})
	return settle(out, err)
}

func (c *Controller) help(_ context.Context, _ Command) (*outcome, error) {
	var b strings.Builder
	b.WriteString("Commands:")
	for _, name := range commandOrder {
		b.WriteString("\n  ")
		b.WriteString(commandHelp[name])
	}
	out := &outcome{}
	out.say(b.String())
	return out, nil
}
