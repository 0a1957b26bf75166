package game

import (
	"fmt"
	"strings"

	"github.com/jwebster45206/rule-horror/internal/engine"
	"github.com/jwebster45206/rule-horror/pkg/state"
	"github.com/jwebster45206/rule-horror/pkg/storage"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.English)

// label turns a token such as "before_dawn" into "Before Dawn".
func label(token string) string {
	return titleCaser.String(strings.ReplaceAll(token, "_", " "))
}

func slotLabel(name string) string {
	if name == storage.DefaultSlot {
		return "the autosave"
	}
	return fmt.Sprintf("save %q", name)
}

func numbered(b *strings.Builder, items []string) {
	for i, item := range items {
		fmt.Fprintf(b, "%d. %s\n", i+1, item)
	}
}

func renderIntro(s *state.Session) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s game)\n\n", s.Scenario.SceneName, s.Mode)
	fmt.Fprintf(&b, "%s\n\n", s.Scenario.Background)
	fmt.Fprintf(&b, "%s\n\n", s.Scenario.Structure.Describe())

	rules := s.CurrentRules()
	fmt.Fprintf(&b, "%s\n", rules.Title)
	numbered(&b, rules.Rules)
	fmt.Fprintf(&b, "\nWin condition: %s\n", rules.WinCondition)
	fmt.Fprintf(&b, "You are: %s\n", s.Scenario.Identity)

	if s.Mode == state.ModeSolo {
		for _, p := range s.Players {
			fmt.Fprintf(&b, "Player: %s\n", p.Name)
		}
	} else {
		fmt.Fprintf(&b, "Players: %d/%d. Use join to take part.\n", len(s.Players), s.MaxPlayers)
	}
	fmt.Fprintf(&b, "Hints: %d/%d used", s.Hints.Used, s.Hints.Max)
	return b.String()
}

func renderSummary(s *state.Session) string {
	return fmt.Sprintf("%s, %s (%d minutes in). Players: %d/%d.",
		s.Scenario.SceneName, label(string(s.Time.Label)), s.Time.Elapsed, len(s.Players), s.MaxPlayers)
}

func renderSlots(infos []storage.SlotInfo) string {
	if len(infos) == 0 {
		return "No saves."
	}
	var b strings.Builder
	b.WriteString("Saves:")
	for _, info := range infos {
		name := info.Name
		if name == storage.DefaultSlot {
			name = "(autosave)"
		}
		switch {
		case info.SavedAt.IsZero():
			fmt.Fprintf(&b, "\n- %s: damaged", name)
		case !info.Active:
			fmt.Fprintf(&b, "\n- %s: %s, finished, %s", name, info.Scene, info.SavedAt.Format("2006-01-02 15:04"))
		default:
			fmt.Fprintf(&b, "\n- %s: %s, %s", name, info.Scene, info.SavedAt.Format("2006-01-02 15:04"))
		}
	}
	return b.String()
}

func renderRoster(s *state.Session) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Players: %d/%d", len(s.Players), s.MaxPlayers)
	for _, id := range s.PlayerIDs() {
		p := s.Players[id]
		fmt.Fprintf(&b, "\n- %s (%s)", p.Name, aliveLabel(p))
	}
	return b.String()
}

func aliveLabel(p *state.Player) string {
	if p.Alive {
		return "alive"
	}
	return "dead"
}

func renderStatus(s *state.Session) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", s.Scenario.SceneName)
	fmt.Fprintf(&b, "Time: %s, %d minutes in\n", label(string(s.Time.Label)), s.Time.Elapsed)
	fmt.Fprintf(&b, "Win condition: %s\n", s.CurrentRules().WinCondition)
	fmt.Fprintf(&b, "Players: %d/%d\n", len(s.Players), s.MaxPlayers)
	if len(s.Players) == 0 {
		b.WriteString("Nobody has joined yet.\n")
	}
	for _, id := range s.PlayerIDs() {
		p := s.Players[id]
		fmt.Fprintf(&b, "\n%s (%s), %s\n", p.Name, aliveLabel(p), p.Identity)
		fmt.Fprintf(&b, "  reasoning %d, actions %d\n", len(p.Reasoning), len(p.Actions))
		if !p.Alive {
			continue
		}
		fmt.Fprintf(&b, "  health %d/100, injury %s, fatigue %s\n", p.Physical.Health, p.Physical.Injury, p.Physical.Fatigue)
		fmt.Fprintf(&b, "  sanity %d/100, %s, %s\n", p.Mental.Sanity, p.Mental.State, p.Mental.Emotion)
		fmt.Fprintf(&b, "  at %s", p.Location)
		if len(p.Inventory) > 0 {
			fmt.Fprintf(&b, ", carrying %s", strings.Join(p.ItemNames(), ", "))
		}
		b.WriteString("\n")
	}
	if s.SanityBreak {
		b.WriteString("\nSomething in your minds has broken. Not everything you see is true.\n")
	}
	fmt.Fprintf(&b, "\nHints: %d/%d used", s.Hints.Used, s.Hints.Max)
	return b.String()
}

func renderRules(s *state.Session) string {
	rules := s.CurrentRules()
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", rules.Title)
	numbered(&b, rules.Rules)
	fmt.Fprintf(&b, "\nWin condition: %s", rules.WinCondition)
	if n := len(s.Mutations); n > 0 {
		fmt.Fprintf(&b, "\nThe rules have changed %d times.", n)
	}
	if s.PendingRules != nil {
		b.WriteString("\nSomeone here is now bound by rules they have not found yet.")
	}
	return b.String()
}

func renderScene(s *state.Session) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n%s\n\n", s.Scenario.SceneName, s.Scenario.Background)
	fmt.Fprintf(&b, "%s\n", s.Scenario.Structure.Describe())
	if len(s.Scenario.Motifs) > 0 {
		b.WriteString("\nMotifs:")
		for _, m := range s.Scenario.Motifs {
			fmt.Fprintf(&b, "\n- %s: %s", m.Name, m.Description)
		}
		b.WriteString("\n")
	}
	env := s.Environment
	fmt.Fprintf(&b, "\n%s. %s\n", label(string(s.Time.Label)), s.Time.Description)
	fmt.Fprintf(&b, "Light: %s. Temperature: %s. Mood: %s.", env.Lighting, env.Temperature, env.Mood)
	return b.String()
}

func renderPlot(s *state.Session) string {
	var b strings.Builder
	b.WriteString("Discovered:")
	if len(s.Network.Discovered) == 0 {
		b.WriteString(" nothing yet")
	}
	for _, d := range s.Network.Discovered {
		fmt.Fprintf(&b, "\n- %s", d)
	}
	if len(s.Mutations) > 0 {
		b.WriteString("\n\nChanges:")
		for _, m := range s.Mutations {
			fmt.Fprintf(&b, "\n- [%d min, %s] %s", m.At, label(string(m.Trigger)), m.Hint)
		}
	}
	if len(s.Collaborations) > 0 {
		b.WriteString("\n\nTogether:")
		for _, ev := range s.Collaborations {
			fmt.Fprintf(&b, "\n- [%d min] %s (%s)", ev.At, ev.Effect, strings.Join(ev.Participants, ", "))
		}
	}
	return b.String()
}

func renderCleared(v engine.ClearVerdict) string {
	msg := "You have met the win condition."
	if v.Reason != "" {
		msg += " " + v.Reason
	}
	return msg + "\nUse continue to try for the complete ending, or end to finish now."
}

func renderTurn(s *state.Session, res *engine.TurnResult) []string {
	var msgs []string
	header := fmt.Sprintf("[%s, %d min]", label(string(res.Time.Label)), res.Time.Elapsed)
	if res.FlavorEvent != "" {
		header += " " + res.FlavorEvent
	}
	msgs = append(msgs, header)

	for _, j := range res.Judgements {
		var b strings.Builder
		if j.PlayerID != res.PlayerID {
			fmt.Fprintf(&b, "%s: ", j.Name)
		}
		b.WriteString(j.Scene)
		if j.Feedback != "" && j.PlayerID == res.PlayerID {
			b.WriteString("\n")
			b.WriteString(j.Feedback)
		}
		if len(j.FoundItems) > 0 {
			fmt.Fprintf(&b, "\nFound: %s", strings.Join(j.FoundItems, ", "))
		}
		if j.Died {
			fmt.Fprintf(&b, "\n%s is dead.", j.Name)
		}
		msgs = append(msgs, b.String())
	}

	if res.SanityBroke {
		msgs = append(msgs, "Something gives way inside. From now on, not everything you see can be trusted.")
	}
	if res.Identity != nil {
		p, _ := s.Player(res.Identity.PlayerID)
		name := res.Identity.PlayerID
		if p != nil {
			name = p.Name
		}
		msgs = append(msgs, fmt.Sprintf("%s is no longer %s. They are now %s.", name, res.Identity.From, res.Identity.To))
	}
	if res.Mutation != nil && res.Mutation.Hint != "" {
		msgs = append(msgs, res.Mutation.Hint)
	}
	if res.Collaboration != nil {
		msgs = append(msgs, res.Collaboration.Effect)
	}
	if res.Ending != nil {
		msgs = append(msgs, renderEnding(*res.Ending))
	}
	return msgs
}

func renderEnding(e state.Ending) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Ending: %s\n", label(string(e.Tier)))
	if e.Reason != "" {
		fmt.Fprintf(&b, "%s\n", e.Reason)
	}
	if len(e.Survivors) > 0 {
		fmt.Fprintf(&b, "Survivors: %s\n", strings.Join(e.Survivors, ", "))
	} else {
		b.WriteString("Nobody survived.\n")
	}
	b.WriteString("The game is over and its saves are gone.")
	return b.String()
}

func renderPartial(v *engine.EndingVerdict) string {
	var missing []string
	if !v.TruthRevealed {
		missing = append(missing, "the truth is still hidden")
	}
	if !v.WinMet {
		missing = append(missing, "the way out is not secured")
	}
	if !v.ResolveMet {
		missing = append(missing, "the source has not been put to rest")
	}
	msg := "Not yet: " + strings.Join(missing, "; ") + "."
	if v.Reason != "" {
		msg += "\n" + v.Reason
	}
	return msg
}
