package engine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jwebster45206/rule-horror/internal/services"
	"github.com/jwebster45206/rule-horror/pkg/state"
)

func TestResolveAction_SoloTurn(t *testing.T) {
	e, oracle := newTestEngine()
	s := testSession(state.ModeSolo)

	res, err := e.ResolveAction(context.Background(), s, Actor{ID: "u1", Name: "Mei"}, "I walk down the corridor")
	if err != nil {
		t.Fatalf("ResolveAction failed: %v", err)
	}

	if !res.Joined {
		t.Error("Expected solo player to be created")
	}
	p, ok := s.Player("u1")
	if !ok {
		t.Fatal("Player not on roster")
	}
	if s.Time.Elapsed != state.TimeQuantum || s.Time.Label != "midnight" {
		t.Errorf("Unexpected time %+v", s.Time)
	}
	if p.Location != "corridor" || p.Mental.Sanity != 90 || p.Mental.State != "uneasy" {
		t.Errorf("Judgement not applied: location=%s sanity=%d state=%s", p.Location, p.Mental.Sanity, p.Mental.State)
	}
	if p.Physical.Health != 100 {
		t.Errorf("Expected untouched health 100, got %d", p.Physical.Health)
	}
	if len(p.Actions) != 1 || p.Actions[0].At != 0 {
		t.Errorf("Unexpected action history %+v", p.Actions)
	}
	if v := s.Memory.Locations["corridor"]; v.Count != 1 || v.First != 5 {
		t.Errorf("Unexpected location memory %+v", v)
	}
	if v := s.Memory.Objects["door"]; v.Count != 1 {
		t.Errorf("Unexpected object memory %+v", v)
	}
	recent := s.Memory.Recent(1)
	if len(recent) != 1 || recent[0].Kind != state.EventAction || !strings.Contains(recent[0].Text, "Nothing answers.") {
		t.Errorf("Unexpected event log %+v", recent)
	}

	if n := oracle.CountCalls(markJudge); n != 1 {
		t.Errorf("Expected 1 judgement, got %d", n)
	}
	if n := oracle.CountCalls(markIdentity); n != 1 {
		t.Errorf("Expected 1 identity check, got %d", n)
	}
	if n := oracle.CountCalls(markMutationCheck); n != 0 {
		t.Errorf("Periodic mutation must wait for the cooldown, got %d calls", n)
	}
	if n := oracle.CountCalls(markCollaboration); n != 0 {
		t.Errorf("Solo sessions never check collaboration, got %d calls", n)
	}
}

func TestResolveAction_TimeOfDay(t *testing.T) {
	e, _ := newTestEngine()
	s := testSession(state.ModeSolo)
	ctx := context.Background()
	actor := Actor{ID: "u1", Name: "Mei"}

	want := map[int]state.TimeOfDay{5: "midnight", 55: "midnight", 60: "before_dawn", 175: "before_dawn", 180: "dawn"}
	for s.Time.Elapsed < 180 {
		if _, err := e.ResolveAction(ctx, s, actor, "wait"); err != nil {
			t.Fatalf("ResolveAction failed at %d: %v", s.Time.Elapsed, err)
		}
		if label, ok := want[s.Time.Elapsed]; ok && s.Time.Label != label {
			t.Errorf("At %d minutes expected %s, got %s", s.Time.Elapsed, label, s.Time.Label)
		}
	}
}

func TestResolveAction_FlavorEvent(t *testing.T) {
	e, oracle := newTestEngine(WithFlavorProbability(1))
	s := testSession(state.ModeSolo)

	res, err := e.ResolveAction(context.Background(), s, Actor{ID: "u1"}, "listen")
	if err != nil {
		t.Fatalf("ResolveAction failed: %v", err)
	}
	if res.FlavorEvent == "" {
		t.Fatal("Expected a flavor event at probability 1")
	}
	found := false
	for _, ev := range s.Memory.Events {
		if ev.Kind == state.EventFlavor && ev.Text == res.FlavorEvent {
			found = true
		}
	}
	if !found {
		t.Error("Flavor event not recorded in memory")
	}
	calls := oracle.GetCalls()
	if !strings.Contains(calls[0].Prompt, res.FlavorEvent) {
		t.Error("Judgement prompt should carry the flavor event")
	}
}

const shortNight = `
time_of_day:
  - below: 10
    label: witching_hour
    description: The clocks stop.
  - label: morning
    description: Grey light under the doors.
sanity_bands:
  - lighting: flickering
    mood: watchful
flavor_events:
  - A gurney rolls past on its own.
`

func TestResolveAction_CustomCatalogue(t *testing.T) {
	c, err := state.LoadCatalogue([]byte(shortNight))
	if err != nil {
		t.Fatalf("LoadCatalogue failed: %v", err)
	}
	e, _ := newTestEngine(WithCatalogue(c), WithFlavorProbability(1))
	s := testSession(state.ModeSolo)
	ctx := context.Background()
	actor := Actor{ID: "u1"}

	res, err := e.ResolveAction(ctx, s, actor, "wait")
	if err != nil {
		t.Fatalf("ResolveAction failed: %v", err)
	}
	if s.Time.Label != "witching_hour" || s.Environment.Mood != "watchful" {
		t.Errorf("Expected labels from the engine catalogue, got %s / %q", s.Time.Label, s.Environment.Mood)
	}
	if res.FlavorEvent != "A gurney rolls past on its own." {
		t.Errorf("Unexpected flavor event %q", res.FlavorEvent)
	}
	if _, err := e.ResolveAction(ctx, s, actor, "wait"); err != nil {
		t.Fatalf("ResolveAction failed: %v", err)
	}
	if s.Time.Label != "morning" {
		t.Errorf("Expected morning at %d minutes, got %s", s.Time.Elapsed, s.Time.Label)
	}

	// no flavor events to draw from
	c.FlavorEvents = nil
	res, err = e.ResolveAction(ctx, s, actor, "wait")
	if err != nil {
		t.Fatalf("ResolveAction failed: %v", err)
	}
	if res.FlavorEvent != "" {
		t.Errorf("Expected no flavor event, got %q", res.FlavorEvent)
	}
}

func TestResolveAction_SanityBreak(t *testing.T) {
	e, oracle := newTestEngine()
	s := testSession(state.ModeSolo)
	ctx := context.Background()
	actor := Actor{ID: "u1", Name: "Mei"}

	oracle.Route(markJudge, `{"is_dead": false, "scene_description": "The walls lean in.", "mental_status": {"sanity": 20}}`)
	res, err := e.ResolveAction(ctx, s, actor, "look at the walls")
	if err != nil {
		t.Fatalf("ResolveAction failed: %v", err)
	}
	if !res.SanityBroke || !s.SanityBreak {
		t.Fatal("Expected sanity break when sanity drops below 30")
	}
	if n := oracle.CountCalls(markIdentity); n != 0 {
		t.Errorf("Identity detection is skipped once sanity breaks, got %d calls", n)
	}

	oracle.Route(markJudge, `{"is_dead": false, "scene_description": "Everything is fine. Truly.", "mental_status": {"sanity": 100}}`)
	res, err = e.ResolveAction(ctx, s, actor, "smile")
	if err != nil {
		t.Fatalf("ResolveAction failed: %v", err)
	}
	if !s.SanityBreak {
		t.Error("Sanity break must never clear")
	}
	if res.SanityBroke {
		t.Error("SanityBroke should only report the first break")
	}
	calls := oracle.GetCalls()
	if !strings.Contains(lastJudgePrompt(calls), "mind has broken") {
		t.Error("Judgement after a break should ask for corrupted narration")
	}
	if s.Environment.Mood != "sheer terror" {
		t.Errorf("Environment should follow the actor's low sanity band, got %q", s.Environment.Mood)
	}
}

func TestResolveAction_SanityBreakIsGlobal(t *testing.T) {
	e, oracle := newTestEngine()
	s := testSession(state.ModeMulti)
	addPlayers(t, s, "Ann", "Bob")

	oracle.RouteFunc(markJudge, func(prompt string) (string, error) {
		if strings.Contains(prompt, "Player being judged: Bob") {
			return `{"scene_description": "Bob sees his own face.", "mental_status": {"sanity": 10}}`, nil
		}
		return calmJudgement, nil
	})

	if _, err := e.ResolveAction(context.Background(), s, Actor{ID: "a-Ann"}, "open the ward door"); err != nil {
		t.Fatalf("ResolveAction failed: %v", err)
	}
	if !s.SanityBreak {
		t.Error("Any player's break sets the session flag")
	}
}

func TestResolveAction_SanityBreakOnDeath(t *testing.T) {
	e, oracle := newTestEngine()
	s := testSession(state.ModeMulti)
	players := addPlayers(t, s, "Ann", "Bob", "Cat")

	oracle.RouteFunc(markJudge, func(prompt string) (string, error) {
		if strings.Contains(prompt, "Player being judged: Bob") {
			return `{"is_dead": true, "scene_description": "Bob laughs at the intercom until it answers.", "mental_status": {"sanity": 5}}`, nil
		}
		return calmJudgement, nil
	})

	res, err := e.ResolveAction(context.Background(), s, Actor{ID: "a-Ann"}, "read the rules aloud")
	if err != nil {
		t.Fatalf("ResolveAction failed: %v", err)
	}
	bob := players[1]
	if bob.Alive || bob.Mental.Sanity != 5 {
		t.Fatalf("Expected Bob dead at sanity 5, got alive=%v sanity=%d", bob.Alive, bob.Mental.Sanity)
	}
	if !res.SanityBroke || !s.SanityBreak {
		t.Error("A player who breaks and dies in the same turn still sets the flag")
	}

	oracle.Route(markJudge, calmJudgement)
	if _, err := e.ResolveAction(context.Background(), s, Actor{ID: "c-Cat"}, "keep walking"); err != nil {
		t.Fatalf("ResolveAction failed: %v", err)
	}
	if !strings.Contains(lastJudgePrompt(oracle.GetCalls()), "mind has broken") {
		t.Error("Survivors should get corrupted narration after the break")
	}
}

func TestResolveAction_SoloDeathEndsSession(t *testing.T) {
	e, oracle := newTestEngine()
	s := testSession(state.ModeSolo)
	oracle.Route(markJudge, `{"is_dead": "是", "scene_description": "The intercom crackles.", "action_feedback": "You answered the intercom."}`)

	res, err := e.ResolveAction(context.Background(), s, Actor{ID: "u1", Name: "Mei"}, "answer the intercom")
	if err != nil {
		t.Fatalf("ResolveAction failed: %v", err)
	}
	p, _ := s.Player("u1")
	if p.Alive || p.DiedAt == nil || *p.DiedAt != 5 {
		t.Errorf("Expected player dead at 5, got alive=%v died_at=%v", p.Alive, p.DiedAt)
	}
	if s.Active || s.Ending == nil || s.Ending.Tier != state.EndingFailure {
		t.Fatalf("Expected terminal failure, got active=%v ending=%+v", s.Active, s.Ending)
	}
	if res.Ending == nil || len(res.Deaths) != 1 {
		t.Errorf("Unexpected result %+v", res)
	}
	if n := oracle.CountCalls(markIdentity); n != 0 {
		t.Errorf("No follow-up calls after death, got %d identity calls", n)
	}

	if _, err := e.ResolveAction(context.Background(), s, Actor{ID: "u1"}, "again"); !errors.Is(err, ErrSessionEnded) {
		t.Errorf("Expected ErrSessionEnded, got %v", err)
	}
}

func TestResolveAction_MultiJudgesEveryLivingPlayer(t *testing.T) {
	e, oracle := newTestEngine()
	s := testSession(state.ModeMulti)
	players := addPlayers(t, s, "Ann", "Bob", "Cat")
	players[2].Kill(0)

	oracle.RouteFunc(markJudge, func(prompt string) (string, error) {
		switch {
		case strings.Contains(prompt, "Player being judged: Ann"):
			return `{"scene_description": "The lift opens for Ann.", "found_items": ["visitor badge", "brass key"],
				"key_items": ["brass key"], "new_location": "lift"}`, nil
		case strings.Contains(prompt, "Player being judged: Bob"):
			if !strings.Contains(prompt, "Ann (at entrance) just did: press the lift button") {
				return "", errors.New("observer prompt missing the actor's action")
			}
			return `{"is_dead": true, "scene_description": "Bob hears the lift and answers the intercom.",
				"found_items": ["scalpel"]}`, nil
		}
		return "", errors.New("unexpected judgement")
	})

	res, err := e.ResolveAction(context.Background(), s, Actor{ID: "a-Ann"}, "press the lift button")
	if err != nil {
		t.Fatalf("ResolveAction failed: %v", err)
	}

	if n := oracle.CountCalls(markJudge); n != 2 {
		t.Errorf("Expected one judgement per living player (2), got %d", n)
	}
	if len(res.Judgements) != 2 || res.Judgements[0].PlayerID != "a-Ann" || res.Judgements[1].PlayerID != "b-Bob" {
		t.Errorf("Judgements not in roster order: %+v", res.Judgements)
	}

	ann, bob := players[0], players[1]
	if got := ann.ItemNames(); len(got) != 2 {
		t.Errorf("Actor should pick up both items, got %v", got)
	}
	if len(bob.Inventory) != 0 {
		t.Errorf("Only the actor picks up items, Bob has %v", bob.ItemNames())
	}
	if bob.Alive || !ann.Alive {
		t.Errorf("Deaths apply independently: ann=%v bob=%v", ann.Alive, bob.Alive)
	}
	if len(res.Deaths) != 1 || res.Deaths[0] != "b-Bob" {
		t.Errorf("Unexpected deaths %v", res.Deaths)
	}
	if !s.Active {
		t.Error("Multi sessions stay active when a player dies")
	}
	if res.Mutation == nil && oracle.CountCalls(markMutationCheck) != 1 {
		t.Error("Key item pickup should reach the mutation check")
	}
	if n := oracle.CountCalls(markCollaboration); n != 0 {
		t.Errorf("Collaboration needs two living players, got %d calls", n)
	}
}

func TestResolveAction_DeadPlayerRefused(t *testing.T) {
	e, oracle := newTestEngine()
	s := testSession(state.ModeMulti)
	players := addPlayers(t, s, "Ann", "Bob")
	players[1].Kill(0)
	ctx := context.Background()

	if _, err := e.ResolveAction(ctx, s, Actor{ID: "b-Bob"}, "walk"); !errors.Is(err, ErrPlayerDead) {
		t.Errorf("Expected ErrPlayerDead for act, got %v", err)
	}
	if _, err := e.ResolveReasoning(ctx, s, Actor{ID: "b-Bob"}, "think"); !errors.Is(err, ErrPlayerDead) {
		t.Errorf("Expected ErrPlayerDead for reason, got %v", err)
	}
	if len(oracle.GetCalls()) != 0 {
		t.Error("Refused commands must not call the oracle")
	}

	if _, err := e.ResolveAction(ctx, s, Actor{ID: "a-Ann"}, "walk"); err != nil {
		t.Errorf("Living player should continue, got %v", err)
	}
	if _, err := e.ResolveAction(ctx, s, Actor{ID: "zed"}, "walk"); !errors.Is(err, ErrNotInSession) {
		t.Errorf("Expected ErrNotInSession for stranger, got %v", err)
	}
}

func TestResolveAction_JudgementFailureFailsTurn(t *testing.T) {
	tests := []struct {
		name    string
		respond func(string) (string, error)
		wantErr error
	}{
		{"oracle error", func(string) (string, error) { return "", errors.New("timeout") }, ErrOracleUnavailable},
		{"prose", func(string) (string, error) { return "The corridor stretches on.", nil }, ErrMalformedResponse},
		{"wrong types", func(string) (string, error) { return `{"scene_description": 4}`, nil }, ErrMalformedResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, oracle := newTestEngine()
			s := testSession(state.ModeMulti)
			addPlayers(t, s, "Ann", "Bob")
			oracle.RouteFunc(markJudge, func(prompt string) (string, error) {
				if strings.Contains(prompt, "Player being judged: Bob") {
					return tt.respond(prompt)
				}
				return calmJudgement, nil
			})

			_, err := e.ResolveAction(context.Background(), s, Actor{ID: "a-Ann"}, "run")
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestResolveReasoning(t *testing.T) {
	e, oracle := newTestEngine()
	s := testSession(state.ModeSolo)
	ctx := context.Background()
	actor := Actor{ID: "u1", Name: "Mei"}

	res, err := e.ResolveReasoning(ctx, s, actor, "The lift rule protects the staff, not us.")
	if err != nil {
		t.Fatalf("ResolveReasoning failed: %v", err)
	}
	if !res.Joined || res.Clear.First {
		t.Errorf("Unexpected result %+v", res)
	}

	// a failed clear check keeps the reasoning
	oracle.RouteError(markClear, errors.New("overloaded"))
	if _, err := e.ResolveReasoning(ctx, s, actor, "The nurse is the building."); err != nil {
		t.Fatalf("Clear check failure must not fail reasoning: %v", err)
	}
	p, _ := s.Player("u1")
	if len(p.Reasoning) != 2 {
		t.Errorf("Expected 2 reasoning entries, got %d", len(p.Reasoning))
	}
	if s.Time.Elapsed != 0 {
		t.Error("Reasoning does not advance time")
	}
}

func TestResolveAction_IdentityChangeAndPromotion(t *testing.T) {
	e, oracle := newTestEngine()
	s := testSession(state.ModeSolo)
	ctx := context.Background()
	actor := Actor{ID: "u1", Name: "Mei"}
	original := s.CurrentRules()

	// turn 1 lands on minute 5; run one quiet turn first so turn 2 is at 10
	// and the periodic gate would otherwise be open
	if _, err := e.ResolveAction(ctx, s, actor, "wait"); err != nil {
		t.Fatalf("ResolveAction failed: %v", err)
	}

	oracle.Route(markIdentity, `{"identity_changed": true, "new_identity": "night nurse", "reason": "you put on the uniform"}`)
	oracle.Route(markIdentityRules, `{"rules": ["Staff never use the lobby.", "Count the patients at 3am."], "hint": "A clipboard hangs in the staff room."}`)

	res, err := e.ResolveAction(ctx, s, actor, "put on the white uniform")
	if err != nil {
		t.Fatalf("ResolveAction failed: %v", err)
	}
	if res.Identity == nil || res.Identity.To != "night nurse" || !res.Identity.Pending {
		t.Fatalf("Expected pending identity change, got %+v", res.Identity)
	}
	p, _ := s.Player("u1")
	if p.Identity != "night nurse" {
		t.Errorf("Identity not replaced: %s", p.Identity)
	}
	if s.PendingRules == nil || len(s.PendingRules.Rules) != 2 {
		t.Fatalf("Expected pending rules, got %+v", s.PendingRules)
	}
	if len(s.Mutations) != 0 {
		t.Error("Pending rules are not authoritative")
	}
	if n := oracle.CountCalls(markMutationCheck); n != 0 {
		t.Errorf("Identity pathway takes precedence over periodic, got %d checks", n)
	}

	// turn 3: the player finds the rules
	oracle.Route(markIdentity, noIdentityChange)
	oracle.Route(markJudge, `{"scene_description": "The clipboard lists staff rules.", "rules_discovered": true}`)
	res, err = e.ResolveAction(ctx, s, actor, "read the clipboard")
	if err != nil {
		t.Fatalf("ResolveAction failed: %v", err)
	}
	if res.Mutation == nil || res.Mutation.Trigger != state.TriggerIdentityChange {
		t.Fatalf("Expected identity-change mutation, got %+v", res.Mutation)
	}
	if s.PendingRules != nil {
		t.Error("Pending rules should be cleared after promotion")
	}
	current := s.CurrentRules()
	if len(current.Rules) != 2 || current.Rules[0] != "Staff never use the lobby." {
		t.Errorf("Unexpected current rules %v", current.Rules)
	}
	if current.WinCondition != original.WinCondition {
		t.Error("Promotion replaces the rule list only")
	}
	if res.Mutation.Hint != "A clipboard hangs in the staff room." {
		t.Errorf("Unexpected hint %q", res.Mutation.Hint)
	}
	if n := oracle.CountCalls(markMutationCheck); n != 0 {
		t.Errorf("Promotion consumes the turn's mutation, got %d checks", n)
	}
}

func TestResolveAction_NewerIdentityReplacesPending(t *testing.T) {
	e, oracle := newTestEngine()
	s := testSession(state.ModeSolo)
	ctx := context.Background()
	actor := Actor{ID: "u1", Name: "Mei"}

	oracle.Route(markIdentity, `{"identity_changed": true, "new_identity": "patient", "reason": "wristband"}`)
	oracle.Route(markIdentityRules, `{"rules": ["Patients stay in bed."], "hint": "chart"}`)
	if _, err := e.ResolveAction(ctx, s, actor, "wear the wristband"); err != nil {
		t.Fatalf("ResolveAction failed: %v", err)
	}

	oracle.Route(markIdentity, `{"identity_changed": "yes", "new_identity": "orderly", "reason": "keys"}`)
	oracle.Route(markIdentityRules, `{"rules": ["Orderlies lock every door."], "hint": "key ring"}`)
	if _, err := e.ResolveAction(ctx, s, actor, "take the orderly keys"); err != nil {
		t.Fatalf("ResolveAction failed: %v", err)
	}

	if s.PendingRules == nil || s.PendingRules.Identity != "orderly" || s.PendingRules.Rules[0] != "Orderlies lock every door." {
		t.Errorf("Expected the newer pending set, got %+v", s.PendingRules)
	}
}

func TestResolveAction_OptionalCallsDoNotFailTurn(t *testing.T) {
	e, oracle := newTestEngine()
	s := testSession(state.ModeMulti)
	addPlayers(t, s, "Ann", "Bob")
	s.Time.Elapsed = 40

	oracle.RouteError(markIdentity, errors.New("down"))
	oracle.RouteError(markMutationCheck, errors.New("down"))
	oracle.Route(markCollaboration, "no idea")

	res, err := e.ResolveAction(context.Background(), s, Actor{ID: "a-Ann"}, "hold the door")
	if err != nil {
		t.Fatalf("Optional call failures must not fail the turn: %v", err)
	}
	if res.Identity != nil || res.Mutation != nil || res.Collaboration != nil {
		t.Errorf("Expected no optional outcomes, got %+v", res)
	}
	if s.Time.Elapsed != 45 {
		t.Errorf("Turn should still be committed to the working copy, elapsed=%d", s.Time.Elapsed)
	}
}

func lastJudgePrompt(calls []services.GenerateCall) string {
	for i := len(calls) - 1; i >= 0; i-- {
		if strings.Contains(calls[i].Prompt, markJudge) {
			return calls[i].Prompt
		}
	}
	return ""
}
