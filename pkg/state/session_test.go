package state

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jwebster45206/rule-horror/pkg/scenario"
)

func testSession(mode Mode) *Session {
	sc := scenario.Scenario{
		Premise: scenario.Premise{
			SceneName:  "Abandoned Night Ward",
			Background: "A hospital wing closed since the fire.",
			Identity:   "night-shift orderly",
		},
	}
	rules := scenario.RuleSet{
		Title:        "Night Ward Regulations",
		Rules:        []string{"Do not run.", "Never look at room 4B."},
		WinCondition: "Reach the roof before dawn.",
		HiddenTruth:  "The ward never closed.",
	}
	return NewSession("group-1", mode, sc, rules, scenario.Network{}, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
}

func TestNewSession_Defaults(t *testing.T) {
	s := testSession(ModeMulti)

	if !s.Active {
		t.Error("Expected new session to be active")
	}
	if s.Hints.Used != 0 || s.Hints.Max != DefaultMaxHints {
		t.Errorf("Expected hints 0/%d, got %d/%d", DefaultMaxHints, s.Hints.Used, s.Hints.Max)
	}
	if s.MaxPlayers != MultiMaxPlayers {
		t.Errorf("Expected max players %d, got %d", MultiMaxPlayers, s.MaxPlayers)
	}
	if s.Time.Elapsed != 0 || s.Time.Label != "midnight" {
		t.Errorf("Unexpected initial time %+v", s.Time)
	}
	if s.Cleared || s.SanityBreak {
		t.Error("Expected cleared and sanity break to start false")
	}
	if got := s.CurrentRules().Title; got != "Night Ward Regulations" {
		t.Errorf("Expected generated rules to be current, got %q", got)
	}
	if testSession(ModeSolo).MaxPlayers != SoloMaxPlayers {
		t.Error("Expected solo session to cap at one player")
	}
}

func TestSession_AddPlayer(t *testing.T) {
	s := testSession(ModeMulti)
	now := time.Now()

	for i := 1; i <= MultiMaxPlayers; i++ {
		if _, err := s.AddPlayer(fmt.Sprintf("p%d", i), fmt.Sprintf("Player %d", i), now); err != nil {
			t.Fatalf("Join %d failed: %v", i, err)
		}
	}

	if _, err := s.AddPlayer("p6", "Player 6", now); !errors.Is(err, ErrSessionFull) {
		t.Errorf("Expected ErrSessionFull on 6th join, got %v", err)
	}
	if len(s.Players) != MultiMaxPlayers {
		t.Errorf("Expected roster to stay at %d, got %d", MultiMaxPlayers, len(s.Players))
	}
	if _, err := s.AddPlayer("p1", "Again", now); !errors.Is(err, ErrAlreadyJoined) {
		t.Errorf("Expected ErrAlreadyJoined, got %v", err)
	}

	p, _ := s.Player("p3")
	if p.Identity != "night-shift orderly" {
		t.Errorf("Expected scenario identity, got %q", p.Identity)
	}
}

func TestSession_RemovePlayerClearsPending(t *testing.T) {
	s := testSession(ModeMulti)
	if _, err := s.AddPlayer("p1", "Ann", time.Now()); err != nil {
		t.Fatal(err)
	}
	s.PendingRules = &PendingRules{PlayerID: "p1", Rules: []string{"x"}}

	if err := s.RemovePlayer("p1"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if s.PendingRules != nil {
		t.Error("Expected pending rules of departed player to be dropped")
	}
	if err := s.RemovePlayer("p1"); !errors.Is(err, ErrNotInSession) {
		t.Errorf("Expected ErrNotInSession, got %v", err)
	}
}

func TestSession_RejoinRestoresDeparted(t *testing.T) {
	s := testSession(ModeMulti)
	now := time.Now()
	p, err := s.AddPlayer("p1", "Ann", now)
	if err != nil {
		t.Fatal(err)
	}
	p.AddAction(10, "answer the intercom")
	p.Kill(10)

	if err := s.RemovePlayer("p1"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !s.HasDeparted("p1") {
		t.Fatal("Expected departed record to be kept")
	}
	if len(s.AlivePlayers()) != 0 || len(s.Players) != 0 {
		t.Error("Expected departed player off the roster")
	}

	back, err := s.AddPlayer("p1", "Ann Again", now.Add(time.Hour))
	if err != nil {
		t.Fatalf("Rejoin failed: %v", err)
	}
	if back.Alive || back.DiedAt == nil || *back.DiedAt != 10 {
		t.Errorf("Expected rejoined player to stay dead, got alive=%t died_at=%v", back.Alive, back.DiedAt)
	}
	if len(back.Actions) != 1 || back.Name != "Ann" {
		t.Errorf("Expected the original record, got %+v", back)
	}
	if s.HasDeparted("p1") {
		t.Error("Expected departed entry cleared on rejoin")
	}
}

func TestSession_DepartedDoNotCountTowardCap(t *testing.T) {
	s := testSession(ModeMulti)
	now := time.Now()
	for i := 1; i <= MultiMaxPlayers; i++ {
		if _, err := s.AddPlayer(fmt.Sprintf("p%d", i), "x", now); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.RemovePlayer("p1"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.AddPlayer("p6", "Late", now); err != nil {
		t.Fatalf("Expected a free seat after a departure, got %v", err)
	}
	if _, err := s.AddPlayer("p1", "x", now); !errors.Is(err, ErrSessionFull) {
		t.Errorf("Expected returning player to need a free seat, got %v", err)
	}
	if !s.HasDeparted("p1") {
		t.Error("Expected refused rejoin to keep the departed record")
	}
}

func TestSession_NoteSanityIsMonotonic(t *testing.T) {
	s := testSession(ModeSolo)

	if s.NoteSanity(30) {
		t.Error("Sanity of exactly 30 must not break")
	}
	if !s.NoteSanity(29) {
		t.Error("Expected sanity 29 to set the flag")
	}
	if s.NoteSanity(10) {
		t.Error("Expected second break to report no change")
	}
	s.NoteSanity(100)
	if !s.SanityBreak {
		t.Error("Sanity break must never be cleared")
	}
}

func TestSession_MarkCleared(t *testing.T) {
	s := testSession(ModeSolo)
	now := time.Now()
	if !s.MarkCleared(now) {
		t.Fatal("Expected first clear to report true")
	}
	if s.MarkCleared(now.Add(time.Minute)) {
		t.Error("Expected second clear to report false")
	}
	if !s.ClearedAt.Equal(now) {
		t.Error("Expected clear time to be kept from the first call")
	}
}

func TestSession_AdvanceTime(t *testing.T) {
	tests := []struct {
		steps int
		label TimeOfDay
	}{
		{1, "midnight"},
		{11, "midnight"},
		{12, "before_dawn"},
		{35, "before_dawn"},
		{36, "dawn"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d steps", tt.steps), func(t *testing.T) {
			s := testSession(ModeSolo)
			for i := 0; i < tt.steps; i++ {
				s.AdvanceTime(DefaultCatalogue())
			}
			if s.Time.Elapsed != tt.steps*TimeQuantum {
				t.Errorf("Expected elapsed %d, got %d", tt.steps*TimeQuantum, s.Time.Elapsed)
			}
			if s.Time.Label != tt.label {
				t.Errorf("Expected label %s at %d minutes, got %s", tt.label, s.Time.Elapsed, s.Time.Label)
			}
		})
	}
}

func TestSession_CurrentRulesFollowsMutations(t *testing.T) {
	s := testSession(ModeSolo)
	next := s.Rules.WithRules([]string{"Run."})
	s.RecordMutation(MutationEvent{At: 20, Trigger: TriggerPeriodic, Prior: s.Rules, Next: next})

	if got := s.CurrentRules().Rules; len(got) != 1 || got[0] != "Run." {
		t.Errorf("Expected mutated rules, got %v", got)
	}
	if at, ok := s.LastMutationAt(); !ok || at != 20 {
		t.Errorf("Expected last mutation at 20, got %d %v", at, ok)
	}
	if len(s.Rules.Rules) != 2 {
		t.Error("Generated rules must stay untouched")
	}
}

func TestSession_Clone(t *testing.T) {
	s := testSession(ModeMulti)
	p, _ := s.AddPlayer("p1", "Ann", time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	p.AddItem("rusty key", true, 5)
	s.Memory.VisitLocation("lobby", 5)

	c, err := s.Clone()
	if err != nil {
		t.Fatalf("Clone failed: %v", err)
	}
	if diff := cmp.Diff(s, c); diff != "" {
		t.Errorf("Clone differs (-want +got):\n%s", diff)
	}

	c.Players["p1"].Mental.Sanity = 1
	if s.Players["p1"].Mental.Sanity != 100 {
		t.Error("Clone must not share players with the original")
	}
}
