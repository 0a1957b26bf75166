package state

import (
	"time"

	"github.com/jwebster45206/rule-horror/pkg/scenario"
)

// Trigger is why a rule mutation happened.
type Trigger string

const (
	TriggerPeriodic       Trigger = "periodic"
	TriggerKeyItem        Trigger = "key_item"
	TriggerIdentityChange Trigger = "identity_change"
)

// MutationEvent records one change to the active rules.
type MutationEvent struct {
	At      int              `json:"at"` // elapsed minutes
	Trigger Trigger          `json:"trigger"`
	Reason  string           `json:"reason,omitempty"`
	Prior   scenario.RuleSet `json:"prior"`
	Next    scenario.RuleSet `json:"next"`
	Hint    string           `json:"hint"`
}

// PendingRules are identity-specific rules waiting to be discovered in play.
// They do not bind until promoted into a MutationEvent.
type PendingRules struct {
	PlayerID string   `json:"player_id"`
	Identity string   `json:"identity"`
	Rules    []string `json:"rules"`
	Hint     string   `json:"hint"`
	At       int      `json:"at"`
}

// CollaborationEvent is a joint condition the players satisfied together.
type CollaborationEvent struct {
	At           int      `json:"at"`
	Condition    string   `json:"condition"`
	Effect       string   `json:"effect"`
	Discovery    string   `json:"discovery,omitempty"`
	Participants []string `json:"participants"`
}

// EndingTier ranks how a session finished, best first.
type EndingTier string

const (
	EndingComplete EndingTier = "complete"
	EndingSuccess  EndingTier = "success"
	EndingClear    EndingTier = "clear"
	EndingFailure  EndingTier = "failure"
)

// Ending is the final verdict on a terminal session.
type Ending struct {
	Tier          EndingTier `json:"tier"`
	Reason        string     `json:"reason"`
	TruthRevealed bool       `json:"truth_revealed"`
	WinMet        bool       `json:"win_met"`
	ResolveMet    bool       `json:"resolve_met"`
	Survivors     []string   `json:"survivors"`
	EndedAt       time.Time  `json:"ended_at"`
}
