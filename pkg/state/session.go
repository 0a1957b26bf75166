package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/rule-horror/pkg/scenario"
)

// Mode is the player arrangement of a session.
type Mode string

const (
	ModeSolo  Mode = "solo"
	ModeMulti Mode = "multi"
)

const (
	DefaultMaxHints      = 3
	SoloMaxPlayers       = 1
	MultiMaxPlayers      = 5
	TimeQuantum          = 5  // in-game minutes per action
	SanityBreakThreshold = 30 // sanity strictly below this breaks the session
)

var (
	ErrAlreadyJoined = errors.New("player already in session")
	ErrSessionFull   = errors.New("session is full")
	ErrNotInSession  = errors.New("player not in session")
)

// ParseMode accepts the canonical names plus a few aliases.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "solo", "single", "单人":
		return ModeSolo, nil
	case "multi", "multiplayer", "group", "多人":
		return ModeMulti, nil
	}
	return "", fmt.Errorf("unknown mode %q", s)
}

// MaxPlayers returns the roster cap for the mode.
func (m Mode) MaxPlayers() int {
	if m == ModeSolo {
		return SoloMaxPlayers
	}
	return MultiMaxPlayers
}

// HintBudget tracks hints spent against the session allowance
type HintBudget struct {
	Used int `json:"used"`
	Max  int `json:"max"`
}

func (h HintBudget) Remaining() int {
	if h.Used >= h.Max {
		return 0
	}
	return h.Max - h.Used
}

// TimeState is in-game time since the session started.
type TimeState struct {
	Elapsed     int       `json:"elapsed_minutes"`
	Label       TimeOfDay `json:"label"`
	Description string    `json:"description"`
}

// Session is the full mutable state of one game, keyed by a chat identity.
type Session struct {
	ID         uuid.UUID `json:"id"`
	Key        string    `json:"key"` // group or user identity
	Mode       Mode      `json:"mode"`
	MaxPlayers int       `json:"max_players"`
	Active     bool      `json:"active"`

	Scenario     scenario.Scenario `json:"scenario"`
	Rules        scenario.RuleSet  `json:"rules"` // as generated; see CurrentRules
	Mutations    []MutationEvent   `json:"mutations"`
	PendingRules *PendingRules     `json:"pending_rules,omitempty"`
	Network      scenario.Network  `json:"network"`

	Hints          HintBudget           `json:"hints"`
	Players        map[string]*Player   `json:"players"`
	Departed       map[string]*Player   `json:"departed,omitempty"` // left the roster; restored on rejoin
	Time           TimeState            `json:"time"`
	Environment    Environment          `json:"environment"`
	Memory         EnvironmentMemory    `json:"memory"`
	Collaborations []CollaborationEvent `json:"collaborations"`

	Cleared     bool       `json:"cleared"`
	ClearedAt   *time.Time `json:"cleared_at,omitempty"`
	SanityBreak bool       `json:"sanity_break"`
	Ending      *Ending    `json:"ending,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewSession assembles a fresh active session from generated content.
// Time and environment start from the embedded catalogue.
func NewSession(key string, mode Mode, sc scenario.Scenario, rules scenario.RuleSet, network scenario.Network, now time.Time) *Session {
	label, desc := DefaultCatalogue().TimeOfDay(0)
	return &Session{
		ID:             uuid.New(),
		Key:            key,
		Mode:           mode,
		MaxPlayers:     mode.MaxPlayers(),
		Active:         true,
		Scenario:       sc,
		Rules:          rules,
		Mutations:      make([]MutationEvent, 0),
		Network:        network,
		Hints:          HintBudget{Max: DefaultMaxHints},
		Players:        make(map[string]*Player),
		Time:           TimeState{Label: label, Description: desc},
		Environment:    DefaultCatalogue().EnvironmentFor(100),
		Memory:         NewEnvironmentMemory(),
		Collaborations: make([]CollaborationEvent, 0),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// CurrentRules is the newest mutation's rule set, or the generated one.
func (s *Session) CurrentRules() scenario.RuleSet {
	if n := len(s.Mutations); n > 0 {
		return s.Mutations[n-1].Next
	}
	return s.Rules
}

// LastMutationAt reports the elapsed minute of the newest mutation.
func (s *Session) LastMutationAt() (int, bool) {
	if n := len(s.Mutations); n > 0 {
		return s.Mutations[n-1].At, true
	}
	return 0, false
}

// RecordMutation appends ev and makes its rule set current.
func (s *Session) RecordMutation(ev MutationEvent) {
	s.Mutations = append(s.Mutations, ev)
}

// AddPlayer joins a player to the roster. A player who left earlier gets
// their old record back, dead or alive, with its histories intact.
func (s *Session) AddPlayer(id, name string, now time.Time) (*Player, error) {
	if _, ok := s.Players[id]; ok {
		return nil, ErrAlreadyJoined
	}
	if len(s.Players) >= s.MaxPlayers {
		return nil, ErrSessionFull
	}
	if p, ok := s.Departed[id]; ok {
		delete(s.Departed, id)
		s.Players[id] = p
		return p, nil
	}
	p := NewPlayer(id, name, s.Scenario.Identity, now)
	s.Players[id] = p
	return p, nil
}

// HasDeparted reports whether id left the roster and has not rejoined.
func (s *Session) HasDeparted(id string) bool {
	_, ok := s.Departed[id]
	return ok
}

// RemovePlayer moves a player off the roster. The record is kept until
// the session is discarded and does not count toward the cap.
func (s *Session) RemovePlayer(id string) error {
	p, ok := s.Players[id]
	if !ok {
		return ErrNotInSession
	}
	delete(s.Players, id)
	if s.Departed == nil {
		s.Departed = make(map[string]*Player)
	}
	s.Departed[id] = p
	if s.PendingRules != nil && s.PendingRules.PlayerID == id {
		s.PendingRules = nil
	}
	return nil
}

// Player looks up a player by id.
func (s *Session) Player(id string) (*Player, bool) {
	p, ok := s.Players[id]
	return p, ok
}

// PlayerIDs returns roster ids in a stable order.
func (s *Session) PlayerIDs() []string {
	ids := make([]string, 0, len(s.Players))
	for id := range s.Players {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// AlivePlayers returns living players ordered by id.
func (s *Session) AlivePlayers() []*Player {
	var alive []*Player
	for _, id := range s.PlayerIDs() {
		if p := s.Players[id]; p.Alive {
			alive = append(alive, p)
		}
	}
	return alive
}

// AdvanceTime moves the clock one action quantum and relabels it from c.
func (s *Session) AdvanceTime(c *Catalogue) {
	s.Time.Elapsed += TimeQuantum
	s.Time.Label, s.Time.Description = c.TimeOfDay(s.Time.Elapsed)
}

// NoteSanity sets the sanity-break flag when sanity is below threshold.
// It reports whether the flag was newly set. The flag is never cleared.
func (s *Session) NoteSanity(sanity int) bool {
	if s.SanityBreak || sanity >= SanityBreakThreshold {
		return false
	}
	s.SanityBreak = true
	return true
}

// MarkCleared sets the cleared flag once. It reports whether this call set it.
func (s *Session) MarkCleared(now time.Time) bool {
	if s.Cleared {
		return false
	}
	s.Cleared = true
	s.ClearedAt = &now
	return true
}

// Terminate ends the session with the given ending.
func (s *Session) Terminate(e Ending) {
	s.Active = false
	s.Ending = &e
}

// Clone returns a deep copy via the persisted representation.
func (s *Session) Clone() (*Session, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session: %w", err)
	}
	var out Session
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &out, nil
}
