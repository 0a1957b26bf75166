package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/jwebster45206/rule-horror/pkg/state"
	"github.com/jwebster45206/rule-horror/pkg/storage"
)

// SessionReader returns a copy of the live session for a key, or nil.
type SessionReader interface {
	Snapshot(key string) (*state.Session, error)
}

// SessionView is what any caller may see of a session. Secrets the
// players must uncover are left out.
type SessionView struct {
	Key            string                     `json:"key"`
	Mode           state.Mode                 `json:"mode"`
	Active         bool                       `json:"active"`
	SceneName      string                     `json:"scene_name"`
	Background     string                     `json:"background"`
	Identity       string                     `json:"player_identity"`
	RulesTitle     string                     `json:"rules_title"`
	Rules          []string                   `json:"rules"`
	WinCondition   string                     `json:"win_condition"`
	Mutations      int                        `json:"mutations"`
	Discovered     []string                   `json:"discovered"`
	Players        []PlayerView               `json:"players"`
	MaxPlayers     int                        `json:"max_players"`
	Time           state.TimeState            `json:"time"`
	Hints          state.HintBudget           `json:"hints"`
	Collaborations []state.CollaborationEvent `json:"collaborations"`
	Cleared        bool                       `json:"cleared"`
	SanityBreak    bool                       `json:"sanity_break"`
	UpdatedAt      time.Time                  `json:"updated_at"`
}

type PlayerView struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Alive     bool     `json:"alive"`
	Identity  string   `json:"identity"`
	Location  string   `json:"location"`
	Health    int      `json:"health"`
	Sanity    int      `json:"sanity"`
	Inventory []string `json:"inventory"`
}

// NewSessionView builds the public view of s.
func NewSessionView(s *state.Session) SessionView {
	rules := s.CurrentRules()
	v := SessionView{
		Key:            s.Key,
		Mode:           s.Mode,
		Active:         s.Active,
		SceneName:      s.Scenario.SceneName,
		Background:     s.Scenario.Background,
		Identity:       s.Scenario.Identity,
		RulesTitle:     rules.Title,
		Rules:          rules.Rules,
		WinCondition:   rules.WinCondition,
		Mutations:      len(s.Mutations),
		Discovered:     s.Network.Discovered,
		Players:        make([]PlayerView, 0, len(s.Players)),
		MaxPlayers:     s.MaxPlayers,
		Time:           s.Time,
		Hints:          s.Hints,
		Collaborations: s.Collaborations,
		Cleared:        s.Cleared,
		SanityBreak:    s.SanityBreak,
		UpdatedAt:      s.UpdatedAt,
	}
	for _, id := range s.PlayerIDs() {
		p := s.Players[id]
		v.Players = append(v.Players, PlayerView{
			ID:        p.ID,
			Name:      p.Name,
			Alive:     p.Alive,
			Identity:  p.Identity,
			Location:  p.Location,
			Health:    p.Physical.Health,
			Sanity:    p.Mental.Sanity,
			Inventory: p.ItemNames(),
		})
	}
	return v
}

// SessionHandler serves the public view of a live session.
// GET /v1/sessions/{key}
type SessionHandler struct {
	sessions SessionReader
	logger   *slog.Logger
}

func NewSessionHandler(sessions SessionReader, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		logger:   logger,
	}
}

func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Only GET is supported.")
		return
	}

	key := r.PathValue("key")
	if err := storage.ValidateKey(key); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid session key.")
		return
	}

	s, err := h.sessions.Snapshot(key)
	if err != nil {
		h.logger.Error("Failed to snapshot session", "session_key", key, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to read session.")
		return
	}
	if s == nil {
		writeError(w, h.logger, http.StatusNotFound, "No game is running for this key.")
		return
	}

	writeJSON(w, h.logger, http.StatusOK, NewSessionView(s))
}
