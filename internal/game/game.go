// Package game dispatches player commands against live sessions.
package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jwebster45206/rule-horror/internal/engine"
	"github.com/jwebster45206/rule-horror/internal/services/events"
	"github.com/jwebster45206/rule-horror/internal/session"
	"github.com/jwebster45206/rule-horror/pkg/state"
	"github.com/jwebster45206/rule-horror/pkg/storage"
)

// Status is a stable machine-readable outcome token.
type Status string

const (
	StatusOK                Status = "ok"
	StatusUnknownCommand    Status = "unknown_command"
	StatusMissingInput      Status = "missing_input"
	StatusInvalidMode       Status = "invalid_mode"
	StatusSessionActive     Status = "session_active"
	StatusSaveExists        Status = "save_exists"
	StatusNoSession         Status = "no_session"
	StatusSoloMode          Status = "solo_mode"
	StatusAlreadyJoined     Status = "already_joined"
	StatusFull              Status = "full"
	StatusNotInSession      Status = "not_in_session"
	StatusPlayerDead        Status = "player_dead"
	StatusInvalidHintKind   Status = "invalid_hint_kind"
	StatusHintsExhausted    Status = "hints_exhausted"
	StatusNotCleared        Status = "not_cleared"
	StatusNoPlayers         Status = "no_players"
	StatusInvalidSlot       Status = "invalid_slot"
	StatusSlotNotFound      Status = "slot_not_found"
	StatusSlotInactive      Status = "slot_inactive"
	StatusSlotCorrupt       Status = "slot_corrupt"
	StatusOracleUnavailable Status = "oracle_unavailable"
	StatusMalformed         Status = "malformed_response"
	StatusStorageError      Status = "storage_error"
	StatusInternalError     Status = "internal_error"
)

// Command is one player command addressed to a session key.
type Command struct {
	Name       string
	SessionKey string
	PlayerID   string
	PlayerName string
	Args       string
}

// displayName is the name shown for the issuing player.
func (c Command) displayName() string {
	if name := strings.TrimSpace(c.PlayerName); name != "" {
		return name
	}
	return c.PlayerID
}

// Result is what a command produced for the players.
type Result struct {
	Messages []string
	OK       bool
	Status   Status
}

// refusal is a precondition failure with its own status and message.
type refusal struct {
	status  Status
	message string
}

func (r *refusal) Error() string {
	return string(r.status) + ": " + r.message
}

func refuse(status Status, message string) error {
	return &refusal{status: status, message: message}
}

var errStorage = errors.New("slot storage failed")

// storageErr keeps slot sentinels intact and tags anything else as a
// backend failure.
func storageErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrSlotNotFound),
		errors.Is(err, storage.ErrSlotInactive),
		errors.Is(err, storage.ErrCorruptSlot),
		errors.Is(err, storage.ErrInvalidSlotName),
		errors.Is(err, session.ErrNoSession):
		return err
	}
	return fmt.Errorf("%w: %v", errStorage, err)
}

// outcome collects a command's messages and events. Events are published
// only once the command has committed.
type outcome struct {
	messages []string
	events   []events.Event
}

func (o *outcome) say(msg string) {
	if msg = strings.TrimSpace(msg); msg != "" {
		o.messages = append(o.messages, msg)
	}
}

func (o *outcome) emit(t events.EventType, playerID string, data map[string]any) {
	o.events = append(o.events, events.Event{Type: t, PlayerID: playerID, Data: data})
}

type handlerFunc func(ctx context.Context, cmd Command) (*outcome, error)

// Controller validates commands against session state and runs them
// through the store.
type Controller struct {
	store     *session.Store
	engine    *engine.Engine
	publisher events.Publisher
	logger    *slog.Logger
	handlers  map[string]handlerFunc
	aliases   map[string]string
}

// NewController wires a controller. A nil publisher drops events.
func NewController(store *session.Store, eng *engine.Engine, publisher events.Publisher, logger *slog.Logger) *Controller {
	if publisher == nil {
		publisher = events.Nop{}
	}
	c := &Controller{
		store:     store,
		engine:    eng,
		publisher: publisher,
		logger:    logger,
	}
	c.handlers = map[string]handlerFunc{
		"start":       func(ctx context.Context, cmd Command) (*outcome, error) { return c.start(ctx, cmd, false) },
		"force-start": func(ctx context.Context, cmd Command) (*outcome, error) { return c.start(ctx, cmd, true) },
		"restore":     c.restore,
		"save":        c.save,
		"load":        c.load,
		"list-saves":  c.listSaves,
		"join":        c.join,
		"leave":       c.leave,
		"status":      c.status,
		"rules":       c.rules,
		"scene":       c.scene,
		"plot":        c.plot,
		"hint":        c.hint,
		"reason":      c.reason,
		"act":         c.act,
		"continue":    c.continueGame,
		"end":         c.end,
		"help":        c.help,
	}
	c.aliases = map[string]string{
		"开始":    "start",
		"强制开始":  "force-start",
		"恢复":    "restore",
		"保存":    "save",
		"读档":    "load",
		"存档":    "list-saves",
		"saves": "list-saves",
		"加入":    "join",
		"离开":    "leave",
		"状态":    "status",
		"规则":    "rules",
		"场景":    "scene",
		"剧情":    "plot",
		"提示":    "hint",
		"推理":    "reason",
		"行动":    "act",
		"继续":    "continue",
		"结束":    "end",
		"帮助":    "help",
	}
	return c
}

// Commands lists the canonical command names.
func (c *Controller) Commands() []string {
	return commandOrder
}

// Handle runs one command and reports its messages and status.
// Failed commands leave the session exactly as it was.
func (c *Controller) Handle(ctx context.Context, cmd Command) Result {
	name := strings.ToLower(strings.TrimSpace(cmd.Name))
	if canonical, ok := c.aliases[name]; ok {
		name = canonical
	}
	handler, ok := c.handlers[name]
	if !ok {
		return Result{
			Messages: []string{fmt.Sprintf("Unknown command %q. Use help to list commands.", cmd.Name)},
			Status:   StatusUnknownCommand,
		}
	}

	start := time.Now()
	out, err := handler(ctx, cmd)
	if err != nil && out == nil {
		status := statusOf(err)
		log := c.logger.With("session_key", cmd.SessionKey, "player_id", cmd.PlayerID, "command", name, "status", status)
		if status == StatusInternalError || status == StatusStorageError {
			log.Error("Command failed", "error", err)
		} else {
			log.Debug("Command refused", "error", err)
		}
		return Result{Messages: []string{messageFor(err, status)}, Status: status}
	}

	now := time.Now()
	for _, ev := range out.events {
		ev.SessionKey = cmd.SessionKey
		ev.At = now
		if err := c.publisher.Publish(ctx, ev); err != nil {
			c.logger.Warn("Failed to publish event", "session_key", cmd.SessionKey, "type", ev.Type, "error", err)
		}
	}

	if err != nil {
		c.logger.Error("Session finished but its saves were not cleared",
			"session_key", cmd.SessionKey, "command", name, "error", err)
		return Result{Messages: append(out.messages, msgPurgeIncomplete), Status: StatusStorageError}
	}

	c.logger.Debug("Command handled",
		"session_key", cmd.SessionKey,
		"player_id", cmd.PlayerID,
		"command", name,
		"duration", time.Since(start))
	return Result{Messages: out.messages, OK: true, Status: StatusOK}
}

// statusOf maps an error to its status token.
func statusOf(err error) Status {
	var r *refusal
	switch {
	case errors.As(err, &r):
		return r.status
	case errors.Is(err, engine.ErrOracleUnavailable):
		return StatusOracleUnavailable
	case errors.Is(err, engine.ErrMalformedResponse):
		return StatusMalformed
	case errors.Is(err, engine.ErrNotInSession):
		return StatusNotInSession
	case errors.Is(err, engine.ErrPlayerDead):
		return StatusPlayerDead
	case errors.Is(err, engine.ErrNotCleared):
		return StatusNotCleared
	case errors.Is(err, engine.ErrNoPlayers):
		return StatusNoPlayers
	case errors.Is(err, engine.ErrHintsExhausted):
		return StatusHintsExhausted
	case errors.Is(err, engine.ErrInvalidHintKind):
		return StatusInvalidHintKind
	case errors.Is(err, engine.ErrSessionEnded), errors.Is(err, session.ErrNoSession):
		return StatusNoSession
	case errors.Is(err, state.ErrAlreadyJoined):
		return StatusAlreadyJoined
	case errors.Is(err, state.ErrSessionFull):
		return StatusFull
	case errors.Is(err, storage.ErrSlotNotFound):
		return StatusSlotNotFound
	case errors.Is(err, storage.ErrSlotInactive):
		return StatusSlotInactive
	case errors.Is(err, storage.ErrCorruptSlot):
		return StatusSlotCorrupt
	case errors.Is(err, storage.ErrInvalidSlotName):
		return StatusInvalidSlot
	case errors.Is(err, storage.ErrInvalidKey):
		return StatusMissingInput
	case errors.Is(err, errStorage), errors.Is(err, session.ErrPurgeIncomplete):
		return StatusStorageError
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return StatusOracleUnavailable
	}
	return StatusInternalError
}

const msgPurgeIncomplete = "The game is over, but its old saves could not be cleared. Named saves of this game may still load."

var statusMessages = map[Status]string{
	StatusNoSession:         "There is no game running. Use start solo or start multi.",
	StatusAlreadyJoined:     "You are already in the game.",
	StatusFull:              "The game is full.",
	StatusNotInSession:      "You are not in this game. Use join first.",
	StatusPlayerDead:        "You are dead. You can only watch now.",
	StatusInvalidHintKind:   "Ask for a rule hint or a clue hint.",
	StatusHintsExhausted:    "No hints left.",
	StatusNotCleared:        "You have not met the win condition yet.",
	StatusNoPlayers:         "Nobody has joined yet.",
	StatusInvalidSlot:       "That is not a valid save name.",
	StatusSlotNotFound:      "No save found. Use start to begin a new game.",
	StatusSlotInactive:      "That save belongs to a finished game. Use force-start to begin again.",
	StatusSlotCorrupt:       "That save is damaged and cannot be loaded. Use force-start to begin again.",
	StatusOracleUnavailable: "The story could not continue right now. Please try again.",
	StatusMalformed:         "The story came back garbled. Please try again.",
	StatusStorageError:      "Saves are unavailable right now. Please try again.",
	StatusMissingInput:      "Something is missing from that command.",
	StatusInternalError:     "Something went wrong.",
}

func messageFor(err error, status Status) string {
	var r *refusal
	if errors.As(err, &r) && r.message != "" {
		return r.message
	}
	if msg, ok := statusMessages[status]; ok {
		return msg
	}
	return statusMessages[StatusInternalError]
}

// settle keeps the outcome of a committed command whose slot purge failed.
func settle(out *outcome, err error) (*outcome, error) {
	if err != nil && !errors.Is(err, session.ErrPurgeIncomplete) {
		return nil, err
	}
	return out, err
}

// requireSession returns the working session or refuses with no_session.
func requireSession(tx *session.Tx) (*state.Session, error) {
	s := tx.Session()
	if s == nil || !s.Active {
		return nil, session.ErrNoSession
	}
	return s, nil
}
