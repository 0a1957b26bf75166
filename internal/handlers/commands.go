package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/jwebster45206/rule-horror/internal/game"
	"github.com/jwebster45206/rule-horror/internal/logger"
	"github.com/jwebster45206/rule-horror/pkg/chat"
)

// CommandRunner executes one game command.
type CommandRunner interface {
	Handle(ctx context.Context, cmd game.Command) game.Result
}

// CommandHandler accepts player commands for a session.
// POST /v1/sessions/{key}/commands
type CommandHandler struct {
	runner CommandRunner
	logger *slog.Logger
}

func NewCommandHandler(runner CommandRunner, logger *slog.Logger) *CommandHandler {
	return &CommandHandler{
		runner: runner,
		logger: logger,
	}
}

func (h *CommandHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.logger.Warn("Method not allowed for commands endpoint",
			"method", r.Method,
			"path", r.URL.Path)
		writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Only POST is supported.")
		return
	}

	key := r.PathValue("key")
	var req chat.CommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Invalid command body", "error", err, "session_key", key)
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body. Expected JSON with 'player_id' and 'command' fields.")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}

	log := logger.WithSession(h.logger, key, req.PlayerID)
	log.Info("Command received", "command", req.Command)

	res := h.runner.Handle(r.Context(), game.Command{
		Name:       req.Command,
		SessionKey: key,
		PlayerID:   req.PlayerID,
		PlayerName: req.PlayerName,
		Args:       req.Args,
	})

	writeJSON(w, h.logger, httpStatus(res.Status), chat.CommandResponse{
		OK:       res.OK,
		Status:   string(res.Status),
		Messages: res.Messages,
	})
}

// httpStatus maps a command status to the HTTP code it is served with.
func httpStatus(s game.Status) int {
	switch s {
	case game.StatusOK:
		return http.StatusOK
	case game.StatusUnknownCommand, game.StatusMissingInput, game.StatusInvalidMode,
		game.StatusInvalidHintKind, game.StatusInvalidSlot:
		return http.StatusBadRequest
	case game.StatusNoSession, game.StatusNotInSession, game.StatusSlotNotFound:
		return http.StatusNotFound
	case game.StatusSlotCorrupt:
		return http.StatusUnprocessableEntity
	case game.StatusOracleUnavailable, game.StatusMalformed:
		return http.StatusBadGateway
	case game.StatusStorageError:
		return http.StatusServiceUnavailable
	case game.StatusInternalError:
		return http.StatusInternalServerError
	}
	// remaining refusals conflict with the current session state
	return http.StatusConflict
}
