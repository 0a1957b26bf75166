package chat

import (
	"fmt"
	"strings"
)

const (
	ChatRoleUser   = "user"      // Player
	ChatRoleAgent  = "assistant" // Oracle
	ChatRoleSystem = "system"    // Referee instructions
)

// ChatMessage is a single message sent to an oracle provider.
// The role/content shape is shared by every chat-completions style API.
type ChatMessage struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

// CommandRequest is a game command sent to the rule-horror api.
type CommandRequest struct {
	PlayerID   string `json:"player_id"`
	PlayerName string `json:"player_name,omitempty"`
	Command    string `json:"command"`        // e.g. "start", "act", "hint"
	Args       string `json:"args,omitempty"` // free text or mode/slot/kind
}

// CommandResponse is the outcome of one command.
type CommandResponse struct {
	OK       bool     `json:"ok"`
	Status   string   `json:"status"` // stable machine-readable token
	Messages []string `json:"messages,omitempty"`
	Error    string   `json:"error,omitempty"`
}

func (cr *CommandRequest) Validate() error {
	if strings.TrimSpace(cr.Command) == "" {
		return fmt.Errorf("command cannot be empty")
	}
	if strings.TrimSpace(cr.PlayerID) == "" {
		return fmt.Errorf("player_id cannot be empty")
	}
	return nil
}

// ParseLine splits console input such as "/act open the door" into a
// command name and its argument text.
func ParseLine(line string) (command string, args string) {
	line = strings.TrimSpace(line)
	line = strings.TrimPrefix(line, "/")
	if line == "" {
		return "", ""
	}
	name, rest, _ := strings.Cut(line, " ")
	return strings.ToLower(name), strings.TrimSpace(rest)
}
