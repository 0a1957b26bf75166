package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/jwebster45206/rule-horror/pkg/state"
)

// DefaultSlot is the autosave slot every session key has.
const DefaultSlot = ""

const (
	MaxSlotNameRunes = 32
	MaxKeyBytes      = 128
)

var (
	ErrSlotNotFound    = errors.New("save slot not found")
	ErrSlotInactive    = errors.New("save slot holds a finished session")
	ErrCorruptSlot     = errors.New("save slot is corrupt")
	ErrInvalidSlotName = errors.New("invalid slot name")
	ErrInvalidKey      = errors.New("invalid session key")
)

// SaveSlot is a named snapshot of one session.
type SaveSlot struct {
	Key     string         `json:"session_key"`
	Name    string         `json:"name"`
	SavedAt time.Time      `json:"saved_at"`
	Session *state.Session `json:"session"`
}

// SlotInfo is the listing summary of a slot.
type SlotInfo struct {
	Name    string    `json:"name"`
	SavedAt time.Time `json:"saved_at"`
	Active  bool      `json:"active"`
	Scene   string    `json:"scene"`
}

// Info summarises the slot for listings.
func (s *SaveSlot) Info() SlotInfo {
	info := SlotInfo{Name: s.Name, SavedAt: s.SavedAt}
	if s.Session != nil {
		info.Active = s.Session.Active
		info.Scene = s.Session.Scenario.SceneName
	}
	return info
}

// Storage persists save slots, keyed by session key and slot name.
// LoadSlot returns (nil, nil) when the slot does not exist and
// ErrCorruptSlot when stored data cannot be decoded.
type Storage interface {
	// Health and lifecycle
	Ping(ctx context.Context) error
	Close() error

	SaveSlot(ctx context.Context, slot *SaveSlot) error
	LoadSlot(ctx context.Context, key, name string) (*SaveSlot, error)
	DeleteSlot(ctx context.Context, key, name string) error
	ListSlots(ctx context.Context, key string) ([]SlotInfo, error)
	// DeleteAllSlots removes every slot for key and reports how many went.
	DeleteAllSlots(ctx context.Context, key string) (int, error)
	// ListKeys returns every session key with at least one slot.
	ListKeys(ctx context.Context) ([]string, error)
}

// ValidateSlotName checks a user-supplied slot name. The empty name
// is the default slot and is always valid.
func ValidateSlotName(name string) error {
	if name == DefaultSlot {
		return nil
	}
	if !utf8.ValidString(name) {
		return fmt.Errorf("%w: not valid UTF-8", ErrInvalidSlotName)
	}
	if n := utf8.RuneCountInString(name); n > MaxSlotNameRunes {
		return fmt.Errorf("%w: %d characters, max %d", ErrInvalidSlotName, n, MaxSlotNameRunes)
	}
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: blank", ErrInvalidSlotName)
	}
	for _, r := range name {
		if unicode.IsControl(r) || strings.ContainsRune(`/\:.*?"<>|`, r) {
			return fmt.Errorf("%w: character %q not allowed", ErrInvalidSlotName, r)
		}
	}
	return nil
}

// ValidateKey checks a session key.
func ValidateKey(key string) error {
	if key == "" || len(key) > MaxKeyBytes {
		return fmt.Errorf("%w: length must be 1-%d bytes", ErrInvalidKey, MaxKeyBytes)
	}
	for _, r := range key {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return fmt.Errorf("%w: whitespace or control character", ErrInvalidKey)
		}
	}
	return nil
}

// EncodeSlot marshals a slot for a backend.
func EncodeSlot(slot *SaveSlot) ([]byte, error) {
	if slot == nil || slot.Session == nil {
		return nil, errors.New("slot has no session")
	}
	data, err := json.Marshal(slot)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal slot: %w", err)
	}
	return data, nil
}

// DecodeSlot unmarshals stored slot data. Any failure is ErrCorruptSlot.
func DecodeSlot(data []byte) (*SaveSlot, error) {
	var slot SaveSlot
	if err := json.Unmarshal(data, &slot); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptSlot, err)
	}
	if slot.Session == nil {
		return nil, fmt.Errorf("%w: missing session", ErrCorruptSlot)
	}
	return &slot, nil
}
