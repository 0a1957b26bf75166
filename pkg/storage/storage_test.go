package storage

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jwebster45206/rule-horror/pkg/scenario"
	"github.com/jwebster45206/rule-horror/pkg/state"
)

func TestValidateSlotName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"default slot", "", false},
		{"simple", "before-the-stairs", false},
		{"unicode", "第三层", false},
		{"exactly 32 runes", strings.Repeat("界", 32), false},
		{"too long", strings.Repeat("a", 33), true},
		{"blank", "   ", true},
		{"slash", "a/b", true},
		{"backslash", `a\b`, true},
		{"dot", "save.1", true},
		{"colon", "a:b", true},
		{"star", "a*", true},
		{"question", "a?", true},
		{"quote", `a"b`, true},
		{"angle", "<a>", true},
		{"pipe", "a|b", true},
		{"control", "a\x07b", true},
		{"newline", "a\nb", true},
		{"invalid utf8", "a\xffb", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSlotName(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidSlotName) {
					t.Errorf("Expected ErrInvalidSlotName for %q, got %v", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Errorf("Unexpected error for %q: %v", tt.input, err)
			}
		})
	}
}

func TestValidateKey(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{"group-42", false},
		{"user:alice@example", false},
		{"", true},
		{strings.Repeat("k", 129), true},
		{strings.Repeat("k", 128), false},
		{"has space", true},
		{"tab\there", true},
	}
	for _, tt := range tests {
		err := ValidateKey(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateKey(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
		}
	}
}

func testSession(key string) *state.Session {
	sc := scenario.Scenario{Premise: scenario.Premise{SceneName: "Night Shift", Background: "An empty ward."}}
	rules := scenario.RuleSet{Title: "Ward Rules", Rules: []string{"Do not answer the call bell."}, WinCondition: "Reach six o'clock."}
	return state.NewSession(key, state.ModeSolo, sc, rules, scenario.Network{}, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
}

func TestMemoryStorage_SlotLifecycle(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStorage()

	slot, err := m.LoadSlot(ctx, "k", DefaultSlot)
	if err != nil || slot != nil {
		t.Fatalf("Expected (nil, nil) for missing slot, got (%v, %v)", slot, err)
	}

	now := time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC)
	for _, name := range []string{DefaultSlot, "b", "a"} {
		if err := m.SaveSlot(ctx, &SaveSlot{Key: "k", Name: name, SavedAt: now, Session: testSession("k")}); err != nil {
			t.Fatalf("SaveSlot(%q) failed: %v", name, err)
		}
	}

	loaded, err := m.LoadSlot(ctx, "k", "a")
	if err != nil {
		t.Fatalf("LoadSlot failed: %v", err)
	}
	if loaded.Session.Scenario.SceneName != "Night Shift" {
		t.Errorf("Unexpected scene %q", loaded.Session.Scenario.SceneName)
	}

	infos, err := m.ListSlots(ctx, "k")
	if err != nil {
		t.Fatalf("ListSlots failed: %v", err)
	}
	if len(infos) != 3 || infos[0].Name != DefaultSlot || infos[1].Name != "a" || infos[2].Name != "b" {
		t.Errorf("Unexpected listing order: %+v", infos)
	}
	if !infos[0].Active || infos[0].Scene != "Night Shift" {
		t.Errorf("Unexpected info: %+v", infos[0])
	}

	if err := m.DeleteSlot(ctx, "k", "b"); err != nil {
		t.Fatalf("DeleteSlot failed: %v", err)
	}
	n, err := m.DeleteAllSlots(ctx, "k")
	if err != nil || n != 2 {
		t.Errorf("Expected 2 slots purged, got %d (%v)", n, err)
	}
	keys, _ := m.ListKeys(ctx)
	if len(keys) != 0 {
		t.Errorf("Expected no keys after purge, got %v", keys)
	}
}

func TestMemoryStorage_CorruptSlot(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStorage()
	m.PutRaw("k", "broken", []byte("{not json"))

	_, err := m.LoadSlot(ctx, "k", "broken")
	if !errors.Is(err, ErrCorruptSlot) {
		t.Fatalf("Expected ErrCorruptSlot, got %v", err)
	}

	infos, err := m.ListSlots(ctx, "k")
	if err != nil || len(infos) != 1 || infos[0].Name != "broken" {
		t.Errorf("Expected corrupt slot to still be listed, got %+v (%v)", infos, err)
	}
}

func TestMemoryStorage_Errors(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStorage()
	boom := errors.New("boom")

	m.SetPingError(boom)
	if err := m.Ping(ctx); !errors.Is(err, boom) {
		t.Errorf("Expected ping error, got %v", err)
	}

	m.SetSaveError(boom)
	err := m.SaveSlot(ctx, &SaveSlot{Key: "k", Session: testSession("k")})
	if !errors.Is(err, boom) {
		t.Errorf("Expected save error, got %v", err)
	}
	if err := m.SaveSlot(ctx, &SaveSlot{Key: "k"}); err == nil {
		t.Error("Expected error for slot without session")
	}
}

func TestDecodeSlot_MissingSession(t *testing.T) {
	_, err := DecodeSlot([]byte(`{"session_key":"k","name":"x"}`))
	if !errors.Is(err, ErrCorruptSlot) {
		t.Errorf("Expected ErrCorruptSlot, got %v", err)
	}
}
