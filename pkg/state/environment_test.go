package state

import (
	"fmt"
	"testing"
)

func TestDefaultCatalogue(t *testing.T) {
	c := DefaultCatalogue()
	if len(c.FlavorEvents) != 20 {
		t.Errorf("Expected 20 flavor events, got %d", len(c.FlavorEvents))
	}
}

func TestCatalogue_EnvironmentFor(t *testing.T) {
	c := DefaultCatalogue()
	tests := []struct {
		sanity int
		mood   string
	}{
		{0, "sheer terror"},
		{29, "sheer terror"},
		{30, "oppressive"},
		{59, "oppressive"},
		{60, "tense"},
		{100, "tense"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("sanity %d", tt.sanity), func(t *testing.T) {
			env := c.EnvironmentFor(tt.sanity)
			if env.Mood != tt.mood {
				t.Errorf("Expected mood %q, got %q", tt.mood, env.Mood)
			}
			if env.Lighting == "" || len(env.Sounds) == 0 || len(env.Smells) == 0 {
				t.Errorf("Expected a full environment tuple, got %+v", env)
			}
		})
	}
}

func TestCatalogue_EnvironmentForReturnsCopy(t *testing.T) {
	c := DefaultCatalogue()
	env := c.EnvironmentFor(10)
	env.Sounds[0] = "changed"
	if c.EnvironmentFor(10).Sounds[0] == "changed" {
		t.Error("EnvironmentFor must not expose catalogue slices")
	}
}

func TestLoadCatalogue_Invalid(t *testing.T) {
	tests := map[string]string{
		"bad yaml":         "time_of_day: [",
		"no fallback time": "time_of_day:\n  - below: 10\n    label: x\nsanity_bands:\n  - mood: m\nflavor_events: [a]\n",
		"no fallback band": "time_of_day:\n  - label: x\nsanity_bands:\n  - below: 5\n    mood: m\nflavor_events: [a]\n",
		"no flavor events": "time_of_day:\n  - label: x\nsanity_bands:\n  - mood: m\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := LoadCatalogue([]byte(doc)); err == nil {
				t.Error("Expected error")
			}
		})
	}
}

func TestCatalogue_FlavorEventWraps(t *testing.T) {
	c := DefaultCatalogue()
	if c.FlavorEvent(0) != c.FlavorEvent(len(c.FlavorEvents)) {
		t.Error("Expected index to wrap around the catalogue")
	}
}

func TestEnvironmentMemory(t *testing.T) {
	m := NewEnvironmentMemory()
	m.VisitLocation("lobby", 5)
	m.VisitLocation("lobby", 15)
	m.Interact("  ", 15)

	v := m.Locations["lobby"]
	if v.First != 5 || v.Last != 15 || v.Count != 2 {
		t.Errorf("Unexpected visit record %+v", v)
	}
	if len(m.Objects) != 0 {
		t.Error("Expected blank object to be ignored")
	}

	for i := 0; i < RecentEventLimit+5; i++ {
		m.Record(MemoryEvent{At: i, Kind: EventAction, Text: fmt.Sprintf("event %d", i)})
	}
	if len(m.Events) != RecentEventLimit {
		t.Fatalf("Expected log bounded to %d, got %d", RecentEventLimit, len(m.Events))
	}
	if m.Events[0].At != 5 {
		t.Errorf("Expected oldest events dropped, first is %d", m.Events[0].At)
	}
	recent := m.Recent(3)
	if len(recent) != 3 || recent[2].At != RecentEventLimit+4 {
		t.Errorf("Unexpected recent events %+v", recent)
	}
}
