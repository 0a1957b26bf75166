package state

import "strings"

// RecentEventLimit bounds the memory event log.
const RecentEventLimit = 20

// EventKind tags a memory event by origin.
type EventKind string

const (
	EventAction        EventKind = "action"
	EventFlavor        EventKind = "flavor"
	EventCollaboration EventKind = "collaboration"
)

// Visit counts repeated contact with a place or object.
type Visit struct {
	First int `json:"first"`
	Last  int `json:"last"`
	Count int `json:"count"`
}

type MemoryEvent struct {
	At        int       `json:"at"`
	TimeOfDay TimeOfDay `json:"time_of_day"`
	Location  string    `json:"location"`
	Actor     string    `json:"actor,omitempty"`
	Kind      EventKind `json:"kind"`
	Text      string    `json:"text"`
}

// EnvironmentMemory is what the world remembers, so narration does not repeat.
type EnvironmentMemory struct {
	Locations map[string]Visit `json:"locations"`
	Objects   map[string]Visit `json:"objects"`
	Events    []MemoryEvent    `json:"events"`
}

func NewEnvironmentMemory() EnvironmentMemory {
	return EnvironmentMemory{
		Locations: make(map[string]Visit),
		Objects:   make(map[string]Visit),
		Events:    make([]MemoryEvent, 0),
	}
}

// VisitLocation counts a visit at minute at.
func (m *EnvironmentMemory) VisitLocation(location string, at int) {
	if m.Locations == nil {
		m.Locations = make(map[string]Visit)
	}
	touch(m.Locations, location, at)
}

// Interact counts contact with an object at minute at.
func (m *EnvironmentMemory) Interact(object string, at int) {
	if m.Objects == nil {
		m.Objects = make(map[string]Visit)
	}
	touch(m.Objects, object, at)
}

func touch(set map[string]Visit, name string, at int) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	v, ok := set[name]
	if !ok {
		v.First = at
	}
	v.Last = at
	v.Count++
	set[name] = v
}

// Record appends an event, dropping the oldest beyond RecentEventLimit.
func (m *EnvironmentMemory) Record(ev MemoryEvent) {
	m.Events = append(m.Events, ev)
	if over := len(m.Events) - RecentEventLimit; over > 0 {
		m.Events = append(m.Events[:0:0], m.Events[over:]...)
	}
}

// Recent returns up to n of the newest events, oldest first.
func (m *EnvironmentMemory) Recent(n int) []MemoryEvent {
	if n <= 0 || len(m.Events) == 0 {
		return nil
	}
	if n > len(m.Events) {
		n = len(m.Events)
	}
	return m.Events[len(m.Events)-n:]
}
