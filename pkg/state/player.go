package state

import (
	"strings"
	"time"
)

const (
	DefaultLocation = "entrance"
	maxStat         = 100
)

// Entry is one line of a player's reasoning or action history
type Entry struct {
	At   int    `json:"at"` // elapsed minutes
	Text string `json:"text"`
}

// Item is something a player carries. Key items can trigger rule mutations.
type Item struct {
	Name    string `json:"name"`
	Key     bool   `json:"key,omitempty"`
	FoundAt int    `json:"found_at"`
}

type PhysicalStatus struct {
	Health  int    `json:"health"`
	Injury  string `json:"injury"`
	Fatigue string `json:"fatigue"`
}

type MentalStatus struct {
	Sanity  int    `json:"sanity"`
	State   string `json:"state"`
	Emotion string `json:"emotion"`
}

type Pressure struct {
	Fear    int `json:"fear"`
	Anxiety int `json:"anxiety"`
	Stress  int `json:"stress"`
}

// Player is one participant in a session.
type Player struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Alive     bool           `json:"alive"`
	DiedAt    *int           `json:"died_at,omitempty"`
	Identity  string         `json:"identity"`
	Reasoning []Entry        `json:"reasoning"`
	Actions   []Entry        `json:"actions"`
	Physical  PhysicalStatus `json:"physical"`
	Mental    MentalStatus   `json:"mental"`
	Pressure  Pressure       `json:"pressure"`
	Inventory []Item         `json:"inventory"`
	Location  string         `json:"location"`
	JoinedAt  time.Time      `json:"joined_at"`
}

// NewPlayer returns a healthy, sane player standing at the entrance.
func NewPlayer(id, name, identity string, now time.Time) *Player {
	return &Player{
		ID:        id,
		Name:      name,
		Alive:     true,
		Identity:  identity,
		Reasoning: make([]Entry, 0),
		Actions:   make([]Entry, 0),
		Physical:  PhysicalStatus{Health: maxStat, Injury: "none", Fatigue: "none"},
		Mental:    MentalStatus{Sanity: maxStat, State: "normal", Emotion: "calm"},
		Inventory: make([]Item, 0),
		Location:  DefaultLocation,
		JoinedAt:  now,
	}
}

// Kill marks the player dead. Death is permanent.
func (p *Player) Kill(at int) {
	if !p.Alive {
		return
	}
	p.Alive = false
	p.DiedAt = &at
}

func (p *Player) AddReasoning(at int, text string) {
	p.Reasoning = append(p.Reasoning, Entry{At: at, Text: text})
}

func (p *Player) AddAction(at int, text string) {
	p.Actions = append(p.Actions, Entry{At: at, Text: text})
}

// AddItem puts an item in the inventory unless one with the same name is
// already there. A duplicate still upgrades the existing entry to a key item.
func (p *Player) AddItem(name string, key bool, at int) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}
	for i := range p.Inventory {
		if strings.EqualFold(p.Inventory[i].Name, name) {
			if key {
				p.Inventory[i].Key = true
			}
			return false
		}
	}
	p.Inventory = append(p.Inventory, Item{Name: name, Key: key, FoundAt: at})
	return true
}

// ItemNames lists inventory names in pickup order.
func (p *Player) ItemNames() []string {
	names := make([]string, 0, len(p.Inventory))
	for _, it := range p.Inventory {
		names = append(names, it.Name)
	}
	return names
}

// StatusUpdate carries a judged change to a player. Nil fields are unchanged.
type StatusUpdate struct {
	Health   *int
	Injury   *string
	Fatigue  *string
	Sanity   *int
	State    *string
	Emotion  *string
	Fear     *int
	Anxiety  *int
	Stress   *int
	Location *string
}

// Apply writes the update, clamping numeric stats to 0..100.
func (p *Player) Apply(u StatusUpdate) {
	setInt(&p.Physical.Health, u.Health)
	setString(&p.Physical.Injury, u.Injury)
	setString(&p.Physical.Fatigue, u.Fatigue)
	setInt(&p.Mental.Sanity, u.Sanity)
	setString(&p.Mental.State, u.State)
	setString(&p.Mental.Emotion, u.Emotion)
	setInt(&p.Pressure.Fear, u.Fear)
	setInt(&p.Pressure.Anxiety, u.Anxiety)
	setInt(&p.Pressure.Stress, u.Stress)
	setString(&p.Location, u.Location)
}

func setInt(dst *int, v *int) {
	if v == nil {
		return
	}
	*dst = Clamp(*v)
}

func setString(dst *string, v *string) {
	if v == nil || strings.TrimSpace(*v) == "" {
		return
	}
	*dst = strings.TrimSpace(*v)
}

// Clamp bounds a stat to 0..100.
func Clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > maxStat {
		return maxStat
	}
	return v
}
