package scenario

import "strings"

// Motif is a recurring symbol of the scenario
type Motif struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Premise is the first generation stage: the setting and who the player is.
type Premise struct {
	SceneName  string  `json:"scene_name"`
	Background string  `json:"background"`
	Identity   string  `json:"player_identity"` // who the players are when they arrive
	Motifs     []Motif `json:"motifs"`
}

// Floor is one level of the building with its named areas
type Floor struct {
	Name  string   `json:"name"`
	Areas []string `json:"areas"`
}

// Structure is the second generation stage: the physical layout.
type Structure struct {
	BuildingType string   `json:"building_type"`
	Layout       string   `json:"layout"`
	Floors       []Floor  `json:"floors"`
	Passages     []string `json:"passages"`      // stairs, lifts, corridors
	SpecialAreas []string `json:"special_areas"` // basements, rooftops, sealed rooms
}

// Scenario is everything generated up front except the rules.
type Scenario struct {
	Premise
	Structure Structure `json:"structure"`
}

// Areas returns every named area across floors, in floor order.
func (s Structure) Areas() []string {
	var areas []string
	for _, f := range s.Floors {
		areas = append(areas, f.Areas...)
	}
	return areas
}

// Describe renders the structure as a compact multi-line summary.
func (s Structure) Describe() string {
	var b strings.Builder
	if s.BuildingType != "" {
		b.WriteString(s.BuildingType)
		b.WriteString("\n")
	}
	if s.Layout != "" {
		b.WriteString(s.Layout)
		b.WriteString("\n")
	}
	for _, f := range s.Floors {
		b.WriteString("- ")
		b.WriteString(f.Name)
		if len(f.Areas) > 0 {
			b.WriteString(": ")
			b.WriteString(strings.Join(f.Areas, ", "))
		}
		b.WriteString("\n")
	}
	if len(s.Passages) > 0 {
		b.WriteString("Passages: ")
		b.WriteString(strings.Join(s.Passages, ", "))
		b.WriteString("\n")
	}
	if len(s.SpecialAreas) > 0 {
		b.WriteString("Special areas: ")
		b.WriteString(strings.Join(s.SpecialAreas, ", "))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
