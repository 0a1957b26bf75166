package state

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

// TimeOfDay is a coarse label derived from elapsed minutes.
type TimeOfDay string

// Environment is the ambient description around the acting player.
type Environment struct {
	Lighting    string   `json:"lighting" yaml:"lighting"`
	Temperature string   `json:"temperature" yaml:"temperature"`
	Sounds      []string `json:"sounds" yaml:"sounds"`
	Smells      []string `json:"smells" yaml:"smells"`
	Mood        string   `json:"mood" yaml:"mood"`
}

type timeBand struct {
	Below       *int      `yaml:"below"`
	Label       TimeOfDay `yaml:"label"`
	Description string    `yaml:"description"`
}

type sanityBand struct {
	Below       *int `yaml:"below"`
	Environment `yaml:",inline"`
}

// Catalogue holds the static ambient tables.
type Catalogue struct {
	TimesOfDay   []timeBand   `yaml:"time_of_day"`
	SanityBands  []sanityBand `yaml:"sanity_bands"`
	FlavorEvents []string     `yaml:"flavor_events"`
}

//go:embed ambient.yaml
var ambientYAML []byte

var defaultCatalogue = sync.OnceValues(func() (*Catalogue, error) {
	return LoadCatalogue(ambientYAML)
})

// DefaultCatalogue returns the embedded catalogue. It panics if the embedded
// file is broken, which the package tests guard against.
func DefaultCatalogue() *Catalogue {
	c, err := defaultCatalogue()
	if err != nil {
		panic(err)
	}
	return c
}

// LoadCatalogue parses and checks a catalogue document.
func LoadCatalogue(data []byte) (*Catalogue, error) {
	var c Catalogue
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse ambient catalogue: %w", err)
	}
	if len(c.TimesOfDay) == 0 || c.TimesOfDay[len(c.TimesOfDay)-1].Below != nil {
		return nil, fmt.Errorf("ambient catalogue: time_of_day needs a final fallback band")
	}
	if len(c.SanityBands) == 0 || c.SanityBands[len(c.SanityBands)-1].Below != nil {
		return nil, fmt.Errorf("ambient catalogue: sanity_bands needs a final fallback band")
	}
	if len(c.FlavorEvents) == 0 {
		return nil, fmt.Errorf("ambient catalogue: no flavor events")
	}
	return &c, nil
}

// TimeOfDay maps elapsed minutes onto a label and description.
func (c *Catalogue) TimeOfDay(elapsed int) (TimeOfDay, string) {
	for _, b := range c.TimesOfDay {
		if b.Below == nil || elapsed < *b.Below {
			return b.Label, b.Description
		}
	}
	return "", ""
}

// EnvironmentFor maps a sanity value onto its ambient band.
func (c *Catalogue) EnvironmentFor(sanity int) Environment {
	for _, b := range c.SanityBands {
		if b.Below == nil || sanity < *b.Below {
			env := b.Environment
			env.Sounds = append([]string(nil), env.Sounds...)
			env.Smells = append([]string(nil), env.Smells...)
			return env
		}
	}
	return Environment{}
}

// FlavorEvent returns catalogue entry i modulo the catalogue size.
func (c *Catalogue) FlavorEvent(i int) string {
	if i < 0 {
		i = -i
	}
	return c.FlavorEvents[i%len(c.FlavorEvents)]
}
