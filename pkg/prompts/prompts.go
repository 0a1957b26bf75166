// Package prompts renders the oracle prompts for every judgement call.
package prompts

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/jwebster45206/rule-horror/pkg/scenario"
	"github.com/jwebster45206/rule-horror/pkg/state"
)

// SystemPrompt is sent as the system instruction on every oracle call.
const SystemPrompt = "You are a professional rule-horror scenario generator and referee. " +
	"Answer with exactly one JSON object matching the requested format and nothing else."

// Template names.
const (
	Premise       = "premise.tmpl"
	Structure     = "structure.tmpl"
	Rules         = "rules.tmpl"
	Network       = "network.tmpl"
	Judge         = "judge.tmpl"
	Identity      = "identity.tmpl"
	IdentityRules = "identity_rules.tmpl"
	MutationCheck = "mutation_check.tmpl"
	Mutation      = "mutation.tmpl"
	Collaboration = "collaboration.tmpl"
	Clear         = "clear.tmpl"
	Perfect       = "perfect.tmpl"
	Ending        = "ending.tmpl"
	Hint          = "hint.tmpl"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.New("prompts").Funcs(template.FuncMap{
	"join":     strings.Join,
	"json":     toJSON,
	"inc":      func(i int) int { return i + 1 },
	"numbered": numbered,
}).ParseFS(templateFS, "templates/*.tmpl"))

// Render executes the named template with data.
func Render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to render prompt %s: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

func toJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(data)
}

func numbered(lines []string) string {
	var b strings.Builder
	for i, l := range lines {
		fmt.Fprintf(&b, "%d. %s\n", i+1, l)
	}
	return strings.TrimRight(b.String(), "\n")
}

// StructureData feeds the structure stage.
type StructureData struct {
	Premise scenario.Premise
}

// RulesData feeds the rules stage.
type RulesData struct {
	Premise   scenario.Premise
	Structure scenario.Structure
}

// NetworkData feeds the rule-truth network derivation.
type NetworkData struct {
	Rules scenario.RuleSet
}

// JudgeData is the context for judging one player's view of a turn.
type JudgeData struct {
	Scenario    scenario.Scenario
	Rules       scenario.RuleSet
	Player      *state.Player
	Actor       *state.Player
	Action      string
	Time        state.TimeState
	Environment state.Environment
	FlavorEvent string
	Recent      []state.MemoryEvent
	Visits      int // prior visits to the player's location
	Corrupted   bool
	Solo        bool
	Pending     bool // player carries undiscovered identity rules
}

// IdentityData asks whether a player's identity changed.
type IdentityData struct {
	Scenario  scenario.Scenario
	Player    *state.Player
	Action    string
	Narrative string
}

// IdentityRulesData asks for rules specific to a new identity.
type IdentityRulesData struct {
	Scenario scenario.Scenario
	Rules    scenario.RuleSet
	Identity string
}

// MutationData feeds both mutation calls.
type MutationData struct {
	Trigger  state.Trigger
	Rules    scenario.RuleSet
	Time     state.TimeState
	Recent   []state.MemoryEvent
	KeyItems []string
	Reason   string // from the should-mutate answer
}

// CollaborationPlayer is one living player's joint-state snapshot.
type CollaborationPlayer struct {
	Name      string
	Location  string
	Inventory []string
	LastAct   string
}

type CollaborationData struct {
	Rules   scenario.RuleSet
	Players []CollaborationPlayer
	Time    state.TimeState
	Recent  []state.MemoryEvent
}

// History is one player's full reasoning and action record.
type History struct {
	Name      string
	Alive     bool
	Reasoning []state.Entry
	Actions   []state.Entry
}

// VerdictData feeds clear, perfect-ending and ending calls.
type VerdictData struct {
	Scenario   scenario.Scenario
	Rules      scenario.RuleSet
	Discovered []string
	Histories  []History
	Survivors  []string
}

type HintData struct {
	Kind       string
	Scenario   scenario.Scenario
	Rules      scenario.RuleSet
	Discovered []string
	Histories  []History
}
