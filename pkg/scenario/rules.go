package scenario

// MaxRules caps a generated rule list.
const MaxRules = 8

// RuleSet is the posted rules of a scenario plus its hidden conditions.
type RuleSet struct {
	Title            string   `json:"title"`
	Rules            []string `json:"rules"`
	WinCondition     string   `json:"win_condition"`
	ResolveCondition string   `json:"resolve_condition"`
	HiddenTruth      string   `json:"hidden_truth"`
	DeathTriggers    []string `json:"death_triggers"`
}

// Clone returns a copy that shares no slices with rs.
func (rs RuleSet) Clone() RuleSet {
	out := rs
	out.Rules = append([]string(nil), rs.Rules...)
	out.DeathTriggers = append([]string(nil), rs.DeathTriggers...)
	return out
}

// RuleChange replaces the rule at Index, or appends when Index is out of range.
type RuleChange struct {
	Index *int   `json:"index,omitempty"`
	Rule  string `json:"rule"`
}

// Apply returns a new rule set with changes applied in order.
// Changes with empty text are ignored.
func (rs RuleSet) Apply(changes []RuleChange) RuleSet {
	out := rs.Clone()
	for _, c := range changes {
		if c.Rule == "" {
			continue
		}
		if c.Index != nil && *c.Index >= 0 && *c.Index < len(out.Rules) {
			out.Rules[*c.Index] = c.Rule
			continue
		}
		out.Rules = append(out.Rules, c.Rule)
	}
	return out
}

// WithRules returns a copy whose rule list is replaced by rules.
func (rs RuleSet) WithRules(rules []string) RuleSet {
	out := rs.Clone()
	out.Rules = append([]string(nil), rules...)
	return out
}
