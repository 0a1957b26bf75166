package scenario

import "strings"

// RuleLink ties one rule to the truth elements it encodes.
type RuleLink struct {
	Rule   int   `json:"rule"`
	Truths []int `json:"truths"`
}

// Dependency says rule To only makes sense once rule From is understood.
type Dependency struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// Network maps rules onto the hidden truth and tracks what players have
// uncovered so far.
type Network struct {
	Truths       []string     `json:"truth_elements"`
	Links        []RuleLink   `json:"rule_links"`
	Dependencies []Dependency `json:"dependencies"`
	Discovered   []string     `json:"discovered"`
}

// Normalize drops links and edges that point outside the rule or truth lists.
func (n *Network) Normalize(ruleCount int) {
	links := n.Links[:0]
	for _, l := range n.Links {
		if l.Rule < 0 || l.Rule >= ruleCount {
			continue
		}
		truths := make([]int, 0, len(l.Truths))
		for _, t := range l.Truths {
			if t >= 0 && t < len(n.Truths) {
				truths = append(truths, t)
			}
		}
		l.Truths = truths
		links = append(links, l)
	}
	n.Links = links

	deps := n.Dependencies[:0]
	for _, d := range n.Dependencies {
		if d.From < 0 || d.From >= ruleCount || d.To < 0 || d.To >= ruleCount || d.From == d.To {
			continue
		}
		deps = append(deps, d)
	}
	n.Dependencies = deps
}

// TruthsForRule returns the truth elements encoded by rule i.
func (n *Network) TruthsForRule(i int) []string {
	var out []string
	for _, l := range n.Links {
		if l.Rule != i {
			continue
		}
		for _, t := range l.Truths {
			out = append(out, n.Truths[t])
		}
	}
	return out
}

// Discover records a discovered truth. It reports false when the text is
// empty or already known.
func (n *Network) Discover(truth string) bool {
	truth = strings.TrimSpace(truth)
	if truth == "" {
		return false
	}
	for _, d := range n.Discovered {
		if strings.EqualFold(d, truth) {
			return false
		}
	}
	n.Discovered = append(n.Discovered, truth)
	return true
}
