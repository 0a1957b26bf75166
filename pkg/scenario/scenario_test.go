package scenario

import (
	"encoding/json"
	"testing"
)

func intPtr(i int) *int { return &i }

func TestRuleSet_Apply(t *testing.T) {
	base := RuleSet{
		Title: "Night Ward Regulations",
		Rules: []string{"Do not run.", "Answer the phone on the third ring.", "Never look at room 4B."},
	}

	tests := []struct {
		name    string
		changes []RuleChange
		want    []string
	}{
		{
			name:    "replace by index",
			changes: []RuleChange{{Index: intPtr(1), Rule: "Never answer the phone."}},
			want:    []string{"Do not run.", "Never answer the phone.", "Never look at room 4B."},
		},
		{
			name:    "append without index",
			changes: []RuleChange{{Rule: "The nurse has no face."}},
			want:    []string{"Do not run.", "Answer the phone on the third ring.", "Never look at room 4B.", "The nurse has no face."},
		},
		{
			name:    "out of range index appends",
			changes: []RuleChange{{Index: intPtr(9), Rule: "Count the beds."}},
			want:    []string{"Do not run.", "Answer the phone on the third ring.", "Never look at room 4B.", "Count the beds."},
		},
		{
			name:    "empty rule ignored",
			changes: []RuleChange{{Index: intPtr(0), Rule: ""}},
			want:    []string{"Do not run.", "Answer the phone on the third ring.", "Never look at room 4B."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := base.Apply(tt.changes)
			if len(got.Rules) != len(tt.want) {
				t.Fatalf("Expected %d rules, got %d", len(tt.want), len(got.Rules))
			}
			for i := range tt.want {
				if got.Rules[i] != tt.want[i] {
					t.Errorf("Rule %d: expected %q, got %q", i, tt.want[i], got.Rules[i])
				}
			}
			if got.Title != base.Title {
				t.Errorf("Expected title to be kept, got %q", got.Title)
			}
		})
	}

	if base.Rules[1] != "Answer the phone on the third ring." {
		t.Error("Apply must not modify the receiver")
	}
}

func TestNetwork_Normalize(t *testing.T) {
	var n Network
	data := `{
		"truth_elements": ["the ward burned in 1974", "the nurse is the last patient"],
		"rule_links": [
			{"rule": 0, "truths": [0, 5]},
			{"rule": 7, "truths": [1]},
			{"rule": 2, "truths": [1]}
		],
		"dependencies": [
			{"from": 0, "to": 2},
			{"from": 1, "to": 1},
			{"from": 3, "to": 0}
		]
	}`
	if err := json.Unmarshal([]byte(data), &n); err != nil {
		t.Fatalf("Failed to unmarshal network: %v", err)
	}

	n.Normalize(3)

	if len(n.Links) != 2 {
		t.Fatalf("Expected 2 links, got %d", len(n.Links))
	}
	if len(n.Links[0].Truths) != 1 || n.Links[0].Truths[0] != 0 {
		t.Errorf("Expected out-of-range truth to be dropped, got %v", n.Links[0].Truths)
	}
	if len(n.Dependencies) != 1 {
		t.Errorf("Expected 1 dependency, got %d", len(n.Dependencies))
	}

	truths := n.TruthsForRule(2)
	if len(truths) != 1 || truths[0] != "the nurse is the last patient" {
		t.Errorf("Unexpected truths for rule 2: %v", truths)
	}
}

func TestNetwork_Discover(t *testing.T) {
	var n Network
	if !n.Discover("The lift only goes down") {
		t.Error("Expected first discovery to be recorded")
	}
	if n.Discover("the lift only goes down") {
		t.Error("Expected case-insensitive duplicate to be ignored")
	}
	if n.Discover("   ") {
		t.Error("Expected blank discovery to be ignored")
	}
	if len(n.Discovered) != 1 {
		t.Errorf("Expected 1 discovered truth, got %d", len(n.Discovered))
	}
}

func TestStructure_Areas(t *testing.T) {
	s := Structure{
		Floors: []Floor{
			{Name: "B1", Areas: []string{"Morgue"}},
			{Name: "1F", Areas: []string{"Lobby", "Pharmacy"}},
		},
	}
	areas := s.Areas()
	if len(areas) != 3 || areas[0] != "Morgue" || areas[2] != "Pharmacy" {
		t.Errorf("Unexpected areas: %v", areas)
	}
}
