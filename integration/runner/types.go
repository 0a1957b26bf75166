package runner

import (
	"time"
)

// TestSuite is one scripted play-through against a single session key.
// A suite either lists Steps or sequences other case files through Cases.
type TestSuite struct {
	Name  string     `yaml:"name"`
	Steps []TestStep `yaml:"steps,omitempty"`
	Cases []string   `yaml:"cases,omitempty"`
}

// IsSequence returns true if this suite only references other cases.
func (ts *TestSuite) IsSequence() bool {
	return len(ts.Cases) > 0
}

// TestStep sends one command as one player and checks the outcome.
// PlayerName defaults to the player id.
type TestStep struct {
	Name         string       `yaml:"name,omitempty"`
	Player       string       `yaml:"player"`
	PlayerName   string       `yaml:"player_name,omitempty"`
	Command      string       `yaml:"command"`
	Args         string       `yaml:"args,omitempty"`
	Expectations Expectations `yaml:"expect"`
}

// Expectations are checked against the command response and the session
// view fetched after the command.
type Expectations struct {
	// Response
	Status              *string  `yaml:"status,omitempty"`
	HTTPStatus          *int     `yaml:"http_status,omitempty"`
	ResponseContains    []string `yaml:"response_contains,omitempty"`
	ResponseNotContains []string `yaml:"response_not_contains,omitempty"`
	ResponseRegex       string   `yaml:"response_regex,omitempty"`

	// Session view; SessionExists false means GET answers 404
	SessionExists *bool   `yaml:"session_exists,omitempty"`
	Active        *bool   `yaml:"active,omitempty"`
	Cleared       *bool   `yaml:"cleared,omitempty"`
	SceneName     *string `yaml:"scene_name,omitempty"`
	Players       *int    `yaml:"players,omitempty"`
	PlayersAlive  *int    `yaml:"players_alive,omitempty"`
	HintsUsed     *int    `yaml:"hints_used,omitempty"`
	MinElapsed    *int    `yaml:"min_elapsed,omitempty"`
	MinRules      *int    `yaml:"min_rules,omitempty"`
}

// wantsView reports whether any expectation reads the session view.
func (e Expectations) wantsView() bool {
	return e.Active != nil || e.Cleared != nil || e.SceneName != nil || e.Players != nil ||
		e.PlayersAlive != nil || e.HintsUsed != nil || e.MinElapsed != nil || e.MinRules != nil
}

// TestResult contains the outcome of running a test step
type TestResult struct {
	StepName     string
	Success      bool
	Error        error
	Duration     time.Duration
	Status       string
	ResponseText string
}

// TestJob is a loaded suite ready to run.
type TestJob struct {
	Name     string
	Suite    TestSuite
	CaseFile string
}

// TestRunResult contains the results of running an entire test suite
type TestRunResult struct {
	Job        TestJob
	Results    []TestResult
	Error      error
	Duration   time.Duration
	SessionKey string // key used for this run
}
