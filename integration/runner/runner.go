package runner

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/jwebster45206/rule-horror/internal/handlers"
	"github.com/jwebster45206/rule-horror/pkg/chat"
	"github.com/jwebster45206/rule-horror/pkg/client"
)

type ErrorHandlingMode string

const (
	ErrorHandlingExit     ErrorHandlingMode = "exit"
	ErrorHandlingContinue ErrorHandlingMode = "continue"
)

// statusOracleUnavailable is retried once; a failed oracle call commits nothing.
const statusOracleUnavailable = "oracle_unavailable"

// Runner plays scripted suites against a running rule-horror API.
type Runner struct {
	BaseURL           string
	Client            *http.Client
	Timeout           time.Duration // per step, covering the command and the session read
	Logger            func(format string, args ...any)
	ErrorHandlingMode ErrorHandlingMode
	KeyPrefix         string
}

func NewRunner(baseURL string) *Runner {
	return &Runner{
		BaseURL:           baseURL,
		Client:            &http.Client{Timeout: 3 * time.Minute},
		Timeout:           3 * time.Minute,
		Logger:            func(string, ...any) {},
		ErrorHandlingMode: ErrorHandlingContinue,
		KeyPrefix:         "it",
	}
}

// LoadTestSuite reads and parses one case file.
func LoadTestSuite(filename string) (TestSuite, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return TestSuite{}, fmt.Errorf("failed to read test file %s: %w", filename, err)
	}
	return ParseTestSuite(content, filename)
}

// ParseTestSuite decodes one suite document.
func ParseTestSuite(content []byte, source string) (TestSuite, error) {
	var suite TestSuite
	if err := yaml.Unmarshal(content, &suite); err != nil {
		return TestSuite{}, fmt.Errorf("failed to parse YAML in %s: %w", source, err)
	}
	if suite.Name == "" {
		return TestSuite{}, fmt.Errorf("suite in %s has no name", source)
	}
	for i, step := range suite.Steps {
		if step.Player == "" || step.Command == "" {
			return TestSuite{}, fmt.Errorf("step %d of %s needs a player and a command", i, source)
		}
	}
	return suite, nil
}

// LoadTestSuiteWithExpansion loads filename and, when it is a sequence,
// the case files it names (relative to casesDir), depth first.
func LoadTestSuiteWithExpansion(filename string, casesDir string) ([]TestJob, error) {
	suite, err := LoadTestSuite(filename)
	if err != nil {
		return nil, err
	}
	if !suite.IsSequence() {
		return []TestJob{{Name: suite.Name, Suite: suite, CaseFile: filename}}, nil
	}

	jobs := make([]TestJob, 0, len(suite.Cases))
	for _, ref := range suite.Cases {
		expanded, err := LoadTestSuiteWithExpansion(filepath.Join(casesDir, ref), casesDir)
		if err != nil {
			return nil, fmt.Errorf("failed to load case '%s' referenced by sequence '%s': %w", ref, suite.Name, err)
		}
		jobs = append(jobs, expanded...)
	}
	return jobs, nil
}

// RunSuite plays every step on a fresh session key. The returned error is
// the first failed step; in continue mode later steps still run.
func (r *Runner) RunSuite(ctx context.Context, suite TestSuite) (TestRunResult, error) {
	began := time.Now()
	run := TestRunResult{
		Job:        TestJob{Name: suite.Name, Suite: suite},
		Results:    make([]TestResult, 0, len(suite.Steps)),
		SessionKey: r.KeyPrefix + "-" + uuid.NewString(),
	}
	total := len(suite.Steps)

	for i, step := range suite.Steps {
		name := stepName(step)
		r.Logger("    [%d/%d] Running step: %s", i+1, total, name)

		res := r.runStep(ctx, run.SessionKey, step)
		run.Results = append(run.Results, res)
		if res.Success {
			r.Logger("    [%d/%d] ✓ %s (%v)", i+1, total, name, res.Duration)
			continue
		}

		r.Logger("    [%d/%d] ✗ %s: %v", i+1, total, name, res.Error)
		if run.Error == nil {
			run.Error = fmt.Errorf("step %d (%s) failed: %w", i, name, res.Error)
		}
		if r.ErrorHandlingMode == ErrorHandlingExit {
			break
		}
	}

	run.Duration = time.Since(began)
	return run, run.Error
}

func stepName(step TestStep) string {
	if step.Name != "" {
		return step.Name
	}
	return strings.TrimSpace(step.Player + " " + step.Command + " " + step.Args)
}

// runStep executes a step, retrying once when the oracle was unavailable
// unless the step expects that status.
func (r *Runner) runStep(ctx context.Context, key string, step TestStep) TestResult {
	res := r.executeStep(ctx, key, step)
	if res.Success || res.Status != statusOracleUnavailable {
		return res
	}
	if want := step.Expectations.Status; want != nil && *want == statusOracleUnavailable {
		return res
	}
	r.Logger("    Oracle unavailable, retrying step: %s", stepName(step))
	return r.executeStep(ctx, key, step)
}

func (r *Runner) executeStep(ctx context.Context, key string, step TestStep) (res TestResult) {
	res.StepName = stepName(step)
	defer func(began time.Time) { res.Duration = time.Since(began) }(time.Now())

	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	playerName := step.PlayerName
	if playerName == "" {
		playerName = step.Player
	}
	api := client.New(r.BaseURL, r.Client)
	resp, httpStatus, err := api.Command(ctx, key, chat.CommandRequest{
		PlayerID:   step.Player,
		PlayerName: playerName,
		Command:    step.Command,
		Args:       step.Args,
	})
	if err != nil {
		res.Error = fmt.Errorf("failed to post command: %w", err)
		return res
	}
	res.Status = resp.Status
	res.ResponseText = strings.Join(resp.Messages, "\n")

	view, err := api.Session(ctx, key)
	if err != nil {
		res.Error = fmt.Errorf("failed to get session after command: %w", err)
		return res
	}

	if err := checkExpectations(step.Expectations, resp, httpStatus, view); err != nil {
		res.Error = fmt.Errorf("expectation failed: %w", err)
		return res
	}
	res.Success = true
	return res
}

// checkExpectations reports every unmet expectation of a step. An unset
// status expectation means the command must succeed.
func checkExpectations(exp Expectations, resp *chat.CommandResponse, httpStatus int, view *handlers.SessionView) error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	wantStatus := "ok"
	if exp.Status != nil {
		wantStatus = *exp.Status
	}
	if resp.Status != wantStatus {
		fail("expected status %s, got %s (%s)", wantStatus, resp.Status, strings.Join(resp.Messages, " | "))
	}
	if exp.HTTPStatus != nil && httpStatus != *exp.HTTPStatus {
		fail("expected HTTP %d, got %d", *exp.HTTPStatus, httpStatus)
	}
	if err := checkResponseText(exp, strings.Join(resp.Messages, "\n")); err != nil {
		errs = append(errs, err)
	}

	if exp.SessionExists != nil && (view != nil) != *exp.SessionExists {
		fail("expected session_exists to be %t, got %t", *exp.SessionExists, view != nil)
	}
	if view == nil {
		if exp.wantsView() {
			fail("expected a session, but none exists")
		}
		return errors.Join(errs...)
	}

	if exp.Active != nil && view.Active != *exp.Active {
		fail("expected active to be %t, got %t", *exp.Active, view.Active)
	}
	if exp.Cleared != nil && view.Cleared != *exp.Cleared {
		fail("expected cleared to be %t, got %t", *exp.Cleared, view.Cleared)
	}
	if exp.SceneName != nil && view.SceneName != *exp.SceneName {
		fail("expected scene %s, got %s", *exp.SceneName, view.SceneName)
	}
	if exp.Players != nil && len(view.Players) != *exp.Players {
		fail("expected %d players, got %d", *exp.Players, len(view.Players))
	}
	if exp.PlayersAlive != nil {
		alive := 0
		for _, p := range view.Players {
			if p.Alive {
				alive++
			}
		}
		if alive != *exp.PlayersAlive {
			fail("expected %d living players, got %d", *exp.PlayersAlive, alive)
		}
	}
	if exp.HintsUsed != nil && view.Hints.Used != *exp.HintsUsed {
		fail("expected hints used to be %d, got %d", *exp.HintsUsed, view.Hints.Used)
	}
	if exp.MinElapsed != nil && view.Time.Elapsed < *exp.MinElapsed {
		fail("expected at least %d elapsed minutes, got %d", *exp.MinElapsed, view.Time.Elapsed)
	}
	if exp.MinRules != nil && len(view.Rules) < *exp.MinRules {
		fail("expected at least %d rules, got %d", *exp.MinRules, len(view.Rules))
	}
	return errors.Join(errs...)
}

// checkResponseText matches substrings case-insensitively and the regex
// as written.
func checkResponseText(exp Expectations, text string) error {
	folded := strings.ToLower(text)
	for _, want := range exp.ResponseContains {
		if !strings.Contains(folded, strings.ToLower(want)) {
			return fmt.Errorf("expected response to contain %q", want)
		}
	}
	for _, unwanted := range exp.ResponseNotContains {
		if strings.Contains(folded, strings.ToLower(unwanted)) {
			return fmt.Errorf("expected response not to contain %q", unwanted)
		}
	}
	if exp.ResponseRegex == "" {
		return nil
	}
	re, err := regexp.Compile(exp.ResponseRegex)
	if err != nil {
		return fmt.Errorf("invalid response_regex: %w", err)
	}
	if !re.MatchString(text) {
		return fmt.Errorf("response did not match %s", exp.ResponseRegex)
	}
	return nil
}
