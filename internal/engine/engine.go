// Package engine resolves scenario generation, turns, rule mutations and
// endings against the oracle. It operates on a session the caller owns;
// persistence and locking are the session store's job.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/jwebster45206/rule-horror/internal/services"
	"github.com/jwebster45206/rule-horror/pkg/extract"
	"github.com/jwebster45206/rule-horror/pkg/prompts"
	"github.com/jwebster45206/rule-horror/pkg/state"
)

const (
	DefaultFlavorProbability = 0.2
	MutationCooldown         = 10 // elapsed minutes between mutations
	MaxChangesPerMutation    = 2
	promptRecentEvents       = 8
)

var (
	ErrOracleUnavailable = errors.New("oracle unavailable")
	ErrMalformedResponse = errors.New("malformed oracle response")
	ErrNotInSession      = state.ErrNotInSession
	ErrPlayerDead        = errors.New("player is dead")
	ErrNotCleared        = errors.New("session has not been cleared")
	ErrNoPlayers         = errors.New("session has no players")
	ErrSessionEnded      = errors.New("session has ended")
	ErrHintsExhausted    = errors.New("hint budget exhausted")
	ErrInvalidHintKind   = errors.New("invalid hint kind")
)

// Actor identifies who issued a command.
type Actor struct {
	ID   string
	Name string
}

// Engine runs the oracle-backed game logic.
type Engine struct {
	oracle    services.Oracle
	params    services.GenerateParams
	logger    *slog.Logger
	catalogue *state.Catalogue
	now       func() time.Time

	flavorProbability float64
	rngMu             sync.Mutex
	rng               *rand.Rand
}

// Option configures an Engine.
type Option func(*Engine)

// WithParams sets the generation parameters for every oracle call.
func WithParams(p services.GenerateParams) Option {
	return func(e *Engine) { e.params = p }
}

// WithRand replaces the random source used for flavor events.
func WithRand(r *rand.Rand) Option {
	return func(e *Engine) { e.rng = r }
}

// WithFlavorProbability sets the per-action chance of a flavor event.
func WithFlavorProbability(p float64) Option {
	return func(e *Engine) { e.flavorProbability = p }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithCatalogue replaces the embedded ambient catalogue.
func WithCatalogue(c *state.Catalogue) Option {
	return func(e *Engine) { e.catalogue = c }
}

// New creates an engine that consults oracle.
func New(oracle services.Oracle, logger *slog.Logger, opts ...Option) *Engine {
	seed := uint64(time.Now().UnixNano())
	e := &Engine{
		oracle:            oracle,
		params:            services.DefaultParams(""),
		logger:            logger,
		catalogue:         state.DefaultCatalogue(),
		now:               time.Now,
		flavorProbability: DefaultFlavorProbability,
		rng:               rand.New(rand.NewPCG(seed, seed>>1|1)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ask renders a prompt, calls the oracle and decodes the answer into out.
func (e *Engine) ask(ctx context.Context, tmpl string, data any, out any) error {
	prompt, err := prompts.Render(tmpl, data)
	if err != nil {
		return err
	}

	text, err := e.oracle.Generate(ctx, prompt, e.params)
	if err != nil {
		e.logger.Warn("Oracle call failed", "prompt", tmpl, "error", err)
		return fmt.Errorf("%w: %v", ErrOracleUnavailable, err)
	}

	if err := extract.Into(text, out); err != nil {
		e.logger.Debug("Discarding unparseable oracle response", "prompt", tmpl, "error", err, "response", text)
		return fmt.Errorf("%w: %s: %v", ErrMalformedResponse, tmpl, err)
	}
	return nil
}

func (e *Engine) roll() float64 {
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	return e.rng.Float64()
}

func (e *Engine) pick(n int) int {
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	return e.rng.IntN(n)
}

// histories collects every player's record in roster order.
func histories(s *state.Session) []prompts.History {
	out := make([]prompts.History, 0, len(s.Players))
	for _, id := range s.PlayerIDs() {
		p := s.Players[id]
		out = append(out, prompts.History{
			Name:      p.Name,
			Alive:     p.Alive,
			Reasoning: p.Reasoning,
			Actions:   p.Actions,
		})
	}
	return out
}

func survivorNames(s *state.Session) []string {
	alive := s.AlivePlayers()
	names := make([]string, 0, len(alive))
	for _, p := range alive {
		names = append(names, p.Name)
	}
	sort.Strings(names)
	return names
}

func (e *Engine) verdictData(s *state.Session) prompts.VerdictData {
	return prompts.VerdictData{
		Scenario:   s.Scenario,
		Rules:      s.CurrentRules(),
		Discovered: s.Network.Discovered,
		Histories:  histories(s),
		Survivors:  survivorNames(s),
	}
}
