package services

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// ErrNoRoute is returned by MockOracle when no route matches a prompt.
var ErrNoRoute = errors.New("mock oracle: no route for prompt")

// MockOracle is a mock implementation of Oracle for testing
type MockOracle struct {
	GenerateFunc func(ctx context.Context, prompt string, params GenerateParams) (string, error)

	// Track calls for testing
	GenerateCalls []GenerateCall

	routes []route
	mu     sync.Mutex // protects all fields above
}

type GenerateCall struct {
	Prompt string
	Params GenerateParams
}

type route struct {
	marker  string
	respond func(prompt string) (string, error)
}

var _ Oracle = (*MockOracle)(nil)

// NewMockOracle creates a new mock oracle
func NewMockOracle() *MockOracle {
	return &MockOracle{
		GenerateCalls: make([]GenerateCall, 0),
	}
}

// Generate records the call, then answers from GenerateFunc or the first
// route whose marker appears in the prompt. The lock is not held while
// answering so concurrent callers stay concurrent.
func (m *MockOracle) Generate(ctx context.Context, prompt string, params GenerateParams) (string, error) {
	m.mu.Lock()
	m.GenerateCalls = append(m.GenerateCalls, GenerateCall{Prompt: prompt, Params: params})
	fn := m.GenerateFunc
	var respond func(string) (string, error)
	for _, r := range m.routes {
		if strings.Contains(prompt, r.marker) {
			respond = r.respond
			break
		}
	}
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if fn != nil {
		return fn(ctx, prompt, params)
	}
	if respond != nil {
		return respond(prompt)
	}
	return "", ErrNoRoute
}

// Route answers prompts containing marker with a fixed response.
func (m *MockOracle) Route(marker, response string) {
	m.RouteFunc(marker, func(string) (string, error) { return response, nil })
}

// RouteError fails prompts containing marker.
func (m *MockOracle) RouteError(marker string, err error) {
	m.RouteFunc(marker, func(string) (string, error) { return "", err })
}

// RouteFunc answers prompts containing marker with fn. Routes added later
// take precedence over earlier ones with overlapping markers.
func (m *MockOracle) RouteFunc(marker string, fn func(prompt string) (string, error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routes = append([]route{{marker: marker, respond: fn}}, m.routes...)
}

// SetGenerateError sets up the mock to fail every call
func (m *MockOracle) SetGenerateError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GenerateFunc = func(ctx context.Context, prompt string, params GenerateParams) (string, error) {
		return "", err
	}
}

// Reset clears call tracking and routes
func (m *MockOracle) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GenerateCalls = make([]GenerateCall, 0)
	m.routes = nil
	m.GenerateFunc = nil
}

// GetCalls returns a copy of the call tracking data in a thread-safe way
func (m *MockOracle) GetCalls() []GenerateCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([]GenerateCall, len(m.GenerateCalls))
	copy(calls, m.GenerateCalls)
	return calls
}

// CountCalls returns how many recorded prompts contain marker.
func (m *MockOracle) CountCalls(marker string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.GenerateCalls {
		if strings.Contains(c.Prompt, marker) {
			n++
		}
	}
	return n
}
