package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jwebster45206/rule-horror/pkg/chat"
	"github.com/jwebster45206/rule-horror/pkg/prompts"
)

const (
	DefaultTemperature = 0.8
	DefaultMaxTokens   = 2000
	DefaultTimeout     = 60 * time.Second
	MaxTimeout         = 2 * time.Minute

	msgNoResponse = "(no response)"
)

// Oracle sends one prompt to a generative text service and returns its raw
// text. Implementations never retry; callers decide whether a failure is
// fatal to the command in hand.
type Oracle interface {
	Generate(ctx context.Context, prompt string, params GenerateParams) (string, error)
}

// GenerateParams are the per-call generation settings.
type GenerateParams struct {
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration // bounded wait for the whole call
}

// DefaultParams returns the settings used when config leaves them unset.
func DefaultParams(model string) GenerateParams {
	return GenerateParams{
		Model:       model,
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
		Timeout:     DefaultTimeout,
	}
}

// withDefaults fills zero fields and caps the wait budget.
func (p GenerateParams) withDefaults(model string) GenerateParams {
	if p.Model == "" {
		p.Model = model
	}
	if p.MaxTokens <= 0 {
		p.MaxTokens = DefaultMaxTokens
	}
	if p.Timeout <= 0 {
		p.Timeout = DefaultTimeout
	}
	if p.Timeout > MaxTimeout {
		p.Timeout = MaxTimeout
	}
	return p
}

// refereeMessages wraps a prompt with the fixed system instruction.
func refereeMessages(prompt string) []chat.ChatMessage {
	return []chat.ChatMessage{
		{Role: chat.ChatRoleSystem, Content: prompts.SystemPrompt},
		{Role: chat.ChatRoleUser, Content: prompt},
	}
}

// StatusError is a provider reply with a non-200 status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API request failed with status %d: %s", e.Code, e.Body)
}

// postJSON sends body to url and decodes a 200 reply into out.
func postJSON(ctx context.Context, client *http.Client, url string, header http.Header, body, out any) error {
	reqBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return &StatusError{Code: resp.StatusCode, Body: string(raw)}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
