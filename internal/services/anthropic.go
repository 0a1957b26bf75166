package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jwebster45206/rule-horror/pkg/chat"
	"github.com/jwebster45206/rule-horror/pkg/prompts"
)

const (
	anthropicBaseURL = "https://api.anthropic.com/v1"
	anthropicVersion = "2023-06-01"
)

// AnthropicService implements Oracle for the Anthropic messages API.
type AnthropicService struct {
	apiKey     string
	modelName  string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

var _ Oracle = (*AnthropicService)(nil)

// messagesRequest carries the referee instruction in the top-level system
// field; the messages list holds only the prompt.
type messagesRequest struct {
	Model       string             `json:"model"`
	System      string             `json:"system"`
	Messages    []chat.ChatMessage `json:"messages"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// text joins the text blocks; tool and thinking blocks are skipped.
func (r messagesResponse) text() string {
	var b strings.Builder
	for _, block := range r.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String()
}

func NewAnthropicService(apiKey string, modelName string, logger *slog.Logger) *AnthropicService {
	return &AnthropicService{
		apiKey:     apiKey,
		modelName:  modelName,
		baseURL:    anthropicBaseURL,
		httpClient: &http.Client{Timeout: MaxTimeout},
		logger:     logger,
	}
}

// Generate makes one messages API request.
func (a *AnthropicService) Generate(ctx context.Context, prompt string, params GenerateParams) (string, error) {
	params = params.withDefaults(a.modelName)

	ctx, cancel := context.WithTimeout(ctx, params.Timeout)
	defer cancel()

	header := http.Header{}
	header.Set("x-api-key", a.apiKey)
	header.Set("anthropic-version", anthropicVersion)

	var resp messagesResponse
	err := postJSON(ctx, a.httpClient, a.baseURL+"/messages", header, messagesRequest{
		Model:       params.Model,
		System:      prompts.SystemPrompt,
		Messages:    []chat.ChatMessage{{Role: chat.ChatRoleUser, Content: prompt}},
		MaxTokens:   params.MaxTokens,
		Temperature: params.Temperature,
	}, &resp)
	if err != nil {
		return "", err
	}
	if resp.Error != nil {
		return "", fmt.Errorf("API error: %s", resp.Error.Message)
	}

	text := resp.text()
	if text == "" {
		return "", fmt.Errorf("API returned %s (stop reason %q)", msgNoResponse, resp.StopReason)
	}

	a.logger.Debug("Oracle call completed",
		"provider", "anthropic",
		"model", params.Model,
		"output_tokens", resp.Usage.OutputTokens)
	return text, nil
}
