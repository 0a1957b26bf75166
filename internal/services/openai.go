package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jwebster45206/rule-horror/pkg/chat"
)

const (
	openAIBaseURL = "https://api.openai.com/v1"
	veniceBaseURL = "https://api.venice.ai/api/v1"
)

// OpenAIService implements Oracle for any OpenAI-compatible
// chat completions endpoint (OpenAI, Venice, local gateways).
type OpenAIService struct {
	apiKey     string
	modelName  string
	baseURL    string
	venice     bool
	httpClient *http.Client
	logger     *slog.Logger
}

var _ Oracle = (*OpenAIService)(nil)

type VeniceParameters struct {
	IncludeVeniceSystemPrompt bool   `json:"include_venice_system_prompt"`
	EnableWebSearch           string `json:"enable_web_search"`
}

// ChatCompletionRequest is the OpenAI-style request body
type ChatCompletionRequest struct {
	Model            string             `json:"model"`
	Messages         []chat.ChatMessage `json:"messages"`
	Temperature      float64            `json:"temperature"`
	MaxTokens        int                `json:"max_tokens,omitempty"`
	Stream           bool               `json:"stream"`
	VeniceParameters *VeniceParameters  `json:"venice_parameters,omitempty"`
}

// ChatCompletionChoice represents a single choice in the response
type ChatCompletionChoice struct {
	Index   int `json:"index"`
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	FinishReason string `json:"finish_reason"`
}

// ChatCompletionResponse is the OpenAI-style response body
type ChatCompletionResponse struct {
	ID      string                 `json:"id"`
	Object  string                 `json:"object"`
	Created int64                  `json:"created"`
	Model   string                 `json:"model"`
	Choices []ChatCompletionChoice `json:"choices"`
	Usage   struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage,omitempty"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error,omitempty"`
}

// NewOpenAIService creates a client for baseURL. An empty baseURL means
// api.openai.com.
func NewOpenAIService(apiKey, modelName, baseURL string, logger *slog.Logger) *OpenAIService {
	if baseURL == "" {
		baseURL = openAIBaseURL
	}
	return &OpenAIService{
		apiKey:     apiKey,
		modelName:  modelName,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: MaxTimeout},
		logger:     logger,
	}
}

// NewVeniceService creates a client for Venice AI, which speaks the same
// protocol with a few extra parameters.
func NewVeniceService(apiKey, modelName string, logger *slog.Logger) *OpenAIService {
	s := NewOpenAIService(apiKey, modelName, veniceBaseURL, logger)
	s.venice = true
	return s
}

// Generate makes one non-streaming chat completion request.
func (o *OpenAIService) Generate(ctx context.Context, prompt string, params GenerateParams) (string, error) {
	params = params.withDefaults(o.modelName)

	ctx, cancel := context.WithTimeout(ctx, params.Timeout)
	defer cancel()

	completionReq := ChatCompletionRequest{
		Model:       params.Model,
		Messages:    refereeMessages(prompt),
		Temperature: params.Temperature,
		MaxTokens:   params.MaxTokens,
		Stream:      false,
	}
	if o.venice {
		completionReq.VeniceParameters = &VeniceParameters{
			IncludeVeniceSystemPrompt: false,
			EnableWebSearch:           "off",
		}
	}

	header := http.Header{}
	if o.apiKey != "" {
		header.Set("Authorization", "Bearer "+o.apiKey)
	}
	var completionResp ChatCompletionResponse
	if err := postJSON(ctx, o.httpClient, o.baseURL+"/chat/completions", header, completionReq, &completionResp); err != nil {
		return "", err
	}

	if completionResp.Error != nil {
		return "", fmt.Errorf("API error: %s", completionResp.Error.Message)
	}

	if len(completionResp.Choices) == 0 {
		return "", fmt.Errorf("API returned %s", msgNoResponse)
	}

	o.logger.Debug("Oracle call completed",
		"provider", "openai",
		"model", params.Model,
		"completion_tokens", completionResp.Usage.CompletionTokens)

	return completionResp.Choices[0].Message.Content, nil
}
