package services

import (
	"context"
	"fmt"
	"log/slog"

	"google.golang.org/genai"

	"github.com/jwebster45206/rule-horror/pkg/prompts"
)

// GeminiService implements Oracle for Google Gemini.
type GeminiService struct {
	client    *genai.Client
	modelName string
	logger    *slog.Logger
}

var _ Oracle = (*GeminiService)(nil)

// NewGeminiService creates a Gemini API client.
func NewGeminiService(ctx context.Context, apiKey, modelName string, logger *slog.Logger) (*GeminiService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if modelName == "" {
		modelName = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &GeminiService{
		client:    client,
		modelName: modelName,
		logger:    logger,
	}, nil
}

// Generate makes one GenerateContent request.
func (g *GeminiService) Generate(ctx context.Context, prompt string, params GenerateParams) (string, error) {
	params = params.withDefaults(g.modelName)

	ctx, cancel := context.WithTimeout(ctx, params.Timeout)
	defer cancel()

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(prompts.SystemPrompt, genai.RoleUser),
		Temperature:       genai.Ptr(float32(params.Temperature)),
		MaxOutputTokens:   int32(params.MaxTokens),
	}

	resp, err := g.client.Models.GenerateContent(ctx, params.Model, genai.Text(prompt), config)
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("API returned %s", msgNoResponse)
	}

	g.logger.Debug("Oracle call completed", "provider", "gemini", "model", params.Model)
	return text, nil
}
