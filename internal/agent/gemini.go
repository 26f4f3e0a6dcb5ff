package agent

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GeminiProvider answers through a Gemini model.
type GeminiProvider struct {
	client *genai.Client
	model  string
	config *genai.GenerateContentConfig
}

// NewGeminiProvider creates a Gemini client with the generation and
// safety settings used for student chat.
func NewGeminiProvider(ctx context.Context, opts ...AgentOption) (*GeminiProvider, error) {
	config, err := newConfig(defaultGeminiModel, opts)
	if err != nil {
		return nil, err
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GeminiProvider{
		client: client,
		model:  config.model,
		config: generationConfig(config.systemPrompt),
	}, nil
}

func generationConfig(systemPrompt string) *genai.GenerateContentConfig {
	threshold := genai.HarmBlockThresholdBlockMediumAndAbove
	return &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		Temperature:       genai.Ptr[float32](0.7),
		TopP:              genai.Ptr[float32](0.9),
		TopK:              genai.Ptr[float32](40),
		MaxOutputTokens:   1024,
		SafetySettings: []*genai.SafetySetting{
			{Category: genai.HarmCategoryHarassment, Threshold: threshold},
			{Category: genai.HarmCategoryHateSpeech, Threshold: threshold},
			{Category: genai.HarmCategorySexuallyExplicit, Threshold: threshold},
			{Category: genai.HarmCategoryDangerousContent, Threshold: threshold},
		},
	}
}

func (p *GeminiProvider) Name() string { return "gemini" }

// Reply folds recent history into the prompt and asks the model.
func (p *GeminiProvider) Reply(ctx context.Context, message string, history []Exchange) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(BuildPrompt(message, history), genai.RoleUser),
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.model, contents, p.config)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyReply
	}
	return text, nil
}
