// Package agent answers student questions about CET admissions through a
// language model provider, falling back to canned replies when none is
// configured.
package agent

import (
	"context"
	"fmt"
	"os"
	"strings"

	"charm.land/fantasy"
	"charm.land/fantasy/providers/anthropic"
)

const (
	defaultAnthropicModel = "claude-haiku-4-5"
	defaultGeminiModel    = "gemini-2.0-flash"
)

// Exchange is one earlier question and answer.
type Exchange struct {
	User string
	Bot  string
}

// Provider produces a reply to a message given earlier exchanges.
type Provider interface {
	Name() string
	Reply(ctx context.Context, message string, history []Exchange) (string, error)
}

// AgentConfig holds the configuration shared by model-backed providers
type AgentConfig struct {
	apiKey       string
	model        string
	systemPrompt string
}

// AgentOption is a functional option for configuring a provider
type AgentOption func(*AgentConfig) error

// WithAPIKey sets the provider API key
func WithAPIKey(apiKey string) AgentOption {
	return func(c *AgentConfig) error {
		if apiKey == "" {
			return fmt.Errorf("API key cannot be empty")
		}
		c.apiKey = apiKey
		return nil
	}
}

// WithAPIKeyFromEnv reads the API key from the named environment variable
func WithAPIKeyFromEnv(name string) AgentOption {
	return func(c *AgentConfig) error {
		apiKey := os.Getenv(name)
		if apiKey == "" {
			return fmt.Errorf("%s environment variable not set", name)
		}
		c.apiKey = apiKey
		return nil
	}
}

// WithModel sets the model name
func WithModel(model string) AgentOption {
	return func(c *AgentConfig) error {
		if model == "" {
			return fmt.Errorf("model cannot be empty")
		}
		c.model = model
		return nil
	}
}

// WithSystemPrompt sets a custom system prompt
func WithSystemPrompt(prompt string) AgentOption {
	return func(c *AgentConfig) error {
		c.systemPrompt = prompt
		return nil
	}
}

func newConfig(model string, opts []AgentOption) (*AgentConfig, error) {
	config := &AgentConfig{
		model:        model,
		systemPrompt: SystemPrompt,
	}
	for _, opt := range opts {
		if err := opt(config); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}
	if config.apiKey == "" {
		return nil, fmt.Errorf("API key is required (use WithAPIKey or WithAPIKeyFromEnv)")
	}
	return config, nil
}

// AnthropicProvider answers through a Claude model.
type AnthropicProvider struct {
	model    string
	generate func(ctx context.Context, prompt string) (string, error)
}

// NewAnthropicProvider creates a Fantasy agent backed by Anthropic
func NewAnthropicProvider(ctx context.Context, opts ...AgentOption) (*AnthropicProvider, error) {
	config, err := newConfig(defaultAnthropicModel, opts)
	if err != nil {
		return nil, err
	}

	provider, err := anthropic.New(anthropic.WithAPIKey(config.apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Anthropic provider: %w", err)
	}

	model, err := provider.LanguageModel(ctx, config.model)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Claude model: %w", err)
	}

	agent := fantasy.NewAgent(
		model,
		fantasy.WithSystemPrompt(config.systemPrompt),
	)

	return &AnthropicProvider{
		model: config.model,
		generate: func(ctx context.Context, prompt string) (string, error) {
			result, err := agent.Generate(ctx, fantasy.AgentCall{Prompt: prompt})
			if err != nil {
				return "", err
			}
			return result.Response.Content.Text(), nil
		},
	}, nil
}

func (p *AnthropicProvider) Name() string { return "anthropic" }

// Reply folds recent history into the prompt and asks the model.
func (p *AnthropicProvider) Reply(ctx context.Context, message string, history []Exchange) (string, error) {
	text, err := p.generate(ctx, BuildPrompt(message, history))
	if err != nil {
		return "", fmt.Errorf("failed to generate response: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyReply
	}
	return text, nil
}
