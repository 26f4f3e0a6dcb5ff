package agent

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Provider names accepted by Select.
const (
	ProviderAuto      = "auto"
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
	ProviderFallback  = "fallback"
)

// Settings picks and configures a provider.
type Settings struct {
	Provider        string
	Model           string
	GeminiAPIKey    string
	AnthropicAPIKey string
}

// Select builds the configured provider. available is false when the
// result is the fallback provider. In auto mode a provider that fails to
// initialize degrades to the next one instead of failing.
func Select(ctx context.Context, s Settings, logger *zap.Logger) (p Provider, available bool, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := func(key string) []AgentOption {
		o := []AgentOption{WithAPIKey(key)}
		if s.Model != "" {
			o = append(o, WithModel(s.Model))
		}
		return o
	}

	switch strings.ToLower(strings.TrimSpace(s.Provider)) {
	case ProviderGemini:
		g, err := NewGeminiProvider(ctx, opts(s.GeminiAPIKey)...)
		if err != nil {
			return nil, false, fmt.Errorf("failed to configure gemini: %w", err)
		}
		return g, true, nil

	case ProviderAnthropic:
		a, err := NewAnthropicProvider(ctx, opts(s.AnthropicAPIKey)...)
		if err != nil {
			return nil, false, fmt.Errorf("failed to configure anthropic: %w", err)
		}
		return a, true, nil

	case ProviderFallback:
		return NewFallbackProvider(), false, nil

	case "", ProviderAuto:
		if s.GeminiAPIKey != "" {
			g, err := NewGeminiProvider(ctx, opts(s.GeminiAPIKey)...)
			if err == nil {
				return g, true, nil
			}
			logger.Warn("gemini provider unavailable", zap.Error(err))
		}
		if s.AnthropicAPIKey != "" {
			a, err := NewAnthropicProvider(ctx, opts(s.AnthropicAPIKey)...)
			if err == nil {
				return a, true, nil
			}
			logger.Warn("anthropic provider unavailable", zap.Error(err))
		}
		logger.Info("no chat model configured, using fallback replies")
		return NewFallbackProvider(), false, nil
	}
	return nil, false, fmt.Errorf("unknown chat provider %q", s.Provider)
}
