package agent

import (
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/fyrsmithlabs/birdsql/internal/config"
)

// NewModel builds the langchaingo model client for the configured provider.
// API keys come from the provider's standard environment variables
// (ANTHROPIC_API_KEY, OPENAI_API_KEY). Per-role model names are applied as
// call options, so one client serves every agent.
func NewModel(cfg config.LLMConfig) (llms.Model, error) {
	switch cfg.Provider {
	case "anthropic":
		model, err := anthropic.New(anthropic.WithModel(cfg.Model))
		if err != nil {
			return nil, fmt.Errorf("failed to create anthropic client: %w", err)
		}
		return model, nil
	case "openai":
		model, err := openai.New(openai.WithModel(cfg.Model))
		if err != nil {
			return nil, fmt.Errorf("failed to create openai client: %w", err)
		}
		return model, nil
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
}
