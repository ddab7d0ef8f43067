package llm

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Provider names accepted by NewClientFromConfig.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// NewClientFromConfig creates the LLMClient for the configured provider.
// Returns LLMClient interface to enable dependency injection of mocks.
func NewClientFromConfig(cfg *Config, logger *zap.Logger) (LLMClient, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderOpenAI:
		client, err := NewClient(cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("create openai client: %w", err)
		}
		return client, nil
	case ProviderAnthropic:
		client, err := NewAnthropicClient(cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("create anthropic client: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
