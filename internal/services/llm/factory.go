package llm

import (
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/fabula/internal/common"
	"github.com/ternarybob/fabula/internal/interfaces"
)

// NewLLMService creates the appropriate LLM service implementation based
// on configuration. Embeddings always come from the local Ollama server;
// the provider setting selects where completions go.
func NewLLMService(cfg *common.Config, logger arbor.ILogger) (interfaces.LLMService, error) {
	provider := cfg.LLM.Provider
	if provider == "" {
		provider = common.LLMProviderOllama
	}

	logger.Info().Str("provider", string(provider)).Msg("Initializing LLM service")

	ollamaService, err := NewOllamaService(&cfg.LLM.Ollama, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create Ollama service: %w", err)
	}

	switch provider {
	case common.LLMProviderOllama:
		return ollamaService, nil

	case common.LLMProviderClaude:
		claudeService, err := NewClaudeService(&cfg.LLM.Claude, ollamaService, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create Claude service: %w", err)
		}
		return claudeService, nil

	default:
		return nil, fmt.Errorf("invalid LLM provider '%s': must be 'ollama' or 'claude'", provider)
	}
}
