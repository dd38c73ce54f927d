package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/fabula/internal/common"
	"github.com/ternarybob/fabula/internal/interfaces"
)

// ClaudeService implements the LLMService interface using the Anthropic
// Claude API for completions. Claude exposes no embeddings endpoint, so
// embedding calls delegate to a local Ollama-backed embedder.
type ClaudeService struct {
	config    *common.ClaudeConfig
	logger    arbor.ILogger
	client    anthropic.Client
	embedder  interfaces.LLMService
	limiter   *rate.Limiter
	timeout   time.Duration
	maxTokens int
}

// NewClaudeService creates a new Claude LLM service instance.
//
// The service initialization includes:
//  1. Validating the Anthropic API key from configuration
//  2. Setting default model name if not specified
//  3. Parsing timeout duration from configuration
//  4. Initializing the Claude client
//
// Parameters:
//   - claudeConfig: Claude configuration with API key and model settings
//   - embedder: Embedding backend (Ollama) used for Embed/EmbedBatch
//   - logger: Structured logger for service operations
//
// Returns:
//   - *ClaudeService: Initialized service ready for use
//   - error: nil on success, error with details on failure
func NewClaudeService(claudeConfig *common.ClaudeConfig, embedder interfaces.LLMService, logger arbor.ILogger) (*ClaudeService, error) {
	if claudeConfig.APIKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required for Claude service (set via ANTHROPIC_API_KEY or llm.claude.api_key in config)")
	}

	if claudeConfig.Model == "" {
		claudeConfig.Model = "claude-haiku-3-5-20241022"
	}

	timeout, err := time.ParseDuration(claudeConfig.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid timeout duration '%s': %w", claudeConfig.Timeout, err)
	}

	maxTokens := claudeConfig.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 2048
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if claudeConfig.RateLimit != "" {
		interval, err := time.ParseDuration(claudeConfig.RateLimit)
		if err != nil {
			return nil, fmt.Errorf("invalid rate limit duration '%s': %w", claudeConfig.RateLimit, err)
		}
		if interval > 0 {
			limiter = rate.NewLimiter(rate.Every(interval), 1)
		}
	}

	client := anthropic.NewClient(
		option.WithAPIKey(claudeConfig.APIKey),
	)

	service := &ClaudeService{
		config:    claudeConfig,
		logger:    logger,
		client:    client,
		embedder:  embedder,
		limiter:   limiter,
		timeout:   timeout,
		maxTokens: maxTokens,
	}

	logger.Debug().
		Str("model", claudeConfig.Model).
		Dur("timeout", timeout).
		Float32("temperature", claudeConfig.Temperature).
		Int("max_tokens", maxTokens).
		Msg("Claude LLM service initialized successfully")

	return service, nil
}

// Embed delegates to the local embedding backend
func (s *ClaudeService) Embed(ctx context.Context, text string) ([]float32, error) {
	return s.embedder.Embed(ctx, text)
}

// EmbedBatch delegates to the local embedding backend
func (s *ClaudeService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return s.embedder.EmbedBatch(ctx, texts)
}

// Complete generates text for an assembled prompt using the Claude API
func (s *ClaudeService) Complete(ctx context.Context, req *interfaces.CompletionRequest) (string, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return "", fmt.Errorf("prompt cannot be empty for completion")
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return "", err
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	temperature := req.Temperature
	if temperature <= 0 {
		temperature = s.config.Temperature
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = s.maxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(s.config.Model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if temperature > 0 {
		params.Temperature = anthropic.Float(float64(temperature))
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: req.System},
		}
	}

	startTime := time.Now()
	resp, err := s.client.Messages.New(timeoutCtx, params)
	if err != nil {
		s.logger.Warn().Err(err).Str("model", s.config.Model).Msg("Claude completion failed")
		return "", fmt.Errorf("%w: %v", common.ErrCompletionUnavailable, err)
	}

	var response strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			response.WriteString(block.Text)
		}
	}
	if response.Len() == 0 {
		return "", fmt.Errorf("completion response contained no text")
	}

	s.logger.Debug().
		Str("model", s.config.Model).
		Int("response_length", response.Len()).
		Dur("duration", time.Since(startTime)).
		Msg("Claude completion succeeded")

	return response.String(), nil
}

// HealthCheck verifies the Claude client and the embedding backend are
// both operational
func (s *ClaudeService) HealthCheck(ctx context.Context) error {
	if err := s.embedder.HealthCheck(ctx); err != nil {
		return fmt.Errorf("embedding backend health check failed: %w", err)
	}
	return nil
}

// ModelName returns the completion model identifier
func (s *ClaudeService) ModelName() string {
	return s.config.Model
}

// GetMode returns LLMModeCloud since completions go to the Anthropic API
func (s *ClaudeService) GetMode() interfaces.LLMMode {
	return interfaces.LLMModeCloud
}

// Close releases resources and performs cleanup operations
func (s *ClaudeService) Close() error {
	s.logger.Debug().Msg("Closing Claude LLM service")
	return s.embedder.Close()
}
