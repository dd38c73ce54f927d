// -----------------------------------------------------------------------
// Last Modified: Saturday, 29th August 2026 4:10:00 pm
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/fabula/internal/common"
	"github.com/ternarybob/fabula/internal/interfaces"
)

// OllamaService implements the LLMService interface against a locally
// hosted Ollama server. It serves both embeddings and chat completions.
type OllamaService struct {
	config  *common.OllamaConfig
	logger  arbor.ILogger
	client  *http.Client
	limiter *rate.Limiter
	timeout time.Duration
}

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float64 `json:"embedding"`
}

type ollamaGenerateRequest struct {
	Model   string                 `json:"model"`
	System  string                 `json:"system,omitempty"`
	Prompt  string                 `json:"prompt"`
	Stream  bool                   `json:"stream"`
	Options map[string]interface{} `json:"options,omitempty"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// NewOllamaService creates an Ollama-backed LLM service.
//
// The service initialization includes:
//  1. Parsing the per-request timeout from configuration
//  2. Building a rate limiter from the configured minimum request interval
//  3. Initializing the shared HTTP client
//
// Parameters:
//   - ollamaConfig: Ollama configuration with server URL and model names
//   - logger: Structured logger for service operations
//
// Returns:
//   - *OllamaService: Initialized service ready for use
//   - error: nil on success, error with details on failure
func NewOllamaService(ollamaConfig *common.OllamaConfig, logger arbor.ILogger) (*OllamaService, error) {
	if ollamaConfig.BaseURL == "" {
		return nil, fmt.Errorf("Ollama base URL is required (set llm.ollama.base_url in config or FABULA_OLLAMA_URL)")
	}
	if ollamaConfig.EmbedModel == "" {
		return nil, fmt.Errorf("Ollama embedding model is required")
	}
	if ollamaConfig.ChatModel == "" {
		return nil, fmt.Errorf("Ollama chat model is required")
	}

	timeout, err := time.ParseDuration(ollamaConfig.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid timeout duration '%s': %w", ollamaConfig.Timeout, err)
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if ollamaConfig.RateLimit != "" {
		interval, err := time.ParseDuration(ollamaConfig.RateLimit)
		if err != nil {
			return nil, fmt.Errorf("invalid rate limit duration '%s': %w", ollamaConfig.RateLimit, err)
		}
		if interval > 0 {
			limiter = rate.NewLimiter(rate.Every(interval), 1)
		}
	}

	service := &OllamaService{
		config:  ollamaConfig,
		logger:  logger,
		client:  &http.Client{Timeout: timeout},
		limiter: limiter,
		timeout: timeout,
	}

	logger.Debug().
		Str("base_url", ollamaConfig.BaseURL).
		Str("embed_model", ollamaConfig.EmbedModel).
		Str("chat_model", ollamaConfig.ChatModel).
		Dur("timeout", timeout).
		Msg("Ollama LLM service initialized successfully")

	return service, nil
}

// Embed generates an embedding vector for the given text using the
// configured embedding model.
func (s *OllamaService) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := json.Marshal(ollamaEmbedRequest{
		Model:  s.config.EmbedModel,
		Prompt: text,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode embedding request: %w", err)
	}

	respBody, err := s.post(ctx, "/api/embeddings", body)
	if err != nil {
		s.logger.Warn().Err(err).Str("model", s.config.EmbedModel).Msg("Embedding request failed")
		return nil, fmt.Errorf("%w: %v", common.ErrEmbeddingUnavailable, err)
	}

	var embedResp ollamaEmbedResponse
	if err := json.Unmarshal(respBody, &embedResp); err != nil {
		return nil, fmt.Errorf("%w: malformed embedding response: %v", common.ErrEmbeddingUnavailable, err)
	}
	if len(embedResp.Embedding) == 0 {
		return nil, fmt.Errorf("%w: embedding response contained no vector", common.ErrEmbeddingUnavailable)
	}

	vector := make([]float32, len(embedResp.Embedding))
	for i, v := range embedResp.Embedding {
		vector[i] = float32(v)
	}
	return vector, nil
}

// EmbedBatch generates embeddings for multiple texts in input order. The
// Ollama embeddings endpoint is single-input, so the batch maps to
// sequential calls; any failure fails the whole batch.
func (s *OllamaService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for i, text := range texts {
		vector, err := s.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embedding %d of %d failed: %w", i+1, len(texts), err)
		}
		vectors = append(vectors, vector)
	}
	return vectors, nil
}

// Complete generates text for an assembled prompt using the configured
// chat model. Connection failures map to ErrCompletionUnavailable; a
// malformed response body returns a distinct error.
func (s *OllamaService) Complete(ctx context.Context, req *interfaces.CompletionRequest) (string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return "", err
	}

	temperature := req.Temperature
	if temperature <= 0 {
		temperature = s.config.Temperature
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = s.config.MaxTokens
	}

	body, err := json.Marshal(ollamaGenerateRequest{
		Model:  s.config.ChatModel,
		System: req.System,
		Prompt: req.Prompt,
		Stream: false,
		Options: map[string]interface{}{
			"temperature": temperature,
			"num_predict": maxTokens,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode completion request: %w", err)
	}

	startTime := time.Now()
	respBody, err := s.post(ctx, "/api/generate", body)
	if err != nil {
		s.logger.Warn().Err(err).Str("model", s.config.ChatModel).Msg("Completion request failed")
		return "", fmt.Errorf("%w: %v", common.ErrCompletionUnavailable, err)
	}

	var genResp ollamaGenerateResponse
	if err := json.Unmarshal(respBody, &genResp); err != nil {
		return "", fmt.Errorf("malformed completion response: %w", err)
	}
	if genResp.Response == "" {
		return "", fmt.Errorf("completion response contained no text")
	}

	s.logger.Debug().
		Str("model", s.config.ChatModel).
		Int("response_length", len(genResp.Response)).
		Dur("duration", time.Since(startTime)).
		Msg("Ollama completion succeeded")

	return genResp.Response, nil
}

// HealthCheck verifies the Ollama server is reachable
func (s *OllamaService) HealthCheck(ctx context.Context) error {
	healthCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(healthCtx, http.MethodGet, s.config.BaseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("failed to build health check request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("Ollama server unreachable at %s: %w", s.config.BaseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("Ollama health check returned status %d", resp.StatusCode)
	}
	return nil
}

// ModelName returns the completion model identifier
func (s *OllamaService) ModelName() string {
	return s.config.ChatModel
}

// GetMode returns LLMModeOffline since Ollama runs locally
func (s *OllamaService) GetMode() interfaces.LLMMode {
	return interfaces.LLMModeOffline
}

// Close releases resources held by the service
func (s *OllamaService) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

// post sends a JSON request to the Ollama server and returns the raw
// response body. Non-2xx statuses are reported as errors.
func (s *OllamaService) post(ctx context.Context, path string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", path, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned status %d: %s", path, resp.StatusCode, truncateForLog(respBody))
	}
	return respBody, nil
}

func truncateForLog(body []byte) string {
	const max = 200
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
