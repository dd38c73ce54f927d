package interfaces

import (
	"context"
)

// LLMMode represents the operational mode of the LLM service
type LLMMode string

const (
	// LLMModeOffline indicates the service uses a locally hosted model server
	LLMModeOffline LLMMode = "offline"

	// LLMModeCloud indicates the service uses a cloud-based LLM API
	LLMModeCloud LLMMode = "cloud"
)

// CompletionRequest carries an assembled prompt plus generation parameters
type CompletionRequest struct {
	// System is the system instruction (kept out of the prompt body so
	// providers that support a separate system channel can use it)
	System string

	// Prompt is the full assembled user prompt
	Prompt string

	// Temperature controls sampling randomness (provider default when zero)
	Temperature float32

	// MaxTokens bounds the generated output length (provider default when zero)
	MaxTokens int
}

// LLMService defines the boundary to the language-model backend: embedding
// generation and text completion. Implementations may target a local server
// (Ollama) or a cloud API (Anthropic). Modeled as a capability interface so
// tests can substitute deterministic stubs.
type LLMService interface {
	// Embed generates a fixed-length embedding vector for the given text.
	// Unreachable backends and malformed responses both surface as
	// common.ErrEmbeddingUnavailable.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts in input order.
	// Semantically identical to mapping Embed over each input; exists purely
	// for throughput. If any item fails the whole batch fails.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Complete generates text for an assembled prompt. Unreachable backends
	// surface as common.ErrCompletionUnavailable; malformed responses return
	// a distinct error so callers can tell the two apart.
	Complete(ctx context.Context, req *CompletionRequest) (string, error)

	// HealthCheck verifies the backend is operational
	HealthCheck(ctx context.Context) error

	// ModelName returns the completion model identifier
	ModelName() string

	// GetMode returns the current operational mode
	GetMode() LLMMode

	// Close releases resources held by the service
	Close() error
}
