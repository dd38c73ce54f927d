package interfaces

import (
	"context"
)

// EmbeddingService generates vector embeddings with retry handling layered
// on top of the raw LLM boundary. The import and retrieval paths depend on
// this interface, never on a concrete provider.
type EmbeddingService interface {
	// GenerateEmbedding creates an embedding for raw text
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)

	// GenerateEmbeddings creates embeddings for multiple texts in order.
	// Whole-batch failure: if one item fails, no vectors are returned.
	GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)

	// GenerateQueryEmbedding creates an embedding for a search query
	// (may apply different preparation than document embedding)
	GenerateQueryEmbedding(ctx context.Context, query string) ([]float32, error)

	// Dimension returns the vector dimensionality observed from the model
	// (zero until the first embedding has been generated)
	Dimension() int

	// IsAvailable checks if the backing model is reachable
	IsAvailable(ctx context.Context) bool
}
