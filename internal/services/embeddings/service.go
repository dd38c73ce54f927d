package embeddings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/fabula/internal/common"
	"github.com/ternarybob/fabula/internal/interfaces"
)

const (
	maxAttempts    = 3
	initialBackoff = 500 * time.Millisecond
	maxBackoff     = 2 * time.Second
)

// Service implements EmbeddingService on top of the raw LLM boundary,
// adding bounded retry for transient backend failures. Only unavailability
// errors are retried; anything else fails immediately.
type Service struct {
	llmService interfaces.LLMService
	logger     arbor.ILogger
	dimension  atomic.Int64
}

// NewService creates a new embedding service
func NewService(llmService interfaces.LLMService, logger arbor.ILogger) *Service {
	return &Service{
		llmService: llmService,
		logger:     logger,
	}
}

// GenerateEmbedding creates an embedding for raw text, retrying transient
// backend failures with exponential backoff
func (s *Service) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("cannot embed empty text")
	}

	var vector []float32
	err := s.withRetry(ctx, func() error {
		var embedErr error
		vector, embedErr = s.llmService.Embed(ctx, text)
		return embedErr
	})
	if err != nil {
		return nil, err
	}

	s.dimension.CompareAndSwap(0, int64(len(vector)))
	return vector, nil
}

// GenerateEmbeddings creates embeddings for multiple texts in input order.
// The batch fails as a whole: a failure on any item discards all vectors.
func (s *Service) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, 0, len(texts))
	for i, text := range texts {
		vector, err := s.GenerateEmbedding(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("batch embedding failed at item %d of %d: %w", i+1, len(texts), err)
		}
		vectors = append(vectors, vector)
	}
	return vectors, nil
}

// GenerateQueryEmbedding creates an embedding for a search query. Queries
// go through the same model as documents; whitespace is collapsed first so
// equivalent queries embed identically.
func (s *Service) GenerateQueryEmbedding(ctx context.Context, query string) ([]float32, error) {
	normalized := strings.Join(strings.Fields(query), " ")
	return s.GenerateEmbedding(ctx, normalized)
}

// Dimension returns the vector dimensionality observed from the model,
// zero until the first embedding has been generated
func (s *Service) Dimension() int {
	return int(s.dimension.Load())
}

// IsAvailable checks if the backing model is reachable
func (s *Service) IsAvailable(ctx context.Context) bool {
	return s.llmService.HealthCheck(ctx) == nil
}

// withRetry runs fn up to maxAttempts times, backing off between attempts.
// Only embedding-unavailable errors are retried.
func (s *Service) withRetry(ctx context.Context, fn func() error) error {
	backoff := initialBackoff
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !errors.Is(lastErr, common.ErrEmbeddingUnavailable) {
			return lastErr
		}
		if attempt == maxAttempts {
			break
		}

		s.logger.Warn().
			Err(lastErr).
			Int("attempt", attempt).
			Dur("backoff", backoff).
			Msg("Embedding attempt failed, retrying")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}

	return fmt.Errorf("embedding failed after %d attempts: %w", maxAttempts, lastErr)
}
