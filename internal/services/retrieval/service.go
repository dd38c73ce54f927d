package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/fabula/internal/common"
	"github.com/ternarybob/fabula/internal/interfaces"
	"github.com/ternarybob/fabula/internal/models"
)

// Service implements RetrievalService: embed the query, ask the vector
// index for the nearest passages above the similarity threshold.
type Service struct {
	storage  interfaces.StorageManager
	embedder interfaces.EmbeddingService
	config   *common.Config
	logger   arbor.ILogger
}

// NewService creates a new retrieval service
func NewService(
	storage interfaces.StorageManager,
	embedder interfaces.EmbeddingService,
	config *common.Config,
	logger arbor.ILogger,
) *Service {
	return &Service{
		storage:  storage,
		embedder: embedder,
		config:   config,
		logger:   logger,
	}
}

// Retrieve returns up to k passages from the manuscript scoring at least
// minScore against the query, ranked by descending similarity. Zero k or
// minScore fall back to the configured defaults. An empty query is
// rejected with ErrInvalidQuery; an empty result set is a valid outcome,
// not an error.
func (s *Service) Retrieve(ctx context.Context, manuscriptID, query string, k int, minScore float64) (*models.RetrievalResult, error) {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: query is empty", common.ErrInvalidQuery)
	}

	if k <= 0 {
		k = s.config.Retrieval.MaxChunks
	}
	if minScore <= 0 {
		minScore = s.config.Retrieval.MinScore
	}

	result := &models.RetrievalResult{
		Query:        trimmed,
		ManuscriptID: manuscriptID,
	}

	// An unknown or not-yet-indexed manuscript retrieves nothing; the
	// caller decides whether that is an error
	m, err := s.storage.ManuscriptStorage().GetManuscript(manuscriptID)
	if err != nil {
		if errors.Is(err, common.ErrManuscriptNotFound) {
			return result, nil
		}
		return nil, err
	}

	vector, err := s.embedder.GenerateQueryEmbedding(ctx, trimmed)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	// Queries read the serving generation, which an in-flight re-import
	// has not flipped yet. Before the first import completes there is no
	// serving generation, so the committed prefix of the initial one answers.
	generation := m.ServingGeneration
	if generation == 0 {
		generation = m.Generation
	}

	passages, err := s.storage.VectorStorage().Query(manuscriptID, generation, vector, k, minScore)
	if err != nil {
		return nil, fmt.Errorf("vector query failed: %w", err)
	}

	s.logger.Debug().
		Str("manuscript_id", manuscriptID).
		Int("requested", k).
		Int("returned", len(passages)).
		Float64("min_score", minScore).
		Msg("Retrieval completed")

	result.Passages = passages
	return result, nil
}
