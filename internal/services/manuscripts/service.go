// -----------------------------------------------------------------------
// Last Modified: Saturday, 29th August 2026 4:40:00 pm
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package manuscripts

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/fabula/internal/common"
	"github.com/ternarybob/fabula/internal/interfaces"
	"github.com/ternarybob/fabula/internal/models"
	"github.com/ternarybob/fabula/internal/services/chunker"
)

// Service implements ManuscriptService: the write path from raw text to an
// indexed chunk collection. Imports of the same manuscript are serialized
// with a per-manuscript lock; distinct manuscripts import concurrently.
type Service struct {
	storage  interfaces.StorageManager
	embedder interfaces.EmbeddingService
	chunker  *chunker.Service
	config   *common.Config
	logger   arbor.ILogger
	locks    sync.Map // manuscript ID -> *sync.Mutex
}

// NewService creates a new manuscript service
func NewService(
	storage interfaces.StorageManager,
	embedder interfaces.EmbeddingService,
	chunkerService *chunker.Service,
	config *common.Config,
	logger arbor.ILogger,
) *Service {
	return &Service{
		storage:  storage,
		embedder: embedder,
		chunker:  chunkerService,
		config:   config,
		logger:   logger,
	}
}

func (s *Service) lockFor(manuscriptID string) *sync.Mutex {
	lock, _ := s.locks.LoadOrStore(manuscriptID, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

// Import runs the full write path: chunk, embed in batches, index.
// Re-importing an existing manuscript ID starts a new generation; the
// superseded generation is removed only once the new one is complete.
// Cancellation between batches commits what is done and leaves the
// manuscript with status partial.
func (s *Service) Import(ctx context.Context, req *interfaces.ImportRequest) (*models.Manuscript, error) {
	if strings.TrimSpace(req.Title) == "" {
		return nil, fmt.Errorf("manuscript title is required")
	}
	if req.Text == "" {
		return nil, fmt.Errorf("manuscript text is required")
	}

	maxSize := s.config.Chunking.MaxSize
	overlap := s.config.Chunking.Overlap
	if req.MaxSize != 0 || req.Overlap != 0 {
		maxSize = req.MaxSize
		overlap = req.Overlap
	}
	if err := chunker.ValidateParams(maxSize, overlap); err != nil {
		return nil, err
	}

	manuscriptID := req.ManuscriptID
	if manuscriptID == "" {
		manuscriptID = common.NewManuscriptID()
	}

	lock := s.lockFor(manuscriptID)
	lock.Lock()
	defer lock.Unlock()

	// Re-import bumps the generation; the new chunk collection is built
	// alongside the old one, which keeps serving queries until the new one
	// completes
	generation := 1
	serving := 0
	if existing, err := s.storage.ManuscriptStorage().GetManuscript(manuscriptID); err == nil {
		generation = existing.Generation + 1
		serving = existing.ServingGeneration
	}

	chunks, err := s.chunker.Chunk(req.Text, maxSize, overlap)
	if err != nil {
		return nil, err
	}

	m := &models.Manuscript{
		ID:                manuscriptID,
		Title:             req.Title,
		Text:              req.Text,
		TextLength:        len([]rune(req.Text)),
		WordCount:         models.CountWords(req.Text),
		Generation:        generation,
		ServingGeneration: serving,
		Status:            models.ManuscriptStatusPartial,
		ChunkMaxSize:      maxSize,
		ChunkOverlap:      overlap,
		ChunkCount:        len(chunks),
	}
	if err := s.storage.ManuscriptStorage().SaveManuscript(m); err != nil {
		return nil, fmt.Errorf("failed to register manuscript: %w", err)
	}

	s.logger.Info().
		Str("manuscript_id", manuscriptID).
		Str("title", req.Title).
		Int("generation", generation).
		Int("chunks", len(chunks)).
		Int("words", m.WordCount).
		Msg("Starting manuscript import")

	return s.indexChunks(ctx, m, chunks)
}

// Resume finishes the embedding tail of a partially indexed manuscript.
// Chunking is deterministic and batches commit in order, so the indexed
// chunks form a contiguous prefix; re-chunking the stored text with the
// stored parameters and skipping that prefix continues exactly where the
// interrupted import stopped.
func (s *Service) Resume(ctx context.Context, manuscriptID string) (*models.Manuscript, error) {
	lock := s.lockFor(manuscriptID)
	lock.Lock()
	defer lock.Unlock()

	m, err := s.storage.ManuscriptStorage().GetManuscript(manuscriptID)
	if err != nil {
		return nil, err
	}
	if m.Status == models.ManuscriptStatusComplete {
		return m, nil
	}
	if m.Text == "" {
		return nil, fmt.Errorf("manuscript %s has no stored text to resume from", manuscriptID)
	}

	chunks, err := s.chunker.Chunk(m.Text, m.ChunkMaxSize, m.ChunkOverlap)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("manuscript_id", manuscriptID).
		Int("generation", m.Generation).
		Int("indexed", m.IndexedChunks).
		Int("total", len(chunks)).
		Msg("Resuming partial manuscript import")

	return s.indexChunks(ctx, m, chunks)
}

// indexChunks embeds and stores chunks[m.IndexedChunks:] in batches,
// committing progress after every batch. Cancellation between batches
// returns the manuscript in its committed partial state with a nil error;
// an embedding failure also leaves committed work in place but surfaces
// the error.
func (s *Service) indexChunks(ctx context.Context, m *models.Manuscript, chunks []models.Chunk) (*models.Manuscript, error) {
	batchSize := s.config.Chunking.BatchSize
	if batchSize <= 0 {
		batchSize = 16
	}

	vectorStorage := s.storage.VectorStorage()

	for start := m.IndexedChunks; start < len(chunks); start += batchSize {
		if ctx.Err() != nil {
			s.logger.Warn().
				Str("manuscript_id", m.ID).
				Int("indexed", m.IndexedChunks).
				Int("total", len(chunks)).
				Msg("Import cancelled, committed chunks retained")
			return m, nil
		}

		end := start + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}

		vectors, err := s.embedder.GenerateEmbeddings(ctx, texts)
		if err != nil {
			return m, fmt.Errorf("embedding batch starting at chunk %d failed: %w", start, err)
		}

		for i, c := range batch {
			if err := vectorStorage.AddChunk(m.ID, m.Generation, c, vectors[i]); err != nil {
				return m, fmt.Errorf("indexing chunk %d failed: %w", c.Index, err)
			}
		}

		m.IndexedChunks = end
		if err := s.storage.ManuscriptStorage().SaveManuscript(m); err != nil {
			return m, fmt.Errorf("failed to commit import progress: %w", err)
		}
	}

	// Flip readers to the finished generation; until this save, queries
	// keep answering from the previous complete one
	m.Status = models.ManuscriptStatusComplete
	m.ServingGeneration = m.Generation
	if err := s.storage.ManuscriptStorage().SaveManuscript(m); err != nil {
		return m, fmt.Errorf("failed to mark manuscript complete: %w", err)
	}

	// Superseded generations are only dropped once the new one fully serves
	for gen := m.Generation - 1; gen >= 1; gen-- {
		if err := vectorStorage.RemoveGeneration(m.ID, gen); err != nil {
			s.logger.Warn().Err(err).
				Str("manuscript_id", m.ID).
				Int("generation", gen).
				Msg("Failed to remove superseded generation")
		}
	}

	s.logger.Info().
		Str("manuscript_id", m.ID).
		Int("generation", m.Generation).
		Int("chunks", m.ChunkCount).
		Msg("Manuscript import complete")

	return m, nil
}

// Get returns manuscript metadata
func (s *Service) Get(ctx context.Context, manuscriptID string) (*models.Manuscript, error) {
	return s.storage.ManuscriptStorage().GetManuscript(manuscriptID)
}

// List returns all manuscripts
func (s *Service) List(ctx context.Context) ([]*models.Manuscript, error) {
	return s.storage.ManuscriptStorage().ListManuscripts()
}

// Remove deletes the manuscript, its entire chunk collection, and any
// characters attached to it. Idempotent: removing an absent manuscript is
// a no-op.
func (s *Service) Remove(ctx context.Context, manuscriptID string) error {
	lock := s.lockFor(manuscriptID)
	lock.Lock()
	defer lock.Unlock()

	if err := s.storage.VectorStorage().RemoveManuscript(manuscriptID); err != nil {
		return fmt.Errorf("failed to remove chunk collection: %w", err)
	}
	if err := s.storage.CharacterStorage().DeleteByManuscript(manuscriptID); err != nil {
		return fmt.Errorf("failed to remove characters: %w", err)
	}
	if err := s.storage.ManuscriptStorage().DeleteManuscript(manuscriptID); err != nil {
		return fmt.Errorf("failed to remove manuscript: %w", err)
	}

	// The lock entry stays: dropping it would let a goroutine still waiting
	// on the old mutex run alongside a later import that minted a fresh one

	s.logger.Info().Str("manuscript_id", manuscriptID).Msg("Manuscript removed")
	return nil
}
