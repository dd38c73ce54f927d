package interfaces

import (
	"github.com/ternarybob/fabula/internal/models"
)

// VectorStorage persists (vector, chunk, metadata) records per manuscript
// and answers nearest-neighbor queries. One logical collection per
// manuscript, keyed by manuscript ID and generation.
type VectorStorage interface {
	// AddChunk inserts one record. Vectors are L2-normalized before the
	// write so query-time cost stays a single dot product per candidate.
	// Returns common.DuplicateChunkError if (manuscript, generation, index)
	// already exists. The write is durable before AddChunk returns.
	AddChunk(manuscriptID string, generation int, chunk models.Chunk, vector []float32) error

	// Query returns up to k chunks for the manuscript generation ranked by
	// descending cosine similarity, excluding scores below minScore. Ties
	// are broken by ascending chunk index for determinism.
	Query(manuscriptID string, generation int, vector []float32, k int, minScore float64) ([]models.ScoredChunk, error)

	// RemoveManuscript deletes all records for the manuscript across all
	// generations. Idempotent: removing an absent manuscript is a no-op.
	RemoveManuscript(manuscriptID string) error

	// RemoveGeneration deletes the records of a single superseded generation
	RemoveGeneration(manuscriptID string, generation int) error

	// CountChunks returns the number of stored records for a generation
	CountChunks(manuscriptID string, generation int) (int, error)
}

// ManuscriptStorage persists manuscript metadata and indexing state
type ManuscriptStorage interface {
	SaveManuscript(m *models.Manuscript) error
	GetManuscript(id string) (*models.Manuscript, error)
	ListManuscripts() ([]*models.Manuscript, error)
	ListByStatus(status models.ManuscriptStatus) ([]*models.Manuscript, error)
	DeleteManuscript(id string) error
	CountManuscripts() (int, error)
}

// CharacterStorage persists character profiles and their conversation history
type CharacterStorage interface {
	SaveCharacter(c *models.CharacterProfile) error
	GetCharacter(id string) (*models.CharacterProfile, error)
	ListCharacters(manuscriptID string) ([]*models.CharacterProfile, error)
	DeleteCharacter(id string) error
	DeleteByManuscript(manuscriptID string) error
}

// StorageManager provides access to all storage interfaces
type StorageManager interface {
	VectorStorage() VectorStorage
	ManuscriptStorage() ManuscriptStorage
	CharacterStorage() CharacterStorage

	// Close closes the database connection
	Close() error
}
