package interfaces

import (
	"context"

	"github.com/ternarybob/fabula/internal/models"
)

// ImportRequest carries an already-extracted manuscript text into the
// pipeline. Format-specific extraction (TXT/DOCX/PDF) happens outside this
// boundary; the core only accepts decoded plain text.
type ImportRequest struct {
	// ManuscriptID is optional; a new ID is generated when empty.
	// Importing an existing ID creates a new generation.
	ManuscriptID string `json:"manuscript_id"`

	Title string `json:"title" validate:"required"`
	Text  string `json:"text" validate:"required"`

	// MaxSize/Overlap override the configured chunking parameters when
	// both are non-zero
	MaxSize int `json:"max_size"`
	Overlap int `json:"overlap"`
}

// ManuscriptService coordinates the write path: chunk, embed in batches,
// index. Imports of the same manuscript are serialized; distinct
// manuscripts import in parallel.
type ManuscriptService interface {
	// Import runs the full write path. Cancellation between embedding
	// batches commits what is done and leaves the manuscript with status
	// partial; the returned manuscript reflects the committed state.
	Import(ctx context.Context, req *ImportRequest) (*models.Manuscript, error)

	// Resume finishes the embedding tail of a partially indexed manuscript
	Resume(ctx context.Context, manuscriptID string) (*models.Manuscript, error)

	// Get returns manuscript metadata
	Get(ctx context.Context, manuscriptID string) (*models.Manuscript, error)

	// List returns all manuscripts
	List(ctx context.Context) ([]*models.Manuscript, error)

	// Remove deletes the manuscript and its entire chunk collection.
	// Idempotent.
	Remove(ctx context.Context, manuscriptID string) error
}

// RetrievalService is the read path: embed the query and ask the vector
// index for the most relevant passages above the similarity threshold.
type RetrievalService interface {
	// Retrieve returns up to k passages scoring at least minScore. Zero
	// values fall back to the configured defaults. A query that is empty
	// after trimming fails with common.ErrInvalidQuery; zero qualifying
	// passages yields an empty result, not an error.
	Retrieve(ctx context.Context, manuscriptID, query string, k int, minScore float64) (*models.RetrievalResult, error)
}

// CharacterService owns character profiles and their bounded conversation
// history. The retrieval pipeline only reads name/role/traits.
type CharacterService interface {
	Create(ctx context.Context, c *models.CharacterProfile) (*models.CharacterProfile, error)
	Get(ctx context.Context, id string) (*models.CharacterProfile, error)
	List(ctx context.Context, manuscriptID string) ([]*models.CharacterProfile, error)
	Delete(ctx context.Context, id string) error

	// RecordTurn appends a completed conversation turn, trimming history to
	// the configured bound
	RecordTurn(ctx context.Context, id string, turn models.ConversationTurn) error

	// ExtractFromManuscript detects named characters in the manuscript's
	// stored text and creates profiles for the ones not yet registered
	ExtractFromManuscript(ctx context.Context, manuscriptID string) ([]*models.CharacterProfile, error)
}
