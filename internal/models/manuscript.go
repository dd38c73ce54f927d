package models

import (
	"strings"
	"time"
)

// ManuscriptStatus tracks indexing progress for a manuscript
type ManuscriptStatus string

const (
	// ManuscriptStatusPartial indicates some chunks are still waiting for
	// embeddings (import in flight, cancelled, or interrupted)
	ManuscriptStatusPartial ManuscriptStatus = "partial"
	// ManuscriptStatusComplete indicates every chunk is embedded and indexed
	ManuscriptStatusComplete ManuscriptStatus = "complete"
)

// Manuscript represents an imported manuscript and its indexing state.
// Immutable once indexed: a re-import bumps Generation and replaces the
// prior chunk collection rather than mutating records in place.
type Manuscript struct {
	ID         string           `json:"id"` // man_<uuid>
	Title      string           `json:"title"`
	Text       string           `json:"-"` // Raw manuscript text, retained so partial imports can resume deterministically
	TextLength int              `json:"text_length"`
	WordCount  int              `json:"word_count"`
	Generation int              `json:"generation"` // Bumped on re-import
	Status     ManuscriptStatus `json:"status"`

	// ServingGeneration is the generation queries read from. It lags
	// Generation while a re-import is in flight and flips only when the new
	// generation completes, so readers never see a half-built collection.
	// Zero until the first import completes.
	ServingGeneration int `json:"serving_generation"`

	// Chunking configuration used at import time. Persisted so a resumed
	// import re-chunks with the exact same parameters.
	ChunkMaxSize int `json:"chunk_max_size"`
	ChunkOverlap int `json:"chunk_overlap"`

	ChunkCount    int `json:"chunk_count"`    // Total chunks produced by the splitter
	IndexedChunks int `json:"indexed_chunks"` // Contiguous prefix of chunks already embedded and stored

	ImportedAt time.Time `json:"imported_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// CountWords returns the whitespace-separated word count of text
func CountWords(text string) int {
	return len(strings.Fields(text))
}

// Chunk is a bounded contiguous span of manuscript text, the unit of
// retrieval. Offsets are rune positions into the source text.
type Chunk struct {
	Index   int    `json:"index"`
	Text    string `json:"text"`
	Start   int    `json:"start"`
	End     int    `json:"end"`
	Overlap int    `json:"overlap"` // Runes shared with the previous chunk
}

// ChunkRecord is the persisted form of a chunk: its text plus the
// L2-normalized embedding vector. Created once at import time, never
// mutated, deleted only when its manuscript (or generation) is removed.
type ChunkRecord struct {
	Key          string    `badgerhold:"key"` // <manuscript>:<generation>:<index>
	ManuscriptID string    `badgerholdIndex:"ManuscriptID"`
	Generation   int       `json:"generation"`
	Index        int       `json:"index"`
	Text         string    `json:"text"`
	Vector       []float32 `json:"-"` // L2-normalized at insertion time
	CreatedAt    time.Time `json:"created_at"`
}
