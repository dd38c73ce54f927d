// -----------------------------------------------------------------------
// Last Modified: Saturday, 29th August 2026 4:25:00 pm
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package badger

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/fabula/internal/common"
	"github.com/ternarybob/fabula/internal/interfaces"
	"github.com/ternarybob/fabula/internal/models"
)

// VectorStorage implements the VectorStorage interface for Badger.
// Vectors are L2-normalized at write time so cosine similarity reduces to
// a dot product at query time. Search is a brute-force scan over the
// manuscript's records, which is fine at manuscript scale (hundreds to a
// few thousand chunks).
type VectorStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewVectorStorage creates a new VectorStorage instance
func NewVectorStorage(db *BadgerDB, logger arbor.ILogger) interfaces.VectorStorage {
	return &VectorStorage{
		db:     db,
		logger: logger,
	}
}

func chunkKey(manuscriptID string, generation, index int) string {
	return fmt.Sprintf("%s:%d:%06d", manuscriptID, generation, index)
}

// AddChunk inserts one chunk record. The vector is normalized before the
// write; a record that already exists for (manuscript, generation, index)
// yields a DuplicateChunkError. The store opens with SyncWrites, so the
// record is synced to disk before Insert returns.
func (s *VectorStorage) AddChunk(manuscriptID string, generation int, chunk models.Chunk, vector []float32) error {
	if manuscriptID == "" {
		return fmt.Errorf("manuscript ID is required")
	}
	if len(vector) == 0 {
		return fmt.Errorf("cannot store an empty vector for chunk %d", chunk.Index)
	}

	record := &models.ChunkRecord{
		Key:          chunkKey(manuscriptID, generation, chunk.Index),
		ManuscriptID: manuscriptID,
		Generation:   generation,
		Index:        chunk.Index,
		Text:         chunk.Text,
		Vector:       normalize(vector),
		CreatedAt:    time.Now(),
	}

	if err := s.db.Store().Insert(record.Key, record); err != nil {
		if err == badgerhold.ErrKeyExists {
			return &common.DuplicateChunkError{
				ManuscriptID: manuscriptID,
				Generation:   generation,
				Index:        chunk.Index,
			}
		}
		return fmt.Errorf("failed to store chunk %d: %w", chunk.Index, err)
	}
	return nil
}

// Query scans the manuscript generation and returns up to k chunks ranked
// by descending similarity, ties broken by ascending chunk index. Scores
// below minScore are excluded.
func (s *VectorStorage) Query(manuscriptID string, generation int, vector []float32, k int, minScore float64) ([]models.ScoredChunk, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("query vector is empty")
	}
	if k <= 0 {
		return nil, nil
	}

	query := normalize(vector)

	var records []models.ChunkRecord
	err := s.db.Store().Find(&records,
		badgerhold.Where("ManuscriptID").Eq(manuscriptID).Index("ManuscriptID").
			And("Generation").Eq(generation))
	if err != nil {
		return nil, fmt.Errorf("failed to scan chunks: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	scored := make([]models.ScoredChunk, 0, len(records))
	for _, rec := range records {
		if len(rec.Vector) != len(query) {
			return nil, fmt.Errorf("dimension mismatch: stored vector has %d dimensions, query has %d", len(rec.Vector), len(query))
		}
		score := dot(rec.Vector, query)
		if score < minScore {
			continue
		}
		scored = append(scored, models.ScoredChunk{
			Index: rec.Index,
			Text:  rec.Text,
			Score: score,
		})
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Index < scored[j].Index
	})

	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

// RemoveManuscript deletes all records for the manuscript across all
// generations. Removing an absent manuscript is a no-op.
func (s *VectorStorage) RemoveManuscript(manuscriptID string) error {
	err := s.db.Store().DeleteMatching(&models.ChunkRecord{},
		badgerhold.Where("ManuscriptID").Eq(manuscriptID).Index("ManuscriptID"))
	if err != nil && err != badgerhold.ErrNotFound {
		return fmt.Errorf("failed to remove chunks for manuscript %s: %w", manuscriptID, err)
	}
	return nil
}

// RemoveGeneration deletes the records of a single superseded generation
func (s *VectorStorage) RemoveGeneration(manuscriptID string, generation int) error {
	err := s.db.Store().DeleteMatching(&models.ChunkRecord{},
		badgerhold.Where("ManuscriptID").Eq(manuscriptID).Index("ManuscriptID").
			And("Generation").Eq(generation))
	if err != nil && err != badgerhold.ErrNotFound {
		return fmt.Errorf("failed to remove generation %d of manuscript %s: %w", generation, manuscriptID, err)
	}
	return nil
}

// CountChunks returns the number of stored records for a generation
func (s *VectorStorage) CountChunks(manuscriptID string, generation int) (int, error) {
	count, err := s.db.Store().Count(&models.ChunkRecord{},
		badgerhold.Where("ManuscriptID").Eq(manuscriptID).Index("ManuscriptID").
			And("Generation").Eq(generation))
	if err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return int(count), nil
}

// normalize returns a unit-length copy of v. A zero vector is returned
// unchanged; its similarity against anything is zero.
func normalize(v []float32) []float32 {
	var sumSquares float64
	for _, x := range v {
		sumSquares += float64(x) * float64(x)
	}
	if sumSquares == 0 {
		out := make([]float32, len(v))
		copy(out, v)
		return out
	}

	norm := math.Sqrt(sumSquares)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
