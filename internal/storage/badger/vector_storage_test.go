package badger

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/fabula/internal/common"
	"github.com/ternarybob/fabula/internal/models"
)

func newTestDB(t *testing.T) *BadgerDB {
	t.Helper()

	tmpDir := t.TempDir()
	options := badgerhold.DefaultOptions
	options.Dir = tmpDir
	options.ValueDir = tmpDir
	options.Logger = nil

	store, err := badgerhold.Open(options)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return &BadgerDB{store: store, logger: arbor.NewLogger()}
}

func addChunk(t *testing.T, storage *VectorStorage, manID string, gen, index int, text string, vector []float32) {
	t.Helper()
	err := storage.AddChunk(manID, gen, models.Chunk{Index: index, Text: text}, vector)
	require.NoError(t, err)
}

func TestQueryRanksBySimilarity(t *testing.T) {
	db := newTestDB(t)
	storage := NewVectorStorage(db, arbor.NewLogger()).(*VectorStorage)

	// Unit basis vectors make expected scores obvious
	addChunk(t, storage, "man_1", 1, 0, "exact match", []float32{1, 0, 0})
	addChunk(t, storage, "man_1", 1, 1, "orthogonal", []float32{0, 1, 0})
	addChunk(t, storage, "man_1", 1, 2, "partial match", []float32{1, 1, 0})

	results, err := storage.Query("man_1", 1, []float32{1, 0, 0}, 10, -1)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, 0, results[0].Index)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
	assert.Equal(t, 2, results[1].Index)
	assert.InDelta(t, 0.7071, results[1].Score, 1e-3)
	assert.Equal(t, 1, results[2].Index)
	assert.InDelta(t, 0.0, results[2].Score, 1e-6)
}

func TestQueryBreaksTiesByChunkIndex(t *testing.T) {
	db := newTestDB(t)
	storage := NewVectorStorage(db, arbor.NewLogger()).(*VectorStorage)

	// Identical vectors inserted out of order must come back in index order
	addChunk(t, storage, "man_1", 1, 7, "later chunk", []float32{1, 1})
	addChunk(t, storage, "man_1", 1, 2, "earlier chunk", []float32{1, 1})
	addChunk(t, storage, "man_1", 1, 5, "middle chunk", []float32{1, 1})

	results, err := storage.Query("man_1", 1, []float32{1, 1}, 10, 0)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, []int{2, 5, 7}, []int{results[0].Index, results[1].Index, results[2].Index})
}

func TestQueryRespectsKAndMinScore(t *testing.T) {
	db := newTestDB(t)
	storage := NewVectorStorage(db, arbor.NewLogger()).(*VectorStorage)

	addChunk(t, storage, "man_1", 1, 0, "strong", []float32{1, 0})
	addChunk(t, storage, "man_1", 1, 1, "weak", []float32{0, 1})
	addChunk(t, storage, "man_1", 1, 2, "medium", []float32{1, 1})

	results, err := storage.Query("man_1", 1, []float32{1, 0}, 2, 0.5)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 0, results[0].Index)
	assert.Equal(t, 2, results[1].Index)
	for _, r := range results {
		assert.GreaterOrEqual(t, r.Score, 0.5)
	}
}

func TestQueryIsolatesManuscriptsAndGenerations(t *testing.T) {
	db := newTestDB(t)
	storage := NewVectorStorage(db, arbor.NewLogger()).(*VectorStorage)

	addChunk(t, storage, "man_1", 1, 0, "old generation", []float32{1, 0})
	addChunk(t, storage, "man_1", 2, 0, "new generation", []float32{1, 0})
	addChunk(t, storage, "man_2", 1, 0, "other manuscript", []float32{1, 0})

	results, err := storage.Query("man_1", 2, []float32{1, 0}, 10, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "new generation", results[0].Text)
}

func TestQueryEmptyIndexReturnsNoResults(t *testing.T) {
	db := newTestDB(t)
	storage := NewVectorStorage(db, arbor.NewLogger()).(*VectorStorage)

	results, err := storage.Query("man_missing", 1, []float32{1, 0}, 5, 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestQueryDimensionMismatch(t *testing.T) {
	db := newTestDB(t)
	storage := NewVectorStorage(db, arbor.NewLogger()).(*VectorStorage)

	addChunk(t, storage, "man_1", 1, 0, "three dims", []float32{1, 0, 0})

	_, err := storage.Query("man_1", 1, []float32{1, 0}, 5, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dimension mismatch")
}

func TestAddChunkDuplicate(t *testing.T) {
	db := newTestDB(t)
	storage := NewVectorStorage(db, arbor.NewLogger()).(*VectorStorage)

	addChunk(t, storage, "man_1", 1, 0, "first write", []float32{1, 0})

	err := storage.AddChunk("man_1", 1, models.Chunk{Index: 0, Text: "second write"}, []float32{0, 1})
	require.Error(t, err)
	assert.True(t, common.IsDuplicateChunk(err))

	// The original record must be untouched
	results, err := storage.Query("man_1", 1, []float32{1, 0}, 1, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "first write", results[0].Text)
}

func TestAddChunkRejectsEmptyVector(t *testing.T) {
	db := newTestDB(t)
	storage := NewVectorStorage(db, arbor.NewLogger()).(*VectorStorage)

	err := storage.AddChunk("man_1", 1, models.Chunk{Index: 0, Text: "no vector"}, nil)
	require.Error(t, err)
}

func TestAddChunkConcurrent(t *testing.T) {
	db := newTestDB(t)
	storage := NewVectorStorage(db, arbor.NewLogger()).(*VectorStorage)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(index int) {
			defer wg.Done()
			err := storage.AddChunk("man_1", 1, models.Chunk{Index: index, Text: "chunk"}, []float32{1, float32(index)})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	count, err := storage.CountChunks("man_1", 1)
	require.NoError(t, err)
	assert.Equal(t, 20, count)
}

func TestRemoveManuscriptIdempotent(t *testing.T) {
	db := newTestDB(t)
	storage := NewVectorStorage(db, arbor.NewLogger()).(*VectorStorage)

	addChunk(t, storage, "man_1", 1, 0, "chunk", []float32{1, 0})
	addChunk(t, storage, "man_1", 2, 0, "chunk", []float32{1, 0})

	require.NoError(t, storage.RemoveManuscript("man_1"))

	count, err := storage.CountChunks("man_1", 1)
	require.NoError(t, err)
	assert.Zero(t, count)
	count, err = storage.CountChunks("man_1", 2)
	require.NoError(t, err)
	assert.Zero(t, count)

	// Second removal of an absent manuscript is a no-op
	require.NoError(t, storage.RemoveManuscript("man_1"))
	require.NoError(t, storage.RemoveManuscript("man_never_existed"))
}

func TestRemoveGeneration(t *testing.T) {
	db := newTestDB(t)
	storage := NewVectorStorage(db, arbor.NewLogger()).(*VectorStorage)

	addChunk(t, storage, "man_1", 1, 0, "old", []float32{1, 0})
	addChunk(t, storage, "man_1", 2, 0, "new", []float32{1, 0})

	require.NoError(t, storage.RemoveGeneration("man_1", 1))

	count, err := storage.CountChunks("man_1", 1)
	require.NoError(t, err)
	assert.Zero(t, count)
	count, err = storage.CountChunks("man_1", 2)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestChunksPersistAcrossReopen(t *testing.T) {
	tmpDir := t.TempDir()
	logger := arbor.NewLogger()

	options := badgerhold.DefaultOptions
	options.Dir = tmpDir
	options.ValueDir = tmpDir
	options.Logger = nil

	store, err := badgerhold.Open(options)
	require.NoError(t, err)

	storage := NewVectorStorage(&BadgerDB{store: store, logger: logger}, logger).(*VectorStorage)
	addChunk(t, storage, "man_1", 1, 0, "durable chunk", []float32{1, 0})
	require.NoError(t, store.Close())

	store, err = badgerhold.Open(options)
	require.NoError(t, err)
	defer store.Close()

	reopened := NewVectorStorage(&BadgerDB{store: store, logger: logger}, logger).(*VectorStorage)
	results, err := reopened.Query("man_1", 1, []float32{1, 0}, 1, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "durable chunk", results[0].Text)
}
