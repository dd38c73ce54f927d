package retrieval

import (
	"context"
	"hash/fnv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/fabula/internal/common"
	"github.com/ternarybob/fabula/internal/interfaces"
	"github.com/ternarybob/fabula/internal/models"
	"github.com/ternarybob/fabula/internal/services/chunker"
	"github.com/ternarybob/fabula/internal/services/manuscripts"
	"github.com/ternarybob/fabula/internal/storage/badger"
)

type wordEmbedder struct{}

const dims = 64

func (wordEmbedder) vector(text string) []float32 {
	vec := make([]float32, dims)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(strings.Trim(word, ".,;:!?\"'")))
		vec[h.Sum32()%dims]++
	}
	return vec
}

func (e wordEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	return e.vector(text), nil
}

func (e wordEmbedder) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		out = append(out, e.vector(t))
	}
	return out, nil
}

func (e wordEmbedder) GenerateQueryEmbedding(ctx context.Context, query string) ([]float32, error) {
	return e.vector(query), nil
}

func (wordEmbedder) Dimension() int                       { return dims }
func (wordEmbedder) IsAvailable(ctx context.Context) bool { return true }

func newTestRetrieval(t *testing.T) (*Service, interfaces.StorageManager) {
	t.Helper()

	logger := arbor.NewLogger()
	storage, err := badger.NewManager(logger, &common.BadgerConfig{Path: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { storage.Close() })

	cfg := common.NewDefaultConfig()
	return NewService(storage, wordEmbedder{}, cfg, logger), storage
}

func indexPassages(t *testing.T, storage interfaces.StorageManager, manID string, passages []string) {
	t.Helper()

	m := &models.Manuscript{
		ID:         manID,
		Title:      "Test Manuscript",
		Generation: 1,
		Status:     models.ManuscriptStatusComplete,
		ChunkCount: len(passages),
	}
	require.NoError(t, storage.ManuscriptStorage().SaveManuscript(m))

	e := wordEmbedder{}
	for i, p := range passages {
		err := storage.VectorStorage().AddChunk(manID, 1, models.Chunk{Index: i, Text: p}, e.vector(p))
		require.NoError(t, err)
	}
}

func TestRetrieveRanksRelevantPassagesFirst(t *testing.T) {
	svc, storage := newTestRetrieval(t)
	indexPassages(t, storage, "man_1", []string{
		"The captain opened the silver locket each night at dusk",
		"Rain swept across the empty harbour for three days",
		"The locket held a portrait of a woman nobody could name",
	})

	result, err := svc.Retrieve(context.Background(), "man_1", "who is in the silver locket portrait", 3, 0.01)
	require.NoError(t, err)
	require.False(t, result.Empty())

	// Both locket passages should outrank the harbour weather
	for i := 1; i < len(result.Passages); i++ {
		assert.GreaterOrEqual(t, result.Passages[i-1].Score, result.Passages[i].Score)
	}
	assert.Contains(t, result.Passages[0].Text, "locket")
}

func TestRetrieveRejectsEmptyQuery(t *testing.T) {
	svc, _ := newTestRetrieval(t)

	_, err := svc.Retrieve(context.Background(), "man_1", "   \n\t ", 5, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrInvalidQuery)
}

func TestRetrieveUnknownManuscriptReturnsEmptyResult(t *testing.T) {
	svc, _ := newTestRetrieval(t)

	result, err := svc.Retrieve(context.Background(), "man_missing", "any question", 5, 0)
	require.NoError(t, err)
	assert.True(t, result.Empty())
}

func TestRetrieveHighThresholdYieldsEmptyResult(t *testing.T) {
	svc, storage := newTestRetrieval(t)
	indexPassages(t, storage, "man_1", []string{
		"The captain opened the silver locket each night at dusk",
	})

	result, err := svc.Retrieve(context.Background(), "man_1", "quantum chromodynamics lecture notes", 5, 0.99)
	require.NoError(t, err)
	assert.True(t, result.Empty(), "nothing above threshold must be an empty result, not an error")
}

func TestRetrieveAppliesConfiguredDefaults(t *testing.T) {
	svc, storage := newTestRetrieval(t)

	passages := make([]string, 10)
	for i := range passages {
		passages[i] = "The locket gleamed under the lamp on the writing desk"
	}
	indexPassages(t, storage, "man_1", passages)

	// k=0 falls back to retrieval.max_chunks (5 by default)
	result, err := svc.Retrieve(context.Background(), "man_1", "the locket on the desk", 0, 0.01)
	require.NoError(t, err)
	assert.Len(t, result.Passages, common.NewDefaultConfig().Retrieval.MaxChunks)
}

func TestRetrieveQueriesServingGenerationOnly(t *testing.T) {
	svc, storage := newTestRetrieval(t)
	indexPassages(t, storage, "man_1", []string{
		"The locket gleamed under the lamp",
	})

	// Stale records from an older, removed-in-name-only generation
	e := wordEmbedder{}
	stale := "The locket gleamed under the lamp"
	err := storage.VectorStorage().AddChunk("man_1", 99, models.Chunk{Index: 0, Text: stale}, e.vector(stale))
	require.NoError(t, err)

	result, err := svc.Retrieve(context.Background(), "man_1", "the gleaming locket", 10, 0.01)
	require.NoError(t, err)
	assert.Len(t, result.Passages, 1)
}

// silverLocketNovel builds a manuscript of roughly 7,000 runes. Short
// uniform sentences keep the splitter's cut positions, and therefore the
// chunk count, stable.
func silverLocketNovel() string {
	sentences := []string{
		"Lady Seraphina arrived at Harwick on the last coach of autumn",
		"Lady Seraphina wore the silver locket at her grandmother's wake",
		"The whole village said Lady Seraphina favoured the old captain",
		"Nobody asked Lady Seraphina why the portrait went unnamed",
		"Elena found the silver locket in her grandmother's writing desk",
		"The clasp still opened cleanly on a portrait nobody could name",
		"Captain Merriweather carried the locket through two winters at sea",
		"Salt had worked its way into the engraving along the back",
		"Old stories told of a wreck on the rocks below the lighthouse",
		"A single sailor came ashore alive carrying a small keepsake",
		"Elena spread the letters across the long table of the inn",
		"She matched the dates against parish records the vicar unlocked",
	}

	var b strings.Builder
	for b.Len() < 6900 {
		for _, s := range sentences {
			b.WriteString(s)
			b.WriteString(". ")
			if b.Len() >= 6900 {
				break
			}
		}
	}
	return b.String()
}

func TestRetrieveFromImportedManuscript(t *testing.T) {
	logger := arbor.NewLogger()
	storage, err := badger.NewManager(logger, &common.BadgerConfig{Path: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { storage.Close() })

	cfg := common.NewDefaultConfig()
	importer := manuscripts.NewService(storage, wordEmbedder{}, chunker.NewService(), cfg, logger)
	svc := NewService(storage, wordEmbedder{}, cfg, logger)

	m, err := importer.Import(context.Background(), &interfaces.ImportRequest{
		Title:   "The Silver Locket",
		Text:    silverLocketNovel(),
		MaxSize: 500,
		Overlap: 50,
	})
	require.NoError(t, err)
	require.Equal(t, models.ManuscriptStatusComplete, m.Status)
	require.GreaterOrEqual(t, m.ChunkCount, 15)
	require.LessOrEqual(t, m.ChunkCount, 20)

	result, err := svc.Retrieve(context.Background(), m.ID, "Who is Lady Seraphina?", 3, 0.01)
	require.NoError(t, err)
	require.False(t, result.Empty())
	assert.Contains(t, result.Passages[0].Text, "Seraphina")
}

// cancellingEmbedder cancels the surrounding context once it has embedded
// a set number of texts, simulating a re-import interrupted mid-way.
type cancellingEmbedder struct {
	wordEmbedder
	cancel   context.CancelFunc
	after    int
	embedded int
}

func (e *cancellingEmbedder) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	out, err := e.wordEmbedder.GenerateEmbeddings(ctx, texts)
	e.embedded += len(texts)
	if e.cancel != nil && e.embedded >= e.after {
		e.cancel()
	}
	return out, err
}

func TestRetrieveServesOldGenerationDuringReimport(t *testing.T) {
	logger := arbor.NewLogger()
	storage, err := badger.NewManager(logger, &common.BadgerConfig{Path: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { storage.Close() })

	cfg := common.NewDefaultConfig()
	cfg.Chunking.BatchSize = 4
	embedder := &cancellingEmbedder{}
	importer := manuscripts.NewService(storage, embedder, chunker.NewService(), cfg, logger)
	svc := NewService(storage, wordEmbedder{}, cfg, logger)

	m, err := importer.Import(context.Background(), &interfaces.ImportRequest{
		Title:   "The Silver Locket",
		Text:    silverLocketNovel(),
		MaxSize: 500,
		Overlap: 50,
	})
	require.NoError(t, err)
	require.Equal(t, models.ManuscriptStatusComplete, m.Status)

	baseline, err := svc.Retrieve(context.Background(), m.ID, "Who is Lady Seraphina?", 5, 0.01)
	require.NoError(t, err)
	require.Len(t, baseline.Passages, 5)

	// Re-import the revised text, interrupted after one committed batch of
	// the new generation
	reCtx, cancel := context.WithCancel(context.Background())
	embedder.cancel = cancel
	embedder.after = embedder.embedded + 4
	partial, err := importer.Import(reCtx, &interfaces.ImportRequest{
		ManuscriptID: m.ID,
		Title:        "The Silver Locket, Revised",
		Text:         silverLocketNovel() + "\n\nA new closing chapter.",
		MaxSize:      500,
		Overlap:      50,
	})
	require.NoError(t, err)
	require.Equal(t, models.ManuscriptStatusPartial, partial.Status)
	require.Less(t, partial.IndexedChunks, partial.ChunkCount)

	// Queries keep answering from the complete first generation, not the
	// half-built second one
	during, err := svc.Retrieve(context.Background(), m.ID, "Who is Lady Seraphina?", 5, 0.01)
	require.NoError(t, err)
	require.Len(t, during.Passages, 5)
	assert.Equal(t, baseline.Passages[0].Text, during.Passages[0].Text)

	// Once the second generation completes it takes over
	embedder.cancel = nil
	resumed, err := importer.Resume(context.Background(), m.ID)
	require.NoError(t, err)
	require.Equal(t, models.ManuscriptStatusComplete, resumed.Status)

	after, err := svc.Retrieve(context.Background(), m.ID, "Who is Lady Seraphina?", 5, 0.01)
	require.NoError(t, err)
	assert.Len(t, after.Passages, 5)
}
