package characters

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/fabula/internal/models"
)

// harwickChapter mentions two characters often enough to qualify and some
// capitalized non-names that must not be mistaken for them.
const harwickChapter = `Elena walked to the harbour before dawn. "It was never yours," said Elena. Elena turned toward the lighthouse on the cliff. The tide had taken the last of the boats. Marcus nodded at the empty chair by the fire. Marcus looked at the letters for a long time. "Leave it be," said Marcus. Suddenly the wind dropped and the morning post brought nothing but rain.`

func saveManuscriptWithText(t *testing.T, svc *Service, id, text string) {
	t.Helper()
	require.NoError(t, svc.storage.ManuscriptStorage().SaveManuscript(&models.Manuscript{
		ID:         id,
		Title:      "Harwick",
		Text:       text,
		Generation: 1,
		Status:     models.ManuscriptStatusComplete,
	}))
}

func TestExtractFromManuscript(t *testing.T) {
	analyst := &stubAnalyst{
		response: "Here is the analysis:\n```json\n{\"role\": \"keeper of the locket\", \"traits\": \"curious, guarded\"}\n```",
	}
	svc, _, _ := newTestCharactersWithAnalyst(t, analyst)
	saveManuscriptWithText(t, svc, "man_harwick", harwickChapter)

	created, err := svc.ExtractFromManuscript(context.Background(), "man_harwick")
	require.NoError(t, err)
	require.Len(t, created, 2)

	// Most-mentioned first, ties broken by name
	assert.Equal(t, "Elena", created[0].Name)
	assert.Equal(t, "Marcus", created[1].Name)
	for _, c := range created {
		assert.Equal(t, "keeper of the locket", c.Role)
		assert.Equal(t, "curious, guarded", c.Traits)
		assert.NotEmpty(t, c.ID)
	}
	assert.Equal(t, 2, analyst.calls)

	stored, err := svc.List(context.Background(), "man_harwick")
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestExtractSkipsExistingCharacters(t *testing.T) {
	analyst := &stubAnalyst{response: `{"role": "fisherman", "traits": "quiet"}`}
	svc, _, _ := newTestCharactersWithAnalyst(t, analyst)
	saveManuscriptWithText(t, svc, "man_harwick", harwickChapter)

	_, err := svc.Create(context.Background(), &models.CharacterProfile{
		Name:         "Elena",
		Role:         "protagonist",
		ManuscriptID: "man_harwick",
	})
	require.NoError(t, err)

	created, err := svc.ExtractFromManuscript(context.Background(), "man_harwick")
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, "Marcus", created[0].Name)

	// The manual Elena profile is untouched
	stored, err := svc.List(context.Background(), "man_harwick")
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestExtractFallsBackWhenAnalysisFails(t *testing.T) {
	analyst := &stubAnalyst{err: fmt.Errorf("completion backend down")}
	svc, _, _ := newTestCharactersWithAnalyst(t, analyst)
	saveManuscriptWithText(t, svc, "man_harwick", harwickChapter)

	created, err := svc.ExtractFromManuscript(context.Background(), "man_harwick")
	require.NoError(t, err)
	require.Len(t, created, 2)

	// Pattern-derived profiles stand in for the failed analysis
	for _, c := range created {
		assert.Equal(t, "character from the manuscript", c.Role)
		assert.Equal(t, "distinct personality", c.Traits)
	}
}

func TestExtractMalformedAnalysisFallsBack(t *testing.T) {
	analyst := &stubAnalyst{response: "I cannot analyze this character."}
	svc, _, _ := newTestCharactersWithAnalyst(t, analyst)
	saveManuscriptWithText(t, svc, "man_harwick", harwickChapter)

	created, err := svc.ExtractFromManuscript(context.Background(), "man_harwick")
	require.NoError(t, err)
	require.Len(t, created, 2)
	assert.Equal(t, "character from the manuscript", created[0].Role)
}

func TestExtractRequiresStoredText(t *testing.T) {
	svc, manID := newTestCharacters(t)

	// The seeded manuscript carries no text
	_, err := svc.ExtractFromManuscript(context.Background(), manID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no stored text")
}

func TestDetectNamesFiltersCommonWords(t *testing.T) {
	e := NewExtractor(&stubAnalyst{}, arbor.NewLogger())

	names := e.detectNames(harwickChapter)
	require.Len(t, names, 2)
	assert.NotContains(t, names, "The")
	assert.NotContains(t, names, "Suddenly")
}
