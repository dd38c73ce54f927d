package chat

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/fabula/internal/models"
)

func testCharacter() *models.CharacterProfile {
	return &models.CharacterProfile{
		ID:           "char_test",
		Name:         "Elena",
		Role:         "protagonist",
		Traits:       "curious, guarded",
		ManuscriptID: "man_test",
	}
}

func turnsOf(pairs ...string) []models.ConversationTurn {
	turns := make([]models.ConversationTurn, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		turns = append(turns, models.ConversationTurn{
			UserMessage:       pairs[i],
			CharacterResponse: pairs[i+1],
			Timestamp:         time.Now(),
		})
	}
	return turns
}

func TestAssembleOrdering(t *testing.T) {
	a := NewAssembler(5, 0, arbor.NewLogger())

	c := testCharacter()
	c.History = turnsOf("how did you find it?", "in the writing desk")

	result := &models.RetrievalResult{
		Passages: []models.ScoredChunk{
			{Index: 2, Text: "The locket held a portrait", Score: 0.9},
			{Index: 7, Text: "The desk drawer was shallow", Score: 0.8},
		},
	}

	assembled := a.Assemble(c, result, "what was inside the locket?")

	assert.Equal(t, CharacterSystemPrompt, assembled.System)

	// Sections appear in fixed order: biography, context, history, question
	prompt := assembled.Prompt
	bio := strings.Index(prompt, "### CHARACTER BIOGRAPHY")
	ctxIdx := strings.Index(prompt, "### RELEVANT MANUSCRIPT CONTEXT")
	hist := strings.Index(prompt, "### CONVERSATION HISTORY")
	question := strings.Index(prompt, "### AUTHOR'S QUESTION")
	require.True(t, bio >= 0 && ctxIdx > bio && hist > ctxIdx && question > hist)

	// Passages keep their similarity order
	assert.Less(t, strings.Index(prompt, "portrait"), strings.Index(prompt, "drawer"))

	assert.Contains(t, prompt, "Name: Elena")
	assert.Contains(t, prompt, "Author: how did you find it?")
	assert.Contains(t, prompt, "Elena: in the writing desk")
	assert.Contains(t, prompt, "what was inside the locket?")
}

func TestAssembleEmptyRetrievalStillValidPrompt(t *testing.T) {
	a := NewAssembler(5, 0, arbor.NewLogger())

	assembled := a.Assemble(testCharacter(), &models.RetrievalResult{}, "who are you?")

	assert.Contains(t, assembled.Prompt, noContextPlaceholder)
	assert.Contains(t, assembled.Prompt, noHistoryPlaceholder)
	assert.Contains(t, assembled.Prompt, "Name: Elena")
	assert.Contains(t, assembled.Prompt, "who are you?")
}

func TestAssembleBoundsHistoryTurns(t *testing.T) {
	a := NewAssembler(2, 0, arbor.NewLogger())

	c := testCharacter()
	c.History = turnsOf(
		"first question", "first answer",
		"second question", "second answer",
		"third question", "third answer",
	)

	assembled := a.Assemble(c, &models.RetrievalResult{}, "latest question")

	require.Len(t, assembled.Turns, 2)
	assert.NotContains(t, assembled.Prompt, "first question")
	assert.Contains(t, assembled.Prompt, "second question")
	assert.Contains(t, assembled.Prompt, "third question")
}

func TestAssembleTruncationDropsOldestTurnsFirst(t *testing.T) {
	c := testCharacter()
	c.History = turnsOf(
		"oldest question with a reasonably long body to weigh some tokens", "oldest answer with a reasonably long body to weigh some tokens",
		"newest question", "newest answer",
	)

	passages := []models.ScoredChunk{
		{Index: 0, Text: "The strongest passage about the locket and the desk", Score: 0.95},
		{Index: 1, Text: "The weakest passage about harbour weather", Score: 0.71},
	}

	// Find the budget that the untruncated prompt needs, then shrink it
	// just enough that exactly one element must go
	unbounded := NewAssembler(5, 0, arbor.NewLogger())
	full := unbounded.Assemble(c, &models.RetrievalResult{Passages: passages}, "the question")

	a := NewAssembler(5, full.Tokens-1, arbor.NewLogger())
	assembled := a.Assemble(c, &models.RetrievalResult{Passages: passages}, "the question")

	// The oldest turn goes before any passage does
	require.Len(t, assembled.Passages, 2)
	require.Len(t, assembled.Turns, 1)
	assert.Equal(t, "newest question", assembled.Turns[0].UserMessage)
	assert.LessOrEqual(t, assembled.Tokens, full.Tokens-1)
}

func TestAssembleTruncationDropsWeakestPassagesAfterTurns(t *testing.T) {
	c := testCharacter()

	passages := []models.ScoredChunk{
		{Index: 0, Text: "The strongest passage about the locket and the desk drawer where it lay", Score: 0.95},
		{Index: 1, Text: "The weakest passage about harbour weather and the tide tables", Score: 0.71},
	}

	unbounded := NewAssembler(5, 0, arbor.NewLogger())
	full := unbounded.Assemble(c, &models.RetrievalResult{Passages: passages}, "the question")

	a := NewAssembler(5, full.Tokens-1, arbor.NewLogger())
	assembled := a.Assemble(c, &models.RetrievalResult{Passages: passages}, "the question")

	// No history to drop, so the weakest passage goes; the strongest stays
	require.Len(t, assembled.Passages, 1)
	assert.Equal(t, 0, assembled.Passages[0].Index)
}

func TestAssembleNeverDropsBiographyOrQuestion(t *testing.T) {
	c := testCharacter()
	c.History = turnsOf("q", "a")

	passages := []models.ScoredChunk{{Index: 0, Text: "a passage", Score: 0.9}}

	// A budget far below anything achievable
	a := NewAssembler(5, 1, arbor.NewLogger())
	assembled := a.Assemble(c, &models.RetrievalResult{Passages: passages}, "the essential question")

	assert.Empty(t, assembled.Turns)
	assert.Empty(t, assembled.Passages)
	assert.Contains(t, assembled.Prompt, "Name: Elena")
	assert.Contains(t, assembled.Prompt, "the essential question")
}

func TestAssembleSystemPromptOverride(t *testing.T) {
	a := NewAssembler(5, 0, arbor.NewLogger()).WithSystemPrompt("Answer as the character would.")

	assembled := a.Assemble(testCharacter(), &models.RetrievalResult{}, "who are you?")
	assert.Equal(t, "Answer as the character would.", assembled.System)

	// Blank override keeps the default
	b := NewAssembler(5, 0, arbor.NewLogger()).WithSystemPrompt("  ")
	assembled = b.Assemble(testCharacter(), &models.RetrievalResult{}, "who are you?")
	assert.Equal(t, CharacterSystemPrompt, assembled.System)
}
