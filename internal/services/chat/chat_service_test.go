package chat

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/fabula/internal/common"
	"github.com/ternarybob/fabula/internal/interfaces"
	"github.com/ternarybob/fabula/internal/models"
)

type stubCharacters struct {
	character *models.CharacterProfile
	recorded  []models.ConversationTurn
}

func (s *stubCharacters) Create(ctx context.Context, c *models.CharacterProfile) (*models.CharacterProfile, error) {
	return c, nil
}

func (s *stubCharacters) Get(ctx context.Context, id string) (*models.CharacterProfile, error) {
	if s.character == nil || s.character.ID != id {
		return nil, fmt.Errorf("%w: %s", common.ErrCharacterNotFound, id)
	}
	return s.character, nil
}

func (s *stubCharacters) List(ctx context.Context, manuscriptID string) ([]*models.CharacterProfile, error) {
	return nil, nil
}

func (s *stubCharacters) Delete(ctx context.Context, id string) error { return nil }

func (s *stubCharacters) ExtractFromManuscript(ctx context.Context, manuscriptID string) ([]*models.CharacterProfile, error) {
	return nil, nil
}

func (s *stubCharacters) RecordTurn(ctx context.Context, id string, turn models.ConversationTurn) error {
	s.recorded = append(s.recorded, turn)
	return nil
}

type stubRetrieval struct {
	lastQuery string
	passages  []models.ScoredChunk
}

func (s *stubRetrieval) Retrieve(ctx context.Context, manuscriptID, query string, k int, minScore float64) (*models.RetrievalResult, error) {
	s.lastQuery = query
	return &models.RetrievalResult{
		Query:        query,
		ManuscriptID: manuscriptID,
		Passages:     s.passages,
	}, nil
}

type stubCompleter struct {
	response     string
	failuresLeft int
	failWith     error
	calls        int
	lastRequest  *interfaces.CompletionRequest
}

func (s *stubCompleter) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1}, nil
}

func (s *stubCompleter) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, nil
}

func (s *stubCompleter) Complete(ctx context.Context, req *interfaces.CompletionRequest) (string, error) {
	s.calls++
	s.lastRequest = req
	if s.failuresLeft > 0 {
		s.failuresLeft--
		return "", s.failWith
	}
	return s.response, nil
}

func (s *stubCompleter) HealthCheck(ctx context.Context) error { return nil }
func (s *stubCompleter) ModelName() string                     { return "stub-model" }
func (s *stubCompleter) GetMode() interfaces.LLMMode           { return interfaces.LLMModeOffline }
func (s *stubCompleter) Close() error                          { return nil }

func newTestChat(t *testing.T) (*Service, *stubCharacters, *stubRetrieval, *stubCompleter) {
	t.Helper()

	characters := &stubCharacters{character: testCharacter()}
	retrieval := &stubRetrieval{
		passages: []models.ScoredChunk{
			{Index: 3, Text: "The locket held a portrait of a woman", Score: 0.88},
		},
	}
	completer := &stubCompleter{response: "  I found it in my grandmother's desk.  "}

	cfg := common.NewDefaultConfig()
	svc := NewService(characters, retrieval, completer, cfg, arbor.NewLogger())
	return svc, characters, retrieval, completer
}

func TestChatTurn(t *testing.T) {
	svc, characters, retrieval, completer := newTestChat(t)

	resp, err := svc.Chat(context.Background(), &interfaces.ChatRequest{
		CharacterID: "char_test",
		Message:     "where did you find the locket?",
	})
	require.NoError(t, err)

	assert.Equal(t, "I found it in my grandmother's desk.", resp.Message)
	assert.Equal(t, "stub-model", resp.Model)
	assert.Equal(t, interfaces.LLMModeOffline, resp.Mode)
	require.Len(t, resp.Passages, 1)

	// Retrieval query carries the character name for sharper matches
	assert.Equal(t, "where did you find the locket? Elena", retrieval.lastQuery)

	// The prompt reached the backend with both channels populated
	require.NotNil(t, completer.lastRequest)
	assert.Equal(t, CharacterSystemPrompt, completer.lastRequest.System)
	assert.Contains(t, completer.lastRequest.Prompt, "The locket held a portrait")

	// The turn was recorded
	require.Len(t, characters.recorded, 1)
	assert.Equal(t, "where did you find the locket?", characters.recorded[0].UserMessage)
	assert.Equal(t, "I found it in my grandmother's desk.", characters.recorded[0].CharacterResponse)
}

func TestChatEmptyMessageRejected(t *testing.T) {
	svc, _, _, completer := newTestChat(t)

	_, err := svc.Chat(context.Background(), &interfaces.ChatRequest{
		CharacterID: "char_test",
		Message:     "   ",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrInvalidQuery)
	assert.Zero(t, completer.calls)
}

func TestChatUnknownCharacter(t *testing.T) {
	svc, _, _, _ := newTestChat(t)

	_, err := svc.Chat(context.Background(), &interfaces.ChatRequest{
		CharacterID: "char_missing",
		Message:     "hello?",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrCharacterNotFound)
}

func TestChatEmptyRetrievalStillAnswers(t *testing.T) {
	svc, _, retrieval, completer := newTestChat(t)
	retrieval.passages = nil

	resp, err := svc.Chat(context.Background(), &interfaces.ChatRequest{
		CharacterID: "char_test",
		Message:     "who are you?",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Message)
	assert.Empty(t, resp.Passages)
	assert.Contains(t, completer.lastRequest.Prompt, noContextPlaceholder)
}

func TestChatRetriesTransientCompletionFailure(t *testing.T) {
	svc, _, _, completer := newTestChat(t)
	completer.failuresLeft = 2
	completer.failWith = fmt.Errorf("%w: connection refused", common.ErrCompletionUnavailable)

	resp, err := svc.Chat(context.Background(), &interfaces.ChatRequest{
		CharacterID: "char_test",
		Message:     "are you still there?",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Message)
	assert.Equal(t, 3, completer.calls)
}

func TestChatMalformedCompletionNotRetried(t *testing.T) {
	svc, _, _, completer := newTestChat(t)
	completer.failuresLeft = 10
	completer.failWith = fmt.Errorf("completion response contained no text")

	_, err := svc.Chat(context.Background(), &interfaces.ChatRequest{
		CharacterID: "char_test",
		Message:     "speak to me",
	})
	require.Error(t, err)
	assert.Equal(t, 1, completer.calls)
}
