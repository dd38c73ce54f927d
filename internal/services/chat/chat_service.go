// -----------------------------------------------------------------------
// Last Modified: Saturday, 29th August 2026 5:05:00 pm
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/fabula/internal/common"
	"github.com/ternarybob/fabula/internal/interfaces"
	"github.com/ternarybob/fabula/internal/models"
)

const (
	completionAttempts = 3
	completionBackoff  = time.Second
)

// Service implements ChatService: the per-turn pipeline from author
// question to in-character answer.
type Service struct {
	characters interfaces.CharacterService
	retrieval  interfaces.RetrievalService
	llm        interfaces.LLMService
	assembler  *Assembler
	config     *common.Config
	logger     arbor.ILogger
}

// NewService creates a new chat service
func NewService(
	characters interfaces.CharacterService,
	retrieval interfaces.RetrievalService,
	llm interfaces.LLMService,
	config *common.Config,
	logger arbor.ILogger,
) *Service {
	return &Service{
		characters: characters,
		retrieval:  retrieval,
		llm:        llm,
		assembler:  NewAssembler(config.Chat.HistoryTurns, config.Chat.ContextBudget, logger).WithSystemPrompt(config.Chat.PromptTemplate),
		config:     config,
		logger:     logger,
	}
}

// Chat runs one conversation turn: retrieve manuscript passages for the
// question, assemble the character prompt, generate the response, and
// record the turn. An empty retrieval result still produces a valid
// prompt; the character answers from its biography alone.
func (s *Service) Chat(ctx context.Context, req *interfaces.ChatRequest) (*interfaces.ChatResponse, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, fmt.Errorf("%w: message is empty", common.ErrInvalidQuery)
	}

	character, err := s.characters.Get(ctx, req.CharacterID)
	if err != nil {
		return nil, err
	}

	// The character name sharpens retrieval toward scenes the character
	// appears in
	query := req.Message + " " + character.Name
	result, err := s.retrieval.Retrieve(ctx, character.ManuscriptID, query, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("context retrieval failed: %w", err)
	}

	assembled := s.assembler.Assemble(character, result, req.Message)

	s.logger.Debug().
		Str("character_id", character.ID).
		Str("manuscript_id", character.ManuscriptID).
		Int("passages", len(assembled.Passages)).
		Int("turns", len(assembled.Turns)).
		Int("tokens", assembled.Tokens).
		Msg("Prompt assembled for chat turn")

	response, err := s.complete(ctx, &interfaces.CompletionRequest{
		System: assembled.System,
		Prompt: assembled.Prompt,
	})
	if err != nil {
		return nil, err
	}
	response = strings.TrimSpace(response)

	if err := s.characters.RecordTurn(ctx, character.ID, models.ConversationTurn{
		UserMessage:       req.Message,
		CharacterResponse: response,
		Timestamp:         time.Now(),
	}); err != nil {
		// The answer is already generated; losing one history entry is
		// preferable to failing the turn
		s.logger.Warn().Err(err).Str("character_id", character.ID).Msg("Failed to record conversation turn")
	}

	return &interfaces.ChatResponse{
		Message:  response,
		Passages: assembled.Passages,
		Model:    s.llm.ModelName(),
		Mode:     s.llm.GetMode(),
	}, nil
}

// complete calls the completion backend, retrying transient
// unavailability a bounded number of times. Malformed responses are not
// retried; the backend answered, it just answered garbage.
func (s *Service) complete(ctx context.Context, req *interfaces.CompletionRequest) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= completionAttempts; attempt++ {
		response, err := s.llm.Complete(ctx, req)
		if err == nil {
			return response, nil
		}
		lastErr = err
		if !errors.Is(err, common.ErrCompletionUnavailable) {
			return "", err
		}
		if attempt == completionAttempts {
			break
		}

		s.logger.Warn().Err(err).Int("attempt", attempt).Msg("Completion attempt failed, retrying")
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(completionBackoff * time.Duration(attempt)):
		}
	}
	return "", fmt.Errorf("completion failed after %d attempts: %w", completionAttempts, lastErr)
}

// HealthCheck verifies the completion backend is operational
func (s *Service) HealthCheck(ctx context.Context) error {
	return s.llm.HealthCheck(ctx)
}

// GetMode returns the current LLM mode
func (s *Service) GetMode() interfaces.LLMMode {
	return s.llm.GetMode()
}
