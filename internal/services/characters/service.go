package characters

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/fabula/internal/common"
	"github.com/ternarybob/fabula/internal/interfaces"
	"github.com/ternarybob/fabula/internal/models"
)

// Service implements CharacterService: profile CRUD, automatic character
// extraction, and the bounded conversation history used by the chat
// pipeline.
type Service struct {
	storage   interfaces.StorageManager
	extractor *Extractor
	config    *common.Config
	logger    arbor.ILogger
}

// NewService creates a new character service
func NewService(storage interfaces.StorageManager, llm interfaces.LLMService, config *common.Config, logger arbor.ILogger) *Service {
	return &Service{
		storage:   storage,
		extractor: NewExtractor(llm, logger),
		config:    config,
		logger:    logger,
	}
}

// Create registers a character profile. The manuscript must exist; a
// character without a manuscript has nothing to ground its answers in.
func (s *Service) Create(ctx context.Context, c *models.CharacterProfile) (*models.CharacterProfile, error) {
	if strings.TrimSpace(c.Name) == "" {
		return nil, fmt.Errorf("character name is required")
	}
	if c.ManuscriptID == "" {
		return nil, fmt.Errorf("character must reference a manuscript")
	}
	if _, err := s.storage.ManuscriptStorage().GetManuscript(c.ManuscriptID); err != nil {
		return nil, err
	}

	if c.ID == "" {
		c.ID = common.NewCharacterID()
	}
	c.History = nil

	if err := s.storage.CharacterStorage().SaveCharacter(c); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("character_id", c.ID).
		Str("name", c.Name).
		Str("manuscript_id", c.ManuscriptID).
		Msg("Character created")

	return c, nil
}

// Get returns a character profile with its history
func (s *Service) Get(ctx context.Context, id string) (*models.CharacterProfile, error) {
	return s.storage.CharacterStorage().GetCharacter(id)
}

// List returns all characters, or only those attached to the given
// manuscript when manuscriptID is non-empty
func (s *Service) List(ctx context.Context, manuscriptID string) ([]*models.CharacterProfile, error) {
	return s.storage.CharacterStorage().ListCharacters(manuscriptID)
}

// Delete removes a character and its history. Idempotent.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.storage.CharacterStorage().DeleteCharacter(id)
}

// ExtractFromManuscript scans the manuscript's stored text for named
// characters and registers a profile for each one not already attached to
// the manuscript. Returns the newly created profiles.
func (s *Service) ExtractFromManuscript(ctx context.Context, manuscriptID string) ([]*models.CharacterProfile, error) {
	m, err := s.storage.ManuscriptStorage().GetManuscript(manuscriptID)
	if err != nil {
		return nil, err
	}
	if m.Text == "" {
		return nil, fmt.Errorf("manuscript %s has no stored text to analyze", manuscriptID)
	}

	existing, err := s.storage.CharacterStorage().ListCharacters(manuscriptID)
	if err != nil {
		return nil, err
	}
	taken := make(map[string]bool, len(existing))
	for _, c := range existing {
		taken[strings.ToLower(c.Name)] = true
	}

	profiles, err := s.extractor.ExtractProfiles(ctx, m.Text, manuscriptID)
	if err != nil {
		return nil, err
	}

	created := make([]*models.CharacterProfile, 0, len(profiles))
	for _, p := range profiles {
		if taken[strings.ToLower(p.Name)] {
			continue
		}
		c, err := s.Create(ctx, p)
		if err != nil {
			s.logger.Warn().Err(err).Str("name", p.Name).Msg("Failed to register extracted character")
			continue
		}
		created = append(created, c)
	}

	s.logger.Info().
		Str("manuscript_id", manuscriptID).
		Int("detected", len(profiles)).
		Int("created", len(created)).
		Msg("Character extraction finished")

	return created, nil
}

// RecordTurn appends a completed conversation turn to the character's
// history, trimming the oldest entries beyond the configured bound
func (s *Service) RecordTurn(ctx context.Context, id string, turn models.ConversationTurn) error {
	c, err := s.storage.CharacterStorage().GetCharacter(id)
	if err != nil {
		return err
	}

	c.AppendTurn(turn, s.config.Chat.StoredTurns)
	if err := s.storage.CharacterStorage().SaveCharacter(c); err != nil {
		return fmt.Errorf("failed to record conversation turn: %w", err)
	}
	return nil
}
