package badger

import (
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/fabula/internal/common"
	"github.com/ternarybob/fabula/internal/interfaces"
	"github.com/ternarybob/fabula/internal/models"
)

// CharacterStorage implements the CharacterStorage interface for Badger
type CharacterStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewCharacterStorage creates a new CharacterStorage instance
func NewCharacterStorage(db *BadgerDB, logger arbor.ILogger) interfaces.CharacterStorage {
	return &CharacterStorage{
		db:     db,
		logger: logger,
	}
}

func (s *CharacterStorage) SaveCharacter(c *models.CharacterProfile) error {
	if c.ID == "" {
		return fmt.Errorf("character ID is required")
	}

	now := time.Now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	if err := s.db.Store().Upsert(c.ID, c); err != nil {
		return fmt.Errorf("failed to save character: %w", err)
	}
	return nil
}

func (s *CharacterStorage) GetCharacter(id string) (*models.CharacterProfile, error) {
	var c models.CharacterProfile
	if err := s.db.Store().Get(id, &c); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("%w: %s", common.ErrCharacterNotFound, id)
		}
		return nil, fmt.Errorf("failed to get character: %w", err)
	}
	return &c, nil
}

// ListCharacters returns all characters, or only those attached to the
// given manuscript when manuscriptID is non-empty
func (s *CharacterStorage) ListCharacters(manuscriptID string) ([]*models.CharacterProfile, error) {
	var characters []models.CharacterProfile
	var err error
	if manuscriptID == "" {
		err = s.db.Store().Find(&characters, nil)
	} else {
		err = s.db.Store().Find(&characters, badgerhold.Where("ManuscriptID").Eq(manuscriptID))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list characters: %w", err)
	}

	result := make([]*models.CharacterProfile, len(characters))
	for i := range characters {
		result[i] = &characters[i]
	}
	return result, nil
}

func (s *CharacterStorage) DeleteCharacter(id string) error {
	if err := s.db.Store().Delete(id, &models.CharacterProfile{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil
		}
		return fmt.Errorf("failed to delete character: %w", err)
	}
	return nil
}

// DeleteByManuscript removes every character attached to the manuscript.
// Called when the manuscript itself is removed.
func (s *CharacterStorage) DeleteByManuscript(manuscriptID string) error {
	err := s.db.Store().DeleteMatching(&models.CharacterProfile{},
		badgerhold.Where("ManuscriptID").Eq(manuscriptID))
	if err != nil && err != badgerhold.ErrNotFound {
		return fmt.Errorf("failed to delete characters for manuscript %s: %w", manuscriptID, err)
	}
	return nil
}
