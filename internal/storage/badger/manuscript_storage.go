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

// ManuscriptStorage implements the ManuscriptStorage interface for Badger
type ManuscriptStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewManuscriptStorage creates a new ManuscriptStorage instance
func NewManuscriptStorage(db *BadgerDB, logger arbor.ILogger) interfaces.ManuscriptStorage {
	return &ManuscriptStorage{
		db:     db,
		logger: logger,
	}
}

func (s *ManuscriptStorage) SaveManuscript(m *models.Manuscript) error {
	if m.ID == "" {
		return fmt.Errorf("manuscript ID is required")
	}

	now := time.Now()
	if m.ImportedAt.IsZero() {
		m.ImportedAt = now
	}
	m.UpdatedAt = now

	if err := s.db.Store().Upsert(m.ID, m); err != nil {
		return fmt.Errorf("failed to save manuscript: %w", err)
	}
	return nil
}

func (s *ManuscriptStorage) GetManuscript(id string) (*models.Manuscript, error) {
	var m models.Manuscript
	if err := s.db.Store().Get(id, &m); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("%w: %s", common.ErrManuscriptNotFound, id)
		}
		return nil, fmt.Errorf("failed to get manuscript: %w", err)
	}
	return &m, nil
}

func (s *ManuscriptStorage) ListManuscripts() ([]*models.Manuscript, error) {
	var manuscripts []models.Manuscript
	if err := s.db.Store().Find(&manuscripts, nil); err != nil {
		return nil, fmt.Errorf("failed to list manuscripts: %w", err)
	}

	result := make([]*models.Manuscript, len(manuscripts))
	for i := range manuscripts {
		result[i] = &manuscripts[i]
	}
	return result, nil
}

func (s *ManuscriptStorage) ListByStatus(status models.ManuscriptStatus) ([]*models.Manuscript, error) {
	var manuscripts []models.Manuscript
	err := s.db.Store().Find(&manuscripts, badgerhold.Where("Status").Eq(status))
	if err != nil {
		return nil, fmt.Errorf("failed to list manuscripts by status: %w", err)
	}

	result := make([]*models.Manuscript, len(manuscripts))
	for i := range manuscripts {
		result[i] = &manuscripts[i]
	}
	return result, nil
}

func (s *ManuscriptStorage) DeleteManuscript(id string) error {
	if err := s.db.Store().Delete(id, &models.Manuscript{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil
		}
		return fmt.Errorf("failed to delete manuscript: %w", err)
	}
	return nil
}

func (s *ManuscriptStorage) CountManuscripts() (int, error) {
	count, err := s.db.Store().Count(&models.Manuscript{}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count manuscripts: %w", err)
	}
	return int(count), nil
}
