package badger

import (
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/fabula/internal/common"
	"github.com/ternarybob/fabula/internal/interfaces"
)

// Manager implements the StorageManager interface for Badger
type Manager struct {
	db         *BadgerDB
	vector     interfaces.VectorStorage
	manuscript interfaces.ManuscriptStorage
	character  interfaces.CharacterStorage
	logger     arbor.ILogger
}

// NewManager creates a new Badger storage manager
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (interfaces.StorageManager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:         db,
		vector:     NewVectorStorage(db, logger),
		manuscript: NewManuscriptStorage(db, logger),
		character:  NewCharacterStorage(db, logger),
		logger:     logger,
	}

	logger.Info().Msg("Badger storage manager initialized")

	return manager, nil
}

// VectorStorage returns the Vector storage interface
func (m *Manager) VectorStorage() interfaces.VectorStorage {
	return m.vector
}

// ManuscriptStorage returns the Manuscript storage interface
func (m *Manager) ManuscriptStorage() interfaces.ManuscriptStorage {
	return m.manuscript
}

// CharacterStorage returns the Character storage interface
func (m *Manager) CharacterStorage() interfaces.CharacterStorage {
	return m.character
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
