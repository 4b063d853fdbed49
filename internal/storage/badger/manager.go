package badger

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/merx/internal/common"
	"github.com/ternarybob/merx/internal/interfaces"
)

// Manager implements the StorageManager interface for Badger
type Manager struct {
	db            *BadgerDB
	conversations interfaces.ConversationStorage
	products      interfaces.ProductStorage
	productErrors interfaces.ProductErrorStorage
	jobs          interfaces.JobStorage
	logger        arbor.ILogger
}

// NewManager creates a new Badger storage manager
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (interfaces.StorageManager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:            db,
		conversations: NewConversationStorage(db, logger),
		products:      NewProductStorage(db, logger),
		productErrors: NewProductErrorStorage(db, logger),
		jobs:          NewJobStorage(db, logger),
		logger:        logger,
	}

	logger.Info().Msg("Badger storage manager initialized")

	return manager, nil
}

// Conversations returns the conversation storage interface
func (m *Manager) Conversations() interfaces.ConversationStorage {
	return m.conversations
}

// Products returns the product storage interface
func (m *Manager) Products() interfaces.ProductStorage {
	return m.products
}

// ProductErrors returns the product error storage interface
func (m *Manager) ProductErrors() interfaces.ProductErrorStorage {
	return m.productErrors
}

// Jobs returns the job storage interface
func (m *Manager) Jobs() interfaces.JobStorage {
	return m.jobs
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
