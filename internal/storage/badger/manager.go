package badger

import (
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/docgpt/internal/common"
	"github.com/ternarybob/docgpt/internal/interfaces"
)

// Manager implements the StorageManager interface for Badger
type Manager struct {
	db       *BadgerDB
	user     interfaces.UserStorage
	document interfaces.DocumentStorage
	session  interfaces.SessionStorage
	message  interfaces.MessageStorage
	orphan   interfaces.OrphanStorage
	logger   arbor.ILogger
}

// NewManager creates a new Badger storage manager
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (*Manager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := newManager(db, logger)
	logger.Info().Str("path", config.Path).Msg("Badger storage manager initialized")
	return manager, nil
}

func newManager(db *BadgerDB, logger arbor.ILogger) *Manager {
	return &Manager{
		db:       db,
		user:     NewUserStorage(db, logger),
		document: NewDocumentStorage(db, logger),
		session:  NewSessionStorage(db, logger),
		message:  NewMessageStorage(db, logger),
		orphan:   NewOrphanStorage(db, logger),
		logger:   logger,
	}
}

func (m *Manager) UserStorage() interfaces.UserStorage {
	return m.user
}

func (m *Manager) DocumentStorage() interfaces.DocumentStorage {
	return m.document
}

func (m *Manager) SessionStorage() interfaces.SessionStorage {
	return m.session
}

func (m *Manager) MessageStorage() interfaces.MessageStorage {
	return m.message
}

func (m *Manager) OrphanStorage() interfaces.OrphanStorage {
	return m.orphan
}

// BadgerDB returns the connection, shared with the Badger vector index
func (m *Manager) BadgerDB() *BadgerDB {
	return m.db
}

// DB returns the underlying badgerhold store
func (m *Manager) DB() interface{} {
	return m.db.Store()
}

// Close closes the database connection
func (m *Manager) Close() error {
	m.logger.Info().Msg("Closing Badger storage")
	return m.db.Close()
}

var _ interfaces.StorageManager = (*Manager)(nil)
