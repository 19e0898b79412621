package badger

import (
	"context"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/trendreel/internal/common"
	"github.com/ternarybob/trendreel/internal/interfaces"
)

// Manager implements the StorageManager interface for Badger
type Manager struct {
	db      *BadgerDB
	channel interfaces.ChannelStorage
	run     interfaces.RunStorage
	logger  arbor.ILogger
}

// NewManager creates a new Badger storage manager
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (*Manager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:      db,
		channel: NewChannelStorage(db, logger),
		run:     NewRunStorage(db, logger),
		logger:  logger,
	}

	logger.Info().Msg("Badger storage manager initialized")

	return manager, nil
}

// ChannelStorage returns the Channel storage interface
func (m *Manager) ChannelStorage() interfaces.ChannelStorage {
	return m.channel
}

// RunStorage returns the Run storage interface
func (m *Manager) RunStorage() interfaces.RunStorage {
	return m.run
}

// LoadChannelsFromFiles upserts channel seed files from dir
func (m *Manager) LoadChannelsFromFiles(ctx context.Context, dir string) error {
	return LoadChannelsFromFiles(ctx, m.channel, dir, m.logger)
}

// Close closes the database connection
func (m *Manager) Close() error {
	return m.db.Close()
}
