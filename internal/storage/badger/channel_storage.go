package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/trendreel/internal/interfaces"
	"github.com/ternarybob/trendreel/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// maxConflictRetries bounds retries of read-modify-write transactions
const maxConflictRetries = 3

// ChannelStorage implements the ChannelStorage interface for Badger
type ChannelStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewChannelStorage creates a new ChannelStorage instance
func NewChannelStorage(db *BadgerDB, logger arbor.ILogger) interfaces.ChannelStorage {
	return &ChannelStorage{
		db:     db,
		logger: logger,
	}
}

func (s *ChannelStorage) SaveChannel(ctx context.Context, channel *models.Channel) error {
	if channel.ID == "" {
		return fmt.Errorf("channel ID is required")
	}

	now := time.Now().UTC()
	if channel.CreatedAt.IsZero() {
		channel.CreatedAt = now
	}
	if channel.Status == "" {
		channel.Status = models.ChannelStatusIdle
	}
	channel.UpdatedAt = now

	if err := s.db.Store().Upsert(channel.ID, channel); err != nil {
		return fmt.Errorf("failed to save channel: %w", err)
	}
	return nil
}

func (s *ChannelStorage) GetChannel(ctx context.Context, id string) (*models.Channel, error) {
	var channel models.Channel
	if err := s.db.Store().Get(id, &channel); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", interfaces.ErrChannelNotFound, id)
		}
		return nil, fmt.Errorf("failed to get channel: %w", err)
	}
	return &channel, nil
}

func (s *ChannelStorage) ListChannels(ctx context.Context) ([]*models.Channel, error) {
	var channels []models.Channel
	if err := s.db.Store().Find(&channels, badgerhold.Where("ID").Ne("").SortBy("CreatedAt")); err != nil {
		return nil, fmt.Errorf("failed to list channels: %w", err)
	}

	result := make([]*models.Channel, len(channels))
	for i := range channels {
		result[i] = &channels[i]
	}
	return result, nil
}

func (s *ChannelStorage) DeleteChannel(ctx context.Context, id string) error {
	if err := s.db.Store().Delete(id, &models.Channel{}); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return fmt.Errorf("%w: %s", interfaces.ErrChannelNotFound, id)
		}
		return fmt.Errorf("failed to delete channel: %w", err)
	}
	return nil
}

// UpdateRunStatus rewrites only the run-owned fields, so a concurrent edit of
// the channel configuration is not lost.
func (s *ChannelStorage) UpdateRunStatus(ctx context.Context, id string, status models.ChannelStatus, runID string, lastLog []string, runAt time.Time) error {
	store := s.db.Store()

	var err error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		err = store.Badger().Update(func(tx *badger.Txn) error {
			var channel models.Channel
			if err := store.TxGet(tx, id, &channel); err != nil {
				return err
			}

			at := runAt.UTC()
			channel.Status = status
			channel.LastRunID = runID
			channel.LastLog = append([]string(nil), lastLog...)
			channel.LastRunAt = &at
			channel.UpdatedAt = time.Now().UTC()

			return store.TxUpsert(tx, id, &channel)
		})
		if !errors.Is(err, badger.ErrConflict) {
			break
		}
		s.logger.Debug().Str("channel_id", id).Int("attempt", attempt+1).Msg("Channel status update conflicted, retrying")
	}

	if errors.Is(err, badgerhold.ErrNotFound) {
		return fmt.Errorf("%w: %s", interfaces.ErrChannelNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("failed to update channel status: %w", err)
	}
	return nil
}
