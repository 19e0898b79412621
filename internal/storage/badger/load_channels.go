package badger

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/trendreel/internal/interfaces"
	"github.com/ternarybob/trendreel/internal/models"
	"gopkg.in/yaml.v3"
)

// LoadChannelsFromFiles upserts one channel per .toml, .yaml or .yml file in
// dirPath. A file without an id takes its base name as id. Run-owned fields
// of an existing record are kept. Invalid files are skipped with a warning.
func LoadChannelsFromFiles(ctx context.Context, channelStorage interfaces.ChannelStorage, dirPath string, logger arbor.ILogger) error {
	logger.Debug().Str("dir", dirPath).Msg("Loading channels from files")

	if _, err := os.Stat(dirPath); os.IsNotExist(err) {
		logger.Debug().Str("dir", dirPath).Msg("Channels directory does not exist, skipping")
		return nil
	}

	entries, err := os.ReadDir(dirPath)
	if err != nil {
		logger.Warn().Err(err).Str("dir", dirPath).Msg("Failed to read channels directory")
		return nil // Non-fatal
	}

	loadedCount := 0
	errorCount := 0

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		channel, err := parseChannelFile(filepath.Join(dirPath, entry.Name()))
		if err != nil {
			logger.Warn().Err(err).Str("file", entry.Name()).Msg("Failed to load channel file")
			errorCount++
			continue
		}
		if channel == nil {
			continue
		}

		if err := mergeExisting(ctx, channelStorage, channel); err != nil {
			logger.Warn().Err(err).Str("file", entry.Name()).Msg("Failed to read existing channel")
			errorCount++
			continue
		}

		if err := channel.Validate(time.Now()); err != nil {
			logger.Warn().Err(err).Str("file", entry.Name()).Msg("Skipping invalid channel")
			errorCount++
			continue
		}

		if err := channelStorage.SaveChannel(ctx, channel); err != nil {
			logger.Warn().Err(err).Str("file", entry.Name()).Msg("Failed to save channel")
			errorCount++
			continue
		}

		logger.Debug().
			Str("channel_id", channel.ID).
			Str("name", channel.Name).
			Bool("scheduled", channel.Schedule.Enabled).
			Msg("Loaded channel from file")
		loadedCount++
	}

	logger.Info().
		Int("loaded", loadedCount).
		Int("errors", errorCount).
		Str("dir", dirPath).
		Msg("Finished loading channels from files")

	return nil
}

// parseChannelFile decodes a seed file. It returns nil for files of other
// types.
func parseChannelFile(path string) (*models.Channel, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".toml" && ext != ".yaml" && ext != ".yml" {
		return nil, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var channel models.Channel
	switch ext {
	case ".toml":
		err = toml.Unmarshal(content, &channel)
	default:
		err = yaml.Unmarshal(content, &channel)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if channel.ID == "" {
		channel.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return &channel, nil
}

// mergeExisting carries run-owned fields over from a stored record.
func mergeExisting(ctx context.Context, channelStorage interfaces.ChannelStorage, channel *models.Channel) error {
	existing, err := channelStorage.GetChannel(ctx, channel.ID)
	if errors.Is(err, interfaces.ErrChannelNotFound) {
		channel.Schedule.CreatedAt = time.Now().UTC()
		return nil
	}
	if err != nil {
		return err
	}

	channel.Status = existing.Status
	channel.LastLog = existing.LastLog
	channel.LastRunAt = existing.LastRunAt
	channel.LastRunID = existing.LastRunID
	channel.CreatedAt = existing.CreatedAt
	channel.Schedule.CreatedAt = existing.Schedule.CreatedAt
	if channel.Schedule.CreatedAt.IsZero() {
		channel.Schedule.CreatedAt = time.Now().UTC()
	}
	return nil
}
