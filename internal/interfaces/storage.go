package interfaces

import (
	"context"
	"errors"
	"time"

	"github.com/ternarybob/trendreel/internal/models"
)

var (
	// ErrChannelNotFound is returned when a channel record does not exist
	ErrChannelNotFound = errors.New("channel not found")

	// ErrRunNotFound is returned when a run record does not exist
	ErrRunNotFound = errors.New("run not found")
)

// ChannelStorage persists per-channel records
type ChannelStorage interface {
	SaveChannel(ctx context.Context, channel *models.Channel) error
	GetChannel(ctx context.Context, id string) (*models.Channel, error)
	ListChannels(ctx context.Context) ([]*models.Channel, error)
	DeleteChannel(ctx context.Context, id string) error

	// UpdateRunStatus writes the run-owned fields of a channel record
	// (last writer wins)
	UpdateRunStatus(ctx context.Context, id string, status models.ChannelStatus, runID string, lastLog []string, runAt time.Time) error
}

// RunStorage persists run results
type RunStorage interface {
	SaveRun(ctx context.Context, run *models.RunResult) error
	GetRun(ctx context.Context, runID string) (*models.RunResult, error)
	ListRunsByChannel(ctx context.Context, channelID string, limit int) ([]*models.RunResult, error)
}

// CooldownStore claims a short-lived, cross-process marker for a channel.
// Claim returns false when another claim is still live.
type CooldownStore interface {
	Claim(ctx context.Context, channelID string, ttl time.Duration) (bool, error)
	Close() error
}

// StorageManager owns the database and hands out the typed stores
type StorageManager interface {
	ChannelStorage() ChannelStorage
	RunStorage() RunStorage

	// LoadChannelsFromFiles upserts channel seed files (TOML or YAML) from dir
	LoadChannelsFromFiles(ctx context.Context, dir string) error

	Close() error
}
