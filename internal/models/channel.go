// -----------------------------------------------------------------------
// Channel - per-channel persisted record
// -----------------------------------------------------------------------

package models

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// ChannelStatus is the last known run status of a channel.
type ChannelStatus string

const (
	ChannelStatusIdle      ChannelStatus = "idle"
	ChannelStatusRunning   ChannelStatus = "running"
	ChannelStatusSucceeded ChannelStatus = "succeeded"
	ChannelStatusFailed    ChannelStatus = "failed"
)

// ChannelCredentials holds the publish platform credentials of a channel.
// Only the refresh token is stored; client id/secret come from config.
type ChannelCredentials struct {
	RefreshToken string `json:"refresh_token,omitempty" toml:"refresh_token" yaml:"refresh_token"`
}

// TrendQuery narrows trend acquisition for a channel.
type TrendQuery struct {
	Region     string `json:"region,omitempty" toml:"region" yaml:"region"`
	CategoryID string `json:"category_id,omitempty" toml:"category_id" yaml:"category_id"`
	MaxResults int64  `json:"max_results,omitempty" toml:"max_results" yaml:"max_results"`
}

// Channel is the persisted record of a publishing channel. The scheduler reads
// Schedule, LastRunAt and Credentials; runs write Status, LastLog and LastRunAt
// with last-writer-wins semantics.
type Channel struct {
	ID          string             `json:"id" toml:"id" yaml:"id" badgerhold:"key"`
	Name        string             `json:"name" toml:"name" yaml:"name" validate:"required"`
	State       ChannelState       `json:"state" toml:"state" yaml:"state"`
	Trends      TrendQuery         `json:"trends" toml:"trends" yaml:"trends"`
	Schedule    ScheduleConfig     `json:"schedule" toml:"schedule" yaml:"schedule"`
	Credentials ChannelCredentials `json:"credentials" toml:"credentials" yaml:"credentials"`
	Status      ChannelStatus      `json:"status"`
	LastLog     []string           `json:"last_log,omitempty"`
	LastRunAt   *time.Time         `json:"last_run_at,omitempty"`
	LastRunID   string             `json:"last_run_id,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// Validate checks the channel's structure and schedule.
func (c *Channel) Validate(now time.Time) error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("channel %q: %w", c.ID, err)
	}
	if err := c.Schedule.Validate(now); err != nil {
		return fmt.Errorf("channel %q schedule: %w", c.ID, err)
	}
	return nil
}

// Redacted returns a copy safe to return over the API.
func (c Channel) Redacted() Channel {
	if c.Credentials.RefreshToken != "" {
		c.Credentials.RefreshToken = "********"
	}
	return c
}
