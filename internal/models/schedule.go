package models

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// PrivacyLevel is the visibility of a published video.
type PrivacyLevel string

const (
	PrivacyPublic   PrivacyLevel = "public"
	PrivacyPrivate  PrivacyLevel = "private"
	PrivacyUnlisted PrivacyLevel = "unlisted"
)

// ScheduleConfig describes publish intent. CronDescription is a standard
// five-field cron expression used by the time trigger.
type ScheduleConfig struct {
	Privacy         PrivacyLevel `json:"privacy" toml:"privacy" yaml:"privacy"`
	PublishAt       *time.Time   `json:"publish_at,omitempty" toml:"publish_at" yaml:"publish_at"`
	CronDescription string       `json:"cron_description,omitempty" toml:"cron" yaml:"cron"`
	Enabled         bool         `json:"enabled" toml:"enabled" yaml:"enabled"`
	CreatedAt       time.Time    `json:"created_at" toml:"-" yaml:"-"`
}

// Validate checks the schedule against the time it was created. A zero
// CreatedAt is treated as now.
func (s *ScheduleConfig) Validate(now time.Time) error {
	switch s.Privacy {
	case "", PrivacyPublic, PrivacyPrivate, PrivacyUnlisted:
	default:
		return fmt.Errorf("unknown privacy level %q", s.Privacy)
	}

	created := s.CreatedAt
	if created.IsZero() {
		created = now
	}
	if s.PublishAt != nil && !s.PublishAt.After(created) {
		return fmt.Errorf("publish_at %s is not in the future relative to %s",
			s.PublishAt.Format(time.RFC3339), created.Format(time.RFC3339))
	}

	if s.CronDescription != "" {
		if _, err := cron.ParseStandard(s.CronDescription); err != nil {
			return fmt.Errorf("invalid cron description %q: %w", s.CronDescription, err)
		}
	}
	return nil
}

// EffectivePrivacy returns the privacy level, defaulting to private.
func (s *ScheduleConfig) EffectivePrivacy() PrivacyLevel {
	if s.Privacy == "" {
		return PrivacyPrivate
	}
	return s.Privacy
}

// IsScheduledAfter reports whether the schedule carries a publish time later
// than now.
func (s *ScheduleConfig) IsScheduledAfter(now time.Time) bool {
	return s.PublishAt != nil && s.PublishAt.After(now)
}
