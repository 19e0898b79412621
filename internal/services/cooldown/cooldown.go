// Package cooldown gates how often one channel may run. The gate is advisory:
// it narrows duplicate runs but does not guarantee exclusion.
package cooldown

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/trendreel/internal/interfaces"
	"github.com/ternarybob/trendreel/internal/models"
)

// Checker decides whether a channel is due. It checks the channel's LastRunAt
// against the window, then takes the optional cross-process claim.
type Checker struct {
	window     time.Duration
	runTimeout time.Duration
	store      interfaces.CooldownStore
	now        func() time.Time
	logger     arbor.ILogger
}

// NewChecker creates a checker. store may be nil. A channel left in the
// running state counts as in progress only until the longer of window and
// runTimeout has passed since its run started.
func NewChecker(window, runTimeout time.Duration, store interfaces.CooldownStore, logger arbor.ILogger) *Checker {
	return &Checker{window: window, runTimeout: runTimeout, store: store, now: time.Now, logger: logger}
}

// Allow reports whether channel may run now, with a reason when it may not.
func (c *Checker) Allow(ctx context.Context, channel *models.Channel) (bool, string, error) {
	now := c.now()

	if channel.LastRunAt != nil && c.window > 0 {
		if elapsed := now.Sub(*channel.LastRunAt); elapsed < c.window {
			return false, fmt.Sprintf("last run %s ago, cooldown is %s", elapsed.Round(time.Second), c.window), nil
		}
	}

	if channel.Status == models.ChannelStatusRunning {
		if !c.staleRun(channel, now) {
			return false, "a run is already in progress", nil
		}
		c.logger.Warn().
			Str("channel_id", channel.ID).
			Str("last_run_id", channel.LastRunID).
			Msg("Ignoring stale running status")
	}

	if c.store == nil || c.window <= 0 {
		return true, "", nil
	}

	claimed, err := c.store.Claim(ctx, channel.ID, c.window)
	if err != nil {
		return false, "", fmt.Errorf("cooldown claim for channel %s: %w", channel.ID, err)
	}
	if !claimed {
		c.logger.Debug().Str("channel_id", channel.ID).Msg("Cooldown claim held elsewhere")
		return false, "claimed by another process", nil
	}
	return true, "", nil
}

// staleRun reports whether a running status outlived any run that could have
// set it, as happens when the process died mid-run.
func (c *Checker) staleRun(channel *models.Channel, now time.Time) bool {
	if channel.LastRunAt == nil {
		return true
	}
	limit := c.window
	if c.runTimeout > limit {
		limit = c.runTimeout
	}
	return now.Sub(*channel.LastRunAt) >= limit
}
