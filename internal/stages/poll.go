package stages

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Clock is the time source used by stages. Tests inject a fake so render
// polling completes without real delays.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

// SystemClock is the wall clock.
type SystemClock struct{}

// Now returns the current time.
func (SystemClock) Now() time.Time {
	return time.Now()
}

// Sleep waits for d or until ctx is done.
func (SystemClock) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ErrPollExhausted is returned when a job did not finish within MaxAttempts.
var ErrPollExhausted = errors.New("polling attempts exhausted before job completed")

// Poller is a bounded-retry polling primitive.
type Poller struct {
	Interval    time.Duration
	MaxAttempts int
	Clock       Clock
}

// Default render polling: 10s interval, up to 60 checks.
const (
	DefaultPollInterval    = 10 * time.Second
	DefaultPollMaxAttempts = 60
)

// NewPoller returns a poller on the system clock. Non-positive values fall
// back to the defaults.
func NewPoller(interval time.Duration, maxAttempts int) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultPollMaxAttempts
	}
	return &Poller{Interval: interval, MaxAttempts: maxAttempts, Clock: SystemClock{}}
}

// Until calls check until it reports done, returns an error, or the attempt
// budget is spent. The first check happens after one interval. Errors from
// check are returned untouched.
func (p *Poller) Until(ctx context.Context, check func(ctx context.Context) (bool, error)) error {
	clock := p.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := clock.Sleep(ctx, p.Interval); err != nil {
			return err
		}
		done, err := check(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
	return fmt.Errorf("%w (%d attempts, %s interval)", ErrPollExhausted, p.MaxAttempts, p.Interval)
}
