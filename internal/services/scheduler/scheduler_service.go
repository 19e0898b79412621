package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/trendreel/internal/common"
	"github.com/ternarybob/trendreel/internal/interfaces"
	"github.com/ternarybob/trendreel/internal/models"
)

// Runner executes one pipeline run for a stored channel.
type Runner interface {
	RunChannel(ctx context.Context, channelID string, forceMock bool) (*models.RunResult, error)
}

// Gate decides whether a due channel may run now.
type Gate interface {
	Allow(ctx context.Context, channel *models.Channel) (bool, string, error)
}

// Service implements SchedulerService. Each tick it scans the channel
// records and dispatches a run for every enabled channel whose cron
// description fired since the previous tick.
type Service struct {
	channels     interfaces.ChannelStorage
	runner       Runner
	gate         Gate
	eventService interfaces.EventService
	cron         *cron.Cron
	logger       arbor.ILogger
	now          func() time.Time

	mu        sync.Mutex // Protects the fields below
	running   bool
	tickExpr  string
	entryID   cron.EntryID
	lastTick  *time.Time
	lastError string
	triggered int
	skipped   int

	scanMu sync.Mutex // One scan at a time
	runs   sync.WaitGroup
	ctx    context.Context    // Guarded by mu; replaced on restart
	cancel context.CancelFunc // Guarded by mu
}

var _ interfaces.SchedulerService = (*Service)(nil)

// NewService creates a new scheduler service. gate may be nil.
func NewService(channels interfaces.ChannelStorage, runner Runner, gate Gate, eventService interfaces.EventService, logger arbor.ILogger) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		channels:     channels,
		runner:       runner,
		gate:         gate,
		eventService: eventService,
		cron:         cron.New(),
		logger:       logger,
		now:          time.Now,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start begins the scheduler with the given cron expression
func (s *Service) Start(tickExpr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	if tickExpr == "" {
		tickExpr = "*/15 * * * *"
	}
	if err := common.ValidateSchedule(tickExpr); err != nil {
		return fmt.Errorf("invalid scheduler tick: %w", err)
	}

	entryID, err := s.cron.AddFunc(tickExpr, s.tick)
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	if s.ctx.Err() != nil {
		s.ctx, s.cancel = context.WithCancel(context.Background())
	}

	s.entryID = entryID
	s.tickExpr = tickExpr
	s.cron.Start()
	s.running = true

	s.logger.Info().
		Str("tick", tickExpr).
		Msg("Scheduler started")

	return nil
}

// Stop halts the cron, cancels dispatched runs and waits for them
func (s *Service) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.cron.Remove(s.entryID)
	cancel := s.cancel
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	cancel()
	s.runs.Wait()

	s.logger.Info().Msg("Scheduler stopped")
	return nil
}

// IsRunning returns true if scheduler is active
func (s *Service) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// TickNow runs one scan immediately
func (s *Service) TickNow() error {
	return s.scan(s.now())
}

// Wait blocks until every dispatched run has returned
func (s *Service) Wait() {
	s.runs.Wait()
}

// Status returns a snapshot of the scheduler state
func (s *Service) Status() interfaces.SchedulerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := interfaces.SchedulerStatus{
		Running:   s.running,
		Tick:      s.tickExpr,
		LastError: s.lastError,
		Triggered: s.triggered,
		Skipped:   s.skipped,
	}
	if s.lastTick != nil {
		t := *s.lastTick
		status.LastTick = &t
	}
	if s.running {
		if next := s.cron.Entry(s.entryID).Next; !next.IsZero() {
			status.NextTick = &next
		}
	}
	return status
}

// tick is the cron callback
func (s *Service) tick() {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Str("panic", fmt.Sprintf("%v", r)).
				Msg("PANIC RECOVERED in scheduler tick")
		}
	}()

	if err := s.scan(s.now()); err != nil {
		s.logger.Error().Err(err).Msg("Scheduler scan failed")
	}
}

// scan dispatches every channel due in (previous tick, now]
func (s *Service) scan(now time.Time) error {
	s.scanMu.Lock()
	defer s.scanMu.Unlock()

	ctx := s.runContext()
	since := s.windowStart(now)

	channels, err := s.channels.ListChannels(ctx)
	if err != nil {
		s.recordTick(now, 0, 0, err)
		return fmt.Errorf("failed to list channels: %w", err)
	}

	triggered, skipped := 0, 0
	for _, channel := range channels {
		if !isDue(channel, since, now) {
			continue
		}

		if s.gate != nil {
			ok, reason, err := s.gate.Allow(ctx, channel)
			if err != nil {
				s.logger.Warn().Err(err).Str("channel_id", channel.ID).Msg("Cooldown check failed, skipping channel")
				reason = err.Error()
			}
			if err != nil || !ok {
				skipped++
				s.publish(ctx, interfaces.EventRunSkipped, map[string]interface{}{
					"channel_id": channel.ID,
					"reason":     reason,
				})
				s.logger.Info().
					Str("channel_id", channel.ID).
					Str("reason", reason).
					Msg("Scheduled run skipped")
				continue
			}
		}

		triggered++
		s.dispatch(ctx, channel.ID)
	}

	s.recordTick(now, triggered, skipped, nil)
	s.publish(ctx, interfaces.EventSchedulerTick, map[string]interface{}{
		"channels":  len(channels),
		"triggered": triggered,
		"skipped":   skipped,
	})

	s.logger.Debug().
		Int("channels", len(channels)).
		Int("triggered", triggered).
		Int("skipped", skipped).
		Msg("Scheduler scan completed")

	return nil
}

// windowStart returns the previous tick time. The first scan looks back one
// tick interval.
func (s *Service) windowStart(now time.Time) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lastTick != nil {
		return *s.lastTick
	}

	expr := s.tickExpr
	if expr == "" {
		expr = "*/15 * * * *"
	}
	if sched, err := cron.ParseStandard(expr); err == nil {
		next := sched.Next(now)
		return now.Add(-sched.Next(next).Sub(next))
	}
	return now.Add(-15 * time.Minute)
}

func (s *Service) recordTick(now time.Time, triggered, skipped int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastTick = &now
	s.triggered += triggered
	s.skipped += skipped
	if err != nil {
		s.lastError = err.Error()
	} else {
		s.lastError = ""
	}
}

// runContext returns the context of the current start, cancelled by Stop.
func (s *Service) runContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

func (s *Service) dispatch(ctx context.Context, channelID string) {
	s.runs.Add(1)
	common.SafeGo(s.logger, "scheduled-run:"+channelID, func() {
		defer s.runs.Done()

		s.logger.Info().Str("channel_id", channelID).Msg("Scheduled run started")

		result, err := s.runner.RunChannel(ctx, channelID, false)
		if err != nil {
			s.logger.Error().Err(err).Str("channel_id", channelID).Msg("Scheduled run could not start")
			return
		}

		s.logger.Info().
			Str("channel_id", channelID).
			Str("run_id", result.RunID).
			Bool("success", result.Success).
			Msg("Scheduled run finished")
	})
}

func (s *Service) publish(ctx context.Context, eventType interfaces.EventType, payload map[string]interface{}) {
	if s.eventService == nil {
		return
	}
	if err := s.eventService.Publish(ctx, interfaces.Event{Type: eventType, Payload: payload}); err != nil {
		s.logger.Warn().Err(err).Str("event_type", string(eventType)).Msg("Failed to publish scheduler event")
	}
}

// isDue reports whether the channel's cron description fires in (since, now]
func isDue(channel *models.Channel, since, now time.Time) bool {
	if !channel.Schedule.Enabled || channel.Schedule.CronDescription == "" {
		return false
	}
	sched, err := cron.ParseStandard(channel.Schedule.CronDescription)
	if err != nil {
		return false
	}
	return !sched.Next(since).After(now)
}
