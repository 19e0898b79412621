// Package runs executes pipeline runs for channels and persists their results.
package runs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/trendreel/internal/common"
	"github.com/ternarybob/trendreel/internal/interfaces"
	"github.com/ternarybob/trendreel/internal/models"
	"github.com/ternarybob/trendreel/internal/pipeline"
)

var (
	// ErrRunInProgress is returned when the channel already has a run in this process
	ErrRunInProgress = errors.New("a run is already in progress for this channel")

	// ErrNotResumable is returned for runs that cannot be continued
	ErrNotResumable = errors.New("run cannot be resumed")

	// ErrInvalidChannel is returned when an inline channel fails validation
	ErrInvalidChannel = errors.New("invalid channel")
)

// adHocChannelID is the channel id of runs started with an inline channel
const adHocChannelID = "adhoc"

// Pipeline runs and resumes the stage sequence.
type Pipeline interface {
	Run(ctx context.Context, req pipeline.Request) *models.RunResult
	Resume(ctx context.Context, prev *models.RunResult, req pipeline.Request) *models.RunResult
}

// Service runs the pipeline for stored or inline channels.
type Service struct {
	pipeline     Pipeline
	channels     interfaces.ChannelStorage
	runs         interfaces.RunStorage
	eventService interfaces.EventService
	runTimeout   time.Duration
	now          func() time.Time
	logger       arbor.ILogger

	mu     sync.Mutex
	active map[string]string // channel id -> run id
}

// NewService creates a run service.
func NewService(p Pipeline, channels interfaces.ChannelStorage, runs interfaces.RunStorage, eventService interfaces.EventService, runTimeout time.Duration, logger arbor.ILogger) *Service {
	if runTimeout <= 0 {
		runTimeout = 30 * time.Minute
	}
	return &Service{
		pipeline:     p,
		channels:     channels,
		runs:         runs,
		eventService: eventService,
		runTimeout:   runTimeout,
		now:          time.Now,
		logger:       logger,
		active:       make(map[string]string),
	}
}

// RunChannel runs the pipeline for a stored channel. The error is non-nil
// only when the run could not start; pipeline failures are in the result.
func (s *Service) RunChannel(ctx context.Context, channelID string, forceMock bool) (*models.RunResult, error) {
	channel, err := s.channels.GetChannel(ctx, channelID)
	if err != nil {
		return nil, err
	}

	runID := common.NewRunID()
	if err := s.claim(channel.ID, runID); err != nil {
		return nil, err
	}
	defer s.release(channel.ID)

	if err := s.channels.UpdateRunStatus(ctx, channel.ID, models.ChannelStatusRunning, runID, nil, s.now()); err != nil {
		s.logger.Warn().Err(err).Str("channel_id", channel.ID).Msg("Failed to mark channel running")
	}

	result := s.execute(ctx, pipeline.Request{RunID: runID, Channel: *channel, ForceMock: forceMock}, nil)
	s.recordChannel(ctx, channel.ID, result)
	return result, nil
}

// RunAdHoc runs the pipeline for an inline channel configuration. The
// channel is validated but not stored.
func (s *Service) RunAdHoc(ctx context.Context, channel models.Channel, forceMock bool) (*models.RunResult, error) {
	if channel.ID == "" {
		channel.ID = adHocChannelID
	}
	if channel.Schedule.CreatedAt.IsZero() {
		channel.Schedule.CreatedAt = s.now()
	}
	if err := channel.Validate(s.now()); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidChannel, err)
	}

	return s.execute(ctx, pipeline.Request{RunID: common.NewRunID(), Channel: channel, ForceMock: forceMock}, nil), nil
}

// Resume continues a failed run of a stored channel from its failed stage.
// Resuming a run that failed at publish publishes again.
func (s *Service) Resume(ctx context.Context, runID string) (*models.RunResult, error) {
	prev, err := s.runs.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if prev.Success {
		return prev, nil
	}
	if prev.ChannelID == adHocChannelID {
		return nil, fmt.Errorf("%w: %s was started with an inline channel", ErrNotResumable, runID)
	}

	channel, err := s.channels.GetChannel(ctx, prev.ChannelID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotResumable, err)
	}

	if err := s.claim(channel.ID, runID); err != nil {
		return nil, err
	}
	defer s.release(channel.ID)

	result := s.execute(ctx, pipeline.Request{RunID: runID, Channel: *channel}, prev)
	s.recordChannel(ctx, channel.ID, result)
	return result, nil
}

// GetRun returns a stored run.
func (s *Service) GetRun(ctx context.Context, runID string) (*models.RunResult, error) {
	return s.runs.GetRun(ctx, runID)
}

// ListRuns returns a channel's runs, newest first.
func (s *Service) ListRuns(ctx context.Context, channelID string, limit int) ([]*models.RunResult, error) {
	return s.runs.ListRunsByChannel(ctx, channelID, limit)
}

// ActiveRuns returns the channels with a run in this process.
func (s *Service) ActiveRuns() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.active))
	for k, v := range s.active {
		out[k] = v
	}
	return out
}

func (s *Service) claim(channelID, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.active[channelID]; ok {
		return fmt.Errorf("%w: channel %s, run %s", ErrRunInProgress, channelID, existing)
	}
	s.active[channelID] = runID
	return nil
}

func (s *Service) release(channelID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, channelID)
}

// execute runs or resumes under the run deadline and persists the result
func (s *Service) execute(ctx context.Context, req pipeline.Request, prev *models.RunResult) *models.RunResult {
	runCtx, cancel := context.WithTimeout(ctx, s.runTimeout)
	defer cancel()

	s.publish(ctx, interfaces.EventRunStarted, map[string]interface{}{
		"run_id":     req.RunID,
		"channel_id": req.Channel.ID,
		"resumed":    prev != nil,
	})

	var result *models.RunResult
	if prev != nil {
		result = s.pipeline.Resume(runCtx, prev, req)
	} else {
		result = s.pipeline.Run(runCtx, req)
	}

	if err := s.runs.SaveRun(context.WithoutCancel(ctx), result); err != nil {
		s.logger.Error().Err(err).Str("run_id", result.RunID).Msg("Failed to persist run result")
	}

	payload := map[string]interface{}{
		"run_id":     result.RunID,
		"channel_id": result.ChannelID,
		"success":    result.Success,
		"status":     string(channelStatus(result)),
	}
	if result.FailedStage != "" {
		payload["stage"] = string(result.FailedStage)
		payload["error"] = result.Error
	}
	if result.Upload != nil {
		payload["video_url"] = result.Upload.URL
	}
	s.publish(ctx, interfaces.EventRunCompleted, payload)

	return result
}

func (s *Service) recordChannel(ctx context.Context, channelID string, result *models.RunResult) {
	err := s.channels.UpdateRunStatus(context.WithoutCancel(ctx), channelID, channelStatus(result), result.RunID, result.Logs, s.now())
	if err != nil {
		s.logger.Warn().Err(err).Str("channel_id", channelID).Msg("Failed to record run status on channel")
	}
}

func (s *Service) publish(ctx context.Context, eventType interfaces.EventType, payload map[string]interface{}) {
	if s.eventService == nil {
		return
	}
	if err := s.eventService.Publish(ctx, interfaces.Event{Type: eventType, Payload: payload}); err != nil {
		s.logger.Warn().Err(err).Str("event_type", string(eventType)).Msg("Failed to publish run event")
	}
}

func channelStatus(result *models.RunResult) models.ChannelStatus {
	if result.Success {
		return models.ChannelStatusSucceeded
	}
	return models.ChannelStatusFailed
}

// StageObserver publishes every run state transition as a stage_changed
// event.
func StageObserver(eventService interfaces.EventService) pipeline.Observer {
	return pipeline.ObserverFunc(func(state models.RunState) {
		if eventService == nil {
			return
		}
		stagesPayload := make(map[string]interface{}, len(state.Stages))
		for _, st := range state.Stages {
			stagesPayload[string(st.Name)] = string(st.Status)
		}
		_ = eventService.Publish(context.Background(), interfaces.Event{
			Type: interfaces.EventStageChanged,
			Payload: map[string]interface{}{
				"run_id":   state.RunID,
				"status":   string(state.Phase),
				"progress": state.Progress(),
				"stages":   stagesPayload,
			},
		})
	})
}
