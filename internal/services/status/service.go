package status

import (
	"context"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/trendreel/internal/interfaces"
)

// AppState represents the application state
type AppState string

const (
	StateIdle    AppState = "idle"
	StateRunning AppState = "running"
)

// LastRun summarises the most recently completed run
type LastRun struct {
	RunID      string    `json:"run_id"`
	ChannelID  string    `json:"channel_id"`
	Success    bool      `json:"success"`
	FinishedAt time.Time `json:"finished_at"`
}

// Service tracks application status from run events
type Service struct {
	mu        sync.RWMutex
	active    map[string]string // run id -> channel id
	lastRun   *LastRun
	startedAt time.Time
	logger    arbor.ILogger
}

// NewService creates a new StatusService
func NewService(logger arbor.ILogger) *Service {
	return &Service{
		active:    make(map[string]string),
		startedAt: time.Now(),
		logger:    logger,
	}
}

// Subscribe attaches the service to run lifecycle events
func (s *Service) Subscribe(eventService interfaces.EventService) error {
	if err := eventService.Subscribe(interfaces.EventRunStarted, s.onRunStarted); err != nil {
		return err
	}
	return eventService.Subscribe(interfaces.EventRunCompleted, s.onRunCompleted)
}

func (s *Service) onRunStarted(ctx context.Context, event interfaces.Event) error {
	runID, channelID := runFields(event)
	if runID == "" {
		return nil
	}

	s.mu.Lock()
	s.active[runID] = channelID
	s.mu.Unlock()
	return nil
}

func (s *Service) onRunCompleted(ctx context.Context, event interfaces.Event) error {
	runID, channelID := runFields(event)
	if runID == "" {
		return nil
	}

	success := false
	if payload, ok := event.Payload.(map[string]interface{}); ok {
		success, _ = payload["success"].(bool)
	}

	s.mu.Lock()
	delete(s.active, runID)
	s.lastRun = &LastRun{RunID: runID, ChannelID: channelID, Success: success, FinishedAt: time.Now()}
	s.mu.Unlock()

	s.logger.Debug().
		Str("run_id", runID).
		Bool("success", success).
		Msg("Run completed")
	return nil
}

// GetState returns the current application state (thread-safe)
func (s *Service) GetState() AppState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.active) > 0 {
		return StateRunning
	}
	return StateIdle
}

// GetStatus returns the full status including state, active runs and the
// last completed run
func (s *Service) GetStatus() map[string]interface{} {
	state := s.GetState()

	s.mu.RLock()
	defer s.mu.RUnlock()

	active := make(map[string]string, len(s.active))
	for k, v := range s.active {
		active[k] = v
	}

	status := map[string]interface{}{
		"state":       string(state),
		"active_runs": active,
		"uptime":      time.Since(s.startedAt).Round(time.Second).String(),
		"timestamp":   time.Now(),
	}
	if s.lastRun != nil {
		status["last_run"] = *s.lastRun
	}
	return status
}

func runFields(event interfaces.Event) (string, string) {
	payload, ok := event.Payload.(map[string]interface{})
	if !ok {
		return "", ""
	}
	runID, _ := payload["run_id"].(string)
	channelID, _ := payload["channel_id"].(string)
	return runID, channelID
}
