package models

import "time"

// StageName identifies one of the six pipeline stages.
type StageName string

const (
	StageTrendSignals StageName = "trend_signals"
	StageCandidates   StageName = "candidates"
	StageWeighting    StageName = "weighting"
	StageComposition  StageName = "composition"
	StageRender       StageName = "render"
	StagePublish      StageName = "publish"
)

// StageCount is the number of pipeline stages.
const StageCount = 6

// StageOrder lists the stages in execution order.
var StageOrder = [StageCount]StageName{
	StageTrendSignals,
	StageCandidates,
	StageWeighting,
	StageComposition,
	StageRender,
	StagePublish,
}

// Index returns the position of the stage in StageOrder, or -1.
func (s StageName) Index() int {
	for i, name := range StageOrder {
		if name == s {
			return i
		}
	}
	return -1
}

// StageStatus is the per-stage state: idle -> running -> {success, error}.
type StageStatus string

const (
	StageStatusIdle    StageStatus = "idle"
	StageStatusRunning StageStatus = "running"
	StageStatusSuccess StageStatus = "success"
	StageStatusError   StageStatus = "error"
)

// RunPhase is the global run state: not_started -> running -> completed.
type RunPhase string

const (
	RunPhaseNotStarted RunPhase = "not_started"
	RunPhaseRunning    RunPhase = "running"
	RunPhaseCompleted  RunPhase = "completed"
)

// StageState is the state slot of one stage within a run.
type StageState struct {
	Name       StageName   `json:"name"`
	Status     StageStatus `json:"status"`
	Error      string      `json:"error,omitempty"`
	StartedAt  *time.Time  `json:"started_at,omitempty"`
	FinishedAt *time.Time  `json:"finished_at,omitempty"`
}

// RunState is an immutable snapshot of a run's progress. Transitions return a
// new value; the receiver is never modified.
type RunState struct {
	RunID  string                 `json:"run_id"`
	Phase  RunPhase               `json:"phase"`
	Stages [StageCount]StageState `json:"stages"`
}

// NewRunState returns a state with every stage idle.
func NewRunState(runID string) RunState {
	s := RunState{RunID: runID, Phase: RunPhaseNotStarted}
	for i, name := range StageOrder {
		s.Stages[i] = StageState{Name: name, Status: StageStatusIdle}
	}
	return s
}

// Stage returns the state slot for name.
func (s RunState) Stage(name StageName) StageState {
	if i := name.Index(); i >= 0 {
		return s.Stages[i]
	}
	return StageState{Name: name}
}

// WithPhase returns a copy with the global phase replaced.
func (s RunState) WithPhase(phase RunPhase) RunState {
	s.Phase = phase
	return s
}

// WithStage returns a copy with the stage slot transitioned to status.
func (s RunState) WithStage(name StageName, status StageStatus, errMsg string, at time.Time) RunState {
	i := name.Index()
	if i < 0 {
		return s
	}
	slot := s.Stages[i]
	slot.Status = status
	slot.Error = errMsg
	switch status {
	case StageStatusRunning:
		slot.StartedAt = &at
		slot.FinishedAt = nil
	case StageStatusSuccess, StageStatusError:
		slot.FinishedAt = &at
	}
	s.Stages[i] = slot
	return s
}

// Progress returns the share of stages that reached success, in percent.
func (s RunState) Progress() int {
	done := 0
	for _, st := range s.Stages {
		if st.Status == StageStatusSuccess {
			done++
		}
	}
	return done * 100 / len(s.Stages)
}

// RunResult is the structured outcome of a pipeline run. It is always
// returned, whether or not every stage succeeded.
type RunResult struct {
	RunID        string           `json:"run_id" badgerhold:"key"`
	ChannelID    string           `json:"channel_id" badgerholdIndex:"ChannelID"`
	Success      bool             `json:"success"`
	Logs         []string         `json:"logs"`
	State        RunState         `json:"state"`
	UsedMockData bool             `json:"used_mock_data"`
	Sources      []SourceItem     `json:"sources,omitempty"`
	Signals      *TrendSignals    `json:"signals,omitempty"`
	Candidates   []CandidateTheme `json:"candidates,omitempty"`
	Winner       *CandidateTheme  `json:"winner,omitempty"`
	Prompt       *PromptOutput    `json:"prompt,omitempty"`
	Video        *VideoAsset      `json:"video,omitempty"`
	Upload       *UploadResult    `json:"upload,omitempty"`
	FailedStage  StageName        `json:"failed_stage,omitempty"`
	Error        string           `json:"error,omitempty"`
	StartedAt    time.Time        `json:"started_at"`
	CompletedAt  time.Time        `json:"completed_at"`
}

// ForDisplay returns a shallow copy safe to serve over the API: embedded video
// bytes are replaced by a size summary.
func (r *RunResult) ForDisplay() *RunResult {
	out := *r
	if r.Video != nil {
		video := *r.Video
		video.Locator = r.Video.DisplayLocator()
		out.Video = &video
	}
	return &out
}
