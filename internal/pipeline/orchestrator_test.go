package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/trendreel/internal/interfaces"
	"github.com/ternarybob/trendreel/internal/models"
	"github.com/ternarybob/trendreel/internal/stages"
)

var testNow = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

// fixedClock never advances unless Sleep is called.
type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
	return nil
}

// schemaGenerator answers candidate batch requests and composition requests.
type schemaGenerator struct {
	calls int
}

func (g *schemaGenerator) Generate(_ context.Context, req interfaces.GenerationRequest) (json.RawMessage, error) {
	g.calls++
	if req.Schema["type"] == "array" {
		return json.RawMessage(`[
		  {"id":"c1","subject":"ai","verb":"predicts","object":"trend","structure":"analysis","signal_tags":["ai"]},
		  {"id":"c2","subject":"liquid","verb":"melts","object":"metal","structure":"experiment","signal_tags":["science","liquid"]},
		  {"id":"c3","subject":"robot","verb":"tries","object":"parkour","structure":"challenge","signal_tags":["robotics"]}
		]`), nil
	}
	return json.RawMessage(`{"generation_prompt":"Macro shot of liquid metal","title":"Liquid metal experiment","description":"d","tags":["science"]}`), nil
}

type fakeVideo struct {
	polls int
}

func (f *fakeVideo) SubmitRender(context.Context, string, string, string) (interfaces.RenderJob, error) {
	return interfaces.RenderJob{ID: "op-1"}, nil
}

func (f *fakeVideo) PollRender(context.Context, interfaces.RenderJob) (interfaces.RenderStatus, error) {
	f.polls++
	return interfaces.RenderStatus{Done: f.polls >= 2, Locator: "https://example.test/v.mp4"}, nil
}

type fakePublisher struct {
	err   error
	calls int
	last  interfaces.PublishRequest
}

func (f *fakePublisher) Platform() string { return "youtube" }

func (f *fakePublisher) Publish(_ context.Context, req interfaces.PublishRequest) (interfaces.PublishReceipt, error) {
	f.calls++
	f.last = req
	if f.err != nil {
		return interfaces.PublishReceipt{}, f.err
	}
	return interfaces.PublishReceipt{RemoteID: "yt-1", RemoteURL: "https://youtu.be/yt-1"}, nil
}

type fakeTrendSource struct {
	items []models.SourceItem
	err   error
	calls int
}

func (f *fakeTrendSource) Name() string { return "fake" }

func (f *fakeTrendSource) FetchRecent(context.Context, models.TrendQuery) ([]models.SourceItem, error) {
	f.calls++
	return f.items, f.err
}

type harness struct {
	clock     *fixedClock
	generator *schemaGenerator
	video     *fakeVideo
	publisher *fakePublisher
	states    []models.RunState
}

func newHarness() *harness {
	return &harness{
		clock:     &fixedClock{now: testNow},
		generator: &schemaGenerator{},
		video:     &fakeVideo{},
		publisher: &fakePublisher{},
	}
}

func (h *harness) stages() Stages {
	logger := arbor.NewLogger()
	poller := &stages.Poller{Interval: 10 * time.Second, MaxAttempts: 5, Clock: h.clock}
	return Stages{
		TrendSignals: stages.NewTrendSignalStage(logger),
		Candidates:   stages.NewCandidateGenerationStage(h.generator, logger),
		Weighting:    stages.NewWeightingStage(nil, stages.DefaultWeights(), logger),
		Composition:  stages.NewCompositionStage(h.generator, logger),
		Render:       stages.NewRenderStage(h.video, poller, stages.RenderOptions{}, logger),
		Publish:      stages.NewPublishStage(h.publisher, h.clock, logger),
	}
}

func (h *harness) orchestrator(t *testing.T, s Stages, source interfaces.TrendSource) *Orchestrator {
	t.Helper()
	o, err := NewOrchestrator(s, Options{
		TrendSource: source,
		Clock:       h.clock,
		Observer: ObserverFunc(func(state models.RunState) {
			h.states = append(h.states, state)
		}),
	}, arbor.NewLogger())
	require.NoError(t, err)
	return o
}

func testChannel(publishAt *time.Time) models.Channel {
	return models.Channel{
		ID:       "ch-1",
		Name:     "Science Shorts",
		State:    models.ChannelState{Niche: "science", AvgViews: 20000},
		Schedule: models.ScheduleConfig{Privacy: models.PrivacyPublic, PublishAt: publishAt},
	}
}

func TestOrchestrator_EndToEndScheduled(t *testing.T) {
	h := newHarness()
	o := h.orchestrator(t, h.stages(), nil)
	tomorrow := testNow.Add(24 * time.Hour)

	result := o.Run(context.Background(), Request{RunID: "run-1", Channel: testChannel(&tomorrow)})

	require.True(t, result.Success, result.Error)
	assert.Equal(t, "run-1", result.RunID)
	assert.Equal(t, "ch-1", result.ChannelID)
	assert.True(t, result.UsedMockData)
	assert.Empty(t, result.FailedStage)
	assert.Equal(t, models.RunPhaseCompleted, result.State.Phase)
	assert.Equal(t, 100, result.State.Progress())
	for _, st := range result.State.Stages {
		assert.Equal(t, models.StageStatusSuccess, st.Status, st.Name)
	}

	require.Len(t, result.Candidates, stages.CandidateCount)
	require.NotNil(t, result.Winner)
	assert.True(t, result.Winner.Selected)
	assert.Equal(t, result.Winner.ID, result.Prompt.CandidateID)
	assert.Equal(t, result.Winner.ID, result.Video.CandidateID)

	require.NotNil(t, result.Upload)
	assert.Equal(t, models.UploadStatusScheduled, result.Upload.Status)
	require.NotNil(t, result.Upload.ScheduledFor)
	assert.True(t, result.Upload.ScheduledFor.Equal(tomorrow))
	assert.Equal(t, 1, h.publisher.calls)
	assert.Equal(t, models.PrivacyPublic, h.publisher.last.Privacy)

	assert.NotEmpty(t, result.Logs)
	assert.Equal(t, models.RunPhaseRunning, h.states[0].Phase)
	assert.Equal(t, models.RunPhaseCompleted, h.states[len(h.states)-1].Phase)
}

func TestOrchestrator_UsesLiveTrendsWhenAvailable(t *testing.T) {
	h := newHarness()
	source := &fakeTrendSource{items: []models.SourceItem{
		{ID: "v1", Title: "Chef cooks giant pizza challenge", Tags: []string{"#food"}, ViewCount: 10},
	}}
	result := h.orchestrator(t, h.stages(), source).Run(context.Background(), Request{RunID: "r", Channel: testChannel(nil)})

	require.True(t, result.Success, result.Error)
	assert.False(t, result.UsedMockData)
	assert.Equal(t, 1, source.calls)
	assert.Equal(t, 1, result.Signals.AlgorithmTags["food"])
	assert.Equal(t, models.UploadStatusUploaded, result.Upload.Status)
}

func TestOrchestrator_FallsBackToMockWhenSourceFails(t *testing.T) {
	h := newHarness()
	source := &fakeTrendSource{err: errors.New("quota exceeded")}
	result := h.orchestrator(t, h.stages(), source).Run(context.Background(), Request{RunID: "r", Channel: testChannel(nil)})

	require.True(t, result.Success, result.Error)
	assert.True(t, result.UsedMockData)
	assert.Equal(t, MockSourceItems(), result.Sources)
}

func TestOrchestrator_ForceMockSkipsSource(t *testing.T) {
	h := newHarness()
	source := &fakeTrendSource{items: MockSourceItems()}
	result := h.orchestrator(t, h.stages(), source).Run(context.Background(), Request{RunID: "r", Channel: testChannel(nil), ForceMock: true})

	require.True(t, result.Success, result.Error)
	assert.True(t, result.UsedMockData)
	assert.Zero(t, source.calls)
}

func TestOrchestrator_NoFallbackWhenPolicyDisabled(t *testing.T) {
	h := newHarness()
	o, err := NewOrchestrator(h.stages(), Options{
		TrendSource: &fakeTrendSource{err: errors.New("offline")},
		Fallbacks:   FallbackPolicies{models.StageTrendSignals: FallbackNone},
		Clock:       h.clock,
	}, arbor.NewLogger())
	require.NoError(t, err)

	result := o.Run(context.Background(), Request{RunID: "r", Channel: testChannel(nil)})
	assert.False(t, result.Success)
	assert.Equal(t, models.StageTrendSignals, result.FailedStage)
	assert.Contains(t, result.Error, "offline")
	assert.False(t, result.UsedMockData)
	assert.Zero(t, h.generator.calls)
}

func TestOrchestrator_HaltsAndKeepsPartialOutputs(t *testing.T) {
	h := newHarness()
	h.publisher.err = errors.New("upload quota exceeded")
	o := h.orchestrator(t, h.stages(), nil)

	result := o.Run(context.Background(), Request{RunID: "r", Channel: testChannel(nil)})

	assert.False(t, result.Success)
	assert.Equal(t, models.StagePublish, result.FailedStage)
	assert.Equal(t, "publish: upload quota exceeded", result.Error)
	assert.NotNil(t, result.Signals)
	assert.NotNil(t, result.Winner)
	assert.NotNil(t, result.Prompt)
	assert.NotNil(t, result.Video)
	assert.Nil(t, result.Upload)
	assert.Equal(t, models.StageStatusError, result.State.Stage(models.StagePublish).Status)
	assert.Equal(t, "publish: upload quota exceeded", result.State.Stage(models.StagePublish).Error)
	assert.Equal(t, models.StageStatusSuccess, result.State.Stage(models.StageRender).Status)
}

func TestOrchestrator_LaterStagesStayIdleAfterFailure(t *testing.T) {
	h := newHarness()
	s := h.stages()
	s.Weighting = stages.Func[stages.WeightingInput, []models.CandidateTheme]{
		StageName: models.StageWeighting,
		Fn: func(context.Context, stages.WeightingInput) ([]models.CandidateTheme, error) {
			return nil, errors.New("scorer offline")
		},
	}
	result := h.orchestrator(t, s, nil).Run(context.Background(), Request{RunID: "r", Channel: testChannel(nil)})

	assert.Equal(t, models.StageWeighting, result.FailedStage)
	for _, name := range []models.StageName{models.StageComposition, models.StageRender, models.StagePublish} {
		assert.Equal(t, models.StageStatusIdle, result.State.Stage(name).Status, name)
	}
	assert.Len(t, result.Candidates, 3)
	assert.Nil(t, result.Winner)
	assert.Zero(t, h.publisher.calls)
}

func TestOrchestrator_RecoversStagePanic(t *testing.T) {
	h := newHarness()
	s := h.stages()
	s.Composition = stages.Func[models.CandidateTheme, *models.PromptOutput]{
		StageName: models.StageComposition,
		Fn: func(context.Context, models.CandidateTheme) (*models.PromptOutput, error) {
			panic("nil map write")
		},
	}

	var result *models.RunResult
	require.NotPanics(t, func() {
		result = h.orchestrator(t, s, nil).Run(context.Background(), Request{RunID: "r", Channel: testChannel(nil)})
	})
	assert.Equal(t, models.StageComposition, result.FailedStage)
	assert.Contains(t, result.Error, "panic: nil map write")
}

func TestOrchestrator_MissingPrerequisite(t *testing.T) {
	h := newHarness()
	s := h.stages()
	// A stage that reports success without output leaves the next stage
	// without its prerequisite.
	s.Composition = stages.Func[models.CandidateTheme, *models.PromptOutput]{
		StageName: models.StageComposition,
		Fn: func(context.Context, models.CandidateTheme) (*models.PromptOutput, error) {
			return nil, nil
		},
	}
	result := h.orchestrator(t, s, nil).Run(context.Background(), Request{RunID: "r", Channel: testChannel(nil)})

	assert.Equal(t, models.StageRender, result.FailedStage)
	assert.Contains(t, result.Error, "missing prerequisite: prompt output")
}

func TestOrchestrator_RejectsBrokenSelection(t *testing.T) {
	tests := []struct {
		name    string
		scored  func(in []models.CandidateTheme) []models.CandidateTheme
		wantErr string
	}{
		{
			name: "two selected",
			scored: func(in []models.CandidateTheme) []models.CandidateTheme {
				out := append([]models.CandidateTheme(nil), in...)
				out[0].TotalScore, out[0].Selected = 20, true
				out[1].TotalScore, out[1].Selected = 20, true
				return out
			},
			wantErr: "2 candidates are selected",
		},
		{
			name: "none selected",
			scored: func(in []models.CandidateTheme) []models.CandidateTheme {
				return append([]models.CandidateTheme(nil), in...)
			},
			wantErr: "0 candidates are selected",
		},
		{
			name: "selected below maximum",
			scored: func(in []models.CandidateTheme) []models.CandidateTheme {
				out := append([]models.CandidateTheme(nil), in...)
				out[0].TotalScore, out[0].Selected = 5, true
				out[2].TotalScore = 25
				return out
			},
			wantErr: "does not hold the maximum score",
		},
		{
			name: "dropped candidate",
			scored: func(in []models.CandidateTheme) []models.CandidateTheme {
				out := append([]models.CandidateTheme(nil), in[:1]...)
				out[0].Selected = true
				return out
			},
			wantErr: "returned 1 candidates for 3 inputs",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			s := h.stages()
			s.Weighting = stages.Func[stages.WeightingInput, []models.CandidateTheme]{
				StageName: models.StageWeighting,
				Fn: func(_ context.Context, in stages.WeightingInput) ([]models.CandidateTheme, error) {
					return tt.scored(in.Candidates), nil
				},
			}
			result := h.orchestrator(t, s, nil).Run(context.Background(), Request{RunID: "r", Channel: testChannel(nil)})

			assert.False(t, result.Success)
			assert.Equal(t, models.StageWeighting, result.FailedStage)
			assert.Contains(t, result.Error, tt.wantErr)
			assert.Nil(t, result.Winner)
			assert.Zero(t, h.publisher.calls)
		})
	}
}

func TestOrchestrator_ChecksRenderAndPublishInputs(t *testing.T) {
	t.Run("empty generation prompt", func(t *testing.T) {
		h := newHarness()
		s := h.stages()
		s.Composition = stages.Func[models.CandidateTheme, *models.PromptOutput]{
			StageName: models.StageComposition,
			Fn: func(_ context.Context, c models.CandidateTheme) (*models.PromptOutput, error) {
				return &models.PromptOutput{CandidateID: c.ID, Title: "t"}, nil
			},
		}
		result := h.orchestrator(t, s, nil).Run(context.Background(), Request{RunID: "r", Channel: testChannel(nil)})

		assert.Equal(t, models.StageRender, result.FailedStage)
		assert.Contains(t, result.Error, "missing prerequisite: generation prompt")
		assert.Zero(t, h.video.polls)
	})

	t.Run("failed video asset", func(t *testing.T) {
		h := newHarness()
		s := h.stages()
		s.Render = stages.Func[*models.PromptOutput, *models.VideoAsset]{
			StageName: models.StageRender,
			Fn: func(_ context.Context, p *models.PromptOutput) (*models.VideoAsset, error) {
				return &models.VideoAsset{CandidateID: p.CandidateID, Status: models.VideoStatusFailed}, nil
			},
		}
		result := h.orchestrator(t, s, nil).Run(context.Background(), Request{RunID: "r", Channel: testChannel(nil)})

		assert.Equal(t, models.StagePublish, result.FailedStage)
		assert.Contains(t, result.Error, "missing prerequisite: generated video asset")
		assert.Zero(t, h.publisher.calls)
	})
}

func TestOrchestrator_ErrorsNameTheirStage(t *testing.T) {
	h := newHarness()
	s := h.stages()
	s.Candidates = stages.Func[*models.TrendSignals, []models.CandidateTheme]{
		StageName: models.StageCandidates,
		Fn: func(context.Context, *models.TrendSignals) ([]models.CandidateTheme, error) {
			return nil, errors.New("model overloaded")
		},
	}
	result := h.orchestrator(t, s, nil).Run(context.Background(), Request{RunID: "r", Channel: testChannel(nil)})

	assert.Equal(t, string(models.StageCandidates)+": model overloaded", result.Error)
	assert.Equal(t, result.Error, result.State.Stage(models.StageCandidates).Error)
}

func TestOrchestrator_CancelledContext(t *testing.T) {
	h := newHarness()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := h.orchestrator(t, h.stages(), nil).Run(ctx, Request{RunID: "r", Channel: testChannel(nil)})
	assert.False(t, result.Success)
	assert.Equal(t, models.StageTrendSignals, result.FailedStage)
	assert.Equal(t, string(models.StageTrendSignals)+": "+context.Canceled.Error(), result.Error)
}

func TestOrchestrator_ResumeFromFailedStage(t *testing.T) {
	h := newHarness()
	h.publisher.err = errors.New("transient")
	o := h.orchestrator(t, h.stages(), nil)

	failed := o.Run(context.Background(), Request{RunID: "r", Channel: testChannel(nil)})
	require.Equal(t, models.StagePublish, failed.FailedStage)
	generatorCalls := h.generator.calls
	polls := h.video.polls

	h.publisher.err = nil
	resumed := o.Resume(context.Background(), failed, Request{Channel: testChannel(nil)})

	require.True(t, resumed.Success, resumed.Error)
	assert.Equal(t, "r", resumed.RunID)
	assert.Equal(t, generatorCalls, h.generator.calls)
	assert.Equal(t, polls, h.video.polls)
	assert.Equal(t, 2, h.publisher.calls)
	assert.Equal(t, failed.Prompt, resumed.Prompt)
	assert.Greater(t, len(resumed.Logs), len(failed.Logs))

	// The failed result is left as it was.
	assert.False(t, failed.Success)
	assert.Nil(t, failed.Upload)
}

func TestOrchestrator_ResumeSucceededRunIsNoop(t *testing.T) {
	h := newHarness()
	o := h.orchestrator(t, h.stages(), nil)
	done := o.Run(context.Background(), Request{RunID: "r", Channel: testChannel(nil)})
	require.True(t, done.Success)

	again := o.Resume(context.Background(), done, Request{Channel: testChannel(nil)})
	assert.True(t, again.Success)
	assert.Equal(t, 1, h.publisher.calls)
}

func TestNewOrchestrator_RequiresAllStages(t *testing.T) {
	h := newHarness()
	s := h.stages()
	s.Render = nil
	_, err := NewOrchestrator(s, Options{}, arbor.NewLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "render")
}

func TestDefaultFallbackPolicies(t *testing.T) {
	policies := DefaultFallbackPolicies()
	for _, name := range models.StageOrder {
		want := FallbackNone
		if name == models.StageTrendSignals {
			want = FallbackSubstituteMock
		}
		assert.Equal(t, want, policies.For(name), name)
	}
	assert.Equal(t, FallbackNone, FallbackPolicies{}.For(models.StageTrendSignals))
}

func TestMockSourceItemsAreValid(t *testing.T) {
	items := MockSourceItems()
	require.NotEmpty(t, items)
	for i := range items {
		assert.NoError(t, items[i].Validate())
	}
	items[0].Title = "changed"
	assert.NotEqual(t, "changed", MockSourceItems()[0].Title)
}

func TestPoliciesFromConfig(t *testing.T) {
	policies, err := PoliciesFromConfig(map[string]string{"trend_signals": "none"})
	require.NoError(t, err)
	assert.Equal(t, FallbackNone, policies.For(models.StageTrendSignals))
	assert.Equal(t, FallbackNone, policies.For(models.StageRender))

	_, err = PoliciesFromConfig(map[string]string{"thumbnail": "none"})
	assert.Error(t, err)

	_, err = PoliciesFromConfig(map[string]string{"render": "retry"})
	assert.Error(t, err)
}
