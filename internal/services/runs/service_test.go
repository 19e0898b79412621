package runs

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/trendreel/internal/common"
	"github.com/ternarybob/trendreel/internal/interfaces"
	"github.com/ternarybob/trendreel/internal/models"
	"github.com/ternarybob/trendreel/internal/pipeline"
	"github.com/ternarybob/trendreel/internal/services/events"
	"github.com/ternarybob/trendreel/internal/storage/badger"
)

// scriptedPipeline fails at publish on the first run and succeeds on resume.
type scriptedPipeline struct {
	mu       sync.Mutex
	requests []pipeline.Request
	resumed  []string
	block    chan struct{}
}

func (p *scriptedPipeline) Run(ctx context.Context, req pipeline.Request) *models.RunResult {
	p.mu.Lock()
	p.requests = append(p.requests, req)
	block := p.block
	p.mu.Unlock()
	if block != nil {
		<-block
	}
	return &models.RunResult{
		RunID:        req.RunID,
		ChannelID:    req.Channel.ID,
		Success:      false,
		FailedStage:  models.StagePublish,
		Error:        "publish: quota exceeded",
		Logs:         []string{"failed"},
		UsedMockData: req.ForceMock,
		StartedAt:    time.Now(),
	}
}

func (p *scriptedPipeline) Resume(ctx context.Context, prev *models.RunResult, req pipeline.Request) *models.RunResult {
	p.mu.Lock()
	p.resumed = append(p.resumed, prev.RunID)
	p.mu.Unlock()
	out := *prev
	out.Success = true
	out.FailedStage = ""
	out.Error = ""
	out.Upload = &models.UploadResult{Platform: "youtube", VideoID: "v1", URL: "https://www.youtube.com/watch?v=v1", Status: models.UploadStatusUploaded}
	return &out
}

type fixture struct {
	svc      *Service
	pipeline *scriptedPipeline
	storage  *badger.Manager
	events   *events.Service
	got      chan interfaces.Event
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := arbor.NewLogger()
	storage, err := badger.NewManager(logger, &common.BadgerConfig{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { storage.Close() })

	eventService := events.NewService(logger)
	got := make(chan interfaces.Event, 16)
	require.NoError(t, events.SubscribeAll(eventService, func(_ context.Context, e interfaces.Event) error {
		got <- e
		return nil
	}))

	p := &scriptedPipeline{}
	svc := NewService(p, storage.ChannelStorage(), storage.RunStorage(), eventService, time.Minute, logger)
	return &fixture{svc: svc, pipeline: p, storage: storage, events: eventService, got: got}
}

func (f *fixture) eventTypes() []interfaces.EventType {
	f.events.Wait()
	var types []interfaces.EventType
	for {
		select {
		case e := <-f.got:
			types = append(types, e.Type)
		default:
			return types
		}
	}
}

func TestRunChannel_PersistsResultAndStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.storage.ChannelStorage().SaveChannel(ctx, &models.Channel{ID: "ch_1", Name: "Tech"}))

	result, err := f.svc.RunChannel(ctx, "ch_1", true)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.True(t, result.UsedMockData)
	assert.Contains(t, result.RunID, "run_")

	stored, err := f.svc.GetRun(ctx, result.RunID)
	require.NoError(t, err)
	assert.Equal(t, models.StagePublish, stored.FailedStage)

	channel, err := f.storage.ChannelStorage().GetChannel(ctx, "ch_1")
	require.NoError(t, err)
	assert.Equal(t, models.ChannelStatusFailed, channel.Status)
	assert.Equal(t, result.RunID, channel.LastRunID)
	assert.Equal(t, []string{"failed"}, channel.LastLog)
	assert.NotNil(t, channel.LastRunAt)

	types := f.eventTypes()
	assert.Contains(t, types, interfaces.EventRunStarted)
	assert.Contains(t, types, interfaces.EventRunCompleted)

	runs, err := f.svc.ListRuns(ctx, "ch_1", 10)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestRunChannel_UnknownChannel(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.RunChannel(context.Background(), "missing", false)
	assert.ErrorIs(t, err, interfaces.ErrChannelNotFound)
}

func TestRunChannel_RejectsConcurrentRunOfSameChannel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.storage.ChannelStorage().SaveChannel(ctx, &models.Channel{ID: "ch_1", Name: "Tech"}))

	f.pipeline.block = make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = f.svc.RunChannel(ctx, "ch_1", false)
	}()

	require.Eventually(t, func() bool { return len(f.svc.ActiveRuns()) == 1 }, time.Second, 5*time.Millisecond)
	_, err := f.svc.RunChannel(ctx, "ch_1", false)
	assert.ErrorIs(t, err, ErrRunInProgress)

	close(f.pipeline.block)
	<-done
	assert.Empty(t, f.svc.ActiveRuns())
}

func TestRunAdHoc(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.RunAdHoc(ctx, models.Channel{}, false)
	assert.ErrorIs(t, err, ErrInvalidChannel)

	result, err := f.svc.RunAdHoc(ctx, models.Channel{Name: "Inline", State: models.ChannelState{Niche: "science"}}, false)
	require.NoError(t, err)
	assert.Equal(t, adHocChannelID, result.ChannelID)

	_, err = f.storage.ChannelStorage().GetChannel(ctx, adHocChannelID)
	assert.ErrorIs(t, err, interfaces.ErrChannelNotFound, "inline channels are not stored")

	_, err = f.svc.Resume(ctx, result.RunID)
	assert.ErrorIs(t, err, ErrNotResumable)
}

func TestResume(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.storage.ChannelStorage().SaveChannel(ctx, &models.Channel{ID: "ch_1", Name: "Tech"}))

	first, err := f.svc.RunChannel(ctx, "ch_1", false)
	require.NoError(t, err)

	resumed, err := f.svc.Resume(ctx, first.RunID)
	require.NoError(t, err)
	assert.True(t, resumed.Success)
	assert.Equal(t, first.RunID, resumed.RunID)
	assert.Equal(t, []string{first.RunID}, f.pipeline.resumed)

	stored, err := f.svc.GetRun(ctx, first.RunID)
	require.NoError(t, err)
	assert.True(t, stored.Success)

	channel, err := f.storage.ChannelStorage().GetChannel(ctx, "ch_1")
	require.NoError(t, err)
	assert.Equal(t, models.ChannelStatusSucceeded, channel.Status)

	again, err := f.svc.Resume(ctx, first.RunID)
	require.NoError(t, err)
	assert.True(t, again.Success)
	assert.Len(t, f.pipeline.resumed, 1, "a succeeded run is not resumed again")

	_, err = f.svc.Resume(ctx, "run_missing")
	assert.ErrorIs(t, err, interfaces.ErrRunNotFound)
}

func TestStageObserver(t *testing.T) {
	f := newFixture(t)
	observer := StageObserver(f.events)
	state := models.NewRunState("run_1").WithStage(models.StageTrendSignals, models.StageStatusRunning, "", time.Now())
	observer.OnStateChange(state)

	assert.Equal(t, []interfaces.EventType{interfaces.EventStageChanged}, f.eventTypes())
	StageObserver(nil).OnStateChange(state)
}
