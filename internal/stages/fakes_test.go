package stages

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/trendreel/internal/interfaces"
	"github.com/ternarybob/trendreel/internal/models"
)

func testLogger() arbor.ILogger {
	return arbor.NewLogger()
}

// mockGenerator is a testify mock of the structured generation capability.
type mockGenerator struct {
	mock.Mock
}

func (m *mockGenerator) Generate(ctx context.Context, req interfaces.GenerationRequest) (json.RawMessage, error) {
	args := m.Called(ctx, req)
	raw, _ := args.Get(0).(json.RawMessage)
	return raw, args.Error(1)
}

// rawGenerator returns a fixed payload.
type rawGenerator struct {
	payload string
	err     error
	calls   int
}

func (g *rawGenerator) Generate(_ context.Context, _ interfaces.GenerationRequest) (json.RawMessage, error) {
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	return json.RawMessage(g.payload), nil
}

// fakeClock advances only when Sleep is called.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps int
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	c.sleeps++
	return nil
}

// fakeVideoGenerator completes after doneAfter polls.
type fakeVideoGenerator struct {
	submitErr error
	pollErr   error
	doneAfter int
	locator   string
	mimeType  string

	submits int
	polls   int
	prompt  string
}

func (f *fakeVideoGenerator) SubmitRender(_ context.Context, prompt, _, _ string) (interfaces.RenderJob, error) {
	f.submits++
	f.prompt = prompt
	if f.submitErr != nil {
		return interfaces.RenderJob{}, f.submitErr
	}
	return interfaces.RenderJob{ID: "operations/render-1"}, nil
}

func (f *fakeVideoGenerator) PollRender(_ context.Context, _ interfaces.RenderJob) (interfaces.RenderStatus, error) {
	f.polls++
	if f.pollErr != nil {
		return interfaces.RenderStatus{}, f.pollErr
	}
	if f.polls < f.doneAfter {
		return interfaces.RenderStatus{}, nil
	}
	return interfaces.RenderStatus{Done: true, Locator: f.locator, MIMEType: f.mimeType}, nil
}

// mockPublisher is a testify mock of the publish capability.
type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Platform() string {
	return "youtube"
}

func (m *mockPublisher) Publish(ctx context.Context, req interfaces.PublishRequest) (interfaces.PublishReceipt, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(interfaces.PublishReceipt), args.Error(1)
}

func sampleItems() []models.SourceItem {
	return []models.SourceItem{
		{ID: "1", Title: "2025 AI trend analysis", Tags: []string{"#ai"}, ViewCount: 500000},
		{ID: "2", Title: "liquid metal experiment", Tags: []string{"#science"}, ViewCount: 1200000},
	}
}

func selectedCandidate() models.CandidateTheme {
	return models.CandidateTheme{
		ID:             "c2",
		Subject:        "liquid metal",
		Verb:           "melts",
		Object:         "ice cube",
		Structure:      "experiment",
		SignalTags:     []string{"science"},
		TotalScore:     25,
		Selected:       true,
		ScoreBreakdown: &models.ScoreBreakdown{Virality: 10, Feasibility: 10, TrendAlignment: 5},
	}
}
