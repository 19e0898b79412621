// Package pipeline sequences the six stages into a single run, owns the run
// state machine and applies the fallback policy table.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/trendreel/internal/interfaces"
	"github.com/ternarybob/trendreel/internal/models"
	"github.com/ternarybob/trendreel/internal/stages"
)

// Stages holds one implementation per pipeline stage.
type Stages struct {
	TrendSignals stages.Stage[[]models.SourceItem, *models.TrendSignals]
	Candidates   stages.Stage[*models.TrendSignals, []models.CandidateTheme]
	Weighting    stages.Stage[stages.WeightingInput, []models.CandidateTheme]
	Composition  stages.Stage[models.CandidateTheme, *models.PromptOutput]
	Render       stages.Stage[*models.PromptOutput, *models.VideoAsset]
	Publish      stages.Stage[stages.PublishInput, *models.UploadResult]
}

func (s Stages) validate() error {
	missing := []string{}
	if s.TrendSignals == nil {
		missing = append(missing, string(models.StageTrendSignals))
	}
	if s.Candidates == nil {
		missing = append(missing, string(models.StageCandidates))
	}
	if s.Weighting == nil {
		missing = append(missing, string(models.StageWeighting))
	}
	if s.Composition == nil {
		missing = append(missing, string(models.StageComposition))
	}
	if s.Render == nil {
		missing = append(missing, string(models.StageRender))
	}
	if s.Publish == nil {
		missing = append(missing, string(models.StagePublish))
	}
	if len(missing) > 0 {
		return fmt.Errorf("pipeline stages not configured: %v", missing)
	}
	return nil
}

// Observer receives every run state transition.
type Observer interface {
	OnStateChange(state models.RunState)
}

// ObserverFunc adapts a function into an Observer.
type ObserverFunc func(state models.RunState)

// OnStateChange calls f.
func (f ObserverFunc) OnStateChange(state models.RunState) {
	f(state)
}

// Request describes one pipeline run.
type Request struct {
	RunID     string
	Channel   models.Channel
	ForceMock bool
}

// Options configures the orchestrator. Every field is optional.
type Options struct {
	// TrendSource feeds stage 1. Without one, stage 1 runs on mock data when
	// its fallback policy allows it.
	TrendSource interfaces.TrendSource
	Fallbacks   FallbackPolicies
	Observer    Observer
	Clock       stages.Clock
}

// Orchestrator runs the stages strictly in order, halting on the first
// failure. It never returns an error: every outcome is a RunResult.
type Orchestrator struct {
	stages    Stages
	trends    interfaces.TrendSource
	fallbacks FallbackPolicies
	observer  Observer
	clock     stages.Clock
	logger    arbor.ILogger
}

// NewOrchestrator creates an orchestrator over the given stages.
func NewOrchestrator(s Stages, opts Options, logger arbor.ILogger) (*Orchestrator, error) {
	if err := s.validate(); err != nil {
		return nil, err
	}
	if opts.Fallbacks == nil {
		opts.Fallbacks = DefaultFallbackPolicies()
	}
	if opts.Clock == nil {
		opts.Clock = stages.SystemClock{}
	}
	return &Orchestrator{
		stages:    s,
		trends:    opts.TrendSource,
		fallbacks: opts.Fallbacks,
		observer:  opts.Observer,
		clock:     opts.Clock,
		logger:    logger,
	}, nil
}

// run is the mutable working set of a single execution.
type run struct {
	req    Request
	result *models.RunResult
	log    *runLog
}

type stepFunc func(ctx context.Context, r *run) error

// Run executes all six stages for req.
func (o *Orchestrator) Run(ctx context.Context, req Request) *models.RunResult {
	result := &models.RunResult{
		RunID:     req.RunID,
		ChannelID: req.Channel.ID,
		State:     models.NewRunState(req.RunID),
		StartedAt: o.clock.Now(),
	}
	r := o.newRun(req, result, nil)
	r.log.info("Starting run for channel %q", req.Channel.Name)
	o.execute(ctx, r, 0)
	return o.finish(r)
}

// Resume continues a failed run from its failed stage, reusing every output
// produced before it. Stages that already succeeded are not executed again.
// Resuming a run that failed at publish re-attempts the upload; callers make
// that decision explicitly.
func (o *Orchestrator) Resume(ctx context.Context, prev *models.RunResult, req Request) *models.RunResult {
	if prev == nil {
		return o.Run(ctx, req)
	}

	result := cloneResult(prev)
	if req.RunID == "" {
		req.RunID = prev.RunID
	}
	r := o.newRun(req, result, prev.Logs)

	if prev.Success {
		r.log.info("Run already completed, nothing to resume")
		result.Logs = r.log.snapshot()
		return result
	}

	from := prev.FailedStage.Index()
	if from < 0 {
		from = 0
	}
	resetFrom(result, from)
	r.log.info("Resuming run at stage %s", models.StageOrder[from])
	o.execute(ctx, r, from)
	return o.finish(r)
}

func (o *Orchestrator) newRun(req Request, result *models.RunResult, prior []string) *run {
	logger := o.logger.WithCorrelationId(result.RunID)
	return &run{
		req:    req,
		result: result,
		log:    newRunLog(logger, o.clock.Now, prior),
	}
}

func (o *Orchestrator) steps() [models.StageCount]stepFunc {
	return [models.StageCount]stepFunc{
		o.runTrendSignals,
		o.runCandidates,
		o.runWeighting,
		o.runComposition,
		o.runRender,
		o.runPublish,
	}
}

// execute runs stages from index from onward, halting on the first failure.
func (o *Orchestrator) execute(ctx context.Context, r *run, from int) {
	o.transition(r, r.result.State.WithPhase(models.RunPhaseRunning))

	steps := o.steps()
	for i := from; i < models.StageCount; i++ {
		name := models.StageOrder[i]
		r.log.stage = name

		o.transition(r, r.result.State.WithStage(name, models.StageStatusRunning, "", o.clock.Now()))
		started := o.clock.Now()

		err := ctx.Err()
		if err == nil {
			err = o.invoke(ctx, name, steps[i], r)
		}

		if err != nil {
			err = stages.Attribute(name, err)
			r.result.FailedStage = name
			r.result.Error = err.Error()
			r.log.error(err, "Stage %s failed (%s)", name, stages.KindOf(err))
			o.transition(r, r.result.State.WithStage(name, models.StageStatusError, err.Error(), o.clock.Now()))
			return
		}

		r.log.info("Stage %s completed in %s", name, o.clock.Now().Sub(started).Round(time.Millisecond))
		o.transition(r, r.result.State.WithStage(name, models.StageStatusSuccess, "", o.clock.Now()))
	}
	r.log.stage = ""
}

// invoke runs one step, converting a panic into the stage's error.
func (o *Orchestrator) invoke(ctx context.Context, name models.StageName, step stepFunc, r *run) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = stages.InvalidOutput(name, "panic: %v", rec)
		}
	}()
	return step(ctx, r)
}

func (o *Orchestrator) finish(r *run) *models.RunResult {
	o.transition(r, r.result.State.WithPhase(models.RunPhaseCompleted))
	r.result.Success = r.result.FailedStage == ""
	r.result.CompletedAt = o.clock.Now()
	r.log.stage = ""
	if r.result.Success {
		r.log.info("Run completed successfully")
	} else {
		r.log.warn("Run halted at stage %s", r.result.FailedStage)
	}
	r.result.Logs = r.log.snapshot()
	return r.result
}

// transition records the new state and notifies the observer. A panicking
// observer does not affect the run.
func (o *Orchestrator) transition(r *run, state models.RunState) {
	r.result.State = state
	if o.observer == nil {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			o.logger.Warn().Str("run_id", state.RunID).Msgf("Run observer panicked: %v", rec)
		}
	}()
	o.observer.OnStateChange(state)
}

func (o *Orchestrator) runTrendSignals(ctx context.Context, r *run) error {
	items, err := o.acquire(ctx, r)
	if err != nil {
		return err
	}
	r.result.Sources = items

	signals, err := o.stages.TrendSignals.Execute(ctx, items)
	if err != nil {
		return err
	}
	r.result.Signals = signals
	if signals != nil {
		r.log.info("Extracted %d trend signal keys from %d items", signalKeys(signals), len(items))
	}
	return nil
}

// acquire fetches trend items, substituting the mock dataset when the stage's
// fallback policy allows it and live data is unavailable.
func (o *Orchestrator) acquire(ctx context.Context, r *run) ([]models.SourceItem, error) {
	substitute := o.fallbacks.For(models.StageTrendSignals) == FallbackSubstituteMock

	if r.req.ForceMock {
		if !substitute {
			return nil, errors.New("mock trend data requested but trend fallback is disabled")
		}
		r.log.warn("Mock trend data requested, skipping trend source")
		return o.mock(r), nil
	}

	if o.trends == nil {
		if !substitute {
			return nil, errors.New("no trend source configured")
		}
		r.log.warn("No trend source configured, using mock trend data")
		return o.mock(r), nil
	}

	items, err := o.trends.FetchRecent(ctx, r.req.Channel.Trends)
	if err == nil && len(items) > 0 {
		r.log.info("Fetched %d trend items from %s", len(items), o.trends.Name())
		return items, nil
	}
	if err == nil {
		err = fmt.Errorf("%s returned no items", o.trends.Name())
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if !substitute {
		return nil, fmt.Errorf("fetch trends: %w", err)
	}
	r.log.warn("Trend source unavailable (%v), using mock trend data", err)
	return o.mock(r), nil
}

func (o *Orchestrator) mock(r *run) []models.SourceItem {
	r.result.UsedMockData = true
	return MockSourceItems()
}

func (o *Orchestrator) runCandidates(ctx context.Context, r *run) error {
	if r.result.Signals == nil {
		return stages.MissingPrerequisite(models.StageCandidates, "trend signals")
	}
	candidates, err := o.stages.Candidates.Execute(ctx, r.result.Signals)
	if err != nil {
		return err
	}
	r.result.Candidates = candidates
	r.log.info("Generated %d candidate themes", len(candidates))
	return nil
}

func (o *Orchestrator) runWeighting(ctx context.Context, r *run) error {
	if len(r.result.Candidates) == 0 {
		return stages.MissingPrerequisite(models.StageWeighting, "candidate themes")
	}
	scored, err := o.stages.Weighting.Execute(ctx, stages.WeightingInput{
		Candidates: r.result.Candidates,
		Channel:    r.req.Channel.State,
		Signals:    r.result.Signals,
	})
	if err != nil {
		return err
	}
	if err := checkSelection(r.result.Candidates, scored); err != nil {
		return err
	}
	winner := models.SelectedCandidate(scored)
	r.result.Candidates = scored
	r.result.Winner = winner
	r.log.info("Selected candidate %s (score %.2f)", winner.ID, winner.TotalScore)
	return nil
}

func (o *Orchestrator) runComposition(ctx context.Context, r *run) error {
	if r.result.Winner == nil {
		return stages.MissingPrerequisite(models.StageComposition, "selected candidate")
	}
	prompt, err := o.stages.Composition.Execute(ctx, *r.result.Winner)
	if err != nil {
		return err
	}
	r.result.Prompt = prompt
	if prompt != nil {
		r.log.info("Composed %q", prompt.Title)
	}
	return nil
}

func (o *Orchestrator) runRender(ctx context.Context, r *run) error {
	if r.result.Prompt == nil {
		return stages.MissingPrerequisite(models.StageRender, "prompt output")
	}
	if strings.TrimSpace(r.result.Prompt.GenerationPrompt) == "" {
		return stages.MissingPrerequisite(models.StageRender, "generation prompt")
	}
	video, err := o.stages.Render.Execute(ctx, r.result.Prompt)
	if err != nil {
		return err
	}
	r.result.Video = video
	if video != nil {
		r.log.info("Rendered video for candidate %s", video.CandidateID)
	}
	return nil
}

func (o *Orchestrator) runPublish(ctx context.Context, r *run) error {
	if r.result.Video == nil {
		return stages.MissingPrerequisite(models.StagePublish, "video asset")
	}
	if r.result.Video.Status != models.VideoStatusGenerated {
		return stages.MissingPrerequisite(models.StagePublish, "generated video asset")
	}
	if r.result.Prompt == nil {
		return stages.MissingPrerequisite(models.StagePublish, "prompt output")
	}
	upload, err := o.stages.Publish.Execute(ctx, stages.PublishInput{
		Video:       r.result.Video,
		Prompt:      r.result.Prompt,
		Schedule:    r.req.Channel.Schedule,
		Credentials: r.req.Channel.Credentials,
	})
	if err != nil {
		return err
	}
	if upload == nil {
		return errors.New("publish returned no upload result")
	}
	r.result.Upload = upload
	if upload.Status == models.UploadStatusScheduled && upload.ScheduledFor != nil {
		r.log.info("Scheduled %s for %s", upload.VideoID, upload.ScheduledFor.UTC().Format(time.RFC3339))
	} else {
		r.log.info("Uploaded %s", upload.VideoID)
	}
	return nil
}

// checkSelection holds a weighting result to its contract: one scored
// output per input, exactly one selected, and the selected one holding the
// maximum total score.
func checkSelection(in, scored []models.CandidateTheme) error {
	if len(scored) != len(in) {
		return stages.InvalidOutput(models.StageWeighting, "weighting returned %d candidates for %d inputs", len(scored), len(in))
	}
	selected := -1
	count := 0
	for i := range scored {
		if scored[i].Selected {
			selected = i
			count++
		}
	}
	if count != 1 {
		return stages.InvalidOutput(models.StageWeighting, "%d candidates are selected, want exactly one", count)
	}
	best := stages.SelectWinner(scored)
	if best < 0 || scored[selected].TotalScore != scored[best].TotalScore {
		return stages.InvalidOutput(models.StageWeighting, "selected candidate %q does not hold the maximum score", scored[selected].ID)
	}
	return nil
}

func signalKeys(s *models.TrendSignals) int {
	total := 0
	for _, bucket := range s.Buckets() {
		total += len(bucket)
	}
	return total
}

// cloneResult copies the parts of a result a resumed run may overwrite.
func cloneResult(prev *models.RunResult) *models.RunResult {
	out := *prev
	out.Logs = append([]string(nil), prev.Logs...)
	out.Candidates = append([]models.CandidateTheme(nil), prev.Candidates...)
	out.FailedStage = ""
	out.Error = ""
	return &out
}

// resetFrom clears the outputs and state of every stage from index from on.
func resetFrom(result *models.RunResult, from int) {
	fresh := models.NewRunState(result.RunID)
	for i := from; i < models.StageCount; i++ {
		result.State.Stages[i] = fresh.Stages[i]
	}
	for i := from; i < models.StageCount; i++ {
		switch models.StageOrder[i] {
		case models.StageTrendSignals:
			result.Sources = nil
			result.Signals = nil
			result.UsedMockData = false
		case models.StageCandidates:
			result.Candidates = nil
		case models.StageWeighting:
			result.Winner = nil
		case models.StageComposition:
			result.Prompt = nil
		case models.StageRender:
			result.Video = nil
		case models.StagePublish:
			result.Upload = nil
		}
	}
}
