package stages

import (
	"context"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/trendreel/internal/interfaces"
	"github.com/ternarybob/trendreel/internal/models"
)

// RenderOptions are the fixed output parameters of rendered videos.
type RenderOptions struct {
	AspectRatio string
	Resolution  string
}

// RenderStage turns a production prompt into a video asset. It has no
// fallback: capability failures are returned untouched and no placeholder
// asset is ever produced.
type RenderStage struct {
	generator interfaces.VideoGenerator
	poller    *Poller
	options   RenderOptions
	clock     Clock
	logger    arbor.ILogger
}

// NewRenderStage creates the render stage.
func NewRenderStage(generator interfaces.VideoGenerator, poller *Poller, options RenderOptions, logger arbor.ILogger) *RenderStage {
	if poller == nil {
		poller = NewPoller(0, 0)
	}
	if options.AspectRatio == "" {
		options.AspectRatio = "9:16"
	}
	if options.Resolution == "" {
		options.Resolution = "720p"
	}
	clock := poller.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	return &RenderStage{generator: generator, poller: poller, options: options, clock: clock, logger: logger}
}

// Name returns the stage name.
func (s *RenderStage) Name() models.StageName {
	return models.StageRender
}

// Execute submits the render job and polls it until done.
func (s *RenderStage) Execute(ctx context.Context, prompt *models.PromptOutput) (*models.VideoAsset, error) {
	if prompt == nil {
		return nil, invalidInput(s.Name(), "prompt output is missing")
	}
	if strings.TrimSpace(prompt.GenerationPrompt) == "" {
		return nil, invalidInput(s.Name(), "generation prompt is empty")
	}
	if prompt.CandidateID == "" {
		return nil, invalidInput(s.Name(), "candidate id is empty")
	}
	if s.generator == nil {
		return nil, capabilityFailure(s.Name(), "video generation capability is not configured")
	}

	job, err := s.generator.SubmitRender(ctx, prompt.GenerationPrompt, s.options.AspectRatio, s.options.Resolution)
	if err != nil {
		return nil, err
	}

	if s.logger != nil {
		s.logger.Info().
			Str("job_id", job.ID).
			Str("candidate_id", prompt.CandidateID).
			Str("aspect_ratio", s.options.AspectRatio).
			Str("resolution", s.options.Resolution).
			Msg("Render job submitted")
	}

	var final interfaces.RenderStatus
	err = s.poller.Until(ctx, func(ctx context.Context) (bool, error) {
		status, err := s.generator.PollRender(ctx, job)
		if err != nil {
			return false, err
		}
		final = status
		return status.Done, nil
	})
	if err != nil {
		return nil, err
	}

	if final.Locator == "" {
		return nil, capabilityFailure(s.Name(), "render job %s completed without a content locator", job.ID)
	}

	mimeType := final.MIMEType
	if mimeType == "" {
		mimeType = "video/mp4"
	}

	return &models.VideoAsset{
		CandidateID: prompt.CandidateID,
		Locator:     final.Locator,
		MIMEType:    mimeType,
		Status:      models.VideoStatusGenerated,
		GeneratedAt: s.clock.Now().UTC(),
	}, nil
}
