package stages

import (
	"context"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/trendreel/internal/interfaces"
	"github.com/ternarybob/trendreel/internal/models"
)

// PublishInput bundles the publish stage's inputs.
type PublishInput struct {
	Video       *models.VideoAsset
	Prompt      *models.PromptOutput
	Schedule    models.ScheduleConfig
	Credentials models.ChannelCredentials
}

// PublishStage uploads a generated video, immediately or scheduled. The
// publish call is not idempotent; the stage calls it exactly once.
type PublishStage struct {
	publisher interfaces.Publisher
	clock     Clock
	logger    arbor.ILogger
}

// NewPublishStage creates the publish stage.
func NewPublishStage(publisher interfaces.Publisher, clock Clock, logger arbor.ILogger) *PublishStage {
	if clock == nil {
		clock = SystemClock{}
	}
	return &PublishStage{publisher: publisher, clock: clock, logger: logger}
}

// Name returns the stage name.
func (s *PublishStage) Name() models.StageName {
	return models.StagePublish
}

// Execute publishes the video. The result is scheduled, echoing PublishAt,
// when the schedule carries a future publish time; otherwise uploaded.
func (s *PublishStage) Execute(ctx context.Context, in PublishInput) (*models.UploadResult, error) {
	if in.Video == nil {
		return nil, invalidInput(s.Name(), "video asset is missing")
	}
	if in.Video.Status != models.VideoStatusGenerated {
		return nil, invalidInput(s.Name(), "video asset status is %q, want %q", in.Video.Status, models.VideoStatusGenerated)
	}
	if in.Video.Locator == "" {
		return nil, invalidInput(s.Name(), "video asset locator is empty")
	}
	if in.Prompt == nil || strings.TrimSpace(in.Prompt.Title) == "" {
		return nil, invalidInput(s.Name(), "metadata title is empty")
	}
	if s.publisher == nil {
		return nil, capabilityFailure(s.Name(), "publish capability is not configured")
	}

	now := s.clock.Now()
	scheduled := in.Schedule.IsScheduledAfter(now)

	request := interfaces.PublishRequest{
		Video:       *in.Video,
		Title:       in.Prompt.Title,
		Description: in.Prompt.Description,
		Tags:        in.Prompt.Tags,
		Privacy:     in.Schedule.EffectivePrivacy(),
		Credentials: in.Credentials,
	}
	if scheduled {
		at := *in.Schedule.PublishAt
		request.PublishAt = &at
	}

	receipt, err := s.publisher.Publish(ctx, request)
	if err != nil {
		return nil, err
	}
	if receipt.RemoteID == "" {
		return nil, capabilityFailure(s.Name(), "publish returned no remote id")
	}

	result := &models.UploadResult{
		Platform:   s.publisher.Platform(),
		VideoID:    receipt.RemoteID,
		URL:        receipt.RemoteURL,
		Status:     models.UploadStatusUploaded,
		UploadedAt: now.UTC(),
	}
	if scheduled {
		at := *in.Schedule.PublishAt
		result.Status = models.UploadStatusScheduled
		result.ScheduledFor = &at
	}

	if s.logger != nil {
		s.logger.Info().
			Str("platform", result.Platform).
			Str("video_id", result.VideoID).
			Str("status", string(result.Status)).
			Msg("Video published")
	}
	return result, nil
}
