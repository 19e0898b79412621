package youtube

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/trendreel/internal/common"
	"github.com/ternarybob/trendreel/internal/interfaces"
	"github.com/ternarybob/trendreel/internal/models"
	"google.golang.org/api/youtube/v3"
)

// uploadFunc performs the insert call for one video.
type uploadFunc func(ctx context.Context, creds models.ChannelCredentials, video *youtube.Video, media io.Reader) (*youtube.Video, error)

// Publisher uploads videos to a channel.
type Publisher struct {
	config     common.YouTubeConfig
	geminiKey  string
	httpClient *http.Client
	upload     uploadFunc
	logger     arbor.ILogger
}

var _ interfaces.Publisher = (*Publisher)(nil)

// NewPublisher creates a publisher. The Gemini key authorises downloads of
// generated videos served by the Gemini files API.
func NewPublisher(cfg common.YouTubeConfig, geminiKey string, logger arbor.ILogger) *Publisher {
	p := &Publisher{
		config:     cfg,
		geminiKey:  geminiKey,
		httpClient: &http.Client{Timeout: common.ParseDurationOr(cfg.UploadTimeout, 10*time.Minute)},
		logger:     logger,
	}
	p.upload = p.insert
	return p
}

// Platform returns the platform name.
func (p *Publisher) Platform() string {
	return "youtube"
}

// Publish uploads the video once. A future PublishAt uploads as private with a
// scheduled publish time, which is how the platform schedules releases.
func (p *Publisher) Publish(ctx context.Context, request interfaces.PublishRequest) (interfaces.PublishReceipt, error) {
	uploadCtx, cancel := context.WithTimeout(ctx, common.ParseDurationOr(p.config.UploadTimeout, 10*time.Minute))
	defer cancel()

	media, err := openLocator(uploadCtx, p.httpClient, request.Video.Locator, p.geminiKey)
	if err != nil {
		return interfaces.PublishReceipt{}, err
	}
	defer media.Close()

	video := buildVideo(request, p.config.CategoryID)

	p.logger.Info().
		Str("title", request.Title).
		Str("privacy", video.Status.PrivacyStatus).
		Str("publish_at", video.Status.PublishAt).
		Msg("Uploading video")

	uploaded, err := p.upload(uploadCtx, request.Credentials, video, media)
	if err != nil {
		return interfaces.PublishReceipt{}, fmt.Errorf("youtube upload: %w", err)
	}
	if uploaded == nil || uploaded.Id == "" {
		return interfaces.PublishReceipt{}, fmt.Errorf("youtube upload returned no video id")
	}

	return interfaces.PublishReceipt{
		RemoteID:  uploaded.Id,
		RemoteURL: WatchURL(uploaded.Id),
	}, nil
}

func (p *Publisher) insert(ctx context.Context, creds models.ChannelCredentials, video *youtube.Video, media io.Reader) (*youtube.Video, error) {
	svc, err := uploadService(ctx, p.config, creds)
	if err != nil {
		return nil, err
	}
	return svc.Videos.Insert([]string{"snippet", "status"}, video).Media(media).Context(ctx).Do()
}

// buildVideo maps a publish request onto the insert resource.
func buildVideo(request interfaces.PublishRequest, categoryID string) *youtube.Video {
	status := &youtube.VideoStatus{
		PrivacyStatus:           string(request.Privacy),
		SelfDeclaredMadeForKids: false,
	}
	if status.PrivacyStatus == "" {
		status.PrivacyStatus = string(models.PrivacyPrivate)
	}
	if request.PublishAt != nil {
		status.PrivacyStatus = string(models.PrivacyPrivate)
		status.PublishAt = request.PublishAt.UTC().Format(time.RFC3339)
	}

	return &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       request.Title,
			Description: request.Description,
			Tags:        request.Tags,
			CategoryId:  categoryID,
		},
		Status: status,
	}
}

// WatchURL returns the public watch URL of a video id.
func WatchURL(id string) string {
	return "https://www.youtube.com/watch?v=" + id
}
