package youtube

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/trendreel/internal/common"
	"github.com/ternarybob/trendreel/internal/interfaces"
	"github.com/ternarybob/trendreel/internal/models"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

// TrendSource reads the most-popular chart of a region.
type TrendSource struct {
	service  *youtube.Service
	defaults common.TrendsConfig
	now      func() time.Time
	logger   arbor.ILogger
}

var _ interfaces.TrendSource = (*TrendSource)(nil)

// NewTrendSource creates a trend source authorised by an API key. Extra
// client options are appended, which tests use to point at a local server.
func NewTrendSource(ctx context.Context, cfg common.YouTubeConfig, defaults common.TrendsConfig, logger arbor.ILogger, opts ...option.ClientOption) (*TrendSource, error) {
	apiKey, err := common.ResolveAPIKey("youtube_api_key", cfg.APIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve YouTube API key: %w", err)
	}

	svc, err := youtube.NewService(ctx, append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("youtube service: %w", err)
	}

	return &TrendSource{service: svc, defaults: defaults, now: time.Now, logger: logger}, nil
}

// Name returns the source name.
func (s *TrendSource) Name() string {
	return "youtube"
}

// FetchRecent lists the popular chart for query, falling back to the
// configured region, category and result count.
func (s *TrendSource) FetchRecent(ctx context.Context, query models.TrendQuery) ([]models.SourceItem, error) {
	region := query.Region
	if region == "" {
		region = s.defaults.Region
	}
	category := query.CategoryID
	if category == "" {
		category = s.defaults.CategoryID
	}
	maxResults := query.MaxResults
	if maxResults <= 0 {
		maxResults = s.defaults.MaxResults
	}

	call := s.service.Videos.List([]string{"snippet", "statistics"}).
		Chart("mostPopular").
		MaxResults(maxResults).
		Context(ctx)
	if region != "" {
		call = call.RegionCode(region)
	}
	if category != "" {
		call = call.VideoCategoryId(category)
	}

	resp, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("youtube popular chart: %w", err)
	}

	now := s.now()
	items := make([]models.SourceItem, 0, len(resp.Items))
	for _, v := range resp.Items {
		if item, ok := toSourceItem(v, region, now); ok {
			items = append(items, item)
		}
	}

	s.logger.Debug().
		Str("region", region).
		Str("category", category).
		Int("items", len(items)).
		Msg("Fetched trending videos")

	return items, nil
}

// toSourceItem maps a chart entry. Growth rate is views per hour since
// publication.
func toSourceItem(v *youtube.Video, region string, now time.Time) (models.SourceItem, bool) {
	if v == nil || v.Id == "" || v.Snippet == nil || v.Snippet.Title == "" {
		return models.SourceItem{}, false
	}

	item := models.SourceItem{
		ID:     v.Id,
		Title:  v.Snippet.Title,
		Tags:   append([]string(nil), v.Snippet.Tags...),
		Region: region,
	}
	if v.Statistics != nil {
		item.ViewCount = int64(v.Statistics.ViewCount)
	}

	if published, err := time.Parse(time.RFC3339, v.Snippet.PublishedAt); err == nil {
		hours := now.Sub(published).Hours()
		if hours < 1 {
			hours = 1
		}
		item.GrowthRate = float64(item.ViewCount) / hours
	}
	return item, true
}
