package interfaces

import (
	"context"

	"github.com/ternarybob/trendreel/internal/models"
)

// TrendSource acquires recent trending content.
type TrendSource interface {
	Name() string
	FetchRecent(ctx context.Context, query models.TrendQuery) ([]models.SourceItem, error)
}
