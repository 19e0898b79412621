package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/trendreel/internal/models"
)

// PublishRequest carries everything the publish capability needs.
type PublishRequest struct {
	Video       models.VideoAsset
	Title       string
	Description string
	Tags        []string
	Privacy     models.PrivacyLevel
	PublishAt   *time.Time
	Credentials models.ChannelCredentials
}

// PublishReceipt identifies the remote artifact created by a publish.
type PublishReceipt struct {
	RemoteID  string
	RemoteURL string
}

// Publisher is the publish capability. Publish is side-effecting and not
// idempotent: every successful call creates a new remote artifact.
type Publisher interface {
	Platform() string
	Publish(ctx context.Context, request PublishRequest) (PublishReceipt, error)
}
