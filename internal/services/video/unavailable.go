package video

import (
	"context"
	"fmt"

	"github.com/ternarybob/trendreel/internal/interfaces"
)

// Unavailable stands in for the video generator when it cannot be
// configured. Every call fails with the configuration error, so runs halt
// at render instead of at startup.
type Unavailable struct {
	Err error
}

var _ interfaces.VideoGenerator = Unavailable{}

func (u Unavailable) SubmitRender(ctx context.Context, prompt, aspectRatio, resolution string) (interfaces.RenderJob, error) {
	return interfaces.RenderJob{}, fmt.Errorf("video generation unavailable: %w", u.Err)
}

func (u Unavailable) PollRender(ctx context.Context, job interfaces.RenderJob) (interfaces.RenderStatus, error) {
	return interfaces.RenderStatus{}, fmt.Errorf("video generation unavailable: %w", u.Err)
}
