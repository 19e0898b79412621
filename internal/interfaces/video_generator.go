package interfaces

import "context"

// RenderJob is the handle of a submitted render job.
type RenderJob struct {
	ID string
}

// RenderStatus is one poll observation of a render job.
type RenderStatus struct {
	Done     bool
	Locator  string
	MIMEType string
}

// VideoGenerator is the long-running video generation capability: submit a
// job, then poll until it reports done.
type VideoGenerator interface {
	SubmitRender(ctx context.Context, prompt, aspectRatio, resolution string) (RenderJob, error)
	PollRender(ctx context.Context, job RenderJob) (RenderStatus, error)
}
