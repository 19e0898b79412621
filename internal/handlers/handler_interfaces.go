package handlers

import (
	"context"

	"github.com/ternarybob/trendreel/internal/models"
)

// RunService runs, resumes and reads pipeline runs.
type RunService interface {
	RunChannel(ctx context.Context, channelID string, forceMock bool) (*models.RunResult, error)
	RunAdHoc(ctx context.Context, channel models.Channel, forceMock bool) (*models.RunResult, error)
	Resume(ctx context.Context, runID string) (*models.RunResult, error)
	GetRun(ctx context.Context, runID string) (*models.RunResult, error)
	ListRuns(ctx context.Context, channelID string, limit int) ([]*models.RunResult, error)
}

// StatusProvider reports application status.
type StatusProvider interface {
	GetStatus() map[string]interface{}
}
