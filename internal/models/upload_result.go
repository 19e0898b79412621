package models

import (
	"fmt"
	"time"
)

// UploadStatus is the outcome of a publish attempt.
type UploadStatus string

const (
	UploadStatusUploaded  UploadStatus = "uploaded"
	UploadStatusScheduled UploadStatus = "scheduled"
	UploadStatusFailed    UploadStatus = "failed"
)

// UploadResult is the outcome of publishing a video asset.
type UploadResult struct {
	Platform     string       `json:"platform"`
	VideoID      string       `json:"video_id"`
	URL          string       `json:"url"`
	Status       UploadStatus `json:"status"`
	ScheduledFor *time.Time   `json:"scheduled_for,omitempty"`
	UploadedAt   time.Time    `json:"uploaded_at"`
}

// Validate checks the status-dependent invariants.
func (u *UploadResult) Validate() error {
	switch u.Status {
	case UploadStatusScheduled:
		if u.ScheduledFor == nil {
			return fmt.Errorf("scheduled upload has no scheduled_for")
		}
	case UploadStatusFailed:
		if u.VideoID != "" || u.URL != "" {
			return fmt.Errorf("failed upload must not carry a video id or url")
		}
	case UploadStatusUploaded:
	default:
		return fmt.Errorf("unknown upload status %q", u.Status)
	}
	return nil
}
