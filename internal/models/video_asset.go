package models

import (
	"fmt"
	"strings"
	"time"
)

// VideoStatus is the render outcome of a video asset.
type VideoStatus string

const (
	VideoStatusGenerated VideoStatus = "generated"
	VideoStatusFailed    VideoStatus = "failed"
)

// VideoAsset is a rendered video artifact. Locator is either a URL or an
// embedded data URI.
type VideoAsset struct {
	CandidateID string      `json:"candidate_id"`
	Locator     string      `json:"locator"`
	MIMEType    string      `json:"mime_type"`
	Status      VideoStatus `json:"status"`
	GeneratedAt time.Time   `json:"generated_at"`
}

// Validate checks that a generated asset carries a locator.
func (v *VideoAsset) Validate() error {
	switch v.Status {
	case VideoStatusGenerated:
		if v.Locator == "" {
			return fmt.Errorf("video asset for candidate %q is generated but has no locator", v.CandidateID)
		}
	case VideoStatusFailed:
	default:
		return fmt.Errorf("video asset has unknown status %q", v.Status)
	}
	return nil
}

// DisplayLocator returns the locator, with an embedded data URI shortened to
// its media type and approximate decoded size.
func (v *VideoAsset) DisplayLocator() string {
	header, payload, ok := strings.Cut(v.Locator, ",")
	if !strings.HasPrefix(v.Locator, "data:") || !ok {
		return v.Locator
	}
	return fmt.Sprintf("%s,<%d bytes omitted>", header, len(payload)*3/4)
}
