package common

import (
	"github.com/google/uuid"
)

// NewRunID generates a unique pipeline run ID
// Format: run_<uuid>
func NewRunID() string {
	return "run_" + uuid.New().String()
}

// NewChannelID generates a unique channel ID
// Format: ch_<uuid>
func NewChannelID() string {
	return "ch_" + uuid.New().String()
}
