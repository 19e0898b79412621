package models

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// SourceItem is one observed piece of trending content (a video on the trend
// source's popular chart, or an entry of the fixed mock dataset).
type SourceItem struct {
	ID         string   `json:"id" toml:"id" yaml:"id" validate:"required"`
	Title      string   `json:"title" toml:"title" yaml:"title" validate:"required"`
	Tags       []string `json:"tags" toml:"tags" yaml:"tags"`
	ViewCount  int64    `json:"view_count" toml:"view_count" yaml:"view_count" validate:"gte=0"`
	Region     string   `json:"region,omitempty" toml:"region" yaml:"region"`
	GrowthRate float64  `json:"growth_rate" toml:"growth_rate" yaml:"growth_rate"`
}

// Validate checks the structural invariants of a source item.
func (s *SourceItem) Validate() error {
	if err := validator.New().Struct(s); err != nil {
		return fmt.Errorf("source item %q: %w", s.ID, err)
	}
	return nil
}
