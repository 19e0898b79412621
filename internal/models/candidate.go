package models

import "slices"

// ScoreBreakdown holds the per-dimension scores of a candidate. Each
// dimension is bounded to [0, MaxDimensionScore].
type ScoreBreakdown struct {
	Virality       float64 `json:"virality"`
	Feasibility    float64 `json:"feasibility"`
	TrendAlignment float64 `json:"trend_alignment"`
}

// MaxDimensionScore is the upper bound of each scoring dimension.
const MaxDimensionScore = 10.0

// CandidateTheme is one proposed video concept.
type CandidateTheme struct {
	ID             string          `json:"id" validate:"required"`
	Subject        string          `json:"subject" validate:"required"`
	Verb           string          `json:"verb" validate:"required"`
	Object         string          `json:"object" validate:"required"`
	Structure      string          `json:"structure" validate:"required"`
	SignalTags     []string        `json:"signal_tags" validate:"required,min=1,dive,required"`
	Rationale      string          `json:"rationale,omitempty"`
	TotalScore     float64         `json:"total_score"`
	Selected       bool            `json:"selected"`
	ScoreBreakdown *ScoreBreakdown `json:"score_breakdown,omitempty"`
}

// Clone returns a deep copy of the candidate.
func (c CandidateTheme) Clone() CandidateTheme {
	out := c
	out.SignalTags = slices.Clone(c.SignalTags)
	if c.ScoreBreakdown != nil {
		sb := *c.ScoreBreakdown
		out.ScoreBreakdown = &sb
	}
	return out
}

// SelectedCandidate returns the selected candidate of a batch, or nil.
func SelectedCandidate(candidates []CandidateTheme) *CandidateTheme {
	for i := range candidates {
		if candidates[i].Selected {
			c := candidates[i].Clone()
			return &c
		}
	}
	return nil
}

// ChannelState is the channel context candidates are weighted against.
type ChannelState struct {
	Niche    string `json:"niche" toml:"niche" yaml:"niche"`
	AvgViews int64  `json:"avg_views" toml:"avg_views" yaml:"avg_views" validate:"gte=0"`
	Audience string `json:"audience" toml:"audience" yaml:"audience"`
}
