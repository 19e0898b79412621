package stages

import (
	"context"
	"math"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/trendreel/internal/models"
)

// WeightingInput is the candidate batch plus the context it is scored against.
type WeightingInput struct {
	Candidates []models.CandidateTheme
	Channel    models.ChannelState
	Signals    *models.TrendSignals
}

// WeightingStage scores every candidate and selects exactly one winner.
// Tie-break: the first candidate, in input order, that reaches the maximum
// total wins.
type WeightingStage struct {
	scorer  Scorer
	weights Weights
	logger  arbor.ILogger
}

// NewWeightingStage creates the weighting stage.
func NewWeightingStage(scorer Scorer, weights Weights, logger arbor.ILogger) *WeightingStage {
	if scorer == nil {
		scorer = HeuristicScorer{}
	}
	return &WeightingStage{scorer: scorer, weights: weights, logger: logger}
}

// Name returns the stage name.
func (s *WeightingStage) Name() models.StageName {
	return models.StageWeighting
}

// Execute returns a new slice; the input candidates are not modified.
func (s *WeightingStage) Execute(ctx context.Context, in WeightingInput) ([]models.CandidateTheme, error) {
	if len(in.Candidates) == 0 {
		return nil, invalidInput(s.Name(), "candidate array is empty")
	}
	for i, c := range in.Candidates {
		if c.ID == "" {
			return nil, invalidInput(s.Name(), "candidate %d has an empty id", i)
		}
	}

	scored := make([]models.CandidateTheme, len(in.Candidates))
	for i, c := range in.Candidates {
		breakdown, err := s.scorer.Score(ctx, c, in)
		if err != nil {
			return nil, err
		}
		breakdown = models.ScoreBreakdown{
			Virality:       clampDimension(breakdown.Virality),
			Feasibility:    clampDimension(breakdown.Feasibility),
			TrendAlignment: clampDimension(breakdown.TrendAlignment),
		}

		out := c.Clone()
		out.Selected = false
		out.ScoreBreakdown = &breakdown
		out.TotalScore = s.weights.Total(breakdown)
		if !validScore(out.TotalScore) {
			return nil, capabilityFailure(s.Name(), "candidate %q has an invalid total score %v", c.ID, out.TotalScore)
		}
		scored[i] = out
	}

	winner := SelectWinner(scored)
	if winner < 0 {
		return nil, capabilityFailure(s.Name(), "no candidate could be selected")
	}
	scored[winner].Selected = true

	if s.logger != nil {
		s.logger.Debug().
			Str("winner_id", scored[winner].ID).
			Float64("winner_score", scored[winner].TotalScore).
			Int("candidates", len(scored)).
			Msg("Candidate selected")
	}
	return scored, nil
}

// SelectWinner returns the index of the first candidate holding the maximum
// valid total score, or -1 when no score is a finite non-negative number.
func SelectWinner(candidates []models.CandidateTheme) int {
	winner := -1
	best := math.Inf(-1)
	for i, c := range candidates {
		if !validScore(c.TotalScore) {
			continue
		}
		if c.TotalScore > best {
			best = c.TotalScore
			winner = i
		}
	}
	return winner
}

func validScore(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}

// clampDimension bounds a dimension to [0, MaxDimensionScore]. NaN is kept so
// that SelectWinner can reject it.
func clampDimension(v float64) float64 {
	if math.IsNaN(v) {
		return v
	}
	return math.Max(0, math.Min(models.MaxDimensionScore, v))
}
