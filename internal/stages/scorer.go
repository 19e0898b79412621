package stages

import (
	"context"
	"encoding/json"
	"math"
	"strings"

	"github.com/ternarybob/trendreel/internal/interfaces"
	"github.com/ternarybob/trendreel/internal/models"
)

// Scorer rates one candidate against the channel context.
type Scorer interface {
	Score(ctx context.Context, candidate models.CandidateTheme, in WeightingInput) (models.ScoreBreakdown, error)
}

// Weights combines the dimensions into a total score.
type Weights struct {
	Virality       float64 `toml:"virality"`
	Feasibility    float64 `toml:"feasibility"`
	TrendAlignment float64 `toml:"trend_alignment"`
}

// DefaultWeights sums the dimensions unweighted.
func DefaultWeights() Weights {
	return Weights{Virality: 1, Feasibility: 1, TrendAlignment: 1}
}

// Total returns the weighted sum of a breakdown.
func (w Weights) Total(b models.ScoreBreakdown) float64 {
	return w.Virality*b.Virality + w.Feasibility*b.Feasibility + w.TrendAlignment*b.TrendAlignment
}

// HeuristicScorer scores deterministically from trend signals and the channel
// state, without any external call.
type HeuristicScorer struct{}

// Score rates virality from tag/keyword frequency and channel reach,
// feasibility from how concrete the concept is, and trend alignment from the
// share of the concept's words present in the signals.
func (HeuristicScorer) Score(_ context.Context, c models.CandidateTheme, in WeightingInput) (models.ScoreBreakdown, error) {
	signals := in.Signals
	if signals == nil {
		signals = models.NewTrendSignals()
	}

	var tagHits float64
	for _, tag := range c.SignalTags {
		tag = strings.ToLower(strings.TrimLeft(tag, "#"))
		tagHits += float64(signals.AlgorithmTags[tag] + signals.Subjects[tag] + signals.Objects[tag])
	}
	reach := 0.0
	if in.Channel.AvgViews > 0 {
		reach = math.Min(2, math.Log10(float64(in.Channel.AvgViews))/3)
	}
	virality := 4 + math.Min(4, tagHits) + reach

	feasibility := 10.0
	for _, field := range []string{c.Subject, c.Verb, c.Object} {
		if n := len(strings.Fields(field)); n > 3 {
			feasibility -= float64(n - 3)
		}
	}
	if c.Structure == "" {
		feasibility -= 3
	}

	words := []string{c.Subject, c.Verb, c.Object, c.Structure}
	hits := 0
	for _, w := range words {
		for _, token := range tokenize(w) {
			if signals.Contains(token) {
				hits++
				break
			}
		}
	}
	alignment := 10 * float64(hits) / float64(len(words))
	if in.Channel.Niche != "" && strings.Contains(strings.ToLower(c.Subject+" "+c.Object), strings.ToLower(in.Channel.Niche)) {
		alignment += 2
	}

	return models.ScoreBreakdown{
		Virality:       virality,
		Feasibility:    feasibility,
		TrendAlignment: alignment,
	}, nil
}

const scoreSystemInstruction = `You score short-form video concepts for a specific channel. Score each
dimension from 0 to 10: virality (likelihood to spread), feasibility (can an AI video model render it
in 8 seconds), trend_alignment (fit with the supplied trend signals and the channel niche).`

// GenerativeScorer delegates scoring to the structured generation capability.
type GenerativeScorer struct {
	Generator interfaces.StructuredGenerator
}

// scoreOutput mirrors ScoreSchema; pointers tell an absent dimension from a zero.
type scoreOutput struct {
	Virality       *float64 `json:"virality"`
	Feasibility    *float64 `json:"feasibility"`
	TrendAlignment *float64 `json:"trend_alignment"`
}

// Score asks the generator for a score breakdown. A payload missing any
// dimension fails the stage.
func (g GenerativeScorer) Score(ctx context.Context, c models.CandidateTheme, in WeightingInput) (models.ScoreBreakdown, error) {
	if g.Generator == nil {
		return models.ScoreBreakdown{}, capabilityFailure(models.StageWeighting, "structured generation capability is not configured")
	}
	payload, err := json.Marshal(map[string]interface{}{
		"candidate": c,
		"channel":   in.Channel,
		"signals":   in.Signals,
	})
	if err != nil {
		return models.ScoreBreakdown{}, invalidInput(models.StageWeighting, "candidate %q is not serialisable: %v", c.ID, err)
	}
	raw, err := g.Generator.Generate(ctx, interfaces.GenerationRequest{
		Prompt:            string(payload),
		SystemInstruction: scoreSystemInstruction,
		Schema:            ScoreSchema,
	})
	if err != nil {
		return models.ScoreBreakdown{}, err
	}

	var out scoreOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return models.ScoreBreakdown{}, capabilityFailure(models.StageWeighting, "score output is not a breakdown object: %v", err)
	}
	switch {
	case out.Virality == nil:
		return models.ScoreBreakdown{}, capabilityFailure(models.StageWeighting, "score output is missing virality")
	case out.Feasibility == nil:
		return models.ScoreBreakdown{}, capabilityFailure(models.StageWeighting, "score output is missing feasibility")
	case out.TrendAlignment == nil:
		return models.ScoreBreakdown{}, capabilityFailure(models.StageWeighting, "score output is missing trend_alignment")
	}
	return models.ScoreBreakdown{
		Virality:       *out.Virality,
		Feasibility:    *out.Feasibility,
		TrendAlignment: *out.TrendAlignment,
	}, nil
}
