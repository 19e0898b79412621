package stages

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/trendreel/internal/models"
)

// fixedScorer returns a preset breakdown per candidate id.
type fixedScorer map[string]models.ScoreBreakdown

func (f fixedScorer) Score(_ context.Context, c models.CandidateTheme, _ WeightingInput) (models.ScoreBreakdown, error) {
	return f[c.ID], nil
}

func unscored(ids ...string) []models.CandidateTheme {
	out := make([]models.CandidateTheme, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.CandidateTheme{
			ID: id, Subject: "s", Verb: "v", Object: "o", Structure: "x", SignalTags: []string{"t"},
		})
	}
	return out
}

func TestWeightingStage_TieBreakPicksFirstMaximum(t *testing.T) {
	scorer := fixedScorer{
		"c1": {Virality: 10},
		"c2": {Virality: 10, Feasibility: 10, TrendAlignment: 5},
		"c3": {Virality: 10, Feasibility: 10, TrendAlignment: 5},
	}
	stage := NewWeightingStage(scorer, DefaultWeights(), testLogger())

	scored, err := stage.Execute(context.Background(), WeightingInput{Candidates: unscored("c1", "c2", "c3")})
	require.NoError(t, err)
	require.Len(t, scored, 3)

	assert.Equal(t, []float64{10, 25, 25}, []float64{scored[0].TotalScore, scored[1].TotalScore, scored[2].TotalScore})
	assert.False(t, scored[0].Selected)
	assert.True(t, scored[1].Selected)
	assert.False(t, scored[2].Selected)
}

func TestWeightingStage_ExactlyOneSelectedAndInputUntouched(t *testing.T) {
	input := unscored("a", "b", "c")
	input[2].Selected = true
	stage := NewWeightingStage(nil, DefaultWeights(), nil)

	signals := models.NewTrendSignals()
	signals.Subjects["s"] = 2
	scored, err := stage.Execute(context.Background(), WeightingInput{
		Candidates: input,
		Channel:    models.ChannelState{Niche: "science", AvgViews: 10000},
		Signals:    signals,
	})
	require.NoError(t, err)

	selected := 0
	for _, c := range scored {
		require.NotNil(t, c.ScoreBreakdown)
		assert.GreaterOrEqual(t, c.TotalScore, 0.0)
		for _, v := range []float64{c.ScoreBreakdown.Virality, c.ScoreBreakdown.Feasibility, c.ScoreBreakdown.TrendAlignment} {
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, models.MaxDimensionScore)
		}
		if c.Selected {
			selected++
		}
	}
	assert.Equal(t, 1, selected)
	assert.True(t, scored[0].Selected, "equal heuristic scores select the first candidate")

	assert.True(t, input[2].Selected)
	assert.Nil(t, input[0].ScoreBreakdown)
}

func TestWeightingStage_ClampsDimensions(t *testing.T) {
	scorer := fixedScorer{"a": {Virality: 42, Feasibility: -3, TrendAlignment: 5}}
	stage := NewWeightingStage(scorer, DefaultWeights(), nil)

	scored, err := stage.Execute(context.Background(), WeightingInput{Candidates: unscored("a")})
	require.NoError(t, err)
	assert.Equal(t, models.ScoreBreakdown{Virality: 10, Feasibility: 0, TrendAlignment: 5}, *scored[0].ScoreBreakdown)
	assert.Equal(t, 15.0, scored[0].TotalScore)
}

func TestWeightingStage_RejectsInvalidInput(t *testing.T) {
	stage := NewWeightingStage(nil, DefaultWeights(), nil)

	_, err := stage.Execute(context.Background(), WeightingInput{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "candidate array is empty")
	assert.True(t, errors.Is(err, ErrInvalidInput))

	_, err = stage.Execute(context.Background(), WeightingInput{Candidates: unscored("a", "")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty id")
}

func TestWeightingStage_InvalidScoreFails(t *testing.T) {
	scorer := fixedScorer{"a": {Virality: math.NaN()}, "b": {Virality: 3}}
	stage := NewWeightingStage(scorer, DefaultWeights(), nil)

	_, err := stage.Execute(context.Background(), WeightingInput{Candidates: unscored("a", "b")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCapability))
}

func TestSelectWinner(t *testing.T) {
	withScores := func(scores ...float64) []models.CandidateTheme {
		out := make([]models.CandidateTheme, len(scores))
		for i, s := range scores {
			out[i].TotalScore = s
		}
		return out
	}

	assert.Equal(t, 1, SelectWinner(withScores(10, 25, 25)))
	assert.Equal(t, 0, SelectWinner(withScores(0, 0, 0)))
	assert.Equal(t, 2, SelectWinner(withScores(math.NaN(), -1, 3)))
	assert.Equal(t, -1, SelectWinner(withScores(math.NaN(), math.Inf(1))))
	assert.Equal(t, -1, SelectWinner(nil))
}

func TestWeights_Total(t *testing.T) {
	w := Weights{Virality: 2, Feasibility: 1, TrendAlignment: 0.5}
	assert.Equal(t, 2*4+3+0.5*6, w.Total(models.ScoreBreakdown{Virality: 4, Feasibility: 3, TrendAlignment: 6}))
}

func TestGenerativeScorer(t *testing.T) {
	tests := []struct {
		name      string
		generator *rawGenerator
		nilGen    bool
		want      models.ScoreBreakdown
		wantErr   string
		wantKind  error
	}{
		{
			name:      "complete breakdown",
			generator: &rawGenerator{payload: `{"virality":7.5,"feasibility":9,"trend_alignment":0}`},
			want:      models.ScoreBreakdown{Virality: 7.5, Feasibility: 9, TrendAlignment: 0},
		},
		{
			name:      "generator error is returned",
			generator: &rawGenerator{err: errors.New("quota exhausted")},
			wantErr:   "quota exhausted",
		},
		{
			name:     "nil generator",
			nilGen:   true,
			wantErr:  "not configured",
			wantKind: ErrCapability,
		},
		{
			name:      "unrelated object",
			generator: &rawGenerator{payload: `{"unrelated":"x"}`},
			wantErr:   "missing virality",
			wantKind:  ErrCapability,
		},
		{
			name:      "missing one dimension",
			generator: &rawGenerator{payload: `{"virality":3,"feasibility":4}`},
			wantErr:   "missing trend_alignment",
			wantKind:  ErrCapability,
		},
		{
			name:      "not an object",
			generator: &rawGenerator{payload: `[1,2,3]`},
			wantErr:   "not a breakdown object",
			wantKind:  ErrCapability,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scorer := GenerativeScorer{}
			if !tt.nilGen {
				scorer.Generator = tt.generator
			}

			got, err := scorer.Score(context.Background(), unscored("a")[0], WeightingInput{})
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				if tt.wantKind != nil {
					assert.True(t, errors.Is(err, tt.wantKind))
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWeightingStage_NonConformingScoreFailsStage(t *testing.T) {
	stage := NewWeightingStage(GenerativeScorer{Generator: &rawGenerator{payload: `{"unrelated":"x"}`}}, DefaultWeights(), nil)

	scored, err := stage.Execute(context.Background(), WeightingInput{Candidates: unscored("a", "b", "c")})
	require.Error(t, err)
	assert.Nil(t, scored)
	assert.True(t, errors.Is(err, ErrCapability))

	var se *StageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, models.StageWeighting, se.Stage)
}

func TestHeuristicScorer_DeterministicAndBounded(t *testing.T) {
	signals := models.NewTrendSignals()
	signals.Subjects["liquid"] = 4
	signals.AlgorithmTags["science"] = 9
	signals.Objects["ice"] = 2

	tests := []struct {
		name      string
		candidate models.CandidateTheme
		channel   models.ChannelState
	}{
		{name: "aligned", candidate: selectedCandidate(), channel: models.ChannelState{Niche: "liquid", AvgViews: 1000000000}},
		{name: "unaligned", candidate: models.CandidateTheme{ID: "x", Subject: "cat", Verb: "sits", Object: "mat"}},
		{
			name: "verbose concept",
			candidate: models.CandidateTheme{
				ID:      "y",
				Subject: "a very long and winding subject description that rambles",
				Verb:    "slowly and carefully considers",
				Object:  "an equally long object with many many words in it",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := WeightingInput{Channel: tt.channel, Signals: signals}
			first, err := HeuristicScorer{}.Score(context.Background(), tt.candidate, in)
			require.NoError(t, err)
			second, err := HeuristicScorer{}.Score(context.Background(), tt.candidate, in)
			require.NoError(t, err)
			assert.Equal(t, first, second)

			stage := NewWeightingStage(HeuristicScorer{}, DefaultWeights(), nil)
			scored, err := stage.Execute(context.Background(), WeightingInput{
				Candidates: []models.CandidateTheme{tt.candidate},
				Channel:    tt.channel,
				Signals:    signals,
			})
			require.NoError(t, err)
			b := scored[0].ScoreBreakdown
			for _, v := range []float64{b.Virality, b.Feasibility, b.TrendAlignment} {
				assert.GreaterOrEqual(t, v, 0.0)
				assert.LessOrEqual(t, v, models.MaxDimensionScore)
			}
			assert.LessOrEqual(t, scored[0].TotalScore, 3*models.MaxDimensionScore)
		})
	}

	aligned, _ := HeuristicScorer{}.Score(context.Background(), selectedCandidate(), WeightingInput{Signals: signals})
	unaligned, _ := HeuristicScorer{}.Score(context.Background(), models.CandidateTheme{ID: "x", Subject: "cat", Verb: "sits", Object: "mat", Structure: "x"}, WeightingInput{Signals: signals})
	assert.Greater(t, aligned.TrendAlignment, unaligned.TrendAlignment)
}
