package stages

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/trendreel/internal/interfaces"
	"github.com/ternarybob/trendreel/internal/models"
)

const threeCandidates = `[
  {"id":"c1","subject":"ai","verb":"predicts","object":"trend","structure":"analysis","signal_tags":["ai"],"total_score":9,"selected":true},
  {"id":"c2","subject":"liquid metal","verb":"melts","object":"ice","structure":"experiment","signal_tags":["science"]},
  {"id":"c3","subject":"robot","verb":"tries","object":"parkour","structure":"challenge","signal_tags":["robotics","ai"]}
]`

func testSignals() *models.TrendSignals {
	s := models.NewTrendSignals()
	s.Subjects["ai"] = 1
	s.AlgorithmTags["science"] = 1
	return s
}

func TestCandidateGenerationStage_ReturnsExactlyThreeUnscored(t *testing.T) {
	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, mock.MatchedBy(func(req interfaces.GenerationRequest) bool {
		return req.Schema != nil && req.Prompt != ""
	})).Return(json.RawMessage(threeCandidates), nil).Once()

	stage := NewCandidateGenerationStage(gen, testLogger())
	candidates, err := stage.Execute(context.Background(), testSignals())
	require.NoError(t, err)
	require.Len(t, candidates, CandidateCount)

	ids := map[string]bool{}
	for _, c := range candidates {
		assert.Zero(t, c.TotalScore)
		assert.False(t, c.Selected)
		assert.Nil(t, c.ScoreBreakdown)
		assert.NotEmpty(t, c.SignalTags)
		ids[c.ID] = true
	}
	assert.Len(t, ids, CandidateCount)
	gen.AssertExpectations(t)
}

func TestCandidateGenerationStage_TruncatesExtraCandidates(t *testing.T) {
	payload := `[
	  {"id":"a","subject":"s","verb":"v","object":"o","structure":"x","signal_tags":["t"]},
	  {"id":"b","subject":"s","verb":"v","object":"o","structure":"x","signal_tags":["t"]},
	  {"id":"c","subject":"s","verb":"v","object":"o","structure":"x","signal_tags":["t"]},
	  {"id":"d","subject":"s","verb":"v","object":"o","structure":"x","signal_tags":["t"]}
	]`
	stage := NewCandidateGenerationStage(&rawGenerator{payload: payload}, nil)

	candidates, err := stage.Execute(context.Background(), testSignals())
	require.NoError(t, err)
	require.Len(t, candidates, 3)
	assert.Equal(t, "c", candidates[2].ID)
}

func TestCandidateGenerationStage_RejectsEmptySignalsBeforeCalling(t *testing.T) {
	gen := &rawGenerator{payload: threeCandidates}
	stage := NewCandidateGenerationStage(gen, nil)

	for _, signals := range []*models.TrendSignals{nil, models.NewTrendSignals()} {
		_, err := stage.Execute(context.Background(), signals)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "empty")
		assert.True(t, errors.Is(err, ErrInvalidInput))
	}
	assert.Zero(t, gen.calls)
}

func TestCandidateGenerationStage_NonConformingOutput(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		message string
	}{
		{name: "object", payload: `{"id":"c1"}`, message: "not an array"},
		{name: "empty array", payload: `[]`, message: "empty array"},
		{name: "too few", payload: `[{"id":"a","subject":"s","verb":"v","object":"o","structure":"x","signal_tags":["t"]}]`, message: "has 1 candidates"},
		{
			name: "missing field",
			payload: `[
			  {"id":"a","subject":"s","verb":"v","object":"o","structure":"x","signal_tags":["t"]},
			  {"id":"b","subject":"s","verb":"v","object":"o","signal_tags":["t"]},
			  {"id":"c","subject":"s","verb":"v","object":"o","structure":"x","signal_tags":["t"]}
			]`,
			message: "candidate 1",
		},
		{
			name: "empty signal tags",
			payload: `[
			  {"id":"a","subject":"s","verb":"v","object":"o","structure":"x","signal_tags":[]},
			  {"id":"b","subject":"s","verb":"v","object":"o","structure":"x","signal_tags":["t"]},
			  {"id":"c","subject":"s","verb":"v","object":"o","structure":"x","signal_tags":["t"]}
			]`,
			message: "candidate 0",
		},
		{
			name: "duplicate id",
			payload: `[
			  {"id":"a","subject":"s","verb":"v","object":"o","structure":"x","signal_tags":["t"]},
			  {"id":"a","subject":"s","verb":"v","object":"o","structure":"x","signal_tags":["t"]},
			  {"id":"c","subject":"s","verb":"v","object":"o","structure":"x","signal_tags":["t"]}
			]`,
			message: "not unique",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stage := NewCandidateGenerationStage(&rawGenerator{payload: tt.payload}, nil)
			candidates, err := stage.Execute(context.Background(), testSignals())
			require.Error(t, err)
			assert.Nil(t, candidates)
			assert.Contains(t, err.Error(), tt.message)
			assert.True(t, errors.Is(err, ErrCapability))
		})
	}
}

func TestCandidateGenerationStage_PropagatesCapabilityError(t *testing.T) {
	boom := errors.New("quota exceeded")
	stage := NewCandidateGenerationStage(&rawGenerator{err: boom}, nil)

	_, err := stage.Execute(context.Background(), testSignals())
	assert.Equal(t, boom, err)
	assert.Equal(t, KindCapability, KindOf(err))
}

func TestCandidateGenerationStage_MissingGenerator(t *testing.T) {
	stage := NewCandidateGenerationStage(nil, nil)
	_, err := stage.Execute(context.Background(), testSignals())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCapability))
}
