package stages

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const compositionPayload = `{
  "generation_prompt": "Vertical 9:16 macro shot of a liquid metal droplet melting through an ice cube.",
  "title": "Liquid metal vs ice",
  "description": "What happens when gallium meets ice?",
  "tags": ["science", "experiment"],
  "candidate_reference": {"id": "forged"}
}`

func TestCompositionStage_ReferencesSelectedCandidate(t *testing.T) {
	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, mock.Anything).Return(json.RawMessage(compositionPayload), nil).Once()
	stage := NewCompositionStage(gen, testLogger())

	candidate := selectedCandidate()
	out, err := stage.Execute(context.Background(), candidate)
	require.NoError(t, err)

	assert.Equal(t, candidate.ID, out.CandidateID)
	assert.Equal(t, candidate, out.CandidateReference)
	assert.Equal(t, "Liquid metal vs ice", out.Title)
	assert.Equal(t, []string{"science", "experiment"}, out.Tags)
	assert.NotEmpty(t, out.GenerationPrompt)

	// The reference is a copy; mutating it leaves the input alone.
	out.CandidateReference.SignalTags[0] = "changed"
	out.CandidateReference.ScoreBreakdown.Virality = 0
	assert.Equal(t, "science", candidate.SignalTags[0])
	assert.Equal(t, 10.0, candidate.ScoreBreakdown.Virality)
	gen.AssertExpectations(t)
}

func TestCompositionStage_RefusesUnselectedCandidate(t *testing.T) {
	gen := &rawGenerator{payload: compositionPayload}
	stage := NewCompositionStage(gen, nil)

	candidate := selectedCandidate()
	candidate.Selected = false
	out, err := stage.Execute(context.Background(), candidate)
	require.Error(t, err)
	assert.Nil(t, out)
	assert.True(t, errors.Is(err, ErrInvalidInput))
	assert.Zero(t, gen.calls)
}

func TestCompositionStage_NonConformingOutput(t *testing.T) {
	tests := map[string]string{
		"not an object":  `["a"]`,
		"missing prompt": `{"title":"t","description":"d"}`,
		"missing title":  `{"generation_prompt":"p","description":"d"}`,
	}
	for name, payload := range tests {
		t.Run(name, func(t *testing.T) {
			stage := NewCompositionStage(&rawGenerator{payload: payload}, nil)
			_, err := stage.Execute(context.Background(), selectedCandidate())
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrCapability))
		})
	}
}
