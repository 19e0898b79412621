package stages

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/trendreel/internal/interfaces"
	"github.com/ternarybob/trendreel/internal/models"
)

const compositionSystemInstruction = `You write production assets for an 8 second vertical (9:16) AI-generated video.
generation_prompt is a single cinematic scene description for a text-to-video model: subject, action,
setting, camera movement, lighting. title is at most 90 characters. description is 2-3 sentences
followed by hashtags.`

// compositionOutput is the generated part of a PromptOutput.
type compositionOutput struct {
	GenerationPrompt string   `json:"generation_prompt"`
	Title            string   `json:"title"`
	Description      string   `json:"description"`
	Tags             []string `json:"tags"`
}

// CompositionStage turns the winning candidate into production assets.
type CompositionStage struct {
	generator interfaces.StructuredGenerator
	logger    arbor.ILogger
}

// NewCompositionStage creates the composition stage.
func NewCompositionStage(generator interfaces.StructuredGenerator, logger arbor.ILogger) *CompositionStage {
	return &CompositionStage{generator: generator, logger: logger}
}

// Name returns the stage name.
func (s *CompositionStage) Name() models.StageName {
	return models.StageComposition
}

// Execute refuses unselected candidates before any external call. The
// candidate reference of the output is a deep copy of the input, attached
// here rather than taken from the generated payload.
func (s *CompositionStage) Execute(ctx context.Context, candidate models.CandidateTheme) (*models.PromptOutput, error) {
	if !candidate.Selected {
		return nil, invalidInput(s.Name(), "candidate %q is not the selected candidate", candidate.ID)
	}
	if candidate.ID == "" {
		return nil, invalidInput(s.Name(), "selected candidate has an empty id")
	}
	if s.generator == nil {
		return nil, capabilityFailure(s.Name(), "structured generation capability is not configured")
	}

	conceptJSON, err := json.Marshal(candidate)
	if err != nil {
		return nil, invalidInput(s.Name(), "candidate is not serialisable: %v", err)
	}

	raw, err := s.generator.Generate(ctx, interfaces.GenerationRequest{
		Prompt:            fmt.Sprintf("Winning concept:\n%s", conceptJSON),
		SystemInstruction: compositionSystemInstruction,
		Schema:            CompositionSchema,
	})
	if err != nil {
		return nil, err
	}

	var out compositionOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, capabilityFailure(s.Name(), "composition output is not an object: %v", err)
	}
	if strings.TrimSpace(out.GenerationPrompt) == "" {
		return nil, capabilityFailure(s.Name(), "generated prompt text is missing")
	}
	if strings.TrimSpace(out.Title) == "" {
		return nil, capabilityFailure(s.Name(), "generated title is missing")
	}

	result := &models.PromptOutput{
		CandidateID:        candidate.ID,
		GenerationPrompt:   out.GenerationPrompt,
		Title:              out.Title,
		Description:        out.Description,
		Tags:               out.Tags,
		CandidateReference: candidate.Clone(),
	}

	if s.logger != nil {
		s.logger.Debug().
			Str("candidate_id", candidate.ID).
			Str("title", result.Title).
			Int("prompt_length", len(result.GenerationPrompt)).
			Msg("Production assets composed")
	}
	return result, nil
}
