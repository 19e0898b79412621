package stages

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/trendreel/internal/interfaces"
	"github.com/ternarybob/trendreel/internal/models"
)

// CandidateCount is the fixed size of a candidate batch.
const CandidateCount = 3

const candidateSystemInstruction = `You plan short-form vertical videos. Propose exactly 3 distinct video concepts
grounded in the supplied trend signals. Each concept is a subject performing a verb on an object,
told in a recognisable structure. signal_tags lists the trend keys the concept draws on.`

// CandidateGenerationStage turns trend signals into a fixed-size batch of
// unscored candidate themes.
type CandidateGenerationStage struct {
	generator interfaces.StructuredGenerator
	validate  *validator.Validate
	logger    arbor.ILogger
}

// NewCandidateGenerationStage creates the candidate generation stage.
func NewCandidateGenerationStage(generator interfaces.StructuredGenerator, logger arbor.ILogger) *CandidateGenerationStage {
	return &CandidateGenerationStage{
		generator: generator,
		validate:  validator.New(),
		logger:    logger,
	}
}

// Name returns the stage name.
func (s *CandidateGenerationStage) Name() models.StageName {
	return models.StageCandidates
}

// Execute requests exactly CandidateCount candidates. A single failed call
// fails the stage; retry policy belongs to the caller.
func (s *CandidateGenerationStage) Execute(ctx context.Context, signals *models.TrendSignals) ([]models.CandidateTheme, error) {
	if signals.IsEmpty() {
		return nil, invalidInput(s.Name(), "trend signals object is empty")
	}
	if s.generator == nil {
		return nil, capabilityFailure(s.Name(), "structured generation capability is not configured")
	}

	signalsJSON, err := json.Marshal(signals)
	if err != nil {
		return nil, invalidInput(s.Name(), "trend signals are not serialisable: %v", err)
	}

	raw, err := s.generator.Generate(ctx, interfaces.GenerationRequest{
		Prompt:            fmt.Sprintf("Trend signals (key -> frequency):\n%s\n\nReturn %d candidates.", signalsJSON, CandidateCount),
		SystemInstruction: candidateSystemInstruction,
		Schema:            CandidateBatchSchema,
	})
	if err != nil {
		return nil, err
	}

	candidates, err := s.decode(raw)
	if err != nil {
		return nil, err
	}

	if s.logger != nil {
		s.logger.Debug().
			Int("candidates", len(candidates)).
			Str("first_id", candidates[0].ID).
			Msg("Candidates generated")
	}
	return candidates, nil
}

// decode checks the capability payload against the candidate schema.
func (s *CandidateGenerationStage) decode(raw json.RawMessage) ([]models.CandidateTheme, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, capabilityFailure(s.Name(), "generation output is not an array: %v", err)
	}
	if len(items) == 0 {
		return nil, capabilityFailure(s.Name(), "generation output is an empty array")
	}
	if len(items) < CandidateCount {
		return nil, capabilityFailure(s.Name(), "generation output has %d candidates, want %d", len(items), CandidateCount)
	}

	seen := make(map[string]bool, CandidateCount)
	candidates := make([]models.CandidateTheme, 0, CandidateCount)
	for i, item := range items[:CandidateCount] {
		var c models.CandidateTheme
		if err := json.Unmarshal(item, &c); err != nil {
			return nil, capabilityFailure(s.Name(), "candidate %d is not an object: %v", i, err)
		}
		if err := s.validate.Struct(&c); err != nil {
			return nil, capabilityFailure(s.Name(), "candidate %d is missing a required field: %v", i, err)
		}
		if seen[c.ID] {
			return nil, capabilityFailure(s.Name(), "candidate id %q is not unique within the batch", c.ID)
		}
		seen[c.ID] = true

		c.TotalScore = 0
		c.Selected = false
		c.ScoreBreakdown = nil
		candidates = append(candidates, c)
	}
	return candidates, nil
}
