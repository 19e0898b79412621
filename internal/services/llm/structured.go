package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/trendreel/internal/interfaces"
)

// StructuredGenerator adapts a ContentGenerator to the structured generation
// capability: the response must be a single JSON document.
type StructuredGenerator struct {
	content ContentGenerator
	model   string
	logger  arbor.ILogger
}

var _ interfaces.StructuredGenerator = (*StructuredGenerator)(nil)

// NewStructuredGenerator creates a structured generator. model may be empty to
// use the default provider's model.
func NewStructuredGenerator(content ContentGenerator, model string, logger arbor.ILogger) *StructuredGenerator {
	return &StructuredGenerator{content: content, model: model, logger: logger}
}

// Generate asks the provider for output matching request.Schema.
func (g *StructuredGenerator) Generate(ctx context.Context, request interfaces.GenerationRequest) (json.RawMessage, error) {
	model := request.Model
	if model == "" {
		model = g.model
	}

	resp, err := g.content.GenerateContent(ctx, &ContentRequest{
		Prompt:            request.Prompt,
		SystemInstruction: request.SystemInstruction,
		Model:             model,
		Temperature:       request.Temperature,
		OutputSchema:      request.Schema,
	})
	if err != nil {
		return nil, err
	}

	raw := extractJSON(resp.Text)
	if len(raw) == 0 {
		return nil, fmt.Errorf("%s returned no JSON content", resp.Provider)
	}
	if !json.Valid(raw) {
		g.logger.Debug().
			Str("provider", string(resp.Provider)).
			Str("response", truncate(resp.Text, 200)).
			Msg("Provider returned malformed JSON")
		return nil, fmt.Errorf("%s returned malformed JSON", resp.Provider)
	}
	return json.RawMessage(raw), nil
}

// extractJSON strips surrounding prose and markdown code fences from a
// response, returning the outermost JSON object or array.
func extractJSON(text string) []byte {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if end := strings.LastIndex(text, "```"); end >= 0 {
			text = text[:end]
		}
		text = strings.TrimSpace(text)
	}

	start := strings.IndexAny(text, "[{")
	if start < 0 {
		return nil
	}
	closer := byte('}')
	if text[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(text, closer)
	if end < start {
		return nil
	}
	return []byte(text[start : end+1])
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
