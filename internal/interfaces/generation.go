package interfaces

import (
	"context"
	"encoding/json"
)

// GenerationRequest asks a generative model for output conforming to Schema.
// Schema is a JSON-schema shaped map (type, properties, items, required, ...).
type GenerationRequest struct {
	Prompt            string
	SystemInstruction string
	Schema            map[string]interface{}
	Model             string
	Temperature       float32
}

// StructuredGenerator is the structured generation capability. Generate must
// fail, never return an empty payload, when no conforming output is produced.
type StructuredGenerator interface {
	Generate(ctx context.Context, request GenerationRequest) (json.RawMessage, error)
}
