package stages

// Output schemas handed to the structured generation capability.

var candidateItemSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"id":        map[string]interface{}{"type": "string", "description": "Unique id within the batch, e.g. cand-1"},
		"subject":   map[string]interface{}{"type": "string"},
		"verb":      map[string]interface{}{"type": "string"},
		"object":    map[string]interface{}{"type": "string"},
		"structure": map[string]interface{}{"type": "string"},
		"signal_tags": map[string]interface{}{
			"type":  "array",
			"items": map[string]interface{}{"type": "string"},
		},
		"rationale": map[string]interface{}{"type": "string"},
	},
	"required": []string{"id", "subject", "verb", "object", "structure", "signal_tags"},
}

// CandidateBatchSchema describes the candidate generation output.
var CandidateBatchSchema = map[string]interface{}{
	"type":  "array",
	"items": candidateItemSchema,
}

// CompositionSchema describes the composition output. The candidate reference
// is deliberately absent: the stage attaches it itself.
var CompositionSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"generation_prompt": map[string]interface{}{"type": "string"},
		"title":             map[string]interface{}{"type": "string"},
		"description":       map[string]interface{}{"type": "string"},
		"tags": map[string]interface{}{
			"type":  "array",
			"items": map[string]interface{}{"type": "string"},
		},
	},
	"required": []string{"generation_prompt", "title", "description"},
}

// ScoreSchema describes the generative scorer output.
var ScoreSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"virality":        map[string]interface{}{"type": "number", "minimum": 0.0, "maximum": 10.0},
		"feasibility":     map[string]interface{}{"type": "number", "minimum": 0.0, "maximum": 10.0},
		"trend_alignment": map[string]interface{}{"type": "number", "minimum": 0.0, "maximum": 10.0},
	},
	"required": []string{"virality", "feasibility", "trend_alignment"},
}
