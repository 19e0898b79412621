package models

// PromptOutput holds the production assets for the winning candidate.
// CandidateReference is a verbatim copy of the candidate it was derived from;
// it is attached by the composition stage, never taken from generated output.
type PromptOutput struct {
	CandidateID        string         `json:"candidate_id"`
	GenerationPrompt   string         `json:"generation_prompt"`
	Title              string         `json:"title"`
	Description        string         `json:"description"`
	Tags               []string       `json:"tags,omitempty"`
	CandidateReference CandidateTheme `json:"candidate_reference"`
}
