package llm

import (
	"context"
)

// Service defines the language model operations the pipeline depends on.
type Service interface {
	// GenerateQuery produces a candidate SQL query from the light
	// catalog, retrieved examples, and any accumulated repair notes.
	GenerateQuery(ctx context.Context, req GenerateRequest) (*QueryResponse, error)

	// EvaluateQuery validates and, where possible, repairs a candidate
	// against the detailed schemas of its referenced tables.
	EvaluateQuery(ctx context.Context, req EvaluateRequest) (*EvaluationResponse, error)

	// Embed returns the embedding vector for a piece of text.
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Example is one retrieved template offered as a worked example.
type Example struct {
	Question string
	SQL      string
}

// GenerateRequest carries everything the generation prompt is built from.
// Catalog is the formatted light catalog, never detailed schemas.
type GenerateRequest struct {
	Question    string
	Catalog     string
	Examples    []Example
	RepairNotes []string
}

// QueryResponse is the model's answer to a generation request.
type QueryResponse struct {
	SQL         string  `json:"sql"`
	Explanation string  `json:"explanation"`
	Confidence  float64 `json:"confidence"`
}

// EvaluateRequest carries the narrower evaluation prompt inputs: only the
// schemas of tables the extractor found in the candidate.
type EvaluateRequest struct {
	Question       string
	CandidateSQL   string
	Schemas        string
	Relationships  string
	MissingSchemas []string
}

// EvaluationResponse is the model's verdict on a candidate query.
// IsValid=false with notes is a first-class outcome, not an error.
type EvaluationResponse struct {
	SQL        string  `json:"sql"`
	IsValid    bool    `json:"is_valid"`
	Notes      string  `json:"notes"`
	Confidence float64 `json:"confidence"`
}

// Provider constants for supported backends
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
	ProviderRules     = "rules"
)
