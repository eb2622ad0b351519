package llm

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// FallbackService provides rule-based query generation when no LLM
// provider is reachable. It recognizes a handful of common question
// shapes and degrades gracefully for everything else.
type FallbackService struct{}

// NewFallbackService creates a rule-based service.
func NewFallbackService() *FallbackService {
	return &FallbackService{}
}

var (
	countPattern = regexp.MustCompile(`(?i)\b(how many|count|number of)\b`)
	topPattern   = regexp.MustCompile(`(?i)\b(?:top|first|largest|biggest|most)\s+(\d+)?`)
	catalogLine  = regexp.MustCompile(`(?m)^-\s*([A-Za-z_][A-Za-z0-9_]*)\b`)
)

// GenerateQuery produces a best-effort query from keyword matching
// against the catalog. Confidence is deliberately low; the evaluator
// and linter still gate the result.
func (s *FallbackService) GenerateQuery(_ context.Context, req GenerateRequest) (*QueryResponse, error) {
	tables := catalogTableNames(req.Catalog)
	if len(tables) == 0 {
		return nil, fmt.Errorf("no tables available in catalog")
	}

	table := matchTable(req.Question, tables)
	if table == "" {
		return nil, fmt.Errorf("could not match question to a catalog table")
	}

	question := strings.ToLower(req.Question)

	var sql string

	switch {
	case countPattern.MatchString(question):
		sql = fmt.Sprintf("SELECT COUNT(*) AS count FROM %s", table)
	case topPattern.MatchString(question):
		limit := "10"
		if m := topPattern.FindStringSubmatch(question); len(m) > 1 && m[1] != "" {
			limit = m[1]
		}

		sql = fmt.Sprintf("SELECT * FROM %s LIMIT %s", table, limit)
	default:
		sql = fmt.Sprintf("SELECT * FROM %s LIMIT 50", table)
	}

	return &QueryResponse{
		SQL:         sql,
		Explanation: fmt.Sprintf("Rule-based query over %s (no language model available)", table),
		Confidence:  0.3,
	}, nil
}

// EvaluateQuery passes the candidate through unchanged. Without a
// model there is no basis for repair, so validity rests on the
// downstream safety check.
func (s *FallbackService) EvaluateQuery(_ context.Context, req EvaluateRequest) (*EvaluationResponse, error) {
	return &EvaluationResponse{
		SQL:        req.CandidateSQL,
		IsValid:    true,
		Notes:      "rule-based evaluation: candidate accepted without schema review",
		Confidence: 0.3,
	}, nil
}

// Embed is unsupported; callers should configure the local embedding
// provider alongside the rule-based service.
func (s *FallbackService) Embed(_ context.Context, _ string) ([]float32, error) {
	return nil, fmt.Errorf("rule-based service does not produce embeddings; use the local embedding provider")
}

// catalogTableNames extracts table names from the formatted catalog
// listing.
func catalogTableNames(catalog string) []string {
	matches := catalogLine.FindAllStringSubmatch(catalog, -1)
	names := make([]string, 0, len(matches))

	for _, m := range matches {
		names = append(names, strings.ToLower(m[1]))
	}

	return names
}

// matchTable picks the catalog table whose name (or singular form)
// appears in the question.
func matchTable(question string, tables []string) string {
	q := strings.ToLower(question)

	for _, table := range tables {
		if strings.Contains(q, table) {
			return table
		}

		if singular := strings.TrimSuffix(table, "s"); singular != table && strings.Contains(q, singular) {
			return table
		}
	}

	return ""
}
