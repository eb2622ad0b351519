// Package evaluate runs the schema-scoped evaluation stage: detailed
// schemas for the tables a candidate references are loaded and the
// candidate is validated or repaired against them.
package evaluate

import (
	"context"
	"strings"

	"github.com/askdb/askdb/internal/catalog"
	askerr "github.com/askdb/askdb/internal/errors"
	"github.com/askdb/askdb/internal/llm"
)

// Stage name used in error reporting.
const Stage = "evaluating"

// Evaluator validates candidate SQL against detailed table schemas.
type Evaluator struct {
	svc     llm.Service
	catalog *catalog.Store
}

// New creates an evaluator over the given LLM service and catalog.
func New(svc llm.Service, cat *catalog.Store) *Evaluator {
	return &Evaluator{svc: svc, catalog: cat}
}

// Verdict is the outcome of evaluating one candidate.
type Verdict struct {
	SQL        string
	IsValid    bool
	Notes      string
	Confidence float64

	// MissingSchemas lists referenced tables with no catalog schema.
	// The query may still be valid; confidence is reduced instead of
	// aborting.
	MissingSchemas []string
}

// Evaluate loads schemas for the extracted tables and asks the service
// to validate or repair the candidate. An invalid verdict is returned
// as a Verdict with IsValid=false, not as an error; errors mean the
// stage itself failed.
func (e *Evaluator) Evaluate(ctx context.Context, question, candidateSQL string, tables []string) (*Verdict, error) {
	schemas, missing, err := e.catalog.Schemas(tables)
	if err != nil {
		return nil, askerr.Wrap(err, askerr.KindCatalog, "failed to load table schemas").AtStage(Stage)
	}

	req := llm.EvaluateRequest{
		Question:       question,
		CandidateSQL:   candidateSQL,
		Schemas:        catalog.FormatSchemas(schemas),
		Relationships:  catalog.FormatRelationships(e.catalog.Relationships()),
		MissingSchemas: missing,
	}

	resp, err := e.svc.EvaluateQuery(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, askerr.Wrap(ctx.Err(), askerr.KindCancelled, "evaluation cancelled").AtStage(Stage)
		}

		return nil, askerr.Wrap(err, askerr.KindGeneration, "query evaluation failed").AtStage(Stage)
	}

	verdict := &Verdict{
		SQL:            strings.TrimSpace(resp.SQL),
		IsValid:        resp.IsValid,
		Notes:          resp.Notes,
		Confidence:     resp.Confidence,
		MissingSchemas: missing,
	}

	if verdict.IsValid && verdict.SQL == "" {
		verdict.IsValid = false
		verdict.Notes = "evaluator returned an empty query"
	}

	if len(missing) > 0 && verdict.Confidence > 0.6 {
		verdict.Confidence = 0.6
	}

	return verdict, nil
}
