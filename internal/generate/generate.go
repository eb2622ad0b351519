// Package generate runs the catalog-scoped query generation stage: it
// assembles the light catalog and any retrieved templates into a
// generation request and classifies provider failures.
package generate

import (
	"context"
	"strings"

	"github.com/askdb/askdb/internal/catalog"
	askerr "github.com/askdb/askdb/internal/errors"
	"github.com/askdb/askdb/internal/llm"
	"github.com/askdb/askdb/internal/template"
)

// Stage name used in error reporting.
const Stage = "generating"

// Generator produces candidate SQL for a question.
type Generator struct {
	svc     llm.Service
	catalog *catalog.Store
}

// New creates a generator over the given LLM service and catalog.
func New(svc llm.Service, cat *catalog.Store) *Generator {
	return &Generator{svc: svc, catalog: cat}
}

// Result is the outcome of a generation attempt.
type Result struct {
	SQL         string
	Explanation string
	Confidence  float64
}

// Generate produces a candidate query. Retrieved templates become
// few-shot examples; repairNotes carry evaluator feedback from a
// rejected earlier attempt.
func (g *Generator) Generate(ctx context.Context, question string, matches []template.Match, repairNotes []string) (*Result, error) {
	entries, err := g.catalog.Light()
	if err != nil {
		return nil, askerr.Wrap(err, askerr.KindCatalog, "failed to load catalog").AtStage(Stage)
	}

	req := llm.GenerateRequest{
		Question:    question,
		Catalog:     catalog.FormatLight(entries),
		RepairNotes: repairNotes,
	}

	for _, m := range matches {
		req.Examples = append(req.Examples, llm.Example{
			Question: m.QuestionText,
			SQL:      m.SQLText,
		})
	}

	resp, err := g.svc.GenerateQuery(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, askerr.Wrap(ctx.Err(), askerr.KindCancelled, "generation cancelled").AtStage(Stage)
		}

		return nil, askerr.Wrap(err, askerr.KindGeneration, "query generation failed").AtStage(Stage)
	}

	sqlText := strings.TrimSpace(resp.SQL)
	if sqlText == "" {
		return nil, askerr.New(askerr.KindGeneration, "provider returned an empty query").AtStage(Stage)
	}

	return &Result{
		SQL:         sqlText,
		Explanation: resp.Explanation,
		Confidence:  resp.Confidence,
	}, nil
}
