package template

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/askdb/askdb/internal/embedding"
	askerr "github.com/askdb/askdb/internal/errors"
	"github.com/askdb/askdb/internal/lint"
)

// seedDoc is the on-disk shape of a seed file.
type seedDoc struct {
	Templates []seedEntry `yaml:"templates"`
}

type seedEntry struct {
	Question string `yaml:"question"`
	SQL      string `yaml:"sql"`
}

// SeedResult reports what a seed run did.
type SeedResult struct {
	Loaded   int
	Rejected []string
}

// SeedFromFile loads curated question/SQL pairs from a YAML file into
// the index. Pairs that fail the safety check are skipped and reported
// rather than stored; upserts are idempotent so re-seeding is safe.
func (i *Index) SeedFromFile(ctx context.Context, path string, provider embedding.Provider) (*SeedResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, askerr.Wrap(err, askerr.KindTemplateStore, "failed to read seed file")
	}

	var doc seedDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, askerr.Wrap(err, askerr.KindTemplateStore, "failed to parse seed file")
	}

	result := &SeedResult{}

	for _, entry := range doc.Templates {
		if entry.Question == "" || entry.SQL == "" {
			result.Rejected = append(result.Rejected, "entry missing question or sql")
			continue
		}

		if verdict := lint.Check(entry.SQL); !verdict.Allowed {
			result.Rejected = append(result.Rejected,
				fmt.Sprintf("%q: %s", entry.Question, verdict.Reason))

			continue
		}

		vec, err := provider.Embed(ctx, entry.Question)
		if err != nil {
			return result, askerr.Wrap(err, askerr.KindTemplateStore, "failed to embed seed question")
		}

		if err := i.Upsert(ctx, Template{
			QuestionText: entry.Question,
			SQLText:      entry.SQL,
			Embedding:    vec,
			Source:       SourceSeed,
		}); err != nil {
			return result, err
		}

		result.Loaded++
	}

	return result, nil
}
