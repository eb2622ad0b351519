package cmd

import (
	"context"

	"github.com/askdb/askdb/internal/catalog"
	"github.com/askdb/askdb/internal/config"
	"github.com/askdb/askdb/internal/embedding"
	askerr "github.com/askdb/askdb/internal/errors"
	"github.com/askdb/askdb/internal/evaluate"
	"github.com/askdb/askdb/internal/execute"
	"github.com/askdb/askdb/internal/generate"
	"github.com/askdb/askdb/internal/llm"
	"github.com/askdb/askdb/internal/pipeline"
	"github.com/askdb/askdb/internal/template"
)

// app bundles the wired components behind the ask and serve commands.
type app struct {
	cfg       *config.Config
	catalog   *catalog.Store
	templates *template.Index
	executor  *execute.Executor
	embedder  embedding.Provider
	pipeline  *pipeline.Pipeline
}

// newApp wires the pipeline from configuration.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	cat := catalog.NewStore(cfg.Catalog)
	if err := cat.Load(); err != nil {
		return nil, err
	}

	svc, err := llm.NewService(cfg.LLM)
	if err != nil {
		return nil, askerr.Wrap(err, askerr.KindConfig, "failed to initialize language model service")
	}

	embedder, err := embedding.NewProvider(cfg.Embedding, svc)
	if err != nil {
		return nil, askerr.Wrap(err, askerr.KindConfig, "failed to initialize embedding provider")
	}

	templates, err := template.NewIndex(cfg.Templates.Path)
	if err != nil {
		return nil, err
	}

	if err := templates.Initialize(ctx); err != nil {
		templates.Close()
		return nil, err
	}

	executor, err := execute.NewExecutor(cfg.Database)
	if err != nil {
		templates.Close()
		return nil, err
	}

	p := pipeline.New(cfg.Pipeline, embedder, templates,
		generate.New(svc, cat), evaluate.New(svc, cat), executor)

	return &app{
		cfg:       cfg,
		catalog:   cat,
		templates: templates,
		executor:  executor,
		embedder:  embedder,
		pipeline:  p,
	}, nil
}

func (a *app) Close() {
	a.templates.Close()
	a.executor.Close()
}
