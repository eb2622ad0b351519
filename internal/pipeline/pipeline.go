// Package pipeline sequences the query stages for one question:
// template retrieval, generation, table extraction, schema-scoped
// evaluation, safety linting, bounded execution, and template
// learning. It owns the retry budget and the terminal response.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/askdb/askdb/internal/config"
	askerr "github.com/askdb/askdb/internal/errors"
	"github.com/askdb/askdb/internal/evaluate"
	"github.com/askdb/askdb/internal/execute"
	"github.com/askdb/askdb/internal/extract"
	"github.com/askdb/askdb/internal/generate"
	"github.com/askdb/askdb/internal/lint"
	"github.com/askdb/askdb/internal/logging"
	"github.com/askdb/askdb/internal/template"
)

// Embedder produces the question vector used for template retrieval.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// TemplateStore is the slice of the template index the pipeline uses.
// Usage counting happens inside Retrieve, so the pipeline never marks
// templates used itself.
type TemplateStore interface {
	Retrieve(ctx context.Context, queryEmbedding []float32, k int) ([]template.Match, error)
	Upsert(ctx context.Context, t template.Template) error
}

// Generator produces candidate SQL for a question.
type Generator interface {
	Generate(ctx context.Context, question string, matches []template.Match, repairNotes []string) (*generate.Result, error)
}

// Evaluator validates or repairs candidate SQL against table schemas.
type Evaluator interface {
	Evaluate(ctx context.Context, question, candidateSQL string, tables []string) (*evaluate.Verdict, error)
}

// Runner executes an approved query.
type Runner interface {
	Run(ctx context.Context, sqlText string) (*execute.Result, error)
}

// Request is one incoming question.
type Request struct {
	Question string `json:"question"`
	Debug    bool   `json:"debug"`
}

// Response is the success payload returned to the caller.
type Response struct {
	SQL       string          `json:"sql"`
	Columns   []string        `json:"columns"`
	Rows      [][]interface{} `json:"rows"`
	RowCount  int             `json:"row_count"`
	Truncated bool            `json:"truncated"`
	ElapsedMs int64           `json:"elapsed_ms"`

	Debug *DebugInfo `json:"debug,omitempty"`
}

// Abort is the error payload returned to the caller.
type Abort struct {
	ErrorKind string `json:"error_kind"`
	Message   string `json:"message"`
	Stage     string `json:"stage"`

	Debug *DebugInfo `json:"debug,omitempty"`
}

// DebugInfo is attached when the request sets debug.
type DebugInfo struct {
	RetriesUsed      int           `json:"retries_used"`
	TemplatesOffered int           `json:"templates_offered"`
	TemplateReused   bool          `json:"template_reused"`
	Candidates       []string      `json:"candidates,omitempty"`
	Tables           []string      `json:"tables,omitempty"`
	States           []string      `json:"states"`
	Elapsed          time.Duration `json:"elapsed_ns"`
}

// run tracks the mutable state of one question moving through the
// stages. It is discarded after the response; only a successful
// refined query outlives it, as a learned template.
type run struct {
	id          string
	question    string
	debug       bool
	state       State
	states      []string
	candidates  []string
	tables      []string
	repairNotes []string
	retriesUsed int
	reused      bool
	started     time.Time
}

func (r *run) transition(next State) {
	r.state = next
	r.states = append(r.states, next.String())
}

func (r *run) debugInfo(offered int) *DebugInfo {
	if !r.debug {
		return nil
	}

	return &DebugInfo{
		RetriesUsed:      r.retriesUsed,
		TemplatesOffered: offered,
		TemplateReused:   r.reused,
		Candidates:       r.candidates,
		Tables:           r.tables,
		States:           r.states,
		Elapsed:          time.Since(r.started),
	}
}

// Pipeline wires the stages together.
type Pipeline struct {
	cfg       config.PipelineConfig
	embedder  Embedder
	templates TemplateStore
	generator Generator
	evaluator Evaluator
	runner    Runner
	logger    *logging.Logger
}

// New creates a pipeline. templates and embedder may be nil, in which
// case retrieval and learning are skipped.
func New(cfg config.PipelineConfig, embedder Embedder, templates TemplateStore,
	generator Generator, evaluator Evaluator, runner Runner) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		embedder:  embedder,
		templates: templates,
		generator: generator,
		evaluator: evaluator,
		runner:    runner,
		logger:    logging.GetLogger().WithField("component", "pipeline"),
	}
}

// Run processes one question to a terminal state. Exactly one of the
// return values is non-nil.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Response, *Abort) {
	r := &run{
		id:       uuid.New().String(),
		question: req.Question,
		debug:    req.Debug,
		state:    StateStart,
		states:   []string{StateStart.String()},
		started:  time.Now(),
	}

	if req.Question == "" {
		return nil, p.abort(r, 0, askerr.New(askerr.KindValidation, "question must not be empty"))
	}

	// Retrieval is best-effort: a broken template store degrades to
	// generation without examples, never to a failed run.
	r.transition(StateRetrieving)

	matches := p.retrieve(ctx, req.Question)

	if err := ctx.Err(); err != nil {
		return nil, p.abort(r, len(matches), askerr.Wrap(err, askerr.KindCancelled, "request cancelled").AtStage(r.state.String()))
	}

	candidate, reusedFrom := p.reusableCandidate(matches)
	r.reused = reusedFrom != ""

	executionRetried := false

	for {
		if candidate == "" {
			r.transition(StateGenerating)

			result, err := p.generate(ctx, r, matches)
			if err != nil {
				if retryErr := p.noteRetryable(ctx, r, err); retryErr != nil {
					return nil, p.abort(r, len(matches), retryErr)
				}

				continue
			}

			candidate = result.SQL
		}

		r.candidates = append(r.candidates, candidate)

		r.transition(StateExtracting)

		tables := extract.Tables(candidate)
		r.tables = tables

		r.transition(StateSchemaLoading)
		r.transition(StateEvaluating)

		verdict, err := p.evaluate(ctx, r, req.Question, candidate, tables)
		if err != nil {
			candidate, reusedFrom = "", ""
			r.reused = false

			if retryErr := p.noteRetryable(ctx, r, err); retryErr != nil {
				return nil, p.abort(r, len(matches), retryErr)
			}

			continue
		}

		if !verdict.IsValid {
			// A rejected reuse must not be credited: whatever succeeds
			// from here on is a fresh query and gets learned as one.
			candidate, reusedFrom = "", ""
			r.reused = false

			notes := verdict.Notes
			if notes == "" {
				notes = "previous candidate was judged invalid"
			}

			err := askerr.New(askerr.KindInvalidQuery, notes).AtStage(StateEvaluating.String())
			if retryErr := p.noteRetryable(ctx, r, err); retryErr != nil {
				return nil, p.abort(r, len(matches), retryErr)
			}

			continue
		}

		refined := verdict.SQL

		r.transition(StateSafetyChecking)

		if v := lint.Check(refined); !v.Allowed {
			err := askerr.Newf(askerr.KindSafety, "query rejected: %s", v.Reason).
				AtStage(StateSafetyChecking.String())

			return nil, p.abort(r, len(matches), err)
		}

		r.transition(StateExecuting)

		result, err := p.runner.Run(ctx, refined)
		if err != nil {
			if askerr.IsKind(err, askerr.KindCancelled) || ctx.Err() != nil {
				return nil, p.abort(r, len(matches),
					askerr.Wrap(err, askerr.KindCancelled, "request cancelled").AtStage(StateExecuting.String()))
			}

			// A database rejection earns exactly one return to
			// generation, carrying the database's own message.
			if !executionRetried && r.retriesUsed < p.cfg.RetryBudget {
				executionRetried = true
				r.retriesUsed++
				r.repairNotes = append(r.repairNotes, fmt.Sprintf("the database rejected the query: %v", err))
				candidate, reusedFrom = "", ""
				r.reused = false

				p.logger.WithError(err).Warn("execution failed, attempting one repair round")

				continue
			}

			return nil, p.abort(r, len(matches), err)
		}

		r.transition(StateLearning)

		// A direct reuse was already counted at retrieval time; only a
		// freshly produced success becomes a new template.
		if reusedFrom == "" {
			p.learn(req.Question, refined)
		}

		r.transition(StateDone)

		p.logger.WithFields(map[string]interface{}{
			"run_id":     r.id,
			"rows":       result.RowCount,
			"retries":    r.retriesUsed,
			"elapsed_ms": time.Since(r.started).Milliseconds(),
		}).Info("pipeline run completed")

		return &Response{
			SQL:       refined,
			Columns:   result.Columns,
			Rows:      result.Rows,
			RowCount:  result.RowCount,
			Truncated: result.Truncated,
			ElapsedMs: time.Since(r.started).Milliseconds(),
			Debug:     r.debugInfo(len(matches)),
		}, nil
	}
}

// retrieve embeds the question and fetches nearby templates. Any
// failure is logged and reduced to an empty result.
func (p *Pipeline) retrieve(ctx context.Context, question string) []template.Match {
	if p.embedder == nil || p.templates == nil {
		return nil
	}

	queryEmbedding, err := p.embedder.Embed(ctx, question)
	if err != nil {
		p.logger.WithError(err).Warn("failed to embed question, skipping template retrieval")
		return nil
	}

	k := p.cfg.MaxTemplates
	if k <= 0 {
		k = 3
	}

	matches, err := p.templates.Retrieve(ctx, queryEmbedding, k)
	if err != nil {
		p.logger.WithError(err).Warn("template retrieval failed, generating without examples")
		return nil
	}

	return matches
}

// reusableCandidate returns a stored query to use directly when the
// best match clears the reuse threshold. A zero threshold disables
// direct reuse.
func (p *Pipeline) reusableCandidate(matches []template.Match) (sqlText, templateID string) {
	if p.cfg.ReuseThreshold <= 0 || len(matches) == 0 {
		return "", ""
	}

	best := matches[0]
	if best.Similarity < p.cfg.ReuseThreshold {
		return "", ""
	}

	p.logger.WithFields(map[string]interface{}{
		"template_id": best.ID,
		"similarity":  best.Similarity,
	}).Info("reusing stored template as candidate")

	return best.SQLText, best.ID
}

func (p *Pipeline) generate(ctx context.Context, r *run, matches []template.Match) (*generate.Result, error) {
	genCtx := ctx

	if timeout := config.StageTimeout(p.cfg.GenerateTimeout); timeout > 0 {
		var cancel context.CancelFunc
		genCtx, cancel = context.WithTimeout(ctx, timeout)

		defer cancel()
	}

	return p.generator.Generate(genCtx, r.question, matches, r.repairNotes)
}

func (p *Pipeline) evaluate(ctx context.Context, r *run, question, candidate string, tables []string) (*evaluate.Verdict, error) {
	evalCtx := ctx

	if timeout := config.StageTimeout(p.cfg.EvaluateTimeout); timeout > 0 {
		var cancel context.CancelFunc
		evalCtx, cancel = context.WithTimeout(ctx, timeout)

		defer cancel()
	}

	return p.evaluator.Evaluate(evalCtx, question, candidate, tables)
}

// noteRetryable decides whether err earns another trip through
// generation. It returns nil when the caller should continue the loop,
// or the terminal error when the run must abort.
func (p *Pipeline) noteRetryable(ctx context.Context, r *run, err error) error {
	if ctx.Err() != nil || askerr.IsKind(err, askerr.KindCancelled) {
		return askerr.Wrap(err, askerr.KindCancelled, "request cancelled").AtStage(r.state.String())
	}

	kind := askerr.GetKind(err)
	if kind.Fatal() {
		return err
	}

	if r.retriesUsed >= p.cfg.RetryBudget {
		return askerr.Wrapf(err, askerr.KindRetryBudget,
			"no valid query after %d retries", r.retriesUsed).AtStage(r.state.String())
	}

	r.retriesUsed++

	if kind == askerr.KindInvalidQuery {
		r.repairNotes = append(r.repairNotes, err.Error())
	}

	p.logger.WithError(err).WithField("retries_used", r.retriesUsed).Warn("stage failed, retrying generation")

	return nil
}

// learn persists the successful pair without blocking the response.
// Failures are logged and dropped; a broken template store must never
// turn a successful run into a failed one.
func (p *Pipeline) learn(question, sqlText string) {
	if p.templates == nil || p.cfg.LearningDisabled {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		var vec []float32

		if p.embedder != nil {
			var err error

			vec, err = p.embedder.Embed(ctx, question)
			if err != nil {
				p.logger.WithError(err).Warn("failed to embed learned template")
				return
			}
		}

		err := p.templates.Upsert(ctx, template.Template{
			QuestionText: question,
			SQLText:      sqlText,
			Embedding:    vec,
			Source:       template.SourceLearned,
		})
		if err != nil {
			p.logger.WithError(err).Warn("failed to store learned template")
		}
	}()
}

func (p *Pipeline) abort(r *run, offered int, err error) *Abort {
	kind := askerr.GetKind(err)
	stage := askerr.GetStage(err)

	if stage == "" {
		stage = r.state.String()
	}

	r.transition(StateAborted)

	p.logger.WithError(err).WithFields(map[string]interface{}{
		"run_id":     r.id,
		"error_kind": string(kind),
		"stage":      stage,
	}).Error("pipeline run aborted")

	return &Abort{
		ErrorKind: string(kind),
		Message:   err.Error(),
		Stage:     stage,
		Debug:     r.debugInfo(offered),
	}
}
