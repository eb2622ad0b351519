// Package template persists reusable question/SQL pairs in DuckDB and
// retrieves the nearest matches for a new question by embedding
// similarity.
package template

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/marcboeker/go-duckdb" // DuckDB driver

	askerr "github.com/askdb/askdb/internal/errors"
	"github.com/askdb/askdb/internal/logging"
)

// Source of a template entry.
const (
	SourceSeed    = "seed"
	SourceLearned = "learned"
)

// Template is a stored question/SQL pair with its question embedding.
type Template struct {
	ID           string    `json:"id"`
	QuestionText string    `json:"question_text"`
	SQLText      string    `json:"sql_text"`
	ContentHash  string    `json:"content_hash"`
	Embedding    []float32 `json:"embedding,omitempty"`
	Source       string    `json:"source"`
	UsageCount   int       `json:"usage_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// Match is a retrieved template with its similarity to the query
// embedding, in [0, 1].
type Match struct {
	Template
	Similarity float64 `json:"similarity"`
}

// Index is the DuckDB-backed template store.
type Index struct {
	db   *sql.DB
	path string
}

// NewIndex opens (creating if necessary) the template database at path.
func NewIndex(path string) (*Index, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, askerr.Wrap(err, askerr.KindTemplateStore, "failed to create template database directory")
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, askerr.Wrap(err, askerr.KindTemplateStore, "failed to open template database")
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, askerr.Wrap(err, askerr.KindTemplateStore, "failed to ping template database")
	}

	return &Index{db: db, path: path}, nil
}

// Initialize applies pending schema migrations.
func (i *Index) Initialize(ctx context.Context) error {
	if err := NewMigrationManager(i.db).MigrateUp(ctx); err != nil {
		return askerr.Wrap(err, askerr.KindTemplateStore, "failed to migrate template database")
	}

	return nil
}

// Close closes the underlying database.
func (i *Index) Close() error {
	return i.db.Close()
}

// ContentHash computes the dedupe key for a question/SQL pair. The
// question is case-folded and whitespace-collapsed so trivial
// rephrasings of the same pair do not accumulate.
func ContentHash(question, sqlText string) string {
	normalized := normalizeWhitespace(strings.ToLower(question)) + "\n" + normalizeWhitespace(sqlText)
	sum := sha256.Sum256([]byte(normalized))

	return hex.EncodeToString(sum[:])
}

func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Upsert stores a template, ignoring duplicates by content hash.
// Re-upserting an existing pair is a no-op, so callers may fire and
// forget.
func (i *Index) Upsert(ctx context.Context, t Template) error {
	if t.QuestionText == "" || t.SQLText == "" {
		return askerr.New(askerr.KindValidation, "template requires question and sql text")
	}

	if t.ID == "" {
		t.ID = uuid.New().String()
	}

	if t.ContentHash == "" {
		t.ContentHash = ContentHash(t.QuestionText, t.SQLText)
	}

	if t.Source == "" {
		t.Source = SourceLearned
	}

	embeddingJSON, err := json.Marshal(t.Embedding)
	if err != nil {
		return askerr.Wrap(err, askerr.KindTemplateStore, "failed to encode embedding")
	}

	insertSQL := `
		INSERT INTO templates (id, question_text, sql_text, content_hash, embedding, source)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (content_hash) DO NOTHING`

	_, err = i.db.ExecContext(ctx, insertSQL,
		t.ID, t.QuestionText, t.SQLText, t.ContentHash, string(embeddingJSON), t.Source)
	if err != nil {
		return askerr.Wrap(err, askerr.KindTemplateStore, "failed to store template")
	}

	return nil
}

// Retrieve returns up to k templates nearest to the query embedding,
// most similar first. All stored embeddings share the dimensionality
// of the configured provider; rows with a NULL embedding are skipped.
func (i *Index) Retrieve(ctx context.Context, queryEmbedding []float32, k int) ([]Match, error) {
	if k <= 0 {
		return nil, nil
	}

	embeddingJSON, err := json.Marshal(queryEmbedding)
	if err != nil {
		return nil, askerr.Wrap(err, askerr.KindTemplateStore, "failed to encode query embedding")
	}

	querySQL := `
		SELECT id, question_text, sql_text, content_hash, source, usage_count, created_at,
			list_cosine_similarity(CAST(embedding AS FLOAT[]), CAST(? AS FLOAT[])) AS similarity
		FROM templates
		WHERE similarity IS NOT NULL
		ORDER BY similarity DESC
		LIMIT ?`

	rows, err := i.db.QueryContext(ctx, querySQL, string(embeddingJSON), k)
	if err != nil {
		return nil, askerr.Wrap(err, askerr.KindTemplateStore, "failed to query templates")
	}

	defer rows.Close()

	var matches []Match

	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.ID, &m.QuestionText, &m.SQLText, &m.ContentHash,
			&m.Source, &m.UsageCount, &m.CreatedAt, &m.Similarity); err != nil {
			return nil, askerr.Wrap(err, askerr.KindTemplateStore, "failed to scan template")
		}

		matches = append(matches, m)
	}

	if err := rows.Err(); err != nil {
		return nil, askerr.Wrap(err, askerr.KindTemplateStore, "failed to read templates")
	}

	rows.Close()

	// A retrieval hit counts as usage even when the template only ends
	// up as prompt context. The bump is best-effort: a failed counter
	// update must not cost the caller its matches.
	for _, m := range matches {
		if err := i.MarkUsed(ctx, m.ID); err != nil {
			logging.GetLogger().WithError(err).WithField("template_id", m.ID).
				Warn("failed to record template usage")
		}
	}

	return matches, nil
}

// MarkUsed bumps the usage counter for a template.
func (i *Index) MarkUsed(ctx context.Context, id string) error {
	_, err := i.db.ExecContext(ctx,
		"UPDATE templates SET usage_count = usage_count + 1 WHERE id = ?", id)
	if err != nil {
		return askerr.Wrap(err, askerr.KindTemplateStore, "failed to update template usage")
	}

	return nil
}

// List returns all templates ordered by creation time, newest first.
// Embeddings are omitted.
func (i *Index) List(ctx context.Context) ([]Template, error) {
	rows, err := i.db.QueryContext(ctx, `
		SELECT id, question_text, sql_text, content_hash, source, usage_count, created_at
		FROM templates
		ORDER BY created_at DESC`)
	if err != nil {
		return nil, askerr.Wrap(err, askerr.KindTemplateStore, "failed to list templates")
	}

	defer rows.Close()

	var templates []Template

	for rows.Next() {
		var t Template
		if err := rows.Scan(&t.ID, &t.QuestionText, &t.SQLText, &t.ContentHash,
			&t.Source, &t.UsageCount, &t.CreatedAt); err != nil {
			return nil, askerr.Wrap(err, askerr.KindTemplateStore, "failed to scan template")
		}

		templates = append(templates, t)
	}

	return templates, rows.Err()
}

// Count returns the number of stored templates.
func (i *Index) Count(ctx context.Context) (int, error) {
	var count int
	if err := i.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM templates").Scan(&count); err != nil {
		return 0, askerr.Wrap(err, askerr.KindTemplateStore, "failed to count templates")
	}

	return count, nil
}

// Delete removes a template by id. Used by template maintenance
// commands.
func (i *Index) Delete(ctx context.Context, id string) error {
	res, err := i.db.ExecContext(ctx, "DELETE FROM templates WHERE id = ?", id)
	if err != nil {
		return askerr.Wrap(err, askerr.KindTemplateStore, "failed to delete template")
	}

	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return askerr.Newf(askerr.KindValidation, "template %s not found", id)
	}

	return nil
}

func (i *Index) String() string {
	return fmt.Sprintf("template index at %s", i.path)
}
