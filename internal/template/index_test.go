package template

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askdb/askdb/internal/embedding"
)

func setupTestIndex(t *testing.T) *Index {
	t.Helper()

	path := filepath.Join(t.TempDir(), "templates.db")

	index, err := NewIndex(path)
	require.NoError(t, err)

	t.Cleanup(func() { index.Close() })

	require.NoError(t, index.Initialize(context.Background()))

	return index
}

func TestUpsertIdempotence(t *testing.T) {
	index := setupTestIndex(t)
	ctx := context.Background()

	tmpl := Template{
		QuestionText: "How many pending orders?",
		SQLText:      "SELECT COUNT(*) FROM orders WHERE status = 'pending'",
		Embedding:    []float32{0.1, 0.2, 0.3},
		Source:       SourceSeed,
	}

	require.NoError(t, index.Upsert(ctx, tmpl))
	require.NoError(t, index.Upsert(ctx, tmpl))

	count, err := index.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestUpsertNormalizesBeforeHashing(t *testing.T) {
	// Case and whitespace variants of the same question/SQL pair must
	// collapse to one stored row.
	a := ContentHash("How many   pending orders?", "SELECT 1")
	b := ContentHash("how many pending ORDERS?", "SELECT  1")
	c := ContentHash("how many shipped orders?", "SELECT 1")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestUpsertRejectsEmptyPair(t *testing.T) {
	index := setupTestIndex(t)

	err := index.Upsert(context.Background(), Template{QuestionText: "q"})
	require.Error(t, err)

	err = index.Upsert(context.Background(), Template{SQLText: "SELECT 1"})
	require.Error(t, err)
}

func TestRetrieveOrdersBySimilarity(t *testing.T) {
	index := setupTestIndex(t)
	ctx := context.Background()

	require.NoError(t, index.Upsert(ctx, Template{
		QuestionText: "orders by state",
		SQLText:      "SELECT state, COUNT(*) FROM orders GROUP BY state",
		Embedding:    []float32{1, 0, 0},
	}))
	require.NoError(t, index.Upsert(ctx, Template{
		QuestionText: "revenue by partner",
		SQLText:      "SELECT partner_id, SUM(total) FROM orders GROUP BY partner_id",
		Embedding:    []float32{0, 1, 0},
	}))
	require.NoError(t, index.Upsert(ctx, Template{
		QuestionText: "orders by state and status",
		SQLText:      "SELECT state, status, COUNT(*) FROM orders GROUP BY state, status",
		Embedding:    []float32{0.9, 0.1, 0},
	}))

	matches, err := index.Retrieve(ctx, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)

	assert.Equal(t, "orders by state", matches[0].QuestionText)
	assert.Equal(t, "orders by state and status", matches[1].QuestionText)
	assert.Greater(t, matches[0].Similarity, matches[1].Similarity)
	assert.InDelta(t, 1.0, matches[0].Similarity, 0.001)
}

func TestRetrieveZeroK(t *testing.T) {
	index := setupTestIndex(t)

	matches, err := index.Retrieve(context.Background(), []float32{1, 0, 0}, 0)
	require.NoError(t, err)
	assert.Nil(t, matches)
}

func TestMarkUsed(t *testing.T) {
	index := setupTestIndex(t)
	ctx := context.Background()

	require.NoError(t, index.Upsert(ctx, Template{
		QuestionText: "q",
		SQLText:      "SELECT 1",
		Embedding:    []float32{1},
	}))

	templates, err := index.List(ctx)
	require.NoError(t, err)
	require.Len(t, templates, 1)
	assert.Equal(t, 0, templates[0].UsageCount)

	require.NoError(t, index.MarkUsed(ctx, templates[0].ID))

	templates, err = index.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, templates[0].UsageCount)
}

func TestRetrieveBumpsUsage(t *testing.T) {
	index := setupTestIndex(t)
	ctx := context.Background()

	require.NoError(t, index.Upsert(ctx, Template{
		QuestionText: "how many orders shipped late",
		SQLText:      "SELECT COUNT(*) FROM orders WHERE shipped_at > due_at",
		Embedding:    []float32{1, 0, 0},
	}))

	_, err := index.Retrieve(ctx, []float32{1, 0, 0}, 3)
	require.NoError(t, err)

	templates, err := index.List(ctx)
	require.NoError(t, err)
	require.Len(t, templates, 1)
	assert.Equal(t, 1, templates[0].UsageCount)
}

func TestDelete(t *testing.T) {
	index := setupTestIndex(t)
	ctx := context.Background()

	require.NoError(t, index.Upsert(ctx, Template{
		QuestionText: "q",
		SQLText:      "SELECT 1",
		Embedding:    []float32{1},
	}))

	templates, err := index.List(ctx)
	require.NoError(t, err)
	require.Len(t, templates, 1)

	require.NoError(t, index.Delete(ctx, templates[0].ID))

	count, err := index.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	err = index.Delete(ctx, "no-such-id")
	require.Error(t, err)
}

func TestSeedFromFile(t *testing.T) {
	index := setupTestIndex(t)
	ctx := context.Background()

	seedYAML := `templates:
  - question: "How many pending orders?"
    sql: "SELECT COUNT(*) FROM orders WHERE status = 'pending'"
  - question: "Wipe everything"
    sql: "DROP TABLE orders"
  - question: "Orders per state"
    sql: "SELECT state, COUNT(*) FROM orders GROUP BY state"
`

	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(seedYAML), 0o644))

	provider := embedding.NewLocalProvider(32)

	result, err := index.SeedFromFile(ctx, path, provider)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Loaded)
	require.Len(t, result.Rejected, 1)
	assert.Contains(t, result.Rejected[0], "Wipe everything")

	count, err := index.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// Seeding again is a no-op.
	result, err = index.SeedFromFile(ctx, path, provider)
	require.NoError(t, err)

	count, err = index.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
