package execute

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/marcboeker/go-duckdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	askerr "github.com/askdb/askdb/internal/errors"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("duckdb", "")
	require.NoError(t, err)

	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE orders (
			id INTEGER,
			state VARCHAR,
			status VARCHAR,
			total DECIMAL(10,2),
			created_at TIMESTAMP
		)`)
	require.NoError(t, err)

	_, err = db.Exec(`
		INSERT INTO orders VALUES
			(1, 'CA', 'pending', 100.50, '2026-01-15 10:00:00'),
			(2, 'CA', 'pending', 20.00, '2026-02-01 11:30:00'),
			(3, 'NY', 'pending', 35.25, '2026-02-10 09:15:00'),
			(4, 'NY', 'done',    50.00, '2026-03-05 16:45:00'),
			(5, 'TX', 'pending', 75.10, '2026-03-20 08:00:00')`)
	require.NoError(t, err)

	return db
}

func TestRunBasicQuery(t *testing.T) {
	db := setupTestDB(t)
	executor := NewExecutorFromDB(db, 10*time.Second, 500)

	result, err := executor.Run(context.Background(),
		"SELECT state, COUNT(*) AS count FROM orders WHERE status = 'pending' GROUP BY state ORDER BY state")
	require.NoError(t, err)

	assert.Equal(t, []string{"state", "count"}, result.Columns)
	assert.Equal(t, 3, result.RowCount)
	assert.False(t, result.Truncated)
	assert.Equal(t, "CA", result.Rows[0][0])
}

func TestRunRowCapTruncation(t *testing.T) {
	db := setupTestDB(t)
	executor := NewExecutorFromDB(db, 10*time.Second, 3)

	result, err := executor.Run(context.Background(), "SELECT id FROM orders ORDER BY id")
	require.NoError(t, err)

	assert.True(t, result.Truncated)
	assert.Equal(t, 3, result.RowCount)
	assert.Len(t, result.Rows, 3)
}

func TestRunRowCapExactBoundary(t *testing.T) {
	db := setupTestDB(t)
	executor := NewExecutorFromDB(db, 10*time.Second, 5)

	// Exactly row_cap rows is not a truncation.
	result, err := executor.Run(context.Background(), "SELECT id FROM orders")
	require.NoError(t, err)

	assert.False(t, result.Truncated)
	assert.Equal(t, 5, result.RowCount)
}

func TestRunPreservesDatabaseError(t *testing.T) {
	db := setupTestDB(t)
	executor := NewExecutorFromDB(db, 10*time.Second, 500)

	_, err := executor.Run(context.Background(), "SELECT missing_col FROM orders")
	require.Error(t, err)

	assert.True(t, askerr.IsKind(err, askerr.KindExecution))
	assert.Contains(t, err.Error(), "missing_col")
}

func TestRunNormalizesTemporalValues(t *testing.T) {
	db := setupTestDB(t)
	executor := NewExecutorFromDB(db, 10*time.Second, 500)

	result, err := executor.Run(context.Background(),
		"SELECT created_at FROM orders WHERE id = 1")
	require.NoError(t, err)
	require.Equal(t, 1, result.RowCount)

	value, ok := result.Rows[0][0].(string)
	require.True(t, ok, "timestamps must come back as strings, got %T", result.Rows[0][0])
	assert.Contains(t, value, "2026-01-15T10:00:00")
}

func TestRunCancelledContext(t *testing.T) {
	db := setupTestDB(t)
	executor := NewExecutorFromDB(db, 10*time.Second, 500)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := executor.Run(ctx, "SELECT * FROM orders")
	require.Error(t, err)
	assert.True(t, askerr.IsKind(err, askerr.KindCancelled))
}
