// Package execute runs approved queries against the target database
// over a read-only DuckDB connection, bounded by a timeout and a row
// cap.
package execute

import (
	"context"
	"database/sql"
	"fmt"
	"math/big"
	"time"

	_ "github.com/marcboeker/go-duckdb" // DuckDB driver

	"github.com/askdb/askdb/internal/config"
	askerr "github.com/askdb/askdb/internal/errors"
)

// Stage name used in error reporting.
const Stage = "executing"

// Result holds the bounded result set of an executed query.
type Result struct {
	Columns  []string        `json:"columns"`
	Rows     [][]interface{} `json:"rows"`
	RowCount int             `json:"row_count"`

	// Truncated is set when the row cap cut the result short.
	Truncated bool `json:"truncated"`

	Elapsed time.Duration `json:"-"`
}

// Executor runs queries against the target database.
type Executor struct {
	db      *sql.DB
	timeout time.Duration
	rowCap  int
}

// NewExecutor opens the target database read-only. The access mode is
// enforced at the connection level; even a query that slipped past the
// safety check cannot write.
func NewExecutor(cfg config.DatabaseConfig) (*Executor, error) {
	dsn := fmt.Sprintf("%s?access_mode=read_only", cfg.Path)

	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, askerr.Wrap(err, askerr.KindExecution, "failed to open target database")
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdleConns)

	if err := db.Ping(); err != nil {
		return nil, askerr.Wrap(err, askerr.KindExecution, "failed to connect to target database")
	}

	rowCap := cfg.RowCap
	if rowCap <= 0 {
		rowCap = 500
	}

	return &Executor{
		db:      db,
		timeout: cfg.QueryTimeoutDuration(),
		rowCap:  rowCap,
	}, nil
}

// NewExecutorFromDB wraps an existing connection; used by tests.
func NewExecutorFromDB(db *sql.DB, timeout time.Duration, rowCap int) *Executor {
	return &Executor{db: db, timeout: timeout, rowCap: rowCap}
}

// Close closes the target database connection.
func (e *Executor) Close() error {
	return e.db.Close()
}

// RowCap returns the configured result bound.
func (e *Executor) RowCap() int {
	return e.rowCap
}

// Run executes sqlText and collects at most rowCap rows. The database
// error message is preserved verbatim in the returned error so callers
// can surface it; it never causes a retry of earlier stages.
func (e *Executor) Run(ctx context.Context, sqlText string) (*Result, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)

		defer cancel()
	}

	start := time.Now()

	rows, err := e.db.QueryContext(ctx, sqlText)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, askerr.Wrap(err, askerr.KindExecution, "query timed out").AtStage(Stage)
		}

		if ctx.Err() != nil {
			return nil, askerr.Wrap(ctx.Err(), askerr.KindCancelled, "query cancelled").AtStage(Stage)
		}

		return nil, askerr.Wrapf(err, askerr.KindExecution, "query failed: %v", err).AtStage(Stage)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, askerr.Wrap(err, askerr.KindExecution, "failed to read result columns").AtStage(Stage)
	}

	result := &Result{Columns: columns, Rows: [][]interface{}{}}

	for rows.Next() {
		if result.RowCount >= e.rowCap {
			result.Truncated = true
			break
		}

		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))

		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, askerr.Wrap(err, askerr.KindExecution, "failed to scan row").AtStage(Stage)
		}

		for i, v := range values {
			values[i] = normalizeValue(v)
		}

		result.Rows = append(result.Rows, values)
		result.RowCount++
	}

	if err := rows.Err(); err != nil {
		return nil, askerr.Wrapf(err, askerr.KindExecution, "query failed: %v", err).AtStage(Stage)
	}

	result.Elapsed = time.Since(start)

	return result, nil
}

// normalizeValue maps driver values onto types that render and encode
// predictably: timestamps as RFC 3339 strings, exact decimals as
// strings to avoid float rounding, byte slices as text.
func normalizeValue(v interface{}) interface{} {
	switch value := v.(type) {
	case time.Time:
		return value.UTC().Format(time.RFC3339)
	case []byte:
		return string(value)
	case *big.Int:
		return value.String()
	case *big.Float:
		return value.Text('f', -1)
	case fmt.Stringer:
		return value.String()
	default:
		return v
	}
}
