package lint

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckAllowsValidSelects(t *testing.T) {
	queries := []string{
		"SELECT 1",
		"SELECT * FROM orders",
		"select id, name from partners where active = true",
		"SELECT o.id, p.name FROM orders o JOIN partners p ON o.partner_id = p.id",
		"SELECT state, COUNT(*) AS count FROM orders WHERE status = 'pending' GROUP BY state",
		"WITH recent AS (SELECT * FROM orders WHERE created_at > '2026-01-01') SELECT COUNT(*) FROM recent",
		"SELECT * FROM orders WHERE note = 'please delete this later'",
		"SELECT * FROM orders ORDER BY total DESC LIMIT 10",
		"SELECT name FROM products WHERE name LIKE '%update%'",
		"SELECT * FROM orders;",
		"SELECT * FROM orders;   ",
	}

	for _, q := range queries {
		verdict := Check(q)
		assert.True(t, verdict.Allowed, "expected allowed: %s (got %s: %s)", q, verdict.Rule, verdict.Reason)
	}
}

func TestCheckRejectsNonSelect(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		rule Rule
	}{
		{"insert", "INSERT INTO orders (id) VALUES (1)", RuleStatementType},
		{"update", "UPDATE orders SET status = 'done'", RuleStatementType},
		{"delete", "DELETE FROM orders", RuleStatementType},
		{"drop", "DROP TABLE orders", RuleStatementType},
		{"alter", "ALTER TABLE orders ADD COLUMN x INT", RuleStatementType},
		{"truncate", "TRUNCATE orders", RuleStatementType},
		{"grant", "GRANT ALL ON orders TO admin", RuleStatementType},
		{"create", "CREATE TABLE evil (id INT)", RuleStatementType},
		{"explain", "EXPLAIN SELECT * FROM orders", RuleStatementType},
		{"pragma", "PRAGMA database_list", RuleStatementType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verdict := Check(tt.sql)
			require.False(t, verdict.Allowed)
			assert.Equal(t, tt.rule, verdict.Rule)
		})
	}
}

func TestCheckRejectsEmbeddedDestructiveVerbs(t *testing.T) {
	// The verb scan applies anywhere in the text, not just at the
	// start, so piggybacked statements fail even before the
	// multi-statement rule sees them.
	queries := []string{
		"SELECT * FROM orders; DROP TABLE orders;",
		"SELECT * FROM orders; DELETE FROM orders",
		"SELECT 1; INSERT INTO audit VALUES (1)",
		"with x as (select 1) select * from x; truncate orders",
	}

	for _, q := range queries {
		verdict := Check(q)
		require.False(t, verdict.Allowed, "expected rejected: %s", q)
		assert.Equal(t, RuleStatementType, verdict.Rule)
	}
}

func TestCheckRejectsMultiStatement(t *testing.T) {
	verdict := Check("SELECT 1; SELECT 2")
	require.False(t, verdict.Allowed)
	assert.Equal(t, RuleMultiStatement, verdict.Rule)
}

func TestCheckRejectsDangerousConstructs(t *testing.T) {
	queries := []string{
		"SELECT * FROM orders -- hidden",
		"SELECT /* comment */ * FROM orders",
		"SELECT * FROM read_csv('/etc/passwd')",
		"SELECT * FROM read_parquet('s3://bucket/file')",
		"SELECT getenv('HOME')",
		"SELECT * FROM glob('*')",
		"SELECT load_extension('evil')",
	}

	for _, q := range queries {
		verdict := Check(q)
		require.False(t, verdict.Allowed, "expected rejected: %s", q)
		assert.Equal(t, RuleDangerous, verdict.Rule)
	}
}

func TestCheckRejectsEmpty(t *testing.T) {
	for _, q := range []string{"", "   ", "\n\t"} {
		verdict := Check(q)
		require.False(t, verdict.Allowed)
		assert.Equal(t, RuleEmpty, verdict.Rule)
	}
}

func TestCheckRejectsOverlongStatement(t *testing.T) {
	long := "SELECT '" + strings.Repeat("x", MaxStatementLen) + "'"

	verdict := Check(long)
	require.False(t, verdict.Allowed)
	assert.Equal(t, RuleTooLong, verdict.Rule)
}

// The length cap is the last rule: an oversized statement that also
// breaks an earlier rule reports that rule, not the length.
func TestCheckLengthIsCheckedLast(t *testing.T) {
	overlong := strings.Repeat("x", MaxStatementLen)

	verdict := Check("UPDATE orders SET note = '" + overlong + "'")
	require.False(t, verdict.Allowed)
	assert.Equal(t, RuleStatementType, verdict.Rule)

	verdict = Check("SELECT 1; SELECT '" + overlong + "'")
	require.False(t, verdict.Allowed)
	assert.Equal(t, RuleMultiStatement, verdict.Rule)
}

func TestCheckIgnoresVerbsInsideLiterals(t *testing.T) {
	verdict := Check("SELECT * FROM notes WHERE body = 'drop table orders'")
	assert.True(t, verdict.Allowed, "quoted verbs must not trip the scan: %s", verdict.Reason)

	verdict = Check("SELECT 'it''s a delete test'")
	assert.True(t, verdict.Allowed, "escaped quotes must stay inside the literal: %s", verdict.Reason)
}

func TestCheckSemicolonInsideLiteral(t *testing.T) {
	verdict := Check("SELECT * FROM notes WHERE body = 'a; b'")
	assert.True(t, verdict.Allowed)
}
