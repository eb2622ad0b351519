// Package lint is the deterministic rule engine that gates every query
// before it can reach a database connection. It is pure text analysis:
// no model, no database, and it cannot be disabled by configuration.
// The statement-type rule is intentionally over-strict: anything not
// provably a single SELECT is rejected.
package lint

import (
	"regexp"
	"strings"
)

// MaxStatementLen bounds accepted statements. Not configurable.
const MaxStatementLen = 8192

// Rule identifies which linter rule produced a rejection.
type Rule string

const (
	RuleStatementType  Rule = "statement_type"
	RuleMultiStatement Rule = "multi_statement"
	RuleDangerous      Rule = "dangerous_construct"
	RuleEmpty          Rule = "empty_statement"
	RuleTooLong        Rule = "statement_too_long"
)

// Verdict is the linter's decision for one SQL string.
type Verdict struct {
	Allowed bool
	Rule    Rule
	Reason  string
}

func rejected(rule Rule, reason string) Verdict {
	return Verdict{Allowed: false, Rule: rule, Reason: reason}
}

// Destructive or privilege-changing verbs. Matched on word boundaries
// outside string literals, anywhere in the statement.
var destructiveVerbs = regexp.MustCompile(`\b(insert|update|delete|drop|alter|truncate|grant|revoke|create|merge|replace|attach|detach|vacuum|checkpoint)\b`)

// Constructs that execute code, touch the filesystem, or hide follow-on
// statements. Legitimate generated SELECTs never need any of these.
var dangerousPatterns = []string{
	"--", "/*", "*/", "#",
	"exec ", "exec(", "execute ", "execute(", "call ", "call(",
	"xp_", "sp_executesql",
	"read_csv", "read_parquet", "read_json", "read_text",
	"copy ", "copy(", "export ", "import ",
	"install ", "load_extension", "glob(", "getenv(", "system(", "shell(",
	"into outfile", "into dumpfile", "pg_read_file", "load_file",
}

// Check applies the safety rules in order, short-circuiting on the
// first match: statement type (including destructive verbs anywhere in
// the text), multi-statement, dangerous constructs, then the length
// cap. Empty input has no statement type and is rejected up front. A
// trailing semicolon with nothing after it is tolerated.
func Check(sqlText string) Verdict {
	trimmed := strings.TrimSpace(sqlText)
	if trimmed == "" {
		return rejected(RuleEmpty, "statement is empty")
	}

	// Literal content cannot execute; blank it so a quoted word like
	// 'delete' does not trip the verb scan, while anything outside
	// quotes still does.
	scrubbed := strings.ToLower(blankStringLiterals(trimmed))

	if !strings.HasPrefix(scrubbed, "select") && !strings.HasPrefix(scrubbed, "with") {
		return rejected(RuleStatementType, "only a single SELECT statement is allowed")
	}

	if match := destructiveVerbs.FindString(scrubbed); match != "" {
		return rejected(RuleStatementType, "statement contains forbidden verb: "+match)
	}

	if idx := strings.Index(scrubbed, ";"); idx >= 0 {
		if strings.TrimSpace(scrubbed[idx+1:]) != "" {
			return rejected(RuleMultiStatement, "multiple statements are not allowed")
		}
	}

	for _, pattern := range dangerousPatterns {
		if strings.Contains(scrubbed, pattern) {
			return rejected(RuleDangerous, "statement contains dangerous construct: "+strings.TrimSpace(pattern))
		}
	}

	if len(trimmed) > MaxStatementLen {
		return rejected(RuleTooLong, "statement exceeds maximum length")
	}

	return Verdict{Allowed: true}
}

// blankStringLiterals replaces the content of single-quoted literals with
// spaces, preserving length and structure. '' escapes are honored.
func blankStringLiterals(sqlText string) string {
	out := []byte(sqlText)

	for i := 0; i < len(out); i++ {
		if out[i] != '\'' {
			continue
		}

		for i++; i < len(out); i++ {
			if out[i] == '\'' {
				if i+1 < len(out) && out[i+1] == '\'' {
					out[i] = ' '
					out[i+1] = ' '
					i++
					continue
				}

				break
			}

			out[i] = ' '
		}
	}

	return string(out)
}
