// Package extract performs static analysis over generated SQL text to
// find the set of referenced table names. It never executes anything;
// unparsable input degrades to an empty set.
package extract

import (
	"sort"
	"strings"
	"unicode"
)

// Tables returns the distinct base table names referenced by sqlText,
// lowercased and sorted. Schema-qualified names are reduced to their base
// name; common table expression names are excluded.
func Tables(sqlText string) []string {
	tokens := tokenize(stripLiterals(sqlText))
	if len(tokens) == 0 {
		return nil
	}

	cteNames := collectCTENames(tokens)

	found := make(map[string]bool)

	for i := 0; i < len(tokens); i++ {
		keyword := strings.ToUpper(tokens[i])
		if keyword != "FROM" && keyword != "JOIN" {
			continue
		}

		// FROM accepts a comma-separated list; JOIN names one table.
		for j := i + 1; j < len(tokens); j++ {
			tok := tokens[j]

			if tok == "(" {
				// Subquery or derived table; its own FROM/JOIN clauses
				// are picked up by the outer scan.
				break
			}

			name := normalizeName(tok)
			if name == "" || isKeyword(name) {
				break
			}

			if !cteNames[name] {
				found[name] = true
			}

			// Skip an optional alias ("orders o" or "orders AS o").
			j = skipAlias(tokens, j)

			if keyword != "FROM" || j+1 >= len(tokens) || tokens[j+1] != "," {
				break
			}

			j++ // consume the comma, continue with the next list item
		}
	}

	if len(found) == 0 {
		return nil
	}

	names := make([]string, 0, len(found))
	for name := range found {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// collectCTENames finds WITH-clause names, which look like tables in
// later FROM clauses but are not catalog tables.
func collectCTENames(tokens []string) map[string]bool {
	names := make(map[string]bool)

	for i := 0; i+2 < len(tokens); i++ {
		if strings.ToUpper(tokens[i+1]) == "AS" && tokens[i+2] == "(" {
			if name := normalizeName(tokens[i]); name != "" && !isKeyword(name) {
				names[name] = true
			}
		}
	}

	return names
}

// skipAlias advances past "AS alias" or a bare alias following a table name.
func skipAlias(tokens []string, i int) int {
	if i+1 >= len(tokens) {
		return i
	}

	next := tokens[i+1]
	if strings.ToUpper(next) == "AS" {
		if i+2 < len(tokens) && isIdentifier(tokens[i+2]) {
			return i + 2
		}

		return i + 1
	}

	if isIdentifier(next) && !isKeyword(strings.ToLower(next)) {
		return i + 1
	}

	return i
}

// normalizeName reduces a raw identifier token to the base table name the
// catalog uses: quotes stripped, schema qualifier dropped, lowercased.
func normalizeName(tok string) string {
	tok = strings.Trim(tok, "\"`[]")

	if idx := strings.LastIndex(tok, "."); idx >= 0 {
		tok = tok[idx+1:]
		tok = strings.Trim(tok, "\"`[]")
	}

	if !isIdentifier(tok) {
		return ""
	}

	return strings.ToLower(tok)
}

func isIdentifier(tok string) bool {
	if tok == "" {
		return false
	}

	for i, r := range tok {
		switch {
		case unicode.IsLetter(r) || r == '_':
		case unicode.IsDigit(r) && i > 0:
		case r == '.' || r == '"' || r == '`':
		default:
			return false
		}
	}

	return true
}

// stripLiterals blanks out string literals and comments so their content
// is never mistaken for table references.
func stripLiterals(sqlText string) string {
	var sb strings.Builder

	for i := 0; i < len(sqlText); i++ {
		switch {
		case sqlText[i] == '\'':
			// Skip to the closing quote, honoring '' escapes.
			for i++; i < len(sqlText); i++ {
				if sqlText[i] == '\'' {
					if i+1 < len(sqlText) && sqlText[i+1] == '\'' {
						i++
						continue
					}

					break
				}
			}

			sb.WriteByte(' ')

		case sqlText[i] == '-' && i+1 < len(sqlText) && sqlText[i+1] == '-':
			for i < len(sqlText) && sqlText[i] != '\n' {
				i++
			}

			sb.WriteByte('\n')

		case sqlText[i] == '/' && i+1 < len(sqlText) && sqlText[i+1] == '*':
			for i += 2; i+1 < len(sqlText); i++ {
				if sqlText[i] == '*' && sqlText[i+1] == '/' {
					i++
					break
				}
			}

			sb.WriteByte(' ')

		default:
			sb.WriteByte(sqlText[i])
		}
	}

	return sb.String()
}

// tokenize splits SQL into identifiers and single-character punctuation.
func tokenize(sqlText string) []string {
	var tokens []string

	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			tokens = append(tokens, current.String())
			current.Reset()
		}
	}

	for _, r := range sqlText {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '.' || r == '"' || r == '`':
			current.WriteRune(r)
		case unicode.IsSpace(r):
			flush()
		default:
			flush()
			tokens = append(tokens, string(r))
		}
	}

	flush()

	return tokens
}

// sqlKeywords that can legally follow a table list and must terminate it.
var sqlKeywords = map[string]bool{
	"select": true, "from": true, "join": true, "inner": true, "left": true,
	"right": true, "full": true, "cross": true, "outer": true, "on": true,
	"where": true, "group": true, "order": true, "by": true, "having": true,
	"limit": true, "offset": true, "union": true, "all": true, "as": true,
	"with": true, "distinct": true, "lateral": true, "using": true,
	"natural": true, "and": true, "or": true, "not": true, "exists": true,
	"in": true, "case": true, "when": true, "then": true, "else": true,
	"end": true, "values": true, "window": true, "qualify": true,
}

func isKeyword(name string) bool {
	return sqlKeywords[name]
}
