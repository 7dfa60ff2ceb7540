package analyzer

import (
	"fmt"
	"regexp"
	"strings"
)

var reservedFilterWords = map[string]bool{
	"AND": true, "OR": true, "NOT": true, "IS": true,
	"NULL": true, "TRUE": true, "FALSE": true, "IN": true, "LIKE": true,
	"ANY": true, "ALL": true, "EXISTS": true,
}

var castSuffixRe = regexp.MustCompile(`::\s*[a-zA-Z_][a-zA-Z0-9_]*(\s*\([0-9,\s]*\))?`)

var comparisonOpRe = regexp.MustCompile(`(?i)(!~~|~~|<=|>=|<>|!=|=|<|>|\bLIKE\b|\bIN\b)`)

// SplitFilterColumns extracts the ordered, de-duplicated set of columns a
// PostgreSQL Filter or Join Filter condition constrains, along with the
// top-level boolean connective ("AND" or "OR") joining its clauses. Type
// casts and string literals never leak into the result. A condition with a
// single clause always reports "AND" as a harmless default, since the
// connective is only meaningful when more than one column is present.
func SplitFilterColumns(cond string) (cols []string, connective string) {
	if cond == "" {
		return nil, "AND"
	}

	cleaned := stringLiteralRe.ReplaceAllString(cond, "''")
	cleaned = castSuffixRe.ReplaceAllString(cleaned, "")

	clauses, conn := splitTopLevelBoolean(cleaned)
	if conn == "" {
		conn = "AND"
	}

	seen := make(map[string]bool)
	for _, clause := range clauses {
		col := leftHandColumn(clause)
		if col == "" || seen[col] {
			continue
		}
		seen[col] = true
		cols = append(cols, col)
	}
	return cols, conn
}

// splitTopLevelBoolean splits s on its top-level (paren-depth-zero)
// occurrences of a single boolean connective, returning the clauses and
// which connective was found. A condition mixing AND and OR at the top
// level is split on whichever connective is encountered first; PostgreSQL
// EXPLAIN rarely prints such a filter without parenthesizing the
// sub-groups, so this matches actual output in practice.
func splitTopLevelBoolean(s string) (clauses []string, connective string) {
	depth := 0
	last := 0
	upper := strings.ToUpper(s)

	i := 0
	for i < len(upper) {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
		}
		if depth == 0 {
			if connective == "" || connective == "AND" {
				if matchesWordAt(upper, i, "AND") {
					clauses = append(clauses, s[last:i])
					connective = "AND"
					last = i + 3
					i += 3
					continue
				}
			}
			if connective == "" || connective == "OR" {
				if matchesWordAt(upper, i, "OR") {
					clauses = append(clauses, s[last:i])
					connective = "OR"
					last = i + 2
					i += 2
					continue
				}
			}
		}
		i++
	}
	clauses = append(clauses, s[last:])
	return clauses, connective
}

func matchesWordAt(upper string, i int, word string) bool {
	if i+len(word) > len(upper) || upper[i:i+len(word)] != word {
		return false
	}
	if i > 0 && isIdentChar(upper[i-1]) {
		return false
	}
	end := i + len(word)
	if end < len(upper) && isIdentChar(upper[end]) {
		return false
	}
	return true
}

func isIdentChar(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

func leftHandColumn(clause string) string {
	c := stripOuterParens(strings.TrimSpace(clause))

	loc := comparisonOpRe.FindStringIndex(c)
	if loc == nil {
		return ""
	}
	lhs := strings.TrimSpace(c[:loc[0]])
	lhs = stripOuterParens(lhs)
	lhs = strings.Trim(lhs, `"`)

	if idx := strings.LastIndex(lhs, "."); idx >= 0 {
		lhs = lhs[idx+1:]
	}
	lhs = strings.TrimSpace(lhs)

	if lhs == "" || reservedFilterWords[strings.ToUpper(lhs)] {
		return ""
	}
	if !identRe.MatchString(lhs) {
		return ""
	}
	return lhs
}

var identRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

func stripOuterParens(s string) string {
	for strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		depth := 0
		balanced := true
		for i := 0; i < len(s); i++ {
			switch s[i] {
			case '(':
				depth++
			case ')':
				depth--
				if depth == 0 && i != len(s)-1 {
					balanced = false
				}
			}
		}
		if !balanced || depth != 0 {
			break
		}
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	return s
}

// SynthesizeSuggestion builds the canonical CREATE INDEX remedy for a set
// of columns extracted from a single relation's filter, following the
// connective-sensitive rule: one column gets a single-column index, an
// AND-joined group gets one composite index in clause order, and an
// OR-joined group gets one single-column index per branch, joined by a
// semicolon so each can run independently.
func SynthesizeSuggestion(table string, cols []string, connective string) string {
	if table == "" {
		table = "the affected table"
	}
	if len(cols) == 0 {
		return fmt.Sprintf("CREATE INDEX ON %s (...)", table)
	}
	if len(cols) == 1 {
		return singleColumnIndex(table, cols[0])
	}
	if connective == "OR" {
		stmts := make([]string, len(cols))
		for i, c := range cols {
			stmts[i] = singleColumnIndex(table, c)
		}
		return strings.Join(stmts, "; ")
	}
	return fmt.Sprintf("CREATE INDEX idx_%s_composite ON %s (%s)", table, table, strings.Join(cols, ", "))
}

func singleColumnIndex(table, col string) string {
	return fmt.Sprintf("CREATE INDEX idx_%s_%s ON %s (%s)", table, col, table, col)
}
