package validate

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// whereClauseRe captures a WHERE clause's predicate up to the next clause
// keyword, a semicolon, or the end of the string.
var whereClauseRe = regexp.MustCompile(`(?is)\bWHERE\b\s+(.+?)(?:\s+(?:GROUP|ORDER|LIMIT|OFFSET)\b|;|$)`)

// NoREC is a Non-optimizing Reference Engine Construction validator: it
// forces a PostgreSQL's predicate into a form the planner cannot index
// ("(SELECT <predicate>) = TRUE") and checks that the row count matches the
// original query's. A mismatch means the optimizer took a shortcut that
// changed the result set — an optimization bug, not a correctness bug in
// the agent's rewrite.
//
// Queries with no top-level WHERE clause can't be transformed and are
// skipped with a low-confidence pass rather than a failure.
type NoREC struct{}

var _ Validator = NoREC{}

func (NoREC) Validate(ctx context.Context, conn Queryer, query string) (Result, error) {
	variant, ok := nonOptimizableVariant(query)
	if !ok {
		return Result{Passed: true, Confidence: 0.3}, nil
	}

	optimizedCount, err := countRows(ctx, conn, query)
	if err != nil {
		return Result{}, fmt.Errorf("executing original query: %w", err)
	}

	variantCount, err := countRows(ctx, conn, variant)
	if err != nil {
		return Result{}, fmt.Errorf("executing non-optimizable variant: %w", err)
	}

	if optimizedCount != variantCount {
		return Result{
			Passed:     false,
			Confidence: 0.9,
			Issues: []Issue{{
				Kind: "optimization-bug",
				Detail: fmt.Sprintf(
					"query returned %d rows but its non-optimizable variant returned %d rows",
					optimizedCount, variantCount,
				),
			}},
		}, nil
	}

	return Result{Passed: true, Confidence: 0.9}, nil
}

// nonOptimizableVariant wraps a query's WHERE predicate in a scalar
// subquery, the way (SELECT age > 25) = TRUE forces a table scan where
// age > 25 could use an index. Returns ok=false when there is no WHERE
// clause to transform.
func nonOptimizableVariant(query string) (string, bool) {
	loc := whereClauseRe.FindStringSubmatchIndex(query)
	if loc == nil {
		return "", false
	}

	predStart, predEnd := loc[2], loc[3]
	predicate := strings.TrimSpace(query[predStart:predEnd])
	replacement := fmt.Sprintf("(SELECT %s) = TRUE", predicate)

	return query[:predStart] + replacement + query[predEnd:], true
}

func countRows(ctx context.Context, conn Queryer, query string) (int, error) {
	rows, err := conn.Query(ctx, query)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		n++
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}
	return n, nil
}
