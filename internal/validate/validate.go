// Package validate implements the optional Correctness Validation phase:
// a pre-loop check of whether the buggy query's own semantics are
// trustworthy before the agent spends any optimization budget on it. It is
// off by default and fails open — a broken validator never blocks
// optimization.
package validate

import (
	"context"
)

// Issue describes one correctness concern a Validator found.
type Issue struct {
	Kind   string
	Detail string
}

// Result is a single Validator's verdict. A Validator that panics or errors
// is treated by Run as Result{Passed: true, Confidence: 0} — fail-open.
type Result struct {
	Passed     bool
	Confidence float64
	Issues     []Issue
}

// Validator checks one aspect of a query's correctness, such as a
// metamorphic/TLP-style differential comparison between the buggy query and
// a perturbed rewrite. Implementations may run arbitrary queries against
// conn but must not mutate durable state.
type Validator interface {
	Validate(ctx context.Context, conn Queryer, query string) (Result, error)
}

// Queryer is the minimal database surface a Validator needs; satisfied by
// *pgx.Conn and by test doubles alike.
type Queryer interface {
	Query(ctx context.Context, sql string, args ...any) (Rows, error)
}

// Rows is the minimal cursor surface a Validator needs to read query
// results without importing pgx directly.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
}
