package plan

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// Execute runs EXPLAIN (ANALYZE, VERBOSE, BUFFERS, FORMAT JSON) for sql on a
// fresh connection, inside a transaction that is always rolled back.
func Execute(dbConn string, sql string) ([]ExplainOutput, error) {
	ctx := context.Background()

	conn, err := pgx.Connect(ctx, dbConn)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	defer conn.Close(ctx)

	tx, err := conn.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := "EXPLAIN (ANALYZE, VERBOSE, BUFFERS, FORMAT JSON) " + sql

	var jsonStr string
	err = tx.QueryRow(ctx, query).Scan(&jsonStr)
	if err != nil {
		return nil, fmt.Errorf("executing EXPLAIN: %w", err)
	}

	return ParseJSONPlan([]byte(jsonStr))
}

// Estimate runs a cheap EXPLAIN (FORMAT JSON) with no ANALYZE, VERBOSE, or
// BUFFERS — this is the "always" half of the two-phase EXPLAIN strategy and
// never executes the underlying query.
func Estimate(ctx context.Context, conn *pgx.Conn, sql string) (ExplainOutput, error) {
	query := "EXPLAIN (FORMAT JSON) " + sql

	var jsonStr string
	if err := conn.QueryRow(ctx, query).Scan(&jsonStr); err != nil {
		return ExplainOutput{}, fmt.Errorf("executing EXPLAIN: %w", err)
	}

	plans, err := ParseJSONPlan([]byte(jsonStr))
	if err != nil {
		return ExplainOutput{}, err
	}
	return plans[0], nil
}

// AnalyzeWithTimeout runs EXPLAIN (ANALYZE, VERBOSE, BUFFERS, FORMAT JSON)
// for sql inside a dedicated transaction, with a statement timeout scoped to
// that transaction only via SET LOCAL — the timeout never leaks to
// statements run later on the same connection. The transaction is always
// rolled back, regardless of outcome, so the query's side effects (if any)
// never persist.
func AnalyzeWithTimeout(ctx context.Context, conn *pgx.Conn, sql string, timeout time.Duration) (ExplainOutput, error) {
	tx, err := conn.Begin(ctx)
	if err != nil {
		return ExplainOutput{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if timeout > 0 {
		ms := timeout.Milliseconds()
		if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL statement_timeout = %d", ms)); err != nil {
			return ExplainOutput{}, fmt.Errorf("setting statement_timeout: %w", err)
		}
	}

	query := "EXPLAIN (ANALYZE, VERBOSE, BUFFERS, FORMAT JSON) " + sql

	var jsonStr string
	if err := tx.QueryRow(ctx, query).Scan(&jsonStr); err != nil {
		return ExplainOutput{}, fmt.Errorf("executing EXPLAIN ANALYZE: %w", err)
	}

	plans, err := ParseJSONPlan([]byte(jsonStr))
	if err != nil {
		return ExplainOutput{}, err
	}
	return plans[0], nil
}
