// Package executor applies a Planner-issued Action against the database:
// DDL, a statistics refresh, a query rewrite, or a hypothetical-index probe.
package executor

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/yudduy/sql-exenv/internal/action"
	"github.com/yudduy/sql-exenv/internal/hypopg"
	"github.com/yudduy/sql-exenv/internal/schema"
)

// DefaultTimeout bounds every CreateIndex/RunAnalyze statement the
// Executor runs, so a runaway DDL statement can't stall a worker forever.
const DefaultTimeout = 30 * time.Second

// Result is what dispatching one Action produced.
type Result struct {
	QuerySet   []string
	Mutated    bool
	Err        error
	TestResult *hypopg.Result
}

// Executor dispatches Actions against one task's database. Oracle and
// Prover are optional: a nil Oracle simply skips index-cache invalidation,
// a nil Prover makes TestIndex return an error result (never a panic).
type Executor struct {
	ConnStr string
	Timeout time.Duration
	Oracle  *schema.Oracle
	Prover  *hypopg.Prover

	// Logger, when set, receives one structured line per dispatched Action.
	// Nil disables executor-level logging.
	Logger *zap.Logger
}

func (e *Executor) timeout() time.Duration {
	if e.Timeout <= 0 {
		return DefaultTimeout
	}
	return e.Timeout
}

// Execute applies act against the current query set and returns the
// updated set plus whether the database was mutated. It never panics —
// every engine error surfaces as Result.Err.
func (e *Executor) Execute(ctx context.Context, act action.Action, current []string) Result {
	var res Result
	switch act.Kind {
	case action.CreateIndex:
		res = e.createIndex(ctx, act, current)
	case action.RunAnalyze:
		res = e.runAnalyze(ctx, act, current)
	case action.RewriteQuery:
		res = e.rewriteQuery(act, current)
	case action.TestIndex:
		res = e.testIndex(ctx, act, current)
	case action.Done, action.Failed:
		res = Result{QuerySet: current}
	default:
		res = Result{QuerySet: current, Err: fmt.Errorf("unknown action kind %q", act.Kind)}
	}
	e.logAction(act, res)
	return res
}

// logAction emits one structured line per dispatched Action when a Logger
// is configured; a nil Logger (the default) makes this a no-op.
func (e *Executor) logAction(act action.Action, res Result) {
	if e.Logger == nil {
		return
	}
	fields := []zap.Field{
		zap.String("action_kind", string(act.Kind)),
		zap.Bool("mutated", res.Mutated),
	}
	if res.Err != nil {
		fields = append(fields, zap.Error(res.Err))
		e.Logger.Warn("action dispatch failed", fields...)
		return
	}
	e.Logger.Info("action dispatched", fields...)
}

func (e *Executor) createIndex(ctx context.Context, act action.Action, current []string) Result {
	if err := e.runStatement(ctx, act.DDL); err != nil {
		return Result{QuerySet: current, Err: fmt.Errorf("CreateIndex: %w", err)}
	}
	if e.Oracle != nil {
		if table, ok := targetTable(act.DDL); ok {
			e.Oracle.InvalidateIndexes(table)
		}
	}
	return Result{QuerySet: current, Mutated: true}
}

func (e *Executor) runAnalyze(ctx context.Context, act action.Action, current []string) Result {
	if act.Table == "" {
		return Result{QuerySet: current, Err: fmt.Errorf("RunAnalyze: no table specified")}
	}
	stmt := fmt.Sprintf("ANALYZE %s", pgx.Identifier{act.Table}.Sanitize())
	if err := e.runStatement(ctx, stmt); err != nil {
		return Result{QuerySet: current, Err: fmt.Errorf("RunAnalyze: %w", err)}
	}
	return Result{QuerySet: current, Mutated: true}
}

func (e *Executor) rewriteQuery(act action.Action, current []string) Result {
	if len(act.NewSQL) == 0 {
		return Result{QuerySet: current, Err: fmt.Errorf("RewriteQuery: no newSQL provided")}
	}
	return Result{QuerySet: act.NewSQL}
}

func (e *Executor) testIndex(ctx context.Context, act action.Action, current []string) Result {
	if e.Prover == nil {
		return Result{QuerySet: current, Err: fmt.Errorf("TestIndex: no hypothetical-index prover configured")}
	}
	probe := act.ProbeQuery
	if probe == "" && len(current) > 0 {
		probe = current[0]
	}
	res := e.Prover.TestIndex(ctx, probe, act.DDL)
	return Result{QuerySet: current, TestResult: &res, Err: res.Err}
}

// runStatement executes sql on a fresh connection outside any evaluation
// transaction, with a per-statement timeout, and converts any engine error
// into a plain Go error rather than letting it surface as a panic.
func (e *Executor) runStatement(ctx context.Context, sql string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("statement panicked: %v", r)
		}
	}()

	conn, cerr := pgx.Connect(ctx, e.ConnStr)
	if cerr != nil {
		return fmt.Errorf("connecting: %w", cerr)
	}
	defer conn.Close(ctx)

	timeoutCtx, cancel := context.WithTimeout(ctx, e.timeout())
	defer cancel()

	if _, terr := conn.Exec(timeoutCtx, fmt.Sprintf("SET statement_timeout = %d", e.timeout().Milliseconds())); terr != nil {
		return fmt.Errorf("setting statement_timeout: %w", terr)
	}

	_, eerr := conn.Exec(timeoutCtx, sql)
	if eerr != nil {
		return fmt.Errorf("executing %q: %w", sql, eerr)
	}
	return nil
}

var targetTableRe = regexp.MustCompile(`(?i)\bON\s+([a-zA-Z_][\w.]*)\s*\(`)

// targetTable extracts the table name a CREATE INDEX statement targets.
func targetTable(ddl string) (string, bool) {
	m := targetTableRe.FindStringSubmatch(ddl)
	if m == nil {
		return "", false
	}
	return strings.ToLower(m[1]), true
}
