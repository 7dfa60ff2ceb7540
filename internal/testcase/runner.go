package testcase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/yudduy/sql-exenv/internal/task"
)

// DefaultStatementTimeout bounds each statement the Runner executes.
const DefaultStatementTimeout = 30 * time.Second

// Runner executes test cases in transaction-isolated steps over a single
// connection. Preprocess is expected to be safe to run many times: a step
// that fails with "already exists" is logged and skipped rather than
// failing the whole test case.
type Runner struct {
	Conn             *pgx.Conn
	StatementTimeout time.Duration
	// CompareWithIssueSQL runs the task's own issue_sql statements after
	// the predicted SQL, purely for comparison detail — their outcome
	// never affects Passed.
	CompareWithIssueSQL bool

	// log receives idempotence/cleanup diagnostics; nil means discard.
	Log func(format string, args ...any)
}

func (r *Runner) timeout() time.Duration {
	if r.StatementTimeout <= 0 {
		return DefaultStatementTimeout
	}
	return r.StatementTimeout
}

func (r *Runner) logf(format string, args ...any) {
	if r.Log != nil {
		r.Log(format, args...)
	}
}

// ExecuteTestCase runs t's preprocess → predicted → (optional issue_sql
// comparison) → cleanup sequence inside one transaction, always rolled
// back at the end, exactly as spec.md's protocol requires.
func (r *Runner) ExecuteTestCase(ctx context.Context, t task.Task, predictedSQL string) Result {
	details := Details{
		InstanceID:      t.InstanceID,
		DBID:            t.DBID,
		Category:        string(t.Category),
		PreprocessCount: len(t.PreprocessSQL),
		CleanupCount:    len(t.CleanUpSQL),
		IssueSQLCount:   len(t.IssueSQL),
	}

	tx, err := r.Conn.Begin(ctx)
	if err != nil {
		return Result{Passed: false, Error: fmt.Sprintf("beginning transaction: %v", err), Details: details}
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for i, sql := range t.PreprocessSQL {
		res := r.execSQL(ctx, tx, sql)
		if !res.Success {
			if isAlreadyExists(res.Error) {
				r.logf("preprocess[%d] already applied, continuing: %s", i, res.Error)
				continue
			}
			return r.fail(fmt.Sprintf("preprocess SQL [%d] failed: %s", i, res.Error), details, res.ErrorType)
		}
	}
	details.PreprocessSuccess = true

	predicted := r.execSQL(ctx, tx, predictedSQL)
	if !predicted.Success {
		return r.fail(fmt.Sprintf("predicted SQL failed: %s", predicted.Error), details, predicted.ErrorType)
	}
	details.PredictedResult = predicted

	if r.CompareWithIssueSQL {
		for _, sql := range t.IssueSQL {
			details.IssueSQLResults = append(details.IssueSQLResults, r.execSQL(ctx, tx, sql))
		}
	}

	for i, sql := range t.CleanUpSQL {
		res := r.execSQL(ctx, tx, sql)
		if !res.Success {
			r.logf("cleanup[%d] failed, continuing: %s", i, res.Error)
		}
	}
	details.CleanupSuccess = true

	return Result{Passed: true, Details: details}
}

func (r *Runner) fail(msg string, details Details, errorType string) Result {
	details.ErrorType = errorType
	return Result{Passed: false, Error: msg, Details: details}
}

// execSQL runs one statement under the configured timeout and captures its
// outcome. A SELECT's rows are bounded to maxCapturedRows; DDL/DML report
// only the affected-row count.
func (r *Runner) execSQL(ctx context.Context, tx pgx.Tx, sql string) ExecutionResult {
	timeoutCtx, cancel := context.WithTimeout(ctx, r.timeout())
	defer cancel()

	start := time.Now()
	rows, err := tx.Query(timeoutCtx, sql)
	if err != nil {
		return ExecutionResult{Success: false, Error: err.Error(), ErrorType: classifyError(err)}
	}
	defer rows.Close()

	var captured [][]any
	var count int64
	for rows.Next() {
		vals, verr := rows.Values()
		if verr != nil {
			return ExecutionResult{Success: false, Error: verr.Error(), ErrorType: classifyError(verr)}
		}
		count++
		if len(captured) < maxCapturedRows {
			captured = append(captured, vals)
		}
	}
	if err := rows.Err(); err != nil {
		return ExecutionResult{Success: false, Error: err.Error(), ErrorType: classifyError(err)}
	}

	tag := rows.CommandTag()
	if len(captured) == 0 && tag.RowsAffected() > 0 {
		count = tag.RowsAffected()
	}

	return ExecutionResult{
		Success:   true,
		Rows:      captured,
		RowCount:  count,
		ElapsedMS: float64(time.Since(start).Microseconds()) / 1000,
	}
}

func isAlreadyExists(msg string) bool {
	return strings.Contains(strings.ToLower(msg), "already exists")
}

// classifyError gives a short PostgreSQL-error-class label, the Go
// analogue of the Python runner's exception-type string, for Details'
// error_type field. It is advisory only.
func classifyError(err error) string {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "syntax error"):
		return "SyntaxError"
	case strings.Contains(msg, "already exists"):
		return "DuplicateObject"
	case strings.Contains(msg, "does not exist"):
		return "UndefinedObject"
	case strings.Contains(msg, "violates"):
		return "IntegrityConstraintViolation"
	default:
		return "Error"
	}
}
