package harness

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/yudduy/sql-exenv/internal/action"
	"github.com/yudduy/sql-exenv/internal/agent"
	"github.com/yudduy/sql-exenv/internal/executor"
	"github.com/yudduy/sql-exenv/internal/hypopg"
	"github.com/yudduy/sql-exenv/internal/llm"
	"github.com/yudduy/sql-exenv/internal/metrics"
	"github.com/yudduy/sql-exenv/internal/plan"
	"github.com/yudduy/sql-exenv/internal/planner"
	"github.com/yudduy/sql-exenv/internal/schema"
	"github.com/yudduy/sql-exenv/internal/task"
	"github.com/yudduy/sql-exenv/internal/testcase"
	"github.com/yudduy/sql-exenv/internal/translator"
	"github.com/yudduy/sql-exenv/internal/validate"
)

// DefaultRunner wires the Agent Controller, Test Case Runner, and metrics
// selector into a single TaskRunner: it solves the task, validates the
// final query via testcase.Runner, and scores the outcome with
// metrics.Select.
type DefaultRunner struct {
	Conn           *pgx.Conn
	Executor       *executor.Executor
	Translator     translator.Translator
	Planner        planner.Planner
	Schema         schema.Schema
	AgentConfig    agent.Config
	MetricOverride metrics.Metric

	// Validators runs the optional Correctness Validation phase before the
	// Agent Controller's loop starts. Nil skips the phase entirely.
	Validators []validate.Validator

	// Logger, when set, is passed through to the Agent Controller so each
	// iteration logs a structured line.
	Logger *zap.Logger
}

var _ TaskRunner = (*DefaultRunner)(nil)

func (r *DefaultRunner) RunTask(ctx context.Context, t task.Task) (action.Solution, metrics.Result, error) {
	controller := &agent.Controller{
		Conn:       r.Conn,
		Translator: r.Translator,
		Planner:    r.Planner,
		Executor:   r.Executor,
		Schema:     r.Schema,
		Config:     r.AgentConfig,
		Validators: r.Validators,
		Logger:     r.Logger,
	}

	solution := controller.Run(ctx, t, t.Query)

	caseResult := testcase.Result{}
	if solution.Success {
		runner := &testcase.Runner{Conn: r.Conn, CompareWithIssueSQL: true}
		caseResult = runner.ExecuteTestCase(ctx, t, solution.FinalQuery)
	}

	metric := metrics.Select(t.Category, r.MetricOverride)
	result := scoreSolution(ctx, r.Conn, t, solution, caseResult, metric)

	return solution, result, nil
}

// scoreSolution dispatches to the metric the category (or an explicit
// override) selects. qep needs the before/after EXPLAIN plans, so it
// re-runs the estimate-only EXPLAIN for both the original issue_sql and
// the final query rather than threading plan state through the agent loop.
func scoreSolution(ctx context.Context, conn *pgx.Conn, t task.Task, sol action.Solution, caseResult testcase.Result, metric metrics.Metric) metrics.Result {
	switch metric {
	case metrics.TCV:
		return metrics.ScoreTCV(metrics.FromTestCaseResult(caseResult))
	case metrics.QEPM:
		return scoreQEP(ctx, conn, t, sol)
	default:
		return metrics.ScoreSoftEx(
			caseResult.Details.PredictedResult.Rows,
			caseResult.Details.PredictedResult.Success,
			referenceRows(ctx, conn, t),
			t.ReferenceSolution != nil,
		)
	}
}

// referenceRows runs the task's solution_sql through the Test Case Runner
// (same preprocess/cleanup bracket, rolled back) and returns its captured
// rows; nil when the task has no reference solution.
func referenceRows(ctx context.Context, conn *pgx.Conn, t task.Task) [][]any {
	if t.ReferenceSolution == nil {
		return nil
	}
	runner := &testcase.Runner{Conn: conn}
	return runner.ExecuteTestCase(ctx, t, *t.ReferenceSolution).Details.PredictedResult.Rows
}

func scoreQEP(ctx context.Context, conn *pgx.Conn, t task.Task, sol action.Solution) metrics.Result {
	originalSQL := ""
	if len(t.IssueSQL) > 0 {
		originalSQL = t.IssueSQL[0]
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	originalPlan, err := plan.Estimate(timeoutCtx, conn, originalSQL)
	if err != nil {
		predictedPlan, perr := plan.Estimate(timeoutCtx, conn, sol.FinalQuery)
		if perr == nil {
			return metrics.QEPIssueSQLFailed(predictedPlan)
		}
		return metrics.Result{Metric: metrics.QEPM, Passed: false, Error: fmt.Sprintf("original and predicted both failed to explain: %v / %v", err, perr)}
	}

	predictedPlan, err := plan.Estimate(timeoutCtx, conn, sol.FinalQuery)
	if err != nil {
		return metrics.Result{Metric: metrics.QEPM, Passed: false, Error: fmt.Sprintf("predicted query failed to explain: %v", err)}
	}

	return metrics.QEP(originalPlan, predictedPlan)
}

// NewConnExecutor builds an Executor/Oracle/Prover trio bound to connStr,
// the way cmd/run.go assembles a DefaultRunner per task. logger is optional
// and, when set, is attached to the Executor for per-action log lines.
func NewConnExecutor(ctx context.Context, connStr string, conn *pgx.Conn, logger *zap.Logger) (*executor.Executor, error) {
	oracle := schema.NewOracle(conn)
	prover, err := hypopg.NewProver(ctx, conn)
	if err != nil {
		return nil, fmt.Errorf("probing hypopg: %w", err)
	}
	return &executor.Executor{ConnStr: connStr, Oracle: oracle, Prover: prover, Logger: logger}, nil
}

// NewTranslator selects the LLM-backed translator when client is non-nil,
// otherwise the deterministic mode required for development and testing.
func NewTranslator(client llm.ChatClient) translator.Translator {
	if client == nil {
		return translator.Deterministic{}
	}
	return translator.LLMBacked{Client: client}
}
