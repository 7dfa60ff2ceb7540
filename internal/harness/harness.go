// Package harness implements the Evaluation Harness: it loads a task file,
// dispatches each task to a worker that runs the Agent Controller and then
// the Test Case Runner, scores the outcome with the metrics package, and
// assembles an aggregate report — the Go analogue of
// agentic_dba/bird_critic_runner.py's BIRDCriticEvaluator.
package harness

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/yudduy/sql-exenv/internal/action"
	"github.com/yudduy/sql-exenv/internal/metrics"
	"github.com/yudduy/sql-exenv/internal/task"
	"github.com/yudduy/sql-exenv/internal/telemetry"
)

// DefaultWorkers matches the original evaluator's sequential-by-default
// posture: safe for shared databases unless the operator opts into more.
const DefaultWorkers = 1

// TaskResult is one task's full evaluation outcome.
type TaskResult struct {
	RecordID     string         `json:"record_id"`
	InstanceID   int            `json:"instance_id"`
	DBID         string         `json:"db_id"`
	Category     task.Category  `json:"category"`
	Success      bool           `json:"success"`
	Iterations   int            `json:"iterations"`
	TimeSeconds  float64        `json:"time_seconds"`
	ActionsTaken []string       `json:"actions_taken"`
	FinalQuery   string         `json:"final_query"`
	Reason       string         `json:"reason"`
	Metric       metrics.Metric `json:"metric"`
	MetricResult metrics.Result `json:"metric_result"`
	Error        string         `json:"error,omitempty"`
}

// Report is the Harness's final, atomically-written output.
type Report struct {
	RunID        string       `json:"run_id"`
	TotalTasks   int          `json:"total_tasks"`
	TotalTimeSec float64      `json:"total_time_seconds"`
	Aggregate    Aggregate    `json:"aggregate"`
	Results      []TaskResult `json:"results"`
}

// Aggregate mirrors _compute_aggregate_metrics: counts, rates, and an
// action-kind histogram across every evaluated task.
type Aggregate struct {
	Total              int                          `json:"total_tasks"`
	Successful         int                          `json:"successful"`
	Failed             int                          `json:"failed"`
	SuccessRate        float64                      `json:"success_rate"`
	AvgTimePerTask     float64                      `json:"avg_time_per_task"`
	AvgIterations      float64                      `json:"avg_iterations"`
	ActionDistribution map[string]int                `json:"action_distribution"`
	ByCategory         map[string]CategoryBreakdown  `json:"by_category"`
}

// CategoryBreakdown is the per-category slice of Aggregate.
type CategoryBreakdown struct {
	Total       int     `json:"total"`
	Successful  int     `json:"successful"`
	SuccessRate float64 `json:"success_rate"`
}

// RunnerFactory builds the per-task Agent Controller and database-facing
// collaborators a Harness worker needs. Tests substitute a fake.
type RunnerFactory func(ctx context.Context, t task.Task, connStr string) (TaskRunner, error)

// TaskRunner is the minimal surface a Harness worker depends on: run one
// task's optimization-and-validation workflow end to end.
type TaskRunner interface {
	RunTask(ctx context.Context, t task.Task) (action.Solution, metrics.Result, error)
}

// Options configures one Harness run.
type Options struct {
	ConnTemplate  string // e.g. "postgres://.../{db_id}" — {db_id} or %s substituted with db_id
	Workers       int
	Category      task.Category
	Limit         int
	Smoke         bool
	MaxIterations int
	MinIterations int
	OnProgress    func(TaskResult)

	// IntermediateLogPath, when set, receives one JSON line per finished
	// task, appended as results come in rather than only at the end.
	IntermediateLogPath string

	// Logger, when set, receives one structured line per finished task via
	// telemetry.TaskFields. Nil disables task-level logging.
	Logger *zap.Logger
}

func (o Options) workers() int {
	if o.Workers <= 0 {
		return DefaultWorkers
	}
	return o.Workers
}

func (o Options) limit() int {
	if o.Smoke {
		return 10
	}
	return o.Limit
}

// Run loads tasks from path, dispatches them across a bounded worker pool,
// and returns the assembled Report. factory builds a TaskRunner per task;
// production code wires it to an agent.Controller, test code substitutes
// a stub.
func Run(ctx context.Context, taskFilePath string, opts Options, factory RunnerFactory) (Report, error) {
	tasks, err := task.LoadFile(taskFilePath)
	if err != nil {
		return Report{}, fmt.Errorf("loading tasks: %w", err)
	}
	tasks = task.Filter(tasks, opts.Category, opts.limit())

	runID := uuid.New().String()

	var ilog *IntermediateLog
	if opts.IntermediateLogPath != "" {
		var err error
		ilog, err = OpenIntermediateLog(opts.IntermediateLogPath)
		if err != nil {
			return Report{}, err
		}
		defer ilog.Close()
	}

	start := time.Now()
	results := make([]TaskResult, len(tasks))

	sem := semaphore.NewWeighted(int64(opts.workers()))
	done := make(chan struct{}, len(tasks))

	for i, t := range tasks {
		i, t := i, t
		if err := sem.Acquire(ctx, 1); err != nil {
			return Report{}, fmt.Errorf("acquiring worker slot: %w", err)
		}
		go func() {
			defer sem.Release(1)
			defer func() { done <- struct{}{} }()

			connStr := resolveConnStr(opts.ConnTemplate, t.DBID)
			res := evaluateTask(ctx, t, connStr, factory)
			results[i] = res
			if ilog != nil {
				_ = ilog.Append(res)
			}
			if opts.Logger != nil {
				fields := append(telemetry.TaskFields(t.InstanceID, t.DBID), zap.Bool("success", res.Success), zap.Float64("time_seconds", res.TimeSeconds))
				opts.Logger.Info("task complete", fields...)
			}
			if opts.OnProgress != nil {
				opts.OnProgress(res)
			}
		}()
	}
	for range tasks {
		<-done
	}

	totalTime := time.Since(start).Seconds()
	return Report{
		RunID:        runID,
		TotalTasks:   len(results),
		TotalTimeSec: totalTime,
		Aggregate:    computeAggregate(results),
		Results:      results,
	}, nil
}

func resolveConnStr(template, dbID string) string {
	if template == "" {
		return ""
	}
	if strings.Contains(template, "{db_id}") {
		return strings.ReplaceAll(template, "{db_id}", dbID)
	}
	if containsPercentS(template) {
		return fmt.Sprintf(template, dbID)
	}
	return template
}

func containsPercentS(s string) bool {
	for i := 0; i+1 < len(s); i++ {
		if s[i] == '%' && s[i+1] == 's' {
			return true
		}
	}
	return false
}

func evaluateTask(ctx context.Context, t task.Task, connStr string, factory RunnerFactory) TaskResult {
	start := time.Now()
	recordID := uuid.New().String()

	runner, err := factory(ctx, t, connStr)
	if err != nil {
		return TaskResult{
			RecordID:    recordID,
			InstanceID:  t.InstanceID,
			DBID:        t.DBID,
			Category:    t.Category,
			Success:     false,
			TimeSeconds: time.Since(start).Seconds(),
			FinalQuery:  firstOr(t.IssueSQL, t.Query),
			Reason:      "exception during evaluation",
			Error:       err.Error(),
		}
	}

	solution, metricResult, err := runner.RunTask(ctx, t)
	elapsed := time.Since(start).Seconds()

	if err != nil {
		return TaskResult{
			RecordID:    recordID,
			InstanceID:  t.InstanceID,
			DBID:        t.DBID,
			Category:    t.Category,
			Success:     false,
			TimeSeconds: elapsed,
			FinalQuery:  firstOr(t.IssueSQL, t.Query),
			Reason:      "exception during evaluation",
			Error:       err.Error(),
		}
	}

	actionsTaken := make([]string, 0, len(solution.Actions))
	for _, a := range solution.Actions {
		actionsTaken = append(actionsTaken, string(a.Kind))
	}

	return TaskResult{
		RecordID:     recordID,
		InstanceID:   t.InstanceID,
		DBID:         t.DBID,
		Category:     t.Category,
		Success:      solution.Success,
		Iterations:   countNonTerminal(solution.Actions),
		TimeSeconds:  elapsed,
		ActionsTaken: actionsTaken,
		FinalQuery:   solution.FinalQuery,
		Reason:       solution.Reason,
		Metric:       metricResult.Metric,
		MetricResult: metricResult,
	}
}

func countNonTerminal(actions []action.Action) int {
	n := 0
	for _, a := range actions {
		if !a.Kind.IsTerminal() {
			n++
		}
	}
	return n
}

func firstOr(issueSQL []string, fallback string) string {
	if len(issueSQL) > 0 {
		return issueSQL[0]
	}
	return fallback
}

// computeAggregate mirrors _compute_aggregate_metrics and adds a
// per-category breakdown the original only logs informally.
func computeAggregate(results []TaskResult) Aggregate {
	agg := Aggregate{
		ActionDistribution: map[string]int{},
		ByCategory:         map[string]CategoryBreakdown{},
	}
	agg.Total = len(results)
	if agg.Total == 0 {
		return agg
	}

	var totalTime float64
	var totalIterations int
	catCounts := map[string][2]int{} // [total, successful]

	for _, r := range results {
		if r.Success {
			agg.Successful++
		}
		totalTime += r.TimeSeconds
		totalIterations += r.Iterations
		for _, a := range r.ActionsTaken {
			agg.ActionDistribution[a]++
		}
		c := catCounts[string(r.Category)]
		c[0]++
		if r.Success {
			c[1]++
		}
		catCounts[string(r.Category)] = c
	}

	agg.Failed = agg.Total - agg.Successful
	agg.SuccessRate = float64(agg.Successful) / float64(agg.Total)
	agg.AvgTimePerTask = totalTime / float64(agg.Total)
	agg.AvgIterations = float64(totalIterations) / float64(agg.Total)

	for cat, c := range catCounts {
		rate := 0.0
		if c[0] > 0 {
			rate = float64(c[1]) / float64(c[0])
		}
		agg.ByCategory[cat] = CategoryBreakdown{Total: c[0], Successful: c[1], SuccessRate: rate}
	}

	return agg
}
