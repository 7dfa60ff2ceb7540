package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/yudduy/sql-exenv/internal/action"
	"github.com/yudduy/sql-exenv/internal/analyzer"
	"github.com/yudduy/sql-exenv/internal/executor"
	"github.com/yudduy/sql-exenv/internal/memory"
	"github.com/yudduy/sql-exenv/internal/plan"
	"github.com/yudduy/sql-exenv/internal/planner"
	"github.com/yudduy/sql-exenv/internal/schema"
	"github.com/yudduy/sql-exenv/internal/task"
	"github.com/yudduy/sql-exenv/internal/telemetry"
	"github.com/yudduy/sql-exenv/internal/translator"
	"github.com/yudduy/sql-exenv/internal/validate"
)

// DefaultAnalyzeCostThreshold gates when the Agent Controller pays for a
// real EXPLAIN ANALYZE: above this estimated cost, only the cheap
// estimate-only EXPLAIN runs. Matches the original agent's
// analyze_cost_threshold default.
const DefaultAnalyzeCostThreshold = 5_000_000.0

// DefaultWallClockTimeout bounds an entire task's optimization loop.
const DefaultWallClockTimeout = 5 * time.Minute

// DefaultMemoryBound is H, the number of most-recent iteration records the
// Planner's prompt carries.
const DefaultMemoryBound = 2

const epsilon = 1e-9

// Config bundles the knobs a Controller run is tuned with.
type Config struct {
	AnalyzeCostThreshold float64
	MaxIterations        int
	MinIterations        int
	WallClockTimeout     time.Duration
	MemoryBound          int
	Constraints          translator.Constraints
}

func (c Config) withDefaults() Config {
	if c.AnalyzeCostThreshold <= 0 {
		c.AnalyzeCostThreshold = DefaultAnalyzeCostThreshold
	}
	if c.MaxIterations <= 0 {
		c.MaxIterations = 10
	}
	if c.MinIterations <= 0 {
		c.MinIterations = 3
	}
	if c.WallClockTimeout <= 0 {
		c.WallClockTimeout = DefaultWallClockTimeout
	}
	if c.MemoryBound <= 0 {
		c.MemoryBound = DefaultMemoryBound
	}
	return c
}

// Controller runs the ReAct loop — Analyze, Plan, Terminate?, Act,
// Re-probe, Loop — for a single task, against a single long-lived
// connection used for EXPLAIN probing. Mutating actions go through
// Executor, which opens its own connections outside this one.
type Controller struct {
	Conn       *pgx.Conn
	Translator translator.Translator
	Planner    planner.Planner
	Executor   *executor.Executor
	Schema     schema.Schema

	// Validators runs the optional Correctness Validation phase once before
	// the loop starts. Off by default — a nil or empty slice skips the phase
	// entirely, matching validate.Run's own empty-slice no-op.
	Validators []validate.Validator

	// Logger, when set, receives one structured line per iteration via
	// telemetry.IterationFields. Nil disables iteration logging.
	Logger *zap.Logger

	IterationController IterationController
	Config               Config
}

// Run drives the loop to completion and returns the final Solution. It
// never panics: every engine or planner error is captured as an outcome
// and the loop continues or terminates accordingly.
func (c *Controller) Run(ctx context.Context, t task.Task, intent string) action.Solution {
	cfg := c.Config.withDefaults()
	ic := c.IterationController
	if ic.MaxIterations == 0 {
		// c.IterationController was left at its zero value: build one from
		// Config so a caller's MinIterations/MaxIterations (e.g. the CLI's
		// --min-iterations flag) actually gates early-stop instead of being
		// silently overridden by the package defaults.
		ic = IterationController{MinIterations: cfg.MinIterations, MaxIterations: cfg.MaxIterations}
	}

	deadline := time.Now().Add(cfg.WallClockTimeout)
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	querySet := append([]string{}, t.IssueSQL...)
	if len(querySet) == 0 && t.Query != "" {
		querySet = []string{t.Query}
	}
	initialQuery := strings.Join(querySet, "; ")

	validationNote := c.runValidation(ctx, initialQuery)

	if sol, ok := c.tryManagementBatch(ctx, t, querySet); ok {
		sol.InitialQuery = initialQuery
		sol.ValidationNote = validationNote
		return sol
	}

	finish := func(querySet []string, actions []action.Action, success bool, reason string) action.Solution {
		sol := c.finish(querySet, actions, success, reason)
		sol.InitialQuery = initialQuery
		sol.ValidationNote = validationNote
		return sol
	}

	mem := memory.New(cfg.MemoryBound)
	var actions []action.Action
	var history []memory.Record
	var prevCost float64
	var indexCreatedButUnused string

	for iteration := 1; ; iteration++ {
		if ctx.Err() != nil {
			return finish(querySet, actions, false, "timeout")
		}

		fb, costBefore, explainErr := c.analyze(ctx, t, querySet)
		if explainErr != nil {
			return finish(querySet, actions, false, explainErr.Error())
		}

		act, err := c.Planner.Plan(ctx, planner.Input{
			Intent:                intent,
			QuerySet:              querySet,
			Feedback:              fb,
			Memory:                mem.Recent(cfg.MemoryBound),
			Schema:                c.Schema,
			Category:              t.Category,
			MaxIterations:         cfg.MaxIterations,
			Iteration:             iteration,
			IndexCreatedButUnused: indexCreatedButUnused,
		})
		if err != nil {
			act = action.NewFailed("planning error: " + err.Error())
		}
		actions = append(actions, act)

		if act.Kind.IsTerminal() {
			if act.Kind == action.Done {
				return finish(querySet, actions, true, "optimization complete")
			}
			return finish(querySet, actions, false, act.Reason)
		}

		if iteration >= cfg.MaxIterations {
			return finish(querySet, actions, false, "max iterations reached")
		}

		if stop, reason := ic.ShouldStopEarly(iteration, history); stop {
			return finish(querySet, actions, false, reason)
		}

		result := c.Executor.Execute(ctx, act, querySet)
		if result.Err != nil {
			rec := memory.Record{Ordinal: iteration, Action: act.Summary(), CostBefore: prevCost, CostAfter: prevCost, Outcome: memory.Error, Insight: result.Err.Error()}
			mem.Add(rec)
			history = append(history, rec)
			c.logIteration(t, rec)
			continue
		}
		querySet = result.QuerySet

		costAfter := costBefore
		if probeErr := c.reprobe(ctx, querySet, &costAfter); probeErr != nil {
			costAfter = costBefore
		}

		outcome, insight := classifyDelta(costBefore, costAfter)
		if act.Kind == action.CreateIndex && outcome != memory.Improved {
			indexCreatedButUnused = act.DDL
		}
		rec := memory.Record{Ordinal: iteration, Action: act.Summary(), CostBefore: costBefore, CostAfter: costAfter, Outcome: outcome, Insight: insight}
		mem.Add(rec)
		history = append(history, rec)
		c.logIteration(t, rec)
		prevCost = costAfter
	}
}

// logIteration emits one structured line per completed iteration when a
// Logger is configured; a nil Logger (the default) makes this a no-op.
func (c *Controller) logIteration(t task.Task, rec memory.Record) {
	if c.Logger == nil {
		return
	}
	fields := telemetry.IterationFields(t.InstanceID, t.DBID, rec.Ordinal, rec.Action, string(rec.Outcome))
	c.Logger.Info("iteration complete", fields...)
}

// analyze runs the two-phase EXPLAIN (estimate always, ANALYZE only under
// the cost threshold), feeds the result through Analyzer → Translator, and
// reports the estimated total cost for Δ% tracking. A failing EXPLAIN
// (syntax/unknown-column) surfaces as an error the caller turns into an
// immediate task failure with a category-specific reason.
func (c *Controller) analyze(ctx context.Context, t task.Task, querySet []string) (translator.Feedback, float64, error) {
	if isDDL(querySet) {
		return staticDDLFeedback(), 0, nil
	}

	sql := strings.Join(querySet, "; ")

	estimate, err := plan.Estimate(ctx, c.Conn, sql)
	if err != nil {
		return translator.Feedback{}, 0, explainError(t, err)
	}

	output := estimate
	threshold := c.Config.withDefaults().AnalyzeCostThreshold
	if estimate.Plan.TotalCost <= threshold {
		if analyzed, aerr := plan.AnalyzeWithTimeout(ctx, c.Conn, sql, 10*time.Second); aerr == nil {
			output = analyzed
		}
	}

	report := analyzer.Analyze(output)
	fb, err := c.Translator.Translate(ctx, report, c.Config.withDefaults().Constraints)
	if err != nil {
		return translator.Feedback{}, estimate.Plan.TotalCost, err
	}
	return fb, estimate.Plan.TotalCost, nil
}

// ddlKeywords are the statement-leading tokens EXPLAIN cannot plan:
// PostgreSQL only explains SELECT/INSERT/UPDATE/DELETE/MERGE, never utility
// statements.
var ddlKeywords = []string{"CREATE", "ALTER", "DROP", "TRUNCATE", "GRANT", "REVOKE", "COMMENT", "VACUUM", "REINDEX"}

// isDDL reports whether every statement in querySet is a DDL/utility
// statement, so the caller can skip EXPLAIN entirely rather than feeding it
// a statement it cannot parse.
func isDDL(querySet []string) bool {
	if len(querySet) == 0 {
		return false
	}
	for _, stmt := range querySet {
		fields := strings.Fields(strings.TrimSpace(stmt))
		if len(fields) == 0 {
			return false
		}
		first := strings.ToUpper(fields[0])
		matched := false
		for _, kw := range ddlKeywords {
			if first == kw {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

// staticDDLFeedback is the Feedback a DDL-only query set gets instead of an
// EXPLAIN-derived one: there is no plan to analyze, so the query set passes
// by static inspection alone.
func staticDDLFeedback() translator.Feedback {
	return translator.Feedback{
		Status: translator.StatusPass,
		Reason: "DDL statement: no EXPLAIN plan available, validated by static inspection only",
	}
}

// explainError renders a category-specific reason when EXPLAIN itself
// fails, per the loop's Analyze step.
func explainError(t task.Task, err error) error {
	msg := err.Error()
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "aggregate") && strings.Contains(lower, "where"):
		return fmt.Errorf("CRITICAL: aggregate in WHERE clause: %w", err)
	case strings.Contains(lower, "syntax error"):
		return fmt.Errorf("syntax error: %w", err)
	case strings.Contains(lower, "does not exist"):
		return fmt.Errorf("unknown column or relation: %w", err)
	}
	return fmt.Errorf("explain failed: %w", err)
}

func (c *Controller) reprobe(ctx context.Context, querySet []string, cost *float64) error {
	if isDDL(querySet) {
		return fmt.Errorf("cannot re-probe a DDL statement")
	}
	sql := strings.Join(querySet, "; ")
	estimate, err := plan.Estimate(ctx, c.Conn, sql)
	if err != nil {
		return err
	}
	*cost = estimate.Plan.TotalCost
	return nil
}

// classifyDelta implements the loop's Re-probe classification: < -5%
// improved, > +5% regressed, otherwise unchanged.
func classifyDelta(before, after float64) (memory.Outcome, string) {
	denom := before
	if denom < epsilon {
		denom = epsilon
	}
	delta := (after - before) / denom * 100

	switch {
	case delta < -5:
		return memory.Improved, ""
	case delta > 5:
		return memory.Regressed, "action increased plan cost"
	default:
		return memory.Unchanged, "index created but not used by planner"
	}
}

// runValidation runs the optional Correctness Validation phase once, before
// the loop starts. Returns an empty string when no validators are
// configured, so callers can set Solution.ValidationNote unconditionally.
func (c *Controller) runValidation(ctx context.Context, query string) string {
	if len(c.Validators) == 0 {
		return ""
	}
	res := validate.Run(ctx, c.Validators, pgxQueryer{c.Conn}, query)
	if res.Passed {
		return ""
	}
	details := make([]string, 0, len(res.Issues))
	for _, iss := range res.Issues {
		details = append(details, iss.Kind+": "+iss.Detail)
	}
	return fmt.Sprintf("correctness validation flagged concerns (confidence %.2f): %s", res.Confidence, strings.Join(details, "; "))
}

// pgxQueryer adapts *pgx.Conn to validate.Queryer so the validation phase
// never needs to import pgx directly.
type pgxQueryer struct {
	conn *pgx.Conn
}

func (q pgxQueryer) Query(ctx context.Context, sql string, args ...any) (validate.Rows, error) {
	rows, err := q.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *Controller) finish(querySet []string, actions []action.Action, success bool, reason string) action.Solution {
	return action.Solution{
		FinalQuery: strings.Join(querySet, "; "),
		Success:    success,
		Reason:     reason,
		Actions:    actions,
	}
}

// tryManagementBatch implements the multi-statement handling rule: a
// Management task with more than one buggy statement gets a pre-flight
// syntax check (a transaction that runs every statement and rolls back);
// if all statements pass, it re-runs them for real and the task is
// workflow-complete with no further iterations. Any syntax failure falls
// through to the normal loop, which must propose a RewriteQuery.
func (c *Controller) tryManagementBatch(ctx context.Context, t task.Task, querySet []string) (action.Solution, bool) {
	if t.Category != task.Management || len(querySet) <= 1 {
		return action.Solution{}, false
	}

	tx, err := c.Conn.Begin(ctx)
	if err != nil {
		return action.Solution{}, false
	}
	allOK := true
	for _, stmt := range querySet {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			allOK = false
			break
		}
	}
	_ = tx.Rollback(ctx)
	if !allOK {
		return action.Solution{}, false
	}

	tx, err = c.Conn.Begin(ctx)
	if err != nil {
		return action.Solution{}, false
	}
	for _, stmt := range querySet {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			_ = tx.Rollback(ctx)
			return action.Solution{}, false
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return action.Solution{}, false
	}

	return action.Solution{
		FinalQuery: strings.Join(querySet, "; "),
		Success:    true,
		Reason:     "batch executed successfully",
		Actions:    []action.Action{action.NewDone("management batch executed")},
	}, true
}
