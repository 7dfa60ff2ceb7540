// Package agent implements the ReAct-style Agent Controller: the loop that
// analyzes a plan, asks the Planner for the next Action, dispatches it, and
// decides when to stop.
package agent

import "github.com/yudduy/sql-exenv/internal/memory"

// IterationController is an advisory early-stop check layered on top of —
// never instead of — the loop's mandatory max-iterations enforcement
// (spec step 3). It exists to catch stagnation and thrashing before the
// hard ceiling, ported from agentic_dba/agent.py's IterationController.
type IterationController struct {
	MinIterations int
	MaxIterations int
}

// DefaultIterationController matches the original's defaults.
func DefaultIterationController() IterationController {
	return IterationController{MinIterations: 3, MaxIterations: 10}
}

// ShouldStopEarly reports whether the loop should stop before reaching
// MaxIterations, given the iteration history recorded so far. It only
// ever returns true at iteration >= MinIterations — below that, the loop
// always continues regardless of stagnation, giving the agent room to
// find its footing.
func (c IterationController) ShouldStopEarly(iteration int, history []memory.Record) (bool, string) {
	if iteration < c.MinIterations {
		return false, ""
	}
	if CostStagnating(history, 3) {
		return true, "cost stagnating: no meaningful improvement in the last 3 iterations"
	}
	if IneffectiveActions(history, 2) {
		return true, "ineffective actions: the last 2 actions did not improve cost"
	}
	return false, ""
}

// CostStagnating reports whether the last n records show essentially no
// improvement: every delta smaller than 1% in magnitude, or an average
// delta no better than -0.5%. A negative delta means the cost went down
// (improved), so "no better than -0.5%" catches both flat and regressing
// runs.
func CostStagnating(history []memory.Record, n int) bool {
	if len(history) < n {
		return false
	}
	last := history[len(history)-n:]

	var total float64
	allTiny := true
	for _, r := range last {
		d := r.DeltaPct()
		total += d
		if abs(d) >= 1.0 {
			allTiny = false
		}
	}
	avg := total / float64(n)
	return avg > -0.5 || allTiny
}

// IneffectiveActions reports whether every one of the last n records was
// regressed or unchanged — the pattern of "index created but never used".
func IneffectiveActions(history []memory.Record, n int) bool {
	if len(history) < n {
		return false
	}
	last := history[len(history)-n:]
	for _, r := range last {
		if r.Outcome != memory.Regressed && r.Outcome != memory.Unchanged {
			return false
		}
	}
	return true
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
