package metrics

import (
	"github.com/yudduy/sql-exenv/internal/comparator"
	"github.com/yudduy/sql-exenv/internal/plan"
)

// QEPPassThreshold is the cost-ratio ceiling a predicted plan must clear
// to pass: cost(predicted)/cost(original) <= 0.9, i.e. at least a 10%
// improvement, matching evaluation_metrics.py's qep_cost_threshold.
const QEPPassThreshold = 0.9

// QEP scores plan comparison for Efficiency tasks. It wraps
// comparator.Compare rather than recomputing a cost delta itself — the
// two components measure the same thing and should never disagree.
func QEP(original, predicted plan.ExplainOutput) Result {
	c := &comparator.Comparator{Threshold: 0.1}
	cmp := c.Compare(original, predicted)

	costRatio := 1.0
	if cmp.Summary.OldTotalCost > 0 {
		costRatio = cmp.Summary.NewTotalCost / cmp.Summary.OldTotalCost
	}

	score := 0.0
	if costRatio < 1.0 {
		score = 1.0 - costRatio
	}
	passed := costRatio <= QEPPassThreshold

	return Result{
		Metric: QEPM,
		Passed: passed,
		Score:  score,
		Details: map[string]any{
			"predicted_cost":       cmp.Summary.NewTotalCost,
			"original_cost":        cmp.Summary.OldTotalCost,
			"cost_ratio":           costRatio,
			"cost_improvement_pct": (1.0 - costRatio) * 100,
			"predicted_time_ms":    cmp.Summary.NewExecutionTime,
			"original_time_ms":     cmp.Summary.OldExecutionTime,
			"threshold":            QEPPassThreshold,
		},
	}
}

// QEPIssueSQLFailed is the short-circuit result when the task's original
// issue_sql can no longer be EXPLAINed at all: the predicted SQL executing
// at all is itself the improvement, mirroring evaluation_metrics.py's
// issue_sql-fails branch.
func QEPIssueSQLFailed(predicted plan.ExplainOutput) Result {
	return Result{
		Metric: QEPM,
		Passed: true,
		Score:  1.0,
		Details: map[string]any{
			"predicted_cost":    predicted.Plan.TotalCost,
			"predicted_time_ms": predicted.ExecutionTime,
			"issue_sql_failed":  true,
			"improvement":       "predicted SQL executes, original issue_sql no longer does",
		},
	}
}
