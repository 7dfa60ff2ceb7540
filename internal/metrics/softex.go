package metrics

// ScoreSoftEx scores result-set equivalence for Query/Personalization tasks.
// When a reference result set is available, the predicted rows must match
// it (order-insensitive, float-tolerant, NULL==NULL); otherwise the score
// degrades to a pure execution-success check, mirroring
// evaluation_metrics.py's heuristic for tasks with no solution_sql.
func ScoreSoftEx(predictedRows [][]any, predictedExecuted bool, reference [][]any, hasReference bool) Result {
	if !predictedExecuted {
		return Result{
			Metric:  SoftEx,
			Passed:  false,
			Score:   0,
			Details: map[string]any{"comparison_method": "execution_success"},
			Error:   "predicted SQL did not execute successfully",
		}
	}

	if !hasReference {
		return Result{
			Metric: SoftEx,
			Passed: true,
			Score:  1.0,
			Details: map[string]any{
				"comparison_method": "execution_success",
				"note":              "reference solution unavailable; scored on execution success alone",
			},
		}
	}

	match := CompareRowSets(predictedRows, reference, false, 1e-9)
	score := 0.0
	if match {
		score = 1.0
	}
	return Result{
		Metric: SoftEx,
		Passed: match,
		Score:  score,
		Details: map[string]any{
			"comparison_method": "reference_result_set",
			"predicted_rows":    len(predictedRows),
			"reference_rows":    len(reference),
		},
	}
}
