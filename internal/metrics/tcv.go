package metrics

import "github.com/yudduy/sql-exenv/internal/testcase"

// TCVInput is the subset of a testcase.Result the tcv metric needs,
// decoupled from the full Result shape so callers can construct it from
// whatever workflow-validation source they have (for Management tasks,
// that source is always a testcase.Runner).
type TCVInput struct {
	Passed            bool
	PreprocessSuccess bool
	PredictedExecuted bool
	CleanupSuccess    bool
	Error             string
}

// FromTestCaseResult adapts a testcase.Result into a TCVInput.
func FromTestCaseResult(r testcase.Result) TCVInput {
	return TCVInput{
		Passed:            r.Passed,
		PreprocessSuccess: r.Details.PreprocessSuccess,
		PredictedExecuted: r.Details.PredictedResult.Success,
		CleanupSuccess:    r.Details.CleanupSuccess,
		Error:             r.Error,
	}
}

// ScoreTCV scores test-case validation for Management tasks: 1.0 iff
// preprocess, predicted, and cleanup all succeeded; 0.0 otherwise.
func ScoreTCV(in TCVInput) Result {
	score := 0.0
	if in.Passed {
		score = 1.0
	}
	return Result{
		Metric: TCV,
		Passed: in.Passed,
		Score:  score,
		Details: map[string]any{
			"preprocess_success": in.PreprocessSuccess,
			"predicted_executed": in.PredictedExecuted,
			"cleanup_success":    in.CleanupSuccess,
			"workflow_complete":  in.Passed,
		},
		Error: in.Error,
	}
}
