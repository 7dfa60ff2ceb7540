package translator

import (
	"context"

	"github.com/yudduy/sql-exenv/internal/analyzer"
)

// Deterministic is the no-LLM translator mode required for development and
// testing. It returns the exact Feedback schema the LLM-backed mode does,
// derived purely from the Report and Constraints.
type Deterministic struct{}

var _ Translator = Deterministic{}

func (Deterministic) Translate(_ context.Context, report analyzer.Report, c Constraints) (Feedback, error) {
	if report.Warning != "" {
		return Feedback{
			Status:     StatusError,
			Reason:     report.Warning,
			Suggestion: "",
			Priority:   analyzer.LOW,
			Report:     report,
		}, nil
	}
	return buildDeterministicFeedback(report)(c), nil
}
