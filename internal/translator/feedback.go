package translator

import "github.com/yudduy/sql-exenv/internal/analyzer"

// Status classifies a Feedback's overall verdict.
type Status string

const (
	StatusPass    Status = "pass"
	StatusWarning Status = "warning"
	StatusFail    Status = "fail"
	// StatusError marks a plan that could not be analyzed: both
	// translators return it, with the Warning as Reason, for a Report that
	// carries a Warning.
	StatusError Status = "error"
)

// Constraints are the cost/time budget a Feedback is judged against.
type Constraints struct {
	MaxCost   float64
	MaxTimeMS float64
}

// Feedback is the Semantic Translator's output: a verdict plus a single
// canonical suggestion, never an invented one.
type Feedback struct {
	Status     Status
	Reason     string
	Suggestion string
	Priority   analyzer.Severity
	Report     analyzer.Report
}
