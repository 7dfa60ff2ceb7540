package translator

import (
	"context"
	"fmt"

	"github.com/yudduy/sql-exenv/internal/analyzer"
)

// Translator converts an analyzer.Report plus cost/time constraints into a
// Feedback. Both the LLM-backed and deterministic implementations satisfy
// this interface, so the Agent Controller never cares which one it holds.
type Translator interface {
	Translate(ctx context.Context, report analyzer.Report, constraints Constraints) (Feedback, error)
}

// deriveStatus implements the status rule in full: fail iff total cost
// exceeds the budget or any bottleneck is HIGH severity; warning iff only
// MEDIUM/LOW bottlenecks exist; pass iff the bottleneck list is empty and
// total cost is within budget.
func deriveStatus(report analyzer.Report, c Constraints) Status {
	overBudget := c.MaxCost > 0 && report.TotalCost > c.MaxCost
	if overBudget || report.HasHighSeverity() {
		return StatusFail
	}
	if len(report.Bottlenecks) > 0 {
		return StatusWarning
	}
	return StatusPass
}

// canonicalSuggestion returns the most severe bottleneck's suggestion
// verbatim — the translator is never permitted to invent one.
func canonicalSuggestion(report analyzer.Report) string {
	b, ok := report.MostSevere()
	if !ok {
		return ""
	}
	return b.Suggestion
}

// canonicalPriority mirrors the most severe bottleneck's severity, or LOW
// when the report is clean.
func canonicalPriority(report analyzer.Report) analyzer.Severity {
	b, ok := report.MostSevere()
	if !ok {
		return analyzer.LOW
	}
	return b.Severity
}

// deterministicReason builds the single-sentence reason citing the most
// severe bottleneck and the numeric gap to the cost budget. Both the
// deterministic translator and the LLM-backed translator's fallback path
// (unparseable or hallucinated response) use this.
func deterministicReason(report analyzer.Report, c Constraints, status Status) string {
	switch status {
	case StatusPass:
		return "plan meets cost and severity budget; no bottlenecks detected"
	case StatusError:
		return "plan could not be retrieved"
	}

	b, ok := report.MostSevere()
	if !ok {
		if c.MaxCost > 0 && report.TotalCost > c.MaxCost {
			return fmt.Sprintf("total cost %.2f exceeds budget %.2f by %.2f", report.TotalCost, c.MaxCost, report.TotalCost-c.MaxCost)
		}
		return "plan exceeds configured budget"
	}

	gap := ""
	if c.MaxCost > 0 {
		gap = fmt.Sprintf(", total cost %.2f exceeds budget %.2f by %.2f", report.TotalCost, c.MaxCost, report.TotalCost-c.MaxCost)
	}
	return fmt.Sprintf("%s severity %s on %s: %s%s", string(status), b.Severity, b.Relation, b.Reason, gap)
}

// buildDeterministicFeedback assembles a Feedback using only the Analyzer's
// own output — no LLM involved. It is also the fallback used by the
// LLM-backed translator whenever the model's response cannot be trusted.
func buildDeterministicFeedback(report analyzer.Report) func(Constraints) Feedback {
	return func(c Constraints) Feedback {
		status := deriveStatus(report, c)
		return Feedback{
			Status:     status,
			Reason:     deterministicReason(report, c, status),
			Suggestion: canonicalSuggestion(report),
			Priority:   canonicalPriority(report),
			Report:     report,
		}
	}
}
