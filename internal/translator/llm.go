package translator

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/yudduy/sql-exenv/internal/analyzer"
	"github.com/yudduy/sql-exenv/internal/llm"
)

// onIndexRe extracts the "ON table(col1, col2)" fragment a suggestion or a
// model's free-text reason cites, the way semanticizer.py's
// _validate_against_analysis does before comparing it to the canonical
// suggestion.
var onIndexRe = regexp.MustCompile(`(?i)\bON\s+([a-zA-Z_][\w.]*)\s*\(([^)]*)\)`)

type indexTarget struct {
	table string
	cols  []string
}

func extractIndexTarget(text string) (indexTarget, bool) {
	m := onIndexRe.FindStringSubmatch(text)
	if m == nil {
		return indexTarget{}, false
	}
	var cols []string
	for _, c := range strings.Split(m[2], ",") {
		c = strings.TrimSpace(c)
		if c != "" {
			cols = append(cols, c)
		}
	}
	return indexTarget{table: strings.ToLower(strings.TrimSpace(m[1])), cols: cols}, true
}

func sameTarget(a, b indexTarget) bool {
	if a.table != b.table {
		return false
	}
	if len(a.cols) != len(b.cols) {
		return false
	}
	seen := make(map[string]bool, len(a.cols))
	for _, c := range a.cols {
		seen[strings.ToLower(c)] = true
	}
	for _, c := range b.cols {
		if !seen[strings.ToLower(c)] {
			return false
		}
	}
	return true
}

// llmResponse is the structured shape requested of the model.
type llmResponse struct {
	Reason     string `json:"reason"`
	Suggestion string `json:"suggestion"`
}

// LLMBacked is the production Translator: it asks a llm.ChatClient to phrase
// the Reason in natural language, then validates whatever index target the
// model cited against the Analyzer's own canonical suggestion, overriding
// the model on any mismatch. The Suggestion field is always the Analyzer's
// verbatim text regardless of what the model proposed — the translator
// itself never invents a column or table name.
type LLMBacked struct {
	Client llm.ChatClient
}

var _ Translator = LLMBacked{}

func (t LLMBacked) Translate(ctx context.Context, report analyzer.Report, c Constraints) (Feedback, error) {
	fallback := buildDeterministicFeedback(report)

	if report.Warning != "" {
		return Feedback{
			Status:     StatusError,
			Reason:     report.Warning,
			Suggestion: "",
			Priority:   analyzer.LOW,
			Report:     report,
		}, nil
	}

	status := deriveStatus(report, c)
	canonical := canonicalSuggestion(report)
	priority := canonicalPriority(report)

	if t.Client == nil || status == StatusPass {
		return fallback(c), nil
	}

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: "You translate a PostgreSQL query plan bottleneck report into a single-sentence, plain-language explanation. You must not invent table or column names beyond what is given. Respond with a single JSON object: {\"reason\": string, \"suggestion\": string}."},
		{Role: llm.RoleUser, Content: translatorPrompt(report, c, status, canonical)},
	}

	raw, err := t.Client.Chat(ctx, messages, llm.Options{})
	if err != nil {
		return fallback(c), nil
	}

	var resp llmResponse
	if jerr := json.Unmarshal([]byte(extractJSONObject(raw)), &resp); jerr != nil {
		return fallback(c), nil
	}
	if resp.Reason == "" {
		return fallback(c), nil
	}

	reason := resp.Reason
	if canonicalTarget, ok := extractIndexTarget(canonical); ok {
		if modelTarget, mok := extractIndexTarget(resp.Suggestion); mok && !sameTarget(canonicalTarget, modelTarget) {
			reason = deterministicReason(report, c, status)
		}
		if modelTarget, mok := extractIndexTarget(resp.Reason); mok && !sameTarget(canonicalTarget, modelTarget) {
			reason = deterministicReason(report, c, status)
		}
	}

	return Feedback{
		Status:     status,
		Reason:     reason,
		Suggestion: canonical,
		Priority:   priority,
		Report:     report,
	}, nil
}

func translatorPrompt(report analyzer.Report, c Constraints, status Status, canonical string) string {
	b, _ := report.MostSevere()
	return fmt.Sprintf(
		"status=%s total_cost=%.2f max_cost=%.2f most_severe_kind=%s relation=%s reason=%q canonical_suggestion=%q",
		status, report.TotalCost, c.MaxCost, b.Kind, b.Relation, b.Reason, canonical,
	)
}

// extractJSONObject strips a ```json fenced block if present, else returns
// the input unchanged; the translator only needs one parse tier since the
// three-tier grammar is the Planner's concern (§4.3), not the Translator's.
func extractJSONObject(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(trimmed, "```")
		trimmed = strings.TrimSpace(trimmed)
	}
	return trimmed
}
