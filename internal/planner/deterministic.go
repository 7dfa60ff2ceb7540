package planner

import (
	"context"
	"strings"

	"github.com/yudduy/sql-exenv/internal/action"
	"github.com/yudduy/sql-exenv/internal/translator"
)

// Deterministic is the no-LLM Planner mode: it acts directly on the
// Translator's canonical Suggestion rather than asking a model to restate
// it, the same way translator.Deterministic skips the LLM round-trip.
// Used when no llm.ChatClient is configured, and in tests that need a
// planner with no network dependency.
type Deterministic struct{}

var _ Planner = Deterministic{}

func (Deterministic) Plan(_ context.Context, in Input) (action.Action, error) {
	fb := in.Feedback

	if fb.Status == translator.StatusPass {
		return action.NewDone("feedback status is pass"), nil
	}

	suggestion := strings.TrimSpace(fb.Suggestion)
	if suggestion == "" {
		return action.NewFailed("no actionable suggestion available"), nil
	}

	if in.Memory != nil {
		for _, r := range in.Memory {
			if r.Action == suggestion {
				return action.NewFailed("canonical suggestion already attempted without improvement"), nil
			}
		}
	}

	upper := strings.ToUpper(suggestion)
	switch {
	case strings.HasPrefix(upper, "CREATE INDEX") || strings.Contains(upper, "CREATE INDEX"):
		return action.NewCreateIndex(suggestion, fb.Reason, 0.8), nil
	case strings.HasPrefix(upper, "ANALYZE"):
		return action.NewRunAnalyze(in.IndexCreatedButUnused, fb.Reason, 0.8), nil
	default:
		return action.NewRewriteQuery([]string{suggestion}, fb.Reason, 0.6), nil
	}
}
