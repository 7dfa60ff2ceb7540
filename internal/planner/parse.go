package planner

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/yudduy/sql-exenv/internal/action"
)

// rawAction mirrors the JSON shape described in the system prompt.
type rawAction struct {
	Type       string   `json:"type"`
	Action     string   `json:"action"`
	DDL        string   `json:"ddl"`
	Table      string   `json:"table"`
	NewSQL     []string `json:"newSQL"`
	ProbeQuery string   `json:"probeQuery"`
	Reasoning  string   `json:"reasoning"`
	Confidence float64  `json:"confidence"`
}

var fencedJSONRe = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")
var bareJSONRe = regexp.MustCompile(`(?s)\{.*\}`)
var kindOnlyRe = regexp.MustCompile(`(?i)\b(CreateIndex|RunAnalyze|RewriteQuery|TestIndex|Done|Failed)\b`)

// parseActionResponse is the three-tier parse spec.md's Planner describes:
// first a fenced JSON block, then a bare JSON object, finally a regex that
// extracts only the action kind. An unparseable response, or one missing
// a field its kind requires, becomes Failed("planning error").
func parseActionResponse(reply string) action.Action {
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return action.NewFailed("planning error")
	}

	if m := fencedJSONRe.FindStringSubmatch(reply); m != nil {
		if a, ok := tryParseJSON(m[1]); ok {
			return a
		}
	}

	if m := bareJSONRe.FindString(reply); m != "" {
		if a, ok := tryParseJSON(m); ok {
			return a
		}
	}

	if m := kindOnlyRe.FindString(reply); m != "" {
		return fromKindOnly(m)
	}

	return action.NewFailed("planning error")
}

func tryParseJSON(s string) (action.Action, bool) {
	var raw rawAction
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return action.Action{}, false
	}
	kindStr := raw.Type
	if kindStr == "" {
		kindStr = raw.Action
	}
	kind := action.Kind(normalizeKind(kindStr))
	if kind == "" {
		return action.Action{}, false
	}

	reasoning := raw.Reasoning
	if reasoning == "" {
		reasoning = "no reasoning provided"
	}
	confidence := raw.Confidence
	if confidence == 0 {
		confidence = 1.0
	}

	switch kind {
	case action.CreateIndex:
		if raw.DDL == "" {
			return action.NewFailed("planning error"), true
		}
		return action.NewCreateIndex(raw.DDL, reasoning, confidence), true
	case action.TestIndex:
		if raw.DDL == "" {
			return action.NewFailed("planning error"), true
		}
		return action.NewTestIndex(raw.DDL, raw.ProbeQuery, reasoning, confidence), true
	case action.RunAnalyze:
		return action.NewRunAnalyze(raw.Table, reasoning, confidence), true
	case action.RewriteQuery:
		if len(raw.NewSQL) == 0 {
			return action.NewFailed("planning error"), true
		}
		return action.NewRewriteQuery(raw.NewSQL, reasoning, confidence), true
	case action.Done:
		return action.NewDone(reasoning), true
	case action.Failed:
		return action.NewFailed(reasoning), true
	}
	return action.Action{}, false
}

// normalizeKind maps case-insensitive kind strings (and the legacy
// SCREAMING_SNAKE_CASE spellings) onto the Kind constants.
func normalizeKind(s string) string {
	switch strings.ToUpper(strings.ReplaceAll(s, "_", "")) {
	case "CREATEINDEX":
		return string(action.CreateIndex)
	case "RUNANALYZE":
		return string(action.RunAnalyze)
	case "REWRITEQUERY":
		return string(action.RewriteQuery)
	case "TESTINDEX":
		return string(action.TestIndex)
	case "DONE":
		return string(action.Done)
	case "FAILED":
		return string(action.Failed)
	}
	return ""
}

func fromKindOnly(m string) action.Action {
	kind := action.Kind(normalizeKind(m))
	switch kind {
	case action.Done:
		return action.NewDone("inferred from unparseable response")
	case action.Failed:
		return action.NewFailed("planning error")
	default:
		// A kind requiring structured fields (ddl/newSQL) can't be
		// safely reconstructed from a bare kind match.
		return action.NewFailed("planning error")
	}
}
