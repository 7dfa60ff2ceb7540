// Package action models the Planner's output: a single next step the Agent
// Controller dispatches to the Executor.
package action

import (
	"fmt"
	"strings"
)

// Kind enumerates every action the Planner may emit. Kind determines which
// other fields of Action are meaningful; the constructor functions below
// are the only supported way to build one, so the unused fields for a given
// Kind are always left zeroed.
type Kind string

const (
	CreateIndex  Kind = "CreateIndex"
	RunAnalyze   Kind = "RunAnalyze"
	RewriteQuery Kind = "RewriteQuery"
	TestIndex    Kind = "TestIndex"
	Done         Kind = "Done"
	Failed       Kind = "Failed"
)

// IsTerminal reports whether this Kind ends the ReAct loop.
func (k Kind) IsTerminal() bool {
	return k == Done || k == Failed
}

// Action is a tagged variant over Kind: only the fields that Kind requires
// are populated, the rest are left at their zero value.
type Action struct {
	Kind Kind

	// CreateIndex, TestIndex
	DDL string

	// RunAnalyze
	Table string

	// RewriteQuery — one or more statements, in execution order. A single
	// statement query set still uses a one-element slice.
	NewSQL []string

	// TestIndex
	ProbeQuery string

	// Done / Failed
	Reason string

	Reasoning  string
	Confidence float64
}

func NewCreateIndex(ddl, reasoning string, confidence float64) Action {
	return Action{Kind: CreateIndex, DDL: ddl, Reasoning: reasoning, Confidence: confidence}
}

func NewRunAnalyze(table, reasoning string, confidence float64) Action {
	return Action{Kind: RunAnalyze, Table: table, Reasoning: reasoning, Confidence: confidence}
}

func NewRewriteQuery(newSQL []string, reasoning string, confidence float64) Action {
	return Action{Kind: RewriteQuery, NewSQL: newSQL, Reasoning: reasoning, Confidence: confidence}
}

func NewTestIndex(ddl, probeQuery, reasoning string, confidence float64) Action {
	return Action{Kind: TestIndex, DDL: ddl, ProbeQuery: probeQuery, Reasoning: reasoning, Confidence: confidence}
}

func NewDone(reasoning string) Action {
	return Action{Kind: Done, Reasoning: reasoning}
}

func NewFailed(reason string) Action {
	return Action{Kind: Failed, Reason: reason, Reasoning: reason}
}

// target returns the short identifier an action's Summary cites: the table
// for RunAnalyze, the DDL's own target for CreateIndex/TestIndex, or empty
// for actions with no single target.
func (a Action) target() string {
	switch a.Kind {
	case CreateIndex, TestIndex:
		return ddlTarget(a.DDL)
	case RunAnalyze:
		return a.Table
	case RewriteQuery:
		return fmt.Sprintf("%d stmt(s)", len(a.NewSQL))
	}
	return ""
}

// ddlTarget extracts "table(cols)" from a CREATE INDEX statement for
// display purposes; falls back to the raw DDL, truncated, if it can't find
// the pattern.
func ddlTarget(ddl string) string {
	lower := strings.ToLower(ddl)
	onIdx := strings.Index(lower, " on ")
	if onIdx < 0 {
		return truncate(ddl, 24)
	}
	rest := strings.TrimSpace(ddl[onIdx+4:])
	rest = strings.TrimSuffix(rest, ";")
	return truncate(rest, 32)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Summary renders a short text form of the action for memory and prompts:
// "CreateIndex(orders(customer_id))".
func (a Action) Summary() string {
	if t := a.target(); t != "" {
		return fmt.Sprintf("%s(%s)", a.Kind, t)
	}
	return string(a.Kind)
}
