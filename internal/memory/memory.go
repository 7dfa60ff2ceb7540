// Package memory implements the Agent Controller's compressed iteration
// log: a bounded history of past actions, cost deltas, and outcomes fed
// back into the Planner's prompt.
package memory

import "fmt"

// Outcome classifies how an iteration's action changed the plan's cost.
type Outcome string

const (
	Improved  Outcome = "improved"
	Regressed Outcome = "regressed"
	Unchanged Outcome = "unchanged"
	Error     Outcome = "error"
)

// Record is one iteration's compressed history entry.
type Record struct {
	Ordinal    int
	Action     string // action.Action.Summary() rendering
	CostBefore float64
	CostAfter  float64
	Outcome    Outcome
	Insight    string
}

// DeltaPct returns the percentage cost change this record represents.
func (r Record) DeltaPct() float64 {
	const eps = 1e-9
	denom := r.CostBefore
	if denom < eps {
		denom = eps
	}
	return (r.CostAfter - r.CostBefore) / denom * 100
}

// Render formats the record the way the Planner's prompt expects:
// "Iter n: <Action> -> Δ%, outcome[, insight]".
func (r Record) Render() string {
	s := fmt.Sprintf("Iter %d: %s -> %+.1f%%, %s", r.Ordinal, r.Action, r.DeltaPct(), r.Outcome)
	if r.Insight != "" {
		s += ", " + r.Insight
	}
	return s
}

// Memory is a ring of the last H iteration records, the bound spec.md's
// Agent Controller calls H in the memory-compression rule.
type Memory struct {
	Bound   int
	records []Record
}

// New returns a Memory bounded to the given number of records. A bound of
// 0 or less means unbounded, which the Agent Controller never exercises in
// practice but is a harmless degenerate case for tests.
func New(bound int) *Memory {
	return &Memory{Bound: bound}
}

// Add appends a record, discarding the oldest once the bound is exceeded.
func (m *Memory) Add(r Record) {
	m.records = append(m.records, r)
	if m.Bound > 0 && len(m.records) > m.Bound {
		m.records = m.records[len(m.records)-m.Bound:]
	}
}

// Recent returns the last n records (or all of them if fewer are stored),
// oldest first, matching prompt presentation order.
func (m *Memory) Recent(n int) []Record {
	if n <= 0 || n > len(m.records) {
		n = len(m.records)
	}
	out := make([]Record, n)
	copy(out, m.records[len(m.records)-n:])
	return out
}

// All returns every stored record, oldest first.
func (m *Memory) All() []Record {
	return m.Recent(len(m.records))
}

// RenderRecent renders the last n records as the Planner prompt expects
// them, one per line.
func (m *Memory) RenderRecent(n int) []string {
	recs := m.Recent(n)
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Render()
	}
	return out
}

// HasRepeated reports whether action (rendered via Action.Summary) appears
// among the last n records with the given outcome — used by the Planner's
// learning directive not to repeat a regressed/unchanged action.
func (m *Memory) HasRepeated(actionSummary string, outcome Outcome, n int) bool {
	for _, r := range m.Recent(n) {
		if r.Action == actionSummary && r.Outcome == outcome {
			return true
		}
	}
	return false
}
