// Package metrics scores an agent's predicted SQL against a benchmark Task
// using one of the three BIRD-CRITIC-style metrics and selects which one
// applies to a given task category.
package metrics

import (
	"fmt"
	"sort"

	"github.com/yudduy/sql-exenv/internal/task"
)

// Metric names one of the three scoring functions.
type Metric string

const (
	SoftEx Metric = "soft_ex"
	TCV    Metric = "tcv"
	QEPM   Metric = "qep"
)

// Result is one metric evaluation's outcome.
type Result struct {
	Metric  Metric
	Passed  bool
	Score   float64
	Details map[string]any
	Error   string
}

// Select picks the metric for category, per spec.md's literal table:
// Efficiency → qep, Management → tcv, Query/Personalization → soft-ex.
// override, when non-empty, always wins.
func Select(category task.Category, override Metric) Metric {
	if override != "" {
		return override
	}
	switch category {
	case task.Efficiency:
		return QEPM
	case task.Management:
		return TCV
	default:
		return SoftEx
	}
}

// CompareRowSets is the row-set equivalence check soft-ex is built on:
// order-insensitive by default, NULL==NULL, numeric comparisons within
// tolerance. Ported from evaluation_metrics.py's compare_result_sets /
// _rows_equal / _tuples_equal.
func CompareRowSets(actual, expected [][]any, orderSensitive bool, tolerance float64) bool {
	if len(actual) != len(expected) {
		return false
	}
	if orderSensitive {
		return rowsEqual(actual, expected, tolerance)
	}

	a := sortedByStringKey(actual)
	e := sortedByStringKey(expected)
	return rowsEqual(a, e, tolerance)
}

func rowsEqual(a, b [][]any, tolerance float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !tuplesEqual(a[i], b[i], tolerance) {
			return false
		}
	}
	return true
}

func tuplesEqual(t1, t2 []any, tolerance float64) bool {
	if len(t1) != len(t2) {
		return false
	}
	for i := range t1 {
		if !valuesEqual(t1[i], t2[i], tolerance) {
			return false
		}
	}
	return true
}

func valuesEqual(v1, v2 any, tolerance float64) bool {
	if v1 == nil && v2 == nil {
		return true
	}
	if v1 == nil || v2 == nil {
		return false
	}

	n1, ok1 := toFloat(v1)
	n2, ok2 := toFloat(v2)
	if ok1 && ok2 {
		d := n1 - n2
		if d < 0 {
			d = -d
		}
		return d <= tolerance
	}

	return v1 == v2
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// sortedByStringKey orders rows by their %v rendering, the Go analogue of
// Python's sorted(rows, key=str) — a stable, type-agnostic order that
// makes set-based row comparison deterministic without needing a total
// order over arbitrary column types.
func sortedByStringKey(rows [][]any) [][]any {
	out := make([][]any, len(rows))
	copy(out, rows)
	sort.SliceStable(out, func(i, j int) bool {
		return rowKey(out[i]) < rowKey(out[j])
	})
	return out
}

func rowKey(row []any) string {
	s := ""
	for _, v := range row {
		s += fmt.Sprint(v) + "\x1f"
	}
	return s
}
