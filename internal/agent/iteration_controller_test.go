package agent

import (
	"testing"

	"github.com/yudduy/sql-exenv/internal/memory"
)

func rec(ordinal int, before, after float64, outcome memory.Outcome) memory.Record {
	return memory.Record{Ordinal: ordinal, Action: "CreateIndex(t)", CostBefore: before, CostAfter: after, Outcome: outcome}
}

func TestShouldStopEarly_BelowMinIterationsNeverStops(t *testing.T) {
	c := IterationController{MinIterations: 3, MaxIterations: 10}
	history := []memory.Record{
		rec(1, 1000, 1000, memory.Unchanged),
		rec(2, 1000, 1000, memory.Unchanged),
	}
	if stop, _ := c.ShouldStopEarly(2, history); stop {
		t.Fatalf("expected no early stop below MinIterations")
	}
}

func TestShouldStopEarly_CostStagnating(t *testing.T) {
	c := IterationController{MinIterations: 3, MaxIterations: 10}
	history := []memory.Record{
		rec(1, 1000, 1000, memory.Unchanged),
		rec(2, 1000, 1000, memory.Unchanged),
		rec(3, 1000, 1000, memory.Unchanged),
	}
	stop, reason := c.ShouldStopEarly(3, history)
	if !stop {
		t.Fatalf("expected early stop on cost stagnation")
	}
	if reason == "" {
		t.Fatalf("expected a reason")
	}
}

func TestShouldStopEarly_ContinuesOnImprovement(t *testing.T) {
	c := IterationController{MinIterations: 3, MaxIterations: 10}
	history := []memory.Record{
		rec(1, 1000, 900, memory.Improved),
		rec(2, 900, 800, memory.Improved),
		rec(3, 800, 700, memory.Improved),
	}
	if stop, _ := c.ShouldStopEarly(3, history); stop {
		t.Fatalf("expected no early stop while improving")
	}
}

func TestIneffectiveActions_AllRegressedOrUnchanged(t *testing.T) {
	history := []memory.Record{
		rec(1, 1000, 1100, memory.Regressed),
		rec(2, 1100, 1105, memory.Unchanged),
	}
	if !IneffectiveActions(history, 2) {
		t.Fatalf("expected ineffective actions to be detected")
	}
}

func TestIneffectiveActions_NotEnoughHistory(t *testing.T) {
	history := []memory.Record{rec(1, 1000, 1100, memory.Regressed)}
	if IneffectiveActions(history, 2) {
		t.Fatalf("expected false with insufficient history")
	}
}

func TestCostStagnating_TinyDeltasStagnate(t *testing.T) {
	history := []memory.Record{
		rec(1, 1000, 999, memory.Unchanged),
		rec(2, 999, 998, memory.Unchanged),
		rec(3, 998, 997, memory.Unchanged),
	}
	if !CostStagnating(history, 3) {
		t.Fatalf("expected tiny deltas to register as stagnating")
	}
}
