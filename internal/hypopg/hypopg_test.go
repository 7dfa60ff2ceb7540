package hypopg

import (
	"testing"

	"github.com/yudduy/sql-exenv/internal/plan"
)

func TestFindIndexNodes(t *testing.T) {
	root := &plan.PlanNode{
		NodeType: "Hash Join",
		Plans: []plan.PlanNode{
			{NodeType: "Index Scan", IndexName: "orders_customer_id_hypo_idx"},
			{NodeType: "Seq Scan", RelationName: "customers"},
		},
	}
	nodes := findIndexNodes(root, nil)
	if len(nodes) != 1 {
		t.Fatalf("len(nodes) = %d, want 1", len(nodes))
	}
	if !containsHypo(nodes) {
		t.Fatalf("expected hypo reference to be detected")
	}
}

func TestIsWorthwhile(t *testing.T) {
	good := Result{WouldBeUsed: true, ImprovementPct: 25}
	if !IsWorthwhile(good) {
		t.Fatalf("expected worthwhile result to pass")
	}

	tooSmall := Result{WouldBeUsed: true, ImprovementPct: 5}
	if IsWorthwhile(tooSmall) {
		t.Fatalf("improvement below threshold should not be worthwhile")
	}

	notUsed := Result{WouldBeUsed: false, ImprovementPct: 50}
	if IsWorthwhile(notUsed) {
		t.Fatalf("index the planner would not use should not be worthwhile")
	}
}

func TestTestIndex_UnavailableProverFailsFast(t *testing.T) {
	p := &Prover{Available: false}
	res := p.TestIndex(nil, "SELECT 1", "CREATE INDEX ON t(c)")
	if res.Err == nil {
		t.Fatalf("expected error when hypopg is unavailable")
	}
}
