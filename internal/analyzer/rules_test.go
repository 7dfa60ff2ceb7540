package analyzer

import (
	"testing"

	"github.com/yudduy/sql-exenv/internal/plan"
)

func TestCheckSeqScanLargeTable_TriggersAboveThreshold(t *testing.T) {
	node := &plan.PlanNode{
		NodeType:     "Seq Scan",
		RelationName: "orders",
		ActualRows:   5000,
		Filter:       "(status = 'shipped')",
	}

	findings := checkSeqScanLargeTable(node, nil, 0, nil, DefaultThresholds(), 0)
	if len(findings) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(findings))
	}
	f := findings[0]
	if f.Kind != SeqScanLargeTable || f.Severity != HIGH {
		t.Errorf("got kind=%v severity=%v", f.Kind, f.Severity)
	}
	if f.Suggestion != "CREATE INDEX idx_orders_status ON orders (status)" {
		t.Errorf("unexpected suggestion: %q", f.Suggestion)
	}
}

func TestCheckSeqScanLargeTable_BelowThreshold(t *testing.T) {
	node := &plan.PlanNode{NodeType: "Seq Scan", RelationName: "orders", ActualRows: 10}
	findings := checkSeqScanLargeTable(node, nil, 0, nil, DefaultThresholds(), 0)
	if len(findings) != 0 {
		t.Errorf("expected no findings, got %d", len(findings))
	}
}

func TestCheckSeqScanLargeTable_ParallelVariantTriggersSameAsSequential(t *testing.T) {
	node := &plan.PlanNode{
		NodeType:     "Parallel Seq Scan",
		RelationName: "orders",
		ActualRows:   5000,
		Filter:       "(status = 'shipped')",
	}
	findings := checkSeqScanLargeTable(node, nil, 0, nil, DefaultThresholds(), 0)
	if len(findings) != 1 {
		t.Fatalf("expected Parallel Seq Scan to be treated as Seq Scan, got %d findings", len(findings))
	}
}

func TestCheckFilterOnUnindexedColumn_ParallelIndexScanStillRecognized(t *testing.T) {
	node := &plan.PlanNode{
		NodeType:            "Parallel Index Scan",
		RelationName:        "orders",
		IndexCond:           "(customer_id = 42)",
		Filter:              "(region = 'west')",
		ActualRows:          5,
		RowsRemovedByFilter: 995,
	}
	findings := checkFilterOnUnindexedColumn(node, nil, 0, nil, DefaultThresholds(), 0)
	if len(findings) != 1 {
		t.Fatalf("expected Parallel Index Scan to be recognized as an index scan, got %d findings", len(findings))
	}
}

func TestBaseNodeType_StripsParallelPrefix(t *testing.T) {
	cases := map[string]string{
		"Parallel Seq Scan":         "Seq Scan",
		"Parallel Index Scan":       "Index Scan",
		"Parallel Bitmap Heap Scan": "Bitmap Heap Scan",
		"Seq Scan":                  "Seq Scan",
	}
	for in, want := range cases {
		if got := baseNodeType(in); got != want {
			t.Errorf("baseNodeType(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCheckHighCostNode(t *testing.T) {
	node := &plan.PlanNode{NodeType: "Seq Scan", RelationName: "big", TotalCost: 900}
	findings := checkHighCostNode(node, nil, 0, nil, DefaultThresholds(), 1000)
	if len(findings) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(findings))
	}
	if findings[0].Kind != HighCostNode || findings[0].Severity != MEDIUM {
		t.Errorf("got kind=%v severity=%v", findings[0].Kind, findings[0].Severity)
	}
	if findings[0].CostPercentage < 89 || findings[0].CostPercentage > 91 {
		t.Errorf("CostPercentage = %v, want ~90", findings[0].CostPercentage)
	}
}

func TestCheckHighCostNode_BelowRatio(t *testing.T) {
	node := &plan.PlanNode{NodeType: "Seq Scan", TotalCost: 100}
	findings := checkHighCostNode(node, nil, 0, nil, DefaultThresholds(), 1000)
	if len(findings) != 0 {
		t.Errorf("expected no findings, got %d", len(findings))
	}
}

func TestCheckEstimateError_Underestimated(t *testing.T) {
	node := &plan.PlanNode{NodeType: "Seq Scan", RelationName: "events", PlanRows: 100, ActualRows: 10000}
	findings := checkEstimateError(node, nil, 0, nil, DefaultThresholds(), 0)
	if len(findings) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(findings))
	}
	if findings[0].Suggestion != "RUN_ANALYZE events" {
		t.Errorf("unexpected suggestion: %q", findings[0].Suggestion)
	}
}

func TestCheckEstimateError_WithinRatio(t *testing.T) {
	node := &plan.PlanNode{NodeType: "Seq Scan", PlanRows: 100, ActualRows: 300}
	findings := checkEstimateError(node, nil, 0, nil, DefaultThresholds(), 0)
	if len(findings) != 0 {
		t.Errorf("expected no findings, got %d", len(findings))
	}
}

func TestCheckNestedLoopLarge(t *testing.T) {
	node := &plan.PlanNode{
		NodeType:   "Nested Loop",
		JoinFilter: "(o.customer_id = c.id)",
		Plans: []plan.PlanNode{
			{NodeType: "Seq Scan", RelationName: "orders", Alias: "o"},
			{NodeType: "Seq Scan", RelationName: "customers", Alias: "c", ActualRows: 5000},
		},
	}
	findings := checkNestedLoopLarge(node, nil, 0, nil, DefaultThresholds(), 0)
	if len(findings) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(findings))
	}
	if findings[0].Kind != NestedLoopLarge || findings[0].Severity != HIGH {
		t.Errorf("got kind=%v severity=%v", findings[0].Kind, findings[0].Severity)
	}
}

func TestCheckNestedLoopLarge_SmallInner(t *testing.T) {
	node := &plan.PlanNode{
		NodeType: "Nested Loop",
		Plans: []plan.PlanNode{
			{NodeType: "Seq Scan", RelationName: "orders"},
			{NodeType: "Index Scan", RelationName: "customers", ActualRows: 1},
		},
	}
	findings := checkNestedLoopLarge(node, nil, 0, nil, DefaultThresholds(), 0)
	if len(findings) != 0 {
		t.Errorf("expected no findings, got %d", len(findings))
	}
}

func TestCheckExternalSort_DiskSpill(t *testing.T) {
	node := &plan.PlanNode{
		NodeType:      "Sort",
		SortSpaceType: "Disk",
		SortSpaceUsed: 4096,
		SortKey:       []string{"created_at DESC"},
		Plans:         []plan.PlanNode{{NodeType: "Seq Scan", RelationName: "events"}},
	}
	findings := checkExternalSort(node, nil, 0, nil, DefaultThresholds(), 0)
	if len(findings) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(findings))
	}
	if findings[0].Suggestion != "CREATE INDEX idx_events_created_at ON events (created_at)" {
		t.Errorf("unexpected suggestion: %q", findings[0].Suggestion)
	}
}

func TestCheckExternalSort_NoSpillNoBudgetBreach(t *testing.T) {
	node := &plan.PlanNode{NodeType: "Sort", PlanWidth: 8, PlanRows: 10}
	findings := checkExternalSort(node, nil, 0, nil, DefaultThresholds(), 0)
	if len(findings) != 0 {
		t.Errorf("expected no findings, got %d", len(findings))
	}
}

func TestCheckMissingJoinIndex_HashJoin(t *testing.T) {
	node := &plan.PlanNode{
		NodeType: "Hash Join",
		HashCond: "(o.customer_id = c.id)",
		Plans: []plan.PlanNode{
			{NodeType: "Seq Scan", RelationName: "orders", Alias: "o"},
			{NodeType: "Hash", Plans: []plan.PlanNode{
				{NodeType: "Seq Scan", RelationName: "customers", Alias: "c", Filter: "(active = true)"},
			}},
		},
	}
	findings := checkMissingJoinIndex(node, nil, 0, nil, DefaultThresholds(), 0)
	if len(findings) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(findings))
	}
	if findings[0].Relation != "customers" {
		t.Errorf("Relation = %q, want customers", findings[0].Relation)
	}
}

func TestCheckFilterOnUnindexedColumn(t *testing.T) {
	node := &plan.PlanNode{
		NodeType:            "Index Scan",
		RelationName:        "orders",
		IndexCond:           "(customer_id = 42)",
		Filter:              "(status = 'cancelled')",
		ActualRows:          5,
		RowsRemovedByFilter: 995,
	}
	findings := checkFilterOnUnindexedColumn(node, nil, 0, nil, DefaultThresholds(), 0)
	if len(findings) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(findings))
	}
	if len(findings[0].Columns) != 1 || findings[0].Columns[0] != "status" {
		t.Errorf("Columns = %v, want [status]", findings[0].Columns)
	}
}

func TestCheckFilterOnUnindexedColumn_LowRemovalRate(t *testing.T) {
	node := &plan.PlanNode{
		NodeType:            "Index Scan",
		RelationName:        "orders",
		IndexCond:           "(customer_id = 42)",
		Filter:              "(status = 'cancelled')",
		ActualRows:          990,
		RowsRemovedByFilter: 10,
	}
	findings := checkFilterOnUnindexedColumn(node, nil, 0, nil, DefaultThresholds(), 0)
	if len(findings) != 0 {
		t.Errorf("expected no findings, got %d", len(findings))
	}
}

func TestAnalyze_EmptyPlanProducesWarning(t *testing.T) {
	report := Analyze(plan.ExplainOutput{})
	if report.Warning == "" {
		t.Error("expected Warning to be set for an empty plan")
	}
	if len(report.Bottlenecks) != 0 {
		t.Errorf("expected no bottlenecks, got %d", len(report.Bottlenecks))
	}
}

func TestAnalyze_SortsBySeverityDescending(t *testing.T) {
	output := plan.ExplainOutput{
		Plan: plan.PlanNode{
			NodeType:  "Sort",
			TotalCost: 1000,
			Plans: []plan.PlanNode{
				{
					NodeType:     "Seq Scan",
					RelationName: "orders",
					TotalCost:    990,
					ActualRows:   5000,
					PlanRows:     100,
				},
			},
		},
	}

	report := Analyze(output)
	if len(report.Bottlenecks) < 2 {
		t.Fatalf("expected multiple bottlenecks, got %d", len(report.Bottlenecks))
	}
	for i := 1; i < len(report.Bottlenecks); i++ {
		if report.Bottlenecks[i-1].Severity < report.Bottlenecks[i].Severity {
			t.Fatalf("bottlenecks not sorted by severity descending at index %d", i)
		}
	}
}
