package translator

import (
	"context"
	"testing"

	"github.com/yudduy/sql-exenv/internal/analyzer"
	"github.com/yudduy/sql-exenv/internal/llm/fixture"
)

func cleanReport() analyzer.Report {
	return analyzer.Report{TotalCost: 10}
}

func reportWithHigh() analyzer.Report {
	return analyzer.Report{
		TotalCost: 5000,
		Bottlenecks: []analyzer.Bottleneck{
			{
				Severity:   analyzer.HIGH,
				Kind:       analyzer.SeqScanLargeTable,
				Relation:   "orders",
				Columns:    []string{"customer_id"},
				Reason:     "sequential scan on orders reads far more rows than it returns",
				Suggestion: "CREATE INDEX ON orders(customer_id);",
				Cost:       4800,
			},
		},
	}
}

func TestDeterministic_PassOnCleanReport(t *testing.T) {
	fb, err := Deterministic{}.Translate(context.Background(), cleanReport(), Constraints{MaxCost: 1000})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fb.Status != StatusPass {
		t.Fatalf("status = %s, want pass", fb.Status)
	}
	if fb.Suggestion != "" {
		t.Fatalf("suggestion = %q, want empty on pass", fb.Suggestion)
	}
}

func TestDeterministic_FailOnHighSeverity(t *testing.T) {
	report := reportWithHigh()
	fb, err := Deterministic{}.Translate(context.Background(), report, Constraints{MaxCost: 1000})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fb.Status != StatusFail {
		t.Fatalf("status = %s, want fail", fb.Status)
	}
	if fb.Suggestion != "CREATE INDEX ON orders(customer_id);" {
		t.Fatalf("suggestion = %q, want verbatim analyzer suggestion", fb.Suggestion)
	}
	if fb.Priority != analyzer.HIGH {
		t.Fatalf("priority = %s, want HIGH", fb.Priority)
	}
}

func TestDeterministic_WarningOnMediumOnly(t *testing.T) {
	report := analyzer.Report{
		TotalCost: 10,
		Bottlenecks: []analyzer.Bottleneck{
			{Severity: analyzer.MEDIUM, Kind: analyzer.ExternalSort, Relation: "orders", Reason: "sort spilled to disk", Suggestion: "increase work_mem"},
		},
	}
	fb, err := Deterministic{}.Translate(context.Background(), report, Constraints{MaxCost: 1000})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fb.Status != StatusWarning {
		t.Fatalf("status = %s, want warning", fb.Status)
	}
}

func TestDeterministic_ErrorOnWarningReport(t *testing.T) {
	report := analyzer.Report{Warning: "malformed EXPLAIN output: root plan node has no Node Type"}
	fb, err := Deterministic{}.Translate(context.Background(), report, Constraints{MaxCost: 1000})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fb.Status != StatusError {
		t.Fatalf("status = %s, want error", fb.Status)
	}
}

func TestDeterministic_FailOnCostOverBudgetWithNoBottlenecks(t *testing.T) {
	report := analyzer.Report{TotalCost: 2000}
	fb, err := Deterministic{}.Translate(context.Background(), report, Constraints{MaxCost: 1000})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fb.Status != StatusFail {
		t.Fatalf("status = %s, want fail", fb.Status)
	}
}

func TestLLMBacked_AcceptsMatchingSuggestion(t *testing.T) {
	report := reportWithHigh()
	client := &fixture.Client{Responses: []string{
		`{"reason": "orders is scanned sequentially and should use an index ON orders(customer_id)", "suggestion": "CREATE INDEX ON orders(customer_id);"}`,
	}}
	fb, err := LLMBacked{Client: client}.Translate(context.Background(), report, Constraints{MaxCost: 1000})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fb.Suggestion != "CREATE INDEX ON orders(customer_id);" {
		t.Fatalf("suggestion = %q", fb.Suggestion)
	}
	if fb.Reason == "" {
		t.Fatalf("reason should not be empty")
	}
}

func TestLLMBacked_OverridesHallucinatedTarget(t *testing.T) {
	report := reportWithHigh()
	client := &fixture.Client{Responses: []string{
		`{"reason": "shipments table needs an index ON shipments(ship_date)", "suggestion": "CREATE INDEX ON shipments(ship_date);"}`,
	}}
	fb, err := LLMBacked{Client: client}.Translate(context.Background(), report, Constraints{MaxCost: 1000})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fb.Suggestion != "CREATE INDEX ON orders(customer_id);" {
		t.Fatalf("suggestion = %q, want canonical suggestion preserved despite hallucinated model output", fb.Suggestion)
	}
	if fb.Reason == "" {
		t.Fatalf("reason should fall back to deterministic text, not be empty")
	}
}

func TestLLMBacked_FallsBackOnUnparseableResponse(t *testing.T) {
	report := reportWithHigh()
	client := &fixture.Client{Responses: []string{"not json at all"}}
	fb, err := LLMBacked{Client: client}.Translate(context.Background(), report, Constraints{MaxCost: 1000})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fb.Status != StatusFail {
		t.Fatalf("status = %s, want fail", fb.Status)
	}
	if fb.Suggestion != "CREATE INDEX ON orders(customer_id);" {
		t.Fatalf("suggestion = %q, want canonical suggestion", fb.Suggestion)
	}
}

func TestLLMBacked_SkipsCallWhenStatusPass(t *testing.T) {
	client := &fixture.Client{Responses: []string{"unused"}}
	_, err := LLMBacked{Client: client}.Translate(context.Background(), cleanReport(), Constraints{MaxCost: 1000})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.Calls() != 0 {
		t.Fatalf("calls = %d, want 0 when report is clean", client.Calls())
	}
}
