package agent

import (
	"context"
	"testing"

	"github.com/yudduy/sql-exenv/internal/memory"
	"github.com/yudduy/sql-exenv/internal/translator"
	"github.com/yudduy/sql-exenv/internal/validate"
)

type stubValidator struct{ result validate.Result }

func (s stubValidator) Validate(_ context.Context, _ validate.Queryer, _ string) (validate.Result, error) {
	return s.result, nil
}

func TestRunValidation_NoValidatorsConfiguredReturnsEmpty(t *testing.T) {
	c := &Controller{}
	if note := c.runValidation(context.Background(), "select 1"); note != "" {
		t.Fatalf("expected empty note with no validators, got %q", note)
	}
}

func TestRunValidation_FailingValidatorProducesNote(t *testing.T) {
	c := &Controller{
		Validators: []validate.Validator{
			stubValidator{result: validate.Result{
				Passed:     false,
				Confidence: 0.4,
				Issues:     []validate.Issue{{Kind: "row-count-mismatch", Detail: "3 vs 5"}},
			}},
		},
	}
	note := c.runValidation(context.Background(), "select 1")
	if note == "" {
		t.Fatalf("expected a non-empty note when validation fails")
	}
}

func TestRunValidation_PassingValidatorReturnsEmpty(t *testing.T) {
	c := &Controller{
		Validators: []validate.Validator{
			stubValidator{result: validate.Result{Passed: true, Confidence: 1}},
		},
	}
	if note := c.runValidation(context.Background(), "select 1"); note != "" {
		t.Fatalf("expected empty note when validation passes, got %q", note)
	}
}

func TestClassifyDelta_Improved(t *testing.T) {
	outcome, _ := classifyDelta(1000, 900)
	if outcome != memory.Improved {
		t.Fatalf("expected Improved, got %s", outcome)
	}
}

func TestClassifyDelta_Regressed(t *testing.T) {
	outcome, insight := classifyDelta(1000, 1100)
	if outcome != memory.Regressed {
		t.Fatalf("expected Regressed, got %s", outcome)
	}
	if insight == "" {
		t.Fatalf("expected an insight on regression")
	}
}

func TestClassifyDelta_Unchanged(t *testing.T) {
	outcome, _ := classifyDelta(1000, 1010)
	if outcome != memory.Unchanged {
		t.Fatalf("expected Unchanged, got %s", outcome)
	}
}

func TestIsDDL_SingleStatement(t *testing.T) {
	cases := map[string]bool{
		"CREATE INDEX ON orders(customer_id)": true,
		"ALTER TABLE orders ADD COLUMN x int": true,
		"DROP INDEX idx_orders_status":        true,
		"  vacuum orders":                      true,
		"SELECT * FROM orders":                 false,
		"UPDATE orders SET status = 'shipped'": false,
	}
	for stmt, want := range cases {
		if got := isDDL([]string{stmt}); got != want {
			t.Errorf("isDDL(%q) = %v, want %v", stmt, got, want)
		}
	}
}

func TestIsDDL_MixedQuerySetIsNotDDL(t *testing.T) {
	if isDDL([]string{"CREATE INDEX ON orders(customer_id)", "SELECT 1"}) {
		t.Fatalf("a query set mixing DDL and a query should not be treated as DDL")
	}
}

func TestIsDDL_EmptyQuerySet(t *testing.T) {
	if isDDL(nil) {
		t.Fatalf("an empty query set should not be treated as DDL")
	}
}

func TestStaticDDLFeedback_IsAPass(t *testing.T) {
	fb := staticDDLFeedback()
	if fb.Status != translator.StatusPass {
		t.Fatalf("expected DDL static feedback to be a pass, got %v", fb.Status)
	}
	if fb.Reason == "" {
		t.Fatalf("expected a reason explaining the static-only check")
	}
}

func TestConfig_WithDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	if cfg.AnalyzeCostThreshold != DefaultAnalyzeCostThreshold {
		t.Fatalf("expected default analyze cost threshold, got %v", cfg.AnalyzeCostThreshold)
	}
	if cfg.MaxIterations != 10 || cfg.MinIterations != 3 {
		t.Fatalf("expected default min/max iterations, got %+v", cfg)
	}
	if cfg.MemoryBound != DefaultMemoryBound {
		t.Fatalf("expected default memory bound, got %v", cfg.MemoryBound)
	}
	if DefaultMemoryBound != 2 {
		t.Fatalf("DefaultMemoryBound must match the H=2 Memory Module bound, got %v", DefaultMemoryBound)
	}
}
