package validate

import (
	"context"
	"errors"
	"testing"
)

type stubValidator struct {
	result Result
	err    error
	panics bool
}

func (s stubValidator) Validate(_ context.Context, _ Queryer, _ string) (Result, error) {
	if s.panics {
		panic("boom")
	}
	return s.result, s.err
}

func TestRun_NoValidatorsPassesOpen(t *testing.T) {
	res := Run(context.Background(), nil, nil, "select 1")
	if !res.Passed {
		t.Fatalf("expected pass with no validators configured")
	}
}

func TestRun_AllPass(t *testing.T) {
	validators := []Validator{
		stubValidator{result: Result{Passed: true, Confidence: 0.9}},
		stubValidator{result: Result{Passed: true, Confidence: 0.8}},
	}
	res := Run(context.Background(), validators, nil, "select 1")
	if !res.Passed {
		t.Fatalf("expected combined pass")
	}
}

func TestRun_OneFails(t *testing.T) {
	validators := []Validator{
		stubValidator{result: Result{Passed: true, Confidence: 0.9}},
		stubValidator{result: Result{Passed: false, Confidence: 0.7, Issues: []Issue{{Kind: "row-count-mismatch", Detail: "42 vs 41"}}}},
	}
	res := Run(context.Background(), validators, nil, "select 1")
	if res.Passed {
		t.Fatalf("expected combined failure")
	}
	if len(res.Issues) != 1 {
		t.Fatalf("issues = %d, want 1", len(res.Issues))
	}
}

func TestRun_ErroringValidatorFailsOpen(t *testing.T) {
	validators := []Validator{
		stubValidator{err: errors.New("connection reset")},
	}
	res := Run(context.Background(), validators, nil, "select 1")
	if !res.Passed {
		t.Fatalf("erroring validator should fail open, got Passed=false")
	}
	if res.Confidence != 0 {
		t.Fatalf("confidence = %v, want 0", res.Confidence)
	}
}

func TestRun_PanickingValidatorFailsOpen(t *testing.T) {
	validators := []Validator{
		stubValidator{panics: true},
	}
	res := Run(context.Background(), validators, nil, "select 1")
	if !res.Passed {
		t.Fatalf("panicking validator should fail open, got Passed=false")
	}
}
