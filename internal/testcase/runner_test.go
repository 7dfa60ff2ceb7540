package testcase

import (
	"errors"
	"testing"
)

func TestIsAlreadyExists(t *testing.T) {
	if !isAlreadyExists(`relation "idx_orders_customer" already exists`) {
		t.Fatalf("expected already-exists detection")
	}
	if isAlreadyExists("syntax error at or near \"SELCT\"") {
		t.Fatalf("unexpected already-exists match")
	}
}

func TestClassifyError(t *testing.T) {
	cases := map[string]string{
		"syntax error at or near \"SELCT\"":         "SyntaxError",
		"relation \"t\" already exists":              "DuplicateObject",
		"relation \"t\" does not exist":               "UndefinedObject",
		"duplicate key value violates unique constraint": "IntegrityConstraintViolation",
		"connection reset by peer":                   "Error",
	}
	for msg, want := range cases {
		if got := classifyError(errors.New(msg)); got != want {
			t.Fatalf("classifyError(%q) = %q, want %q", msg, got, want)
		}
	}
}
