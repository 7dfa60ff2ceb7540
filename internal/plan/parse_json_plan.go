package plan

import (
	"encoding/json"
	"fmt"
)

// ParseJSONPlan parses the raw JSON returned by EXPLAIN (FORMAT JSON).
// PostgreSQL always wraps the output in a single-element array, but the
// normalisation rule in this system treats a bare object the same way, so
// both forms are accepted here.
func ParseJSONPlan(data []byte) ([]ExplainOutput, error) {
	var plans []ExplainOutput
	if err := json.Unmarshal(data, &plans); err == nil {
		if len(plans) == 0 {
			return nil, fmt.Errorf("empty EXPLAIN output")
		}
		return plans, nil
	}

	var single ExplainOutput
	if err := json.Unmarshal(data, &single); err != nil {
		return nil, fmt.Errorf("invalid EXPLAIN JSON: %w", err)
	}
	return []ExplainOutput{single}, nil
}
