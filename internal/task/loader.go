package task

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// LoadFile reads a JSON-lines task file, one Task object per line. Blank
// lines are skipped. Each task is validated; the first validation failure
// aborts the whole load with a line-numbered error, matching the Harness's
// "reject, don't silently coerce" policy for malformed tasks.
func LoadFile(path string) ([]Task, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening task file: %w", err)
	}
	defer f.Close()

	return Load(f)
}

// Load reads tasks from r the same way LoadFile does, for callers that
// already hold an open reader (stdin, an in-memory buffer in tests).
func Load(r io.Reader) ([]Task, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var tasks []Task
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		var raw rawTask
		if err := json.Unmarshal([]byte(text), &raw); err != nil {
			return nil, fmt.Errorf("task file line %d: %w", line, err)
		}

		t := raw.toTask()
		if err := Validate(t); err != nil {
			return nil, fmt.Errorf("task file line %d (instance %d): %w", line, t.InstanceID, err)
		}
		tasks = append(tasks, t)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading task file: %w", err)
	}
	return tasks, nil
}

// Validate enforces the Task invariants the Harness requires at load time:
// a recognized category, at least one issue statement, and the
// Category==Efficiency ⇒ Efficiency==true implication.
func Validate(t Task) error {
	switch t.Category {
	case Query, Management, Efficiency, Personalization:
	default:
		return fmt.Errorf("unrecognized category %q", t.Category)
	}
	if len(t.IssueSQL) == 0 {
		return fmt.Errorf("task has no issue_sql/buggy_sql statement")
	}
	if t.Category == Efficiency && !t.Efficiency {
		return fmt.Errorf("category Efficiency requires efficiency=true")
	}
	return nil
}

// Filter applies category/limit selection the way the Harness's --category
// and --smoke/--limit flags do: an empty category matches everything, and
// limit<=0 means unbounded. Filtering preserves input order.
func Filter(tasks []Task, category Category, limit int) []Task {
	var out []Task
	for _, t := range tasks {
		if category != "" && t.Category != category {
			continue
		}
		out = append(out, t)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}
