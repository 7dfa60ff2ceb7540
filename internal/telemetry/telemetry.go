// Package telemetry wires structured logging across the Harness and Agent
// Controller. The teacher's own command output stays plain stdout text/JSON
// via internal/output; this package is for diagnostic events only
// (per-task, per-iteration structured fields), never user-facing results.
package telemetry

import (
	"go.uber.org/zap"
)

// New returns a production zap.Logger: JSON encoding, info level, with
// stack traces only on error and above.
func New() (*zap.Logger, error) {
	return zap.NewProduction()
}

// NewDevelopment returns a console-encoded, debug-level logger, for local
// runs and tests where a human is reading the terminal directly.
func NewDevelopment() (*zap.Logger, error) {
	return zap.NewDevelopment()
}

// TaskFields returns the structured fields every harness/agent log line
// about a task should carry.
func TaskFields(taskID int, dbID string) []zap.Field {
	return []zap.Field{
		zap.Int("task_id", taskID),
		zap.String("db_id", dbID),
	}
}

// IterationFields extends TaskFields with per-iteration context.
func IterationFields(taskID int, dbID string, iteration int, actionKind, outcome string) []zap.Field {
	fields := TaskFields(taskID, dbID)
	fields = append(fields,
		zap.Int("iteration", iteration),
		zap.String("action_kind", actionKind),
		zap.String("outcome", outcome),
	)
	return fields
}
