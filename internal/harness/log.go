package harness

import (
	"encoding/json"
	"fmt"
	"os"
)

// IntermediateLog appends one JSON-encoded TaskResult per line as each task
// finishes, so a crashed run can resume from wherever it left off and a
// caller can stream progress without waiting for the final report.
type IntermediateLog struct {
	f *os.File
}

// OpenIntermediateLog opens path for appending, creating it if necessary.
func OpenIntermediateLog(path string) (*IntermediateLog, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening intermediate log: %w", err)
	}
	return &IntermediateLog{f: f}, nil
}

// Append writes one result as a JSON line and flushes it immediately.
func (l *IntermediateLog) Append(r TaskResult) error {
	line, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encoding intermediate result: %w", err)
	}
	line = append(line, '\n')
	if _, err := l.f.Write(line); err != nil {
		return fmt.Errorf("writing intermediate result: %w", err)
	}
	return l.f.Sync()
}

func (l *IntermediateLog) Close() error {
	return l.f.Close()
}

// WriteReportAtomic writes report as indented JSON to path atomically: it
// writes to a temporary file in the same directory, then renames it over
// the destination, so a reader never observes a partially-written report.
func WriteReportAtomic(path string, report Report) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating temp report file: %w", err)
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("encoding report: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("closing temp report file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("renaming report into place: %w", err)
	}
	return nil
}
