package analyzer

// Severity is the ordered importance of a Bottleneck. Higher values sort
// first in a Report's Bottlenecks slice.
type Severity int

const (
	LOW Severity = iota
	MEDIUM
	HIGH
)

func (s Severity) String() string {
	switch s {
	case HIGH:
		return "HIGH"
	case MEDIUM:
		return "MEDIUM"
	case LOW:
		return "LOW"
	default:
		return "UNKNOWN"
	}
}

// Kind identifies which detection rule produced a Bottleneck.
type Kind string

const (
	SeqScanLargeTable      Kind = "SeqScanLargeTable"
	HighCostNode           Kind = "HighCostNode"
	EstimateError          Kind = "EstimateError"
	NestedLoopLarge        Kind = "NestedLoopLarge"
	ExternalSort           Kind = "ExternalSort"
	MissingJoinIndex       Kind = "MissingJoinIndex"
	FilterOnUnindexedColumn Kind = "FilterOnUnindexedColumn"
)

// Bottleneck is a single localised performance issue found by the
// Analyzer, together with its canonical remedy. Suggestion is always
// syntactically well-formed for the target dialect; its identifiers are
// always dequoted and stripped of type casts.
type Bottleneck struct {
	Severity       Severity
	Kind           Kind
	Relation       string
	Columns        []string
	Reason         string
	Suggestion     string
	Cost           float64
	Rows           int64
	CostPercentage float64
}

// Report is the Analyzer's full output for one EXPLAIN tree.
type Report struct {
	Bottlenecks     []Bottleneck
	TotalCost       float64
	ExecutionTimeMS float64
	PlanningTimeMS  float64

	// Warning is set when the input could not be meaningfully analyzed;
	// Bottlenecks is empty in that case. The Analyzer never returns an
	// error — malformed input degrades to this field instead.
	Warning string
}

// HasHighSeverity reports whether any bottleneck in the report is HIGH.
func (r Report) HasHighSeverity() bool {
	for _, b := range r.Bottlenecks {
		if b.Severity == HIGH {
			return true
		}
	}
	return false
}

// MostSevere returns the highest-severity bottleneck (ties broken by cost,
// descending) and true, or the zero value and false if the report has no
// bottlenecks. Report.Bottlenecks is kept sorted by severity descending by
// the Analyze entry point, so this is simply the first element.
func (r Report) MostSevere() (Bottleneck, bool) {
	if len(r.Bottlenecks) == 0 {
		return Bottleneck{}, false
	}
	return r.Bottlenecks[0], true
}
