// Package task defines the benchmark Task shape and its JSON-lines loader.
package task

// Category selects which metric (§ internal/metrics) scores a Task.
type Category string

const (
	Query           Category = "Query"
	Management      Category = "Management"
	Efficiency      Category = "Efficiency"
	Personalization Category = "Personalization"
)

// Task is one benchmark entry: a database, a natural-language intent, the
// buggy/inefficient SQL to repair, and the statements that bracket it.
type Task struct {
	InstanceID int      `json:"instance_id"`
	DBID       string   `json:"db_id"`
	Query      string   `json:"query"`
	IssueSQL   []string `json:"issue_sql"`

	PreprocessSQL []string `json:"preprocess_sql"`
	CleanUpSQL    []string `json:"clean_up_sql"`

	Category   Category `json:"category"`
	Efficiency bool     `json:"efficiency"`

	// ReferenceSolution, when present, is the ground-truth SQL the soft-ex
	// metric runs to obtain the expected result set.
	ReferenceSolution *string `json:"solution_sql,omitempty"`
}

// rawTask mirrors the on-disk JSON shape, including the legacy single-
// statement "buggy_sql" alias older task files use in place of issue_sql.
type rawTask struct {
	InstanceID        int      `json:"instance_id"`
	DBID              string   `json:"db_id"`
	Query             string   `json:"query"`
	IssueSQL          []string `json:"issue_sql"`
	BuggySQL          *string  `json:"buggy_sql"`
	PreprocessSQL     []string `json:"preprocess_sql"`
	CleanUpSQL        []string `json:"clean_up_sql"`
	Category          Category `json:"category"`
	Efficiency        bool     `json:"efficiency"`
	ReferenceSolution *string  `json:"solution_sql,omitempty"`
}

func (r rawTask) toTask() Task {
	issue := r.IssueSQL
	if len(issue) == 0 && r.BuggySQL != nil {
		issue = []string{*r.BuggySQL}
	}
	return Task{
		InstanceID:        r.InstanceID,
		DBID:              r.DBID,
		Query:             r.Query,
		IssueSQL:          issue,
		PreprocessSQL:     r.PreprocessSQL,
		CleanUpSQL:        r.CleanUpSQL,
		Category:          r.Category,
		Efficiency:        r.Efficiency,
		ReferenceSolution: r.ReferenceSolution,
	}
}
