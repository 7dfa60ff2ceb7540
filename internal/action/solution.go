package action

// Solution is the Agent Controller's final outcome for one task: the query
// it started with, the query it ended with, whether it succeeded, and the
// full action trail.
type Solution struct {
	InitialQuery string
	FinalQuery   string
	Success      bool
	Reason       string
	Actions      []Action
	Metrics      map[string]float64

	// ValidationNote carries the Correctness Validation phase's verdict when
	// that optional phase is configured. Empty when no validators ran.
	ValidationNote string
}
