package harness

// TraceStep records what one scenario step did. Paths are relative to the
// sandbox root and sorted, so traces are stable across runs.
type TraceStep struct {
	Run      []string `json:"run"`
	Cwd      string   `json:"cwd,omitempty"`
	ExitCode int      `json:"exit_code"`
	Created  []string `json:"created"`
	Deleted  []string `json:"deleted"`
	Updated  []string `json:"updated"`

	// Not part of golden traces: output and sizes embed the sandbox path.
	Stdout  string           `json:"-"`
	Stderr  string           `json:"-"`
	Sizes   map[string]int64 `json:"-"`
	Failure string           `json:"-"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every step ran and every assertion held.
	Pass bool `json:"pass"`

	// Trace contains one entry per executed step, in order.
	Trace []TraceStep `json:"trace"`

	// Errors contains assertion failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceStep{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddStep appends a step to the trace.
func (r *Result) AddStep(step TraceStep) {
	r.Trace = append(r.Trace, step)
}
