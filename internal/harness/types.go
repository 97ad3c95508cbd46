package harness

// TraceEvent records one executed step. Record ids and timestamps are left
// out so traces are stable across runs.
type TraceEvent struct {
	Step   int               `json:"step"`
	Host   string            `json:"host"`
	Action string            `json:"action"`
	Args   map[string]string `json:"args,omitempty"`

	// Tag and Head describe the acting host's own stream after a write.
	Tag  string  `json:"tag,omitempty"`
	Head *uint64 `json:"head,omitempty"`

	// Uploaded and Downloaded are set by sync steps.
	Uploaded   int `json:"uploaded,omitempty"`
	Downloaded int `json:"downloaded,omitempty"`

	// Error is the step error, if any.
	Error string `json:"error,omitempty"`
}

// HostState is the reduced state of one host after all steps ran.
type HostState struct {
	Aliases map[string]string `json:"aliases"`
	Vars    map[string]string `json:"vars"`
	KV      map[string]string `json:"kv"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every step met its expectation and all assertions hold.
	Pass bool `json:"pass"`

	// Trace contains all executed steps in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// State holds each host's final state, keyed by host name.
	State map[string]HostState `json:"state"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		State:  make(map[string]HostState),
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a step event.
func (r *Result) AddTrace(event TraceEvent) {
	r.Trace = append(r.Trace, event)
}
