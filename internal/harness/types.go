package harness

// Trace event types.
const (
	EventInvocation = "invocation"
	EventCompletion = "completion"
)

// CaseOK is the completion case of a successful action.
const CaseOK = "ok"

// TraceEvent is one invocation or completion. An invocation and its
// completion share Seq.
type TraceEvent struct {
	Type   string `json:"type"`
	Action string `json:"action,omitempty"`
	At     string `json:"at,omitempty"`
	Args   any    `json:"args,omitempty"`
	Case   string `json:"case,omitempty"`
	Result any    `json:"result,omitempty"`
	Seq    int64  `json:"seq"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every step matched its expectation and every
	// assertion held.
	Pass bool `json:"pass"`

	Trace  []TraceEvent `json:"trace"`
	Errors []string     `json:"errors,omitempty"`

	// Notified lists the alert ids handed to the notifier, in order.
	Notified []string `json:"notified,omitempty"`

	// Day is the final day view used for golden comparison.
	Day *DaySnapshot `json:"day,omitempty"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError records a failure.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddInvocationTrace records an action invocation.
func (r *Result) AddInvocationTrace(action, at string, args any, seq int64) {
	r.Trace = append(r.Trace, TraceEvent{
		Type:   EventInvocation,
		Action: action,
		At:     at,
		Args:   args,
		Seq:    seq,
	})
}

// AddCompletionTrace records the completion of the invocation with seq.
func (r *Result) AddCompletionTrace(outputCase string, result any, seq int64) {
	r.Trace = append(r.Trace, TraceEvent{
		Type:   EventCompletion,
		Case:   outputCase,
		Result: result,
		Seq:    seq,
	})
}

// Completion returns the completion of the invocation with seq.
func (r *Result) Completion(seq int64) (TraceEvent, bool) {
	for _, e := range r.Trace {
		if e.Type == EventCompletion && e.Seq == seq {
			return e, true
		}
	}
	return TraceEvent{}, false
}
