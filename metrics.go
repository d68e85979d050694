package stepflow

// Metrics aggregates counters across a pipeline run.
//
// TotalTokens always equals PromptTokens + CompletionTokens. Counters only
// grow; there is no reset.
type Metrics struct {
	PromptTokens     int      `json:"prompt_token_count"`
	CompletionTokens int      `json:"completion_token_count"`
	TotalTokens      int      `json:"total_token_count"`
	StepsCompleted   int      `json:"steps_completed"`
	Failures         []string `json:"failures"`
}

// AddTokens records prompt and completion tokens together.
func (m *Metrics) AddTokens(prompt, completion int) {
	m.PromptTokens += prompt
	m.CompletionTokens += completion
	m.TotalTokens += prompt + completion
}

// AddPromptTokens records prompt tokens.
func (m *Metrics) AddPromptTokens(n int) {
	m.AddTokens(n, 0)
}

// AddCompletionTokens records completion tokens.
func (m *Metrics) AddCompletionTokens(n int) {
	m.AddTokens(0, n)
}

// RecordStep counts one successful step.
func (m *Metrics) RecordStep() {
	m.StepsCompleted++
}

// RecordFailure appends a failure description.
func (m *Metrics) RecordFailure(msg string) {
	m.Failures = append(m.Failures, msg)
}

// HasFailures reports whether any failure was recorded.
func (m Metrics) HasFailures() bool {
	return len(m.Failures) > 0
}

// Total returns the total token count.
func (m Metrics) Total() int {
	return m.TotalTokens
}

// Clone returns a deep copy.
func (m Metrics) Clone() Metrics {
	out := m
	if m.Failures != nil {
		out.Failures = append([]string(nil), m.Failures...)
	} else {
		out.Failures = []string{}
	}
	return out
}
