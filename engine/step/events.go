package step

// EventType identifies a lifecycle event emitted during a run.
type EventType string

const (
	// EventWorkflowStart marks the beginning of a workflow run.
	EventWorkflowStart EventType = "workflow_start"
	// EventWorkflowEnd marks the end of a workflow run.
	EventWorkflowEnd EventType = "workflow_end"
	// EventStepStart marks the beginning of a step execution.
	EventStepStart EventType = "step_start"
	// EventStepEnd marks the end of a step execution.
	EventStepEnd EventType = "step_end"
	// EventStepError marks a step failure converted to an error envelope.
	EventStepError EventType = "step_error"
	// EventThinking carries an intermediate progress line for live UIs.
	EventThinking EventType = "thinking"
)

// Event is a lifecycle notification. Consumers must not block; the engine
// fires events synchronously on the run goroutine.
type Event struct {
	Type      EventType `json:"type"`
	StepID    string    `json:"step_id,omitempty"`
	Workflow  string    `json:"workflow,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	Content   string    `json:"content,omitempty"`
	ElapsedMS int64     `json:"elapsed_ms,omitempty"`
}

// StreamFunc receives lifecycle events. A nil StreamFunc disables streaming.
type StreamFunc func(Event)

// Emit fires the event when the stream is set.
func (fn StreamFunc) Emit(ev Event) {
	if fn != nil {
		fn(ev)
	}
}
