package pipeline

// Event names sent to the progress sink.
const (
	EventStageUpdate      = "stage_update"
	EventStageComplete    = "stage_complete"
	EventSessionProgress  = "session_progress"
	EventTitleSuggestion  = "title_suggestion"
	EventValidationResult = "validation_result"
	EventComplete         = "complete"
	EventError            = "error"
)

// Event is one named progress notification with a small JSON-serializable
// payload.
type Event struct {
	Name    string         `json:"event"`
	Payload map[string]any `json:"data"`
}

// Sink receives progress events. Delivery is one-way and best-effort: the
// orchestrator never waits for acknowledgement, and a disconnected consumer
// must not stop the run.
type Sink interface {
	Send(event Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Event)

func (f SinkFunc) Send(event Event) { f(event) }

// NopSink discards all events.
var NopSink = SinkFunc(func(Event) {})
