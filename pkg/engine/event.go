package engine

// Event is one envelope of a streamed answer. Exactly one field is set.
type Event struct {
	Delta     *string    `json:"delta,omitempty"`
	ToolEvent *ToolEvent `json:"tool_event,omitempty"`
	Done      bool       `json:"done,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// ToolEvent reports which tools were executed before the final answer.
type ToolEvent struct {
	Used      bool     `json:"used"`
	Names     []string `json:"names"`
	Truncated bool     `json:"truncated,omitempty"`
}

// DeltaEvent returns an event carrying a text fragment.
func DeltaEvent(text string) Event { return Event{Delta: &text} }

// DoneEvent returns the terminal success event.
func DoneEvent() Event { return Event{Done: true} }

// ErrorEvent returns the terminal failure event.
func ErrorEvent(err error) Event { return Event{Error: err.Error()} }

// Terminal reports whether e ends the stream.
func (e Event) Terminal() bool { return e.Done || e.Error != "" }
