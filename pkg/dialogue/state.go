package dialogue

// State is a step of the decide-call-respond exchange.
type State int

const (
	// AwaitingDecision: the user text was sent with the tool declarations.
	AwaitingDecision State = iota
	// ToolRequested: the backend asked for a tool.
	ToolRequested
	// ToolExecuted: the tool result is ready to be fed back.
	ToolExecuted
	// ComposingFinal: the display-sized answer is being produced.
	ComposingFinal
	// Done: Answer returned.
	Done
)

func (s State) String() string {
	switch s {
	case AwaitingDecision:
		return "awaiting_decision"
	case ToolRequested:
		return "tool_requested"
	case ToolExecuted:
		return "tool_executed"
	case ComposingFinal:
		return "composing_final"
	case Done:
		return "done"
	}
	return "unknown"
}
