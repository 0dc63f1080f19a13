package domain

// StreamEvent represents events during message streaming
type StreamEvent struct {
	Type    StreamEventType `json:"type"`
	Content string          `json:"content,omitempty"`
	Part    Part            `json:"part,omitempty"`
	// Output holds the typed tool result for tool_result events.
	Output any   `json:"-"`
	Error  error `json:"-"`
	Done   bool  `json:"done,omitempty"`
	// Continued is set on step_finish events when another step follows.
	Continued    bool         `json:"continued,omitempty"`
	Usage        *Usage       `json:"usage,omitempty"`
	FinishReason FinishReason `json:"finishReason,omitempty"`
	Step         int          `json:"step,omitempty"`
}

type StreamEventType string

const (
	StreamEventText       StreamEventType = "text"
	StreamEventToolCall   StreamEventType = "tool_call"
	StreamEventToolResult StreamEventType = "tool_result"
	StreamEventStepFinish StreamEventType = "step_finish"
	StreamEventDone       StreamEventType = "done"
	StreamEventError      StreamEventType = "error"
	StreamEventUsage      StreamEventType = "usage"
)

// FinishReason explains why a generation step or the whole run ended.
type FinishReason string

const (
	FinishStop       FinishReason = "stop"
	FinishToolCalls  FinishReason = "tool-calls"
	FinishLength     FinishReason = "length"
	FinishStepBudget FinishReason = "step-budget"
	FinishError      FinishReason = "error"
)
