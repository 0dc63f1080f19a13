package domain

import (
	"time"
)

// Message is one entry of a conversation. Conversations live in the client;
// the server only sees the history echoed back with each chat request.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Parts     []Part    `json:"parts"`
	Timestamp time.Time `json:"timestamp"`
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
	RoleSystem    Role = "system"
)

// Part represents content within a message
type Part interface {
	PartType() string
}

const (
	PartTypeText     = "text"
	PartTypeToolCall = "tool_call"
)

type TextPart struct {
	Text string `json:"text"`
}

func (p TextPart) PartType() string { return PartTypeText }

// ToolCallPart is a tool invocation issued by the model. On assistant
// messages only the call fields are set; on tool messages Result carries the
// JSON encoded result envelope. ArgsError is set when the model streamed
// arguments that are not a JSON object; Args is then empty.
type ToolCallPart struct {
	ToolID    string         `json:"toolID"`
	Name      string         `json:"name"`
	Args      map[string]any `json:"args"`
	ArgsError string         `json:"argsError,omitempty"`
	Result    string         `json:"result,omitempty"`
	Error     string         `json:"error,omitempty"`
	Duration  time.Duration  `json:"duration,omitempty"`
}

func (p ToolCallPart) PartType() string { return PartTypeToolCall }

// Text concatenates the text parts of a message.
func (m Message) Text() string {
	var text string
	for _, p := range m.Parts {
		if tp, ok := p.(TextPart); ok {
			text += tp.Text
		}
	}
	return text
}

// ToolCalls returns the tool call parts of a message in order.
func (m Message) ToolCalls() []ToolCallPart {
	var calls []ToolCallPart
	for _, p := range m.Parts {
		if tc, ok := p.(ToolCallPart); ok {
			calls = append(calls, tc)
		}
	}
	return calls
}
