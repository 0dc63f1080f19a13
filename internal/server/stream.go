package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/oklog/ulid/v2"

	"github.com/joss/navigator/internal/agent"
	"github.com/joss/navigator/internal/domain"
	"github.com/joss/navigator/internal/tool"
)

// Data stream protocol frame codes.
const (
	frameText       = '0'
	frameError      = '3'
	frameToolCall   = '9'
	frameToolResult = 'a'
	frameFinish     = 'd'
	frameStepFinish = 'e'
	frameStepStart  = 'f'
)

// DataStreamHeader marks a response as a data stream for the client SDK.
const DataStreamHeader = "X-Vercel-AI-Data-Stream"

type wireUsage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
}

func toWireUsage(u *domain.Usage) wireUsage {
	if u == nil {
		return wireUsage{}
	}
	return wireUsage{PromptTokens: u.InputTokens, CompletionTokens: u.OutputTokens}
}

// wireFinishReason maps loop outcomes onto the client's finish reasons. A
// run cut off by the step limit ended on tool calls.
func wireFinishReason(r domain.FinishReason) string {
	switch r {
	case domain.FinishStepBudget, domain.FinishToolCalls:
		return "tool-calls"
	case domain.FinishLength, domain.FinishError, domain.FinishStop:
		return string(r)
	case "":
		return string(domain.FinishStop)
	default:
		return "other"
	}
}

// streamWriter writes data stream frames. After the first failed write it
// drops everything so the event channel can still be drained.
type streamWriter struct {
	w       io.Writer
	flusher http.Flusher
	err     error
	step    int
}

func newStreamWriter(w io.Writer) *streamWriter {
	sw := &streamWriter{w: w}
	if f, ok := w.(http.Flusher); ok {
		sw.flusher = f
	}
	return sw
}

func (s *streamWriter) frame(code byte, v any) {
	if s.err != nil {
		return
	}
	payload, err := json.Marshal(v)
	if err != nil {
		payload = []byte(`null`)
	}
	if _, err := fmt.Fprintf(s.w, "%c:%s\n", code, payload); err != nil {
		s.err = err
		return
	}
	if s.flusher != nil {
		s.flusher.Flush()
	}
}

// rawJSON passes valid JSON through and quotes anything else.
func rawJSON(s string) json.RawMessage {
	if !json.Valid([]byte(s)) {
		b, _ := json.Marshal(s)
		return b
	}
	return json.RawMessage(s)
}

func (s *streamWriter) startStep(step int) {
	if step == s.step {
		return
	}
	s.step = step
	s.frame(frameStepStart, map[string]string{"messageId": "msg-" + ulid.Make().String()})
}

// Write translates one orchestrator event.
func (s *streamWriter) Write(ev domain.StreamEvent) {
	if ev.Step > 0 {
		s.startStep(ev.Step)
	}

	switch ev.Type {
	case domain.StreamEventText:
		if ev.Content != "" {
			s.frame(frameText, ev.Content)
		}

	case domain.StreamEventToolCall:
		tc, ok := ev.Part.(domain.ToolCallPart)
		if !ok {
			return
		}
		args := tc.Args
		if args == nil {
			args = map[string]any{}
		}
		s.frame(frameToolCall, map[string]any{
			"toolCallId": tc.ToolID,
			"toolName":   tc.Name,
			"args":       args,
		})

	case domain.StreamEventToolResult:
		tc, ok := ev.Part.(domain.ToolCallPart)
		if !ok {
			return
		}
		payload := map[string]any{
			"toolCallId": tc.ToolID,
			"result":     rawJSON(tc.Result),
		}
		if r, ok := ev.Output.(tool.Result); ok {
			payload["card"] = tool.CardFor(r)
		}
		s.frame(frameToolResult, payload)

	case domain.StreamEventStepFinish:
		s.frame(frameStepFinish, map[string]any{
			"finishReason": wireFinishReason(ev.FinishReason),
			"usage":        toWireUsage(ev.Usage),
			"isContinued":  ev.Continued,
		})

	case domain.StreamEventDone:
		s.frame(frameFinish, map[string]any{
			"finishReason": wireFinishReason(ev.FinishReason),
			"usage":        toWireUsage(ev.Usage),
		})

	case domain.StreamEventError:
		s.frame(frameError, agent.GenerationFailedMessage)
	}
}

// drain writes every event and returns once the channel is closed, even
// when the client has gone away.
func (s *streamWriter) drain(events <-chan domain.StreamEvent) {
	for ev := range events {
		s.Write(ev)
	}
}
