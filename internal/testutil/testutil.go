// Package testutil provides common test helpers and utilities.
package testutil

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/joss/navigator/internal/domain"
	"github.com/joss/navigator/internal/tool"
	"github.com/joss/navigator/pkg/llm"
)

// SetEnv sets an environment variable for the duration of the test.
func SetEnv(t *testing.T, key, value string) {
	t.Helper()
	old, had := os.LookupEnv(key)
	require.NoError(t, os.Setenv(key, value))
	t.Cleanup(func() {
		if !had {
			os.Unsetenv(key)
		} else {
			os.Setenv(key, old)
		}
	})
}

// MockProvider simulates LLM responses for testing. Each Chat call replays
// the next scripted response; once the script runs out, Repeat (if set) is
// replayed forever, otherwise an empty done turn is sent.
type MockProvider struct {
	responses [][]domain.StreamEvent
	Repeat    []domain.StreamEvent
	requests  []*llm.ChatRequest
	callCount int
	mu        sync.Mutex
}

func NewMockProvider(responses ...[]domain.StreamEvent) *MockProvider {
	return &MockProvider{responses: responses}
}

func (m *MockProvider) ID() string   { return "mock" }
func (m *MockProvider) Name() string { return "Mock" }
func (m *MockProvider) Models() []domain.Model {
	return []domain.Model{{ID: "mock", Name: "Mock Model"}}
}

func (m *MockProvider) Chat(ctx context.Context, req *llm.ChatRequest) (<-chan domain.StreamEvent, error) {
	m.mu.Lock()
	idx := m.callCount
	m.callCount++
	m.requests = append(m.requests, req)
	var script []domain.StreamEvent
	switch {
	case idx < len(m.responses):
		script = m.responses[idx]
	case m.Repeat != nil:
		script = m.Repeat
	default:
		script = DoneResponse()
	}
	m.mu.Unlock()

	events := make(chan domain.StreamEvent, len(script)+1)
	go func() {
		defer close(events)
		for _, event := range script {
			select {
			case events <- event:
			case <-ctx.Done():
				return
			}
		}
	}()
	return events, nil
}

func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// Requests returns the requests received so far.
func (m *MockProvider) Requests() []*llm.ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*llm.ChatRequest(nil), m.requests...)
}

// ErrorProvider fails every Chat call with Err, or streams a single error
// event when Streamed is set.
type ErrorProvider struct {
	Err      error
	Streamed bool
}

func (e *ErrorProvider) ID() string             { return "error" }
func (e *ErrorProvider) Name() string           { return "Error" }
func (e *ErrorProvider) Models() []domain.Model { return nil }

func (e *ErrorProvider) Chat(ctx context.Context, req *llm.ChatRequest) (<-chan domain.StreamEvent, error) {
	if !e.Streamed {
		return nil, e.Err
	}
	events := make(chan domain.StreamEvent, 1)
	events <- domain.StreamEvent{Type: domain.StreamEventError, Error: e.Err}
	close(events)
	return events, nil
}

// MockTool is a simple tool for testing.
type MockTool struct {
	ToolName  string
	Output    tool.Result
	Delay     time.Duration
	OnExecute func(args map[string]any)
	Panic     bool
}

func NewMockTool(name string) *MockTool {
	return &MockTool{ToolName: name}
}

func (m *MockTool) WithResult(r tool.Result) *MockTool {
	m.Output = r
	return m
}

func (m *MockTool) WithDelay(d time.Duration) *MockTool {
	m.Delay = d
	return m
}

func (m *MockTool) WithCallback(fn func(args map[string]any)) *MockTool {
	m.OnExecute = fn
	return m
}

func (m *MockTool) Info() domain.Tool {
	return domain.Tool{
		Name:        m.ToolName,
		Description: "Mock tool for testing",
		Parameters: domain.JSONSchema{
			"type": "object",
			"properties": map[string]any{
				"message": map[string]any{"type": "string"},
			},
		},
	}
}

func (m *MockTool) Execute(ctx context.Context, args map[string]any) tool.Result {
	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return tool.Fail(ctx.Err().Error())
		}
	}
	if m.OnExecute != nil {
		m.OnExecute(args)
	}
	if m.Panic {
		panic("mock tool panic")
	}
	if m.Output != nil {
		return m.Output
	}
	msg, _ := args["message"].(string)
	return tool.NewAnalysis("", msg)
}

// TextResponse creates a simple text response event sequence.
func TextResponse(text string) []domain.StreamEvent {
	return []domain.StreamEvent{
		{Type: domain.StreamEventText, Content: text},
		{Type: domain.StreamEventDone, Done: true, FinishReason: domain.FinishStop},
	}
}

// ToolCallResponse creates a tool call event sequence.
func ToolCallResponse(toolID, name string, args map[string]any) []domain.StreamEvent {
	return []domain.StreamEvent{
		{Type: domain.StreamEventToolCall, Part: domain.ToolCallPart{
			ToolID: toolID,
			Name:   name,
			Args:   args,
		}},
		{Type: domain.StreamEventDone, Done: true, FinishReason: domain.FinishToolCalls},
	}
}

// DoneResponse creates a done-only response.
func DoneResponse() []domain.StreamEvent {
	return []domain.StreamEvent{
		{Type: domain.StreamEventDone, Done: true, FinishReason: domain.FinishStop},
	}
}

// DrainEvents consumes all events from a channel.
func DrainEvents(events <-chan domain.StreamEvent) {
	for range events {
	}
}

// Collected is everything a stream produced, grouped by type.
type Collected struct {
	Text        string
	ToolCalls   []domain.ToolCallPart
	ToolResults []domain.StreamEvent
	Steps       int
	Errors      []domain.StreamEvent
	Done        *domain.StreamEvent
}

// CollectEvents reads the channel to the end.
func CollectEvents(events <-chan domain.StreamEvent) Collected {
	var c Collected
	for event := range events {
		switch event.Type {
		case domain.StreamEventText:
			c.Text += event.Content
		case domain.StreamEventToolCall:
			if part, ok := event.Part.(domain.ToolCallPart); ok {
				c.ToolCalls = append(c.ToolCalls, part)
			}
		case domain.StreamEventToolResult:
			c.ToolResults = append(c.ToolResults, event)
		case domain.StreamEventStepFinish:
			c.Steps++
		case domain.StreamEventError:
			c.Errors = append(c.Errors, event)
		case domain.StreamEventDone:
			ev := event
			c.Done = &ev
		}
	}
	return c
}
