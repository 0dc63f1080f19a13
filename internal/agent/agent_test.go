package agent

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joss/navigator/internal/audit"
	"github.com/joss/navigator/internal/domain"
	"github.com/joss/navigator/internal/metrics"
	"github.com/joss/navigator/internal/provider"
	"github.com/joss/navigator/internal/testutil"
	"github.com/joss/navigator/internal/tool"
	"github.com/joss/navigator/pkg/llm"
)

func userMessage(text string) []domain.Message {
	return []domain.Message{{
		ID:    "u1",
		Role:  domain.RoleUser,
		Parts: []domain.Part{domain.TextPart{Text: text}},
	}}
}

func registry(tools ...tool.Executor) *tool.Registry {
	r := tool.NewRegistry()
	for _, t := range tools {
		r.Register(t)
	}
	return r
}

func TestRunTextOnly(t *testing.T) {
	p := testutil.NewMockProvider(testutil.TextResponse("Hello there"))
	o := New(p, registry(testutil.NewMockTool("echo")), "system prompt", Config{Model: "m"})

	events, err := o.Run(context.Background(), userMessage("hi"))
	require.NoError(t, err)
	c := testutil.CollectEvents(events)

	assert.Equal(t, "Hello there", c.Text)
	require.NotNil(t, c.Done)
	assert.Equal(t, domain.FinishStop, c.Done.FinishReason)
	assert.Equal(t, "Hello there", c.Done.Content)
	assert.Equal(t, 1, c.Steps)
	assert.Empty(t, c.Errors)
	assert.Equal(t, 1, p.CallCount())

	req := p.Requests()[0]
	assert.Equal(t, "system prompt", req.SystemPrompt)
	assert.Equal(t, "m", req.Model)
	require.Len(t, req.Tools, 1)
	assert.Equal(t, "echo", req.Tools[0].Name)
}

func TestRunToolLoop(t *testing.T) {
	p := testutil.NewMockProvider(
		testutil.ToolCallResponse("c1", "echo", map[string]any{"message": "ping"}),
		testutil.TextResponse("pong received"),
	)
	o := New(p, registry(testutil.NewMockTool("echo")), "sys", Config{})

	events, err := o.Run(context.Background(), userMessage("ping"))
	require.NoError(t, err)
	c := testutil.CollectEvents(events)

	require.Len(t, c.ToolCalls, 1)
	require.Len(t, c.ToolResults, 1)
	res := c.ToolResults[0]
	part := res.Part.(domain.ToolCallPart)
	assert.Equal(t, "c1", part.ToolID)
	assert.Contains(t, part.Result, `"answer":"ping"`)
	assert.Empty(t, part.Error)
	_, isAnalysis := res.Output.(*tool.AnalysisResult)
	assert.True(t, isAnalysis)

	require.NotNil(t, c.Done)
	assert.Equal(t, domain.FinishStop, c.Done.FinishReason)
	assert.Equal(t, 2, c.Steps)
	assert.Equal(t, 2, p.CallCount())

	second := p.Requests()[1].Messages
	require.Len(t, second, 3)
	assert.Equal(t, domain.RoleAssistant, second[1].Role)
	assert.Equal(t, "c1", second[1].ToolCalls()[0].ToolID)
	assert.Equal(t, domain.RoleTool, second[2].Role)
	assert.Contains(t, second[2].ToolCalls()[0].Result, "ping")
}

func TestRunStepBudget(t *testing.T) {
	p := testutil.NewMockProvider()
	p.Repeat = []domain.StreamEvent{
		{Type: domain.StreamEventText, Content: "."},
		{Type: domain.StreamEventToolCall, Part: domain.ToolCallPart{Name: "echo", Args: map[string]any{"message": "again"}}},
		{Type: domain.StreamEventDone, Done: true, FinishReason: domain.FinishToolCalls},
	}
	m := metrics.New()
	o := New(p, registry(testutil.NewMockTool("echo")), "sys", Config{MaxSteps: 3}, WithMetrics(m))

	events, err := o.Run(context.Background(), userMessage("loop forever"))
	require.NoError(t, err)
	c := testutil.CollectEvents(events)

	assert.Equal(t, 3, p.CallCount(), "model is called exactly MaxSteps times")
	assert.Len(t, c.ToolResults, 3, "tool calls of the last step still run")
	require.NotNil(t, c.Done)
	assert.Equal(t, domain.FinishStepBudget, c.Done.FinishReason)
	assert.Equal(t, "...", c.Done.Content)
	assert.Equal(t, int64(1), m.StepBudgetReached.Load())
	assert.Equal(t, int64(3), m.LLMCalls.Load())
}

func TestRunDefaultStepBudget(t *testing.T) {
	p := testutil.NewMockProvider()
	p.Repeat = testutil.ToolCallResponse("", "echo", nil)
	o := New(p, registry(testutil.NewMockTool("echo")), "sys", Config{})

	events, err := o.Run(context.Background(), userMessage("x"))
	require.NoError(t, err)
	c := testutil.CollectEvents(events)

	assert.Equal(t, DefaultMaxSteps, o.MaxSteps())
	assert.Equal(t, DefaultMaxSteps, p.CallCount())
	require.NotNil(t, c.Done)
	assert.Equal(t, domain.FinishStepBudget, c.Done.FinishReason)
	for _, call := range c.ToolCalls {
		assert.NotEmpty(t, call.ToolID, "missing ids are generated")
	}
}

func TestRunToolFailureContinues(t *testing.T) {
	panicky := testutil.NewMockTool("broken")
	panicky.Panic = true
	p := testutil.NewMockProvider(
		[]domain.StreamEvent{
			{Type: domain.StreamEventToolCall, Part: domain.ToolCallPart{ToolID: "a", Name: "missing"}},
			{Type: domain.StreamEventToolCall, Part: domain.ToolCallPart{ToolID: "b", Name: "broken"}},
			{Type: domain.StreamEventDone, Done: true, FinishReason: domain.FinishToolCalls},
		},
		testutil.TextResponse("Sorry, something went wrong."),
	)
	m := metrics.New()
	o := New(p, registry(panicky), "sys", Config{}, WithMetrics(m))

	events, err := o.Run(context.Background(), userMessage("x"))
	require.NoError(t, err)
	c := testutil.CollectEvents(events)

	assert.Empty(t, c.Errors)
	require.Len(t, c.ToolResults, 2)
	byID := map[string]domain.ToolCallPart{}
	for _, ev := range c.ToolResults {
		part := ev.Part.(domain.ToolCallPart)
		byID[part.ToolID] = part
	}
	assert.Contains(t, byID["a"].Error, "tool not found")
	assert.Contains(t, byID["b"].Error, "failed unexpectedly")
	assert.Contains(t, byID["b"].Result, `"success":false`)

	require.NotNil(t, c.Done)
	assert.Equal(t, "Sorry, something went wrong.", c.Done.Content)
	assert.Equal(t, int64(2), m.ToolFailures.Load())
}

func TestRunMalformedToolArgumentsRecoverInline(t *testing.T) {
	responses := []string{
		`data: {"choices":[{"delta":{"tool_calls":[{"index":0,"id":"call_1","type":"function","function":{"name":"echo","arguments":"{\"message\": \"dark\""}}]},"finish_reason":null}]}

data: {"choices":[{"delta":{},"finish_reason":"tool_calls"}]}

data: [DONE]

`,
		`data: {"choices":[{"delta":{"content":"Retried."},"finish_reason":"stop"}]}

data: [DONE]

`,
	}
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(calls.Add(1)) - 1
		if n >= len(responses) {
			n = len(responses) - 1
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte(responses[n]))
	}))
	defer server.Close()

	executed := false
	echo := testutil.NewMockTool("echo").WithCallback(func(map[string]any) { executed = true })
	p := provider.NewOpenAI("key", server.URL, http.DefaultClient)
	o := New(p, registry(echo), "sys", Config{Model: "m"})

	events, err := o.Run(context.Background(), userMessage("dark mode"))
	require.NoError(t, err)
	c := testutil.CollectEvents(events)

	assert.Empty(t, c.Errors)
	assert.False(t, executed, "undecodable arguments never reach the tool")
	require.Len(t, c.ToolResults, 1)
	part := c.ToolResults[0].Part.(domain.ToolCallPart)
	assert.Equal(t, "call_1", part.ToolID)
	assert.Contains(t, part.Error, "Tool 'echo' was called incorrectly")
	assert.Contains(t, part.Result, `"success":false`)

	require.NotNil(t, c.Done)
	assert.Equal(t, domain.FinishStop, c.Done.FinishReason)
	assert.Equal(t, "Retried.", c.Done.Content)
	assert.Equal(t, int32(2), calls.Load(), "the model sees the rejection and answers again")
}

// panickyProvider serves its first script and panics on any later call.
type panickyProvider struct {
	*testutil.MockProvider
}

func (p panickyProvider) Chat(ctx context.Context, req *llm.ChatRequest) (<-chan domain.StreamEvent, error) {
	if p.CallCount() > 0 {
		panic("provider bug")
	}
	return p.MockProvider.Chat(ctx, req)
}

func TestRunLoopPanicEndsWithGenericError(t *testing.T) {
	p := panickyProvider{testutil.NewMockProvider(
		testutil.ToolCallResponse("c1", "echo", map[string]any{"message": "hi"}),
	)}
	o := New(p, registry(testutil.NewMockTool("echo")), "sys", Config{})

	events, err := o.Run(context.Background(), userMessage("x"))
	require.NoError(t, err)
	c := testutil.CollectEvents(events)

	require.Len(t, c.ToolResults, 1)
	require.Len(t, c.Errors, 1)
	assert.ErrorIs(t, c.Errors[0].Error, ErrGeneration)
	assert.Equal(t, domain.FinishError, c.Errors[0].FinishReason)
	assert.Nil(t, c.Done)
}

func TestRunResultsKeepIssueOrder(t *testing.T) {
	slow := testutil.NewMockTool("slow").WithDelay(100 * time.Millisecond)
	fast := testutil.NewMockTool("fast")
	p := testutil.NewMockProvider(
		[]domain.StreamEvent{
			{Type: domain.StreamEventToolCall, Part: domain.ToolCallPart{ToolID: "1", Name: "slow", Args: map[string]any{"message": "s"}}},
			{Type: domain.StreamEventToolCall, Part: domain.ToolCallPart{ToolID: "2", Name: "fast", Args: map[string]any{"message": "f"}}},
			{Type: domain.StreamEventDone, Done: true, FinishReason: domain.FinishToolCalls},
		},
		testutil.TextResponse("ok"),
	)
	o := New(p, registry(slow, fast), "sys", Config{})

	events, err := o.Run(context.Background(), userMessage("x"))
	require.NoError(t, err)
	c := testutil.CollectEvents(events)

	require.Len(t, c.ToolResults, 2)
	assert.Equal(t, "2", c.ToolResults[0].Part.(domain.ToolCallPart).ToolID, "results stream as tools finish")

	toolMsg := p.Requests()[1].Messages[2]
	ids := []string{toolMsg.ToolCalls()[0].ToolID, toolMsg.ToolCalls()[1].ToolID}
	assert.Equal(t, []string{"1", "2"}, ids, "history keeps the order the model issued")
}

func TestRunFirstCallError(t *testing.T) {
	boom := errors.New("401 invalid key sk-secret")
	o := New(&testutil.ErrorProvider{Err: boom}, registry(), "sys", Config{})

	events, err := o.Run(context.Background(), userMessage("x"))
	assert.Nil(t, events)
	assert.ErrorIs(t, err, boom)
}

func TestRunNilProvider(t *testing.T) {
	o := New(nil, registry(), "sys", Config{})

	_, err := o.Run(context.Background(), userMessage("x"))
	assert.ErrorIs(t, err, ErrNoProvider)
}

func TestRunMidStreamErrorIsGeneric(t *testing.T) {
	p := testutil.NewMockProvider(
		testutil.ToolCallResponse("c1", "echo", map[string]any{"message": "x"}),
		[]domain.StreamEvent{
			{Type: domain.StreamEventText, Content: "partial"},
			{Type: domain.StreamEventError, Error: errors.New("upstream 500 at internal-host:8080")},
		},
	)
	o := New(p, registry(testutil.NewMockTool("echo")), "sys", Config{})

	events, err := o.Run(context.Background(), userMessage("x"))
	require.NoError(t, err)
	c := testutil.CollectEvents(events)

	require.Len(t, c.Errors, 1)
	assert.Equal(t, GenerationFailedMessage, c.Errors[0].Error.Error())
	assert.NotContains(t, c.Errors[0].Error.Error(), "internal-host")
	assert.Nil(t, c.Done, "an aborted run has no done event")
	assert.Equal(t, 2, p.CallCount())
}

func TestRunUsage(t *testing.T) {
	t.Run("last report of a step wins", func(t *testing.T) {
		p := testutil.NewMockProvider([]domain.StreamEvent{
			{Type: domain.StreamEventText, Content: "hi"},
			{Type: domain.StreamEventUsage, Usage: &domain.Usage{InputTokens: 10, OutputTokens: 1}},
			{Type: domain.StreamEventUsage, Usage: &domain.Usage{InputTokens: 10, OutputTokens: 4}},
			{Type: domain.StreamEventDone, Done: true, FinishReason: domain.FinishStop},
		})
		o := New(p, registry(), "sys", Config{})

		events, err := o.Run(context.Background(), userMessage("x"))
		require.NoError(t, err)
		c := testutil.CollectEvents(events)

		require.NotNil(t, c.Done)
		assert.Equal(t, domain.Usage{InputTokens: 10, OutputTokens: 4}, *c.Done.Usage)
	})

	t.Run("estimated when not reported", func(t *testing.T) {
		p := testutil.NewMockProvider(testutil.TextResponse("a reasonably long answer"))
		o := New(p, registry(), "a system prompt", Config{})

		events, err := o.Run(context.Background(), userMessage("question"))
		require.NoError(t, err)
		c := testutil.CollectEvents(events)

		require.NotNil(t, c.Done)
		assert.True(t, c.Done.Usage.Estimated)
		assert.Greater(t, c.Done.Usage.InputTokens, 0)
		assert.Greater(t, c.Done.Usage.OutputTokens, 0)
	})
}

func TestRunStepFinishContinued(t *testing.T) {
	p := testutil.NewMockProvider(
		testutil.ToolCallResponse("c1", "echo", nil),
		testutil.TextResponse("done"),
	)
	o := New(p, registry(testutil.NewMockTool("echo")), "sys", Config{})

	events, err := o.Run(context.Background(), userMessage("x"))
	require.NoError(t, err)

	var steps []domain.StreamEvent
	for ev := range events {
		if ev.Type == domain.StreamEventStepFinish {
			steps = append(steps, ev)
		}
	}
	require.Len(t, steps, 2)
	assert.True(t, steps[0].Continued)
	assert.Equal(t, domain.FinishToolCalls, steps[0].FinishReason)
	assert.False(t, steps[1].Continued)
	assert.Equal(t, domain.FinishStop, steps[1].FinishReason)
}

func TestRunAudit(t *testing.T) {
	store, err := audit.Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	p := testutil.NewMockProvider(
		testutil.ToolCallResponse("c1", "echo", map[string]any{"message": "x"}),
		testutil.TextResponse("done"),
	)
	o := New(p, registry(testutil.NewMockTool("echo")), "sys", Config{RequestID: "req-42"}, WithAudit(store))

	events, err := o.Run(context.Background(), userMessage("x"))
	require.NoError(t, err)
	testutil.DrainEvents(events)

	entries, err := store.Recent(context.Background(), audit.QueryFilter{RequestID: "req-42"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "echo", entries[0].Tool)
	assert.Equal(t, audit.StatusSuccess, entries[0].Status)
}

func TestRunToolsSurviveCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	finished := make(chan struct{})
	slow := testutil.NewMockTool("slow").WithDelay(50 * time.Millisecond).
		WithCallback(func(map[string]any) { close(finished) })

	p := testutil.NewMockProvider(testutil.ToolCallResponse("c1", "slow", nil))
	o := New(p, registry(slow), "sys", Config{})

	events, err := o.Run(ctx, userMessage("x"))
	require.NoError(t, err)

	for ev := range events {
		if ev.Type == domain.StreamEventToolCall {
			cancel()
		}
	}

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("tool was cut short by the cancelled request")
	}
	assert.Equal(t, 1, p.CallCount())
}

func TestSanitizeArgs(t *testing.T) {
	long := strings.Repeat("word ", 40)
	got := sanitizeArgs(map[string]any{
		"apiKey":          "sk-123",
		"accessToken":     "t",
		"userDescription": long,
		"mediaId":         "m1",
	})

	assert.Equal(t, "[REDACTED]", got["apiKey"])
	assert.Equal(t, "[REDACTED]", got["accessToken"])
	assert.Len(t, got["userDescription"], 80)
	assert.Equal(t, "m1", got["mediaId"])
	assert.Nil(t, sanitizeArgs(nil))
}
