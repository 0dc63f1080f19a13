package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/joss/navigator/internal/domain"
	"github.com/joss/navigator/pkg/llm"
)

const (
	openaiAPIURL     = "https://api.openai.com/v1/chat/completions"
	openrouterAPIURL = "https://openrouter.ai/api/v1/chat/completions"
)

// OpenAI speaks the chat completions API. OpenRouter and other compatible
// servers use the same client with a different id and URL.
type OpenAI struct {
	id      string
	name    string
	apiKey  string
	baseURL string
	headers map[string]string
	client  HTTPClient
}

func NewOpenAI(apiKey, baseURL string, client HTTPClient) *OpenAI {
	return &OpenAI{
		id:      string(ProviderOpenAI),
		name:    "OpenAI",
		apiKey:  apiKey,
		baseURL: completionsURL(baseURL, openaiAPIURL),
		client:  client,
	}
}

func NewOpenRouter(apiKey, baseURL string, client HTTPClient) *OpenAI {
	return &OpenAI{
		id:      string(ProviderOpenRouter),
		name:    "OpenRouter",
		apiKey:  apiKey,
		baseURL: completionsURL(baseURL, openrouterAPIURL),
		headers: map[string]string{"X-Title": "Jellyfin Navigator"},
		client:  client,
	}
}

// completionsURL normalizes a base URL to the chat completions endpoint.
func completionsURL(baseURL, fallback string) string {
	if baseURL == "" {
		return fallback
	}
	baseURL = strings.TrimRight(baseURL, "/")
	switch {
	case strings.HasSuffix(baseURL, "/chat/completions"):
		return baseURL
	case strings.HasSuffix(baseURL, "/v1"):
		return baseURL + "/chat/completions"
	default:
		return baseURL + "/v1/chat/completions"
	}
}

func (o *OpenAI) ID() string   { return o.id }
func (o *OpenAI) Name() string { return o.name }

func (o *OpenAI) Models() []domain.Model {
	if o.id == string(ProviderOpenRouter) {
		return []domain.Model{
			{ID: "openai/gpt-4o-mini", Name: "GPT-4o Mini", ContextSize: 128000},
			{ID: "anthropic/claude-sonnet-4", Name: "Claude Sonnet 4", ContextSize: 200000},
			{ID: "google/gemini-2.0-flash-001", Name: "Gemini 2.0 Flash", ContextSize: 1000000},
		}
	}
	return []domain.Model{
		{ID: "gpt-4o", Name: "GPT-4o", ContextSize: 128000},
		{ID: "gpt-4o-mini", Name: "GPT-4o Mini", ContextSize: 128000},
		{ID: "gpt-4.1-mini", Name: "GPT-4.1 Mini", ContextSize: 1000000},
	}
}

type openaiStreamOpts struct {
	IncludeUsage bool `json:"include_usage"`
}

type openaiMessage struct {
	Role       string           `json:"role"`
	Content    *string          `json:"content"`
	ToolCalls  []openaiToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
	Name       string           `json:"name,omitempty"`
}

type openaiFunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type openaiToolCall struct {
	Index    int                `json:"index"`
	ID       string             `json:"id,omitempty"`
	Type     string             `json:"type,omitempty"`
	Function openaiFunctionCall `json:"function"`
}

type openaiFunction struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Parameters  domain.JSONSchema `json:"parameters"`
}

type openaiTool struct {
	Type     string         `json:"type"`
	Function openaiFunction `json:"function"`
}

func textPtr(s string) *string { return &s }

func openaiMessages(req *llm.ChatRequest) []openaiMessage {
	msgs := make([]openaiMessage, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		msgs = append(msgs, openaiMessage{Role: "system", Content: textPtr(req.SystemPrompt)})
	}

	for _, m := range req.Messages {
		switch m.Role {
		case domain.RoleSystem:
			continue
		case domain.RoleTool:
			// one message per result
			for _, call := range m.ToolCalls() {
				msgs = append(msgs, openaiMessage{
					Role:       "tool",
					Content:    textPtr(toolResultContent(call)),
					ToolCallID: call.ToolID,
					Name:       call.Name,
				})
			}
			continue
		}

		msg := openaiMessage{Role: string(m.Role)}
		if text := m.Text(); text != "" {
			msg.Content = textPtr(text)
		}
		if m.Role == domain.RoleAssistant {
			for _, call := range m.ToolCalls() {
				msg.ToolCalls = append(msg.ToolCalls, openaiToolCall{
					ID:       call.ToolID,
					Type:     "function",
					Function: openaiFunctionCall{Name: call.Name, Arguments: mustJSON(argsOrEmpty(call.Args))},
				})
			}
		}
		if msg.Content != nil || len(msg.ToolCalls) > 0 {
			msgs = append(msgs, msg)
		}
	}
	return msgs
}

// toolResultContent is the text a model sees for one executed call.
func toolResultContent(call domain.ToolCallPart) string {
	if call.Result != "" {
		return call.Result
	}
	if call.Error != "" {
		return mustJSON(map[string]any{"success": false, "error": call.Error})
	}
	return `{"success":false,"error":"no result"}`
}

func (o *OpenAI) Chat(ctx context.Context, req *llm.ChatRequest) (<-chan domain.StreamEvent, error) {
	reqBody := map[string]any{
		"model":          req.Model,
		"messages":       openaiMessages(req),
		"stream":         true,
		"stream_options": openaiStreamOpts{IncludeUsage: true},
	}

	if len(req.Tools) > 0 {
		tools := make([]openaiTool, 0, len(req.Tools))
		for _, t := range req.Tools {
			tools = append(tools, openaiTool{
				Type:     "function",
				Function: openaiFunction{Name: t.Name, Description: t.Description, Parameters: t.Parameters},
			})
		}
		reqBody["tools"] = tools
	}

	if req.MaxTokens > 0 {
		// o-series and gpt-5 models only accept max_completion_tokens
		if strings.HasPrefix(req.Model, "o1") || strings.HasPrefix(req.Model, "o3") || strings.HasPrefix(req.Model, "gpt-5") {
			reqBody["max_completion_tokens"] = req.MaxTokens
		} else {
			reqBody["max_tokens"] = req.MaxTokens
		}
	}
	if req.Temperature > 0 {
		reqBody["temperature"] = req.Temperature
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if o.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)
	}
	for k, v := range o.headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, readAPIError(o.name, resp)
	}

	events := make(chan domain.StreamEvent, 100)
	go o.streamResponse(ctx, resp.Body, events)
	return events, nil
}

type openaiStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content   string           `json:"content"`
			ToolCalls []openaiToolCall `json:"tool_calls"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Usage *openaiUsage `json:"usage,omitempty"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type openaiUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type pendingCall struct {
	id   string
	name string
	args strings.Builder
}

func openaiFinish(reason string) domain.FinishReason {
	switch reason {
	case "tool_calls", "function_call":
		return domain.FinishToolCalls
	case "length":
		return domain.FinishLength
	default:
		return domain.FinishStop
	}
}

func (o *OpenAI) streamResponse(ctx context.Context, body io.ReadCloser, events chan<- domain.StreamEvent) {
	defer close(events)
	defer body.Close()

	out := emitter{ctx: ctx, events: events}
	pending := make(map[int]*pendingCall)
	var finish domain.FinishReason
	var streamErr error

	// Arguments arrive as string fragments and are only valid JSON once
	// the call is complete.
	flush := func() bool {
		indexes := make([]int, 0, len(pending))
		for idx := range pending {
			indexes = append(indexes, idx)
		}
		sort.Ints(indexes)
		for _, idx := range indexes {
			call := pending[idx]
			if !out.toolCall(llm.ToolCall(call.id, call.name, []byte(call.args.String()))) {
				return false
			}
		}
		pending = make(map[int]*pendingCall)
		return true
	}

	scanErr := scanSSE(body, func(data string) bool {
		if data == "[DONE]" {
			return false
		}

		var chunk openaiStreamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return true
		}
		if chunk.Error != nil {
			streamErr = fmt.Errorf("%s stream error: %s", o.name, chunk.Error.Message)
			return false
		}

		for _, choice := range chunk.Choices {
			if !out.text(choice.Delta.Content) {
				return false
			}

			for _, tc := range choice.Delta.ToolCalls {
				call, ok := pending[tc.Index]
				if !ok {
					call = &pendingCall{}
					pending[tc.Index] = call
				}
				if tc.ID != "" {
					call.id = tc.ID
				}
				if tc.Function.Name != "" {
					call.name = tc.Function.Name
				}
				call.args.WriteString(tc.Function.Arguments)
			}

			if choice.FinishReason != nil && *choice.FinishReason != "" {
				finish = openaiFinish(*choice.FinishReason)
				if !flush() {
					return false
				}
			}
		}

		if chunk.Usage != nil {
			if !out.usage(chunk.Usage.PromptTokens, chunk.Usage.CompletionTokens) {
				return false
			}
		}
		return true
	})

	if streamErr != nil {
		out.fail(streamErr)
		return
	}
	if ctx.Err() != nil {
		return
	}
	if scanErr == nil && len(pending) > 0 {
		finish = domain.FinishToolCalls
		if !flush() {
			return
		}
	}
	out.finish(scanErr, finish)
}

func argsOrEmpty(args map[string]any) map[string]any {
	if args == nil {
		return map[string]any{}
	}
	return args
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}

var _ llm.Provider = (*OpenAI)(nil)
