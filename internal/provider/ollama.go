package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/ollama/ollama/api"

	"github.com/joss/navigator/internal/domain"
	"github.com/joss/navigator/pkg/llm"
)

const ollamaDefaultHost = "http://localhost:11434"

// Ollama runs models on a local Ollama server. It needs no credential.
type Ollama struct {
	client *api.Client
	host   string
}

func NewOllama(host string, httpClient *http.Client) (*Ollama, error) {
	if host == "" {
		host = ollamaDefaultHost
	}
	if !strings.Contains(host, "://") {
		host = "http://" + host
	}
	base, err := url.Parse(strings.TrimRight(host, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse ollama host %q: %w", host, err)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Ollama{client: api.NewClient(base, httpClient), host: base.String()}, nil
}

func (o *Ollama) ID() string   { return string(ProviderOllama) }
func (o *Ollama) Name() string { return "Ollama" }

func (o *Ollama) Models() []domain.Model {
	return []domain.Model{
		{ID: "llama3.1", Name: "Llama 3.1", ContextSize: 128000},
		{ID: "qwen2.5", Name: "Qwen 2.5", ContextSize: 32000},
	}
}

// The ollama api types move between releases, so requests are built from
// their JSON form.
type ollamaMessage struct {
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	ToolCalls []ollamaToolCall `json:"tool_calls,omitempty"`
	ToolName  string           `json:"tool_name,omitempty"`
}

type ollamaToolCall struct {
	ID       string `json:"id,omitempty"`
	Function struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	} `json:"function"`
}

func ollamaMessages(req *llm.ChatRequest) []ollamaMessage {
	msgs := make([]ollamaMessage, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		msgs = append(msgs, ollamaMessage{Role: "system", Content: req.SystemPrompt})
	}
	for _, m := range req.Messages {
		switch m.Role {
		case domain.RoleSystem:
			continue
		case domain.RoleTool:
			for _, call := range m.ToolCalls() {
				msgs = append(msgs, ollamaMessage{Role: "tool", Content: toolResultContent(call), ToolName: call.Name})
			}
			continue
		}

		msg := ollamaMessage{Role: string(m.Role), Content: m.Text()}
		if m.Role == domain.RoleAssistant {
			for _, call := range m.ToolCalls() {
				var tc ollamaToolCall
				tc.ID = call.ToolID
				tc.Function.Name = call.Name
				tc.Function.Arguments = argsOrEmpty(call.Args)
				msg.ToolCalls = append(msg.ToolCalls, tc)
			}
		}
		msgs = append(msgs, msg)
	}
	return msgs
}

func ollamaTools(tools []domain.Tool) []map[string]any {
	out := make([]map[string]any, 0, len(tools))
	for _, t := range tools {
		out = append(out, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        t.Name,
				"description": t.Description,
				"parameters":  t.Parameters,
			},
		})
	}
	return out
}

// convert moves v into the api type out through JSON.
func convert(v, out any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func (o *Ollama) buildRequest(req *llm.ChatRequest) (*api.ChatRequest, error) {
	var messages []api.Message
	if err := convert(ollamaMessages(req), &messages); err != nil {
		return nil, fmt.Errorf("convert messages: %w", err)
	}

	stream := true
	chatReq := &api.ChatRequest{
		Model:    req.Model,
		Messages: messages,
		Stream:   &stream,
		Options:  map[string]any{},
	}
	if len(req.Tools) > 0 {
		var tools api.Tools
		if err := convert(ollamaTools(req.Tools), &tools); err != nil {
			return nil, fmt.Errorf("convert tools: %w", err)
		}
		chatReq.Tools = tools
	}
	if req.MaxTokens > 0 {
		chatReq.Options["num_predict"] = req.MaxTokens
	}
	if req.Temperature > 0 {
		chatReq.Options["temperature"] = req.Temperature
	}
	return chatReq, nil
}

func (o *Ollama) Chat(ctx context.Context, req *llm.ChatRequest) (<-chan domain.StreamEvent, error) {
	chatReq, err := o.buildRequest(req)
	if err != nil {
		return nil, err
	}
	// Fail before streaming when the server is down.
	if err := o.client.Heartbeat(ctx); err != nil {
		return nil, fmt.Errorf("ollama at %s is not reachable: %w", o.host, err)
	}

	events := make(chan domain.StreamEvent, 100)
	go o.stream(ctx, chatReq, events)
	return events, nil
}

func (o *Ollama) stream(ctx context.Context, chatReq *api.ChatRequest, events chan<- domain.StreamEvent) {
	defer close(events)
	out := emitter{ctx: ctx, events: events}

	var finish domain.FinishReason
	var usageIn, usageOut int
	sawCall := false

	err := o.client.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
		if !out.text(resp.Message.Content) {
			return ctx.Err()
		}

		for _, raw := range resp.Message.ToolCalls {
			var tc ollamaToolCall
			if err := convert(raw, &tc); err != nil {
				return fmt.Errorf("decode tool call: %w", err)
			}
			id := tc.ID
			if id == "" {
				id = "call_" + ulid.Make().String()
			}
			sawCall = true
			if !out.toolCall(domain.ToolCallPart{ToolID: id, Name: tc.Function.Name, Args: tc.Function.Arguments}) {
				return ctx.Err()
			}
		}

		if resp.Done {
			usageIn, usageOut = resp.PromptEvalCount, resp.EvalCount
			if resp.DoneReason == "length" {
				finish = domain.FinishLength
			}
		}
		return nil
	})

	if ctx.Err() != nil {
		return
	}
	if err != nil {
		out.fail(fmt.Errorf("ollama chat: %w", err))
		return
	}
	if sawCall && finish == "" {
		finish = domain.FinishToolCalls
	}
	if usageIn > 0 || usageOut > 0 {
		if !out.usage(usageIn, usageOut) {
			return
		}
	}
	out.finish(nil, finish)
}

var _ llm.Provider = (*Ollama)(nil)
