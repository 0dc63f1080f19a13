package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/joss/navigator/internal/domain"
	"github.com/joss/navigator/pkg/llm"
)

const (
	anthropicAPIURL  = "https://api.anthropic.com/v1/messages"
	anthropicVersion = "2023-06-01"
)

type Anthropic struct {
	apiKey  string
	baseURL string
	client  HTTPClient
}

func NewAnthropic(apiKey, baseURL string, client HTTPClient) *Anthropic {
	if baseURL == "" {
		baseURL = anthropicAPIURL
	} else if !strings.HasSuffix(strings.TrimRight(baseURL, "/"), "/messages") {
		baseURL = strings.TrimRight(baseURL, "/")
		if !strings.HasSuffix(baseURL, "/v1") {
			baseURL += "/v1"
		}
		baseURL += "/messages"
	}
	return &Anthropic{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  client,
	}
}

func (a *Anthropic) ID() string   { return string(ProviderAnthropic) }
func (a *Anthropic) Name() string { return "Anthropic" }

func (a *Anthropic) Models() []domain.Model {
	return []domain.Model{
		{ID: "claude-sonnet-4-20250514", Name: "Claude Sonnet 4", ContextSize: 200000},
		{ID: "claude-3-5-haiku-20241022", Name: "Claude 3.5 Haiku", ContextSize: 200000},
	}
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	Tools       []anthropicTool    `json:"tools,omitempty"`
	Stream      bool               `json:"stream"`
	Temperature float64            `json:"temperature,omitempty"`
}

type anthropicMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
}

type anthropicTool struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	InputSchema domain.JSONSchema `json:"input_schema"`
}

type anthropicStreamEvent struct {
	Type         string          `json:"type"`
	Index        int             `json:"index"`
	Delta        json.RawMessage `json:"delta,omitempty"`
	ContentBlock *struct {
		Type string `json:"type"`
		ID   string `json:"id,omitempty"`
		Name string `json:"name,omitempty"`
	} `json:"content_block,omitempty"`
	Message *struct {
		Usage *anthropicUsage `json:"usage,omitempty"`
	} `json:"message,omitempty"`
	Usage *anthropicUsage `json:"usage,omitempty"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// anthropicMessages converts history. Tool results travel in user turns and
// consecutive turns with the same role are merged.
func anthropicMessages(req *llm.ChatRequest) []anthropicMessage {
	msgs := make([]anthropicMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		if m.Role == domain.RoleSystem {
			continue
		}

		role := "user"
		if m.Role == domain.RoleAssistant {
			role = "assistant"
		}

		var content []contentPart
		for _, p := range m.Parts {
			switch part := p.(type) {
			case domain.TextPart:
				if part.Text != "" {
					content = append(content, contentPart{Type: "text", Text: part.Text})
				}
			case domain.ToolCallPart:
				if m.Role == domain.RoleAssistant {
					content = append(content, contentPart{
						Type:  "tool_use",
						ID:    part.ToolID,
						Name:  part.Name,
						Input: json.RawMessage(mustJSON(argsOrEmpty(part.Args))),
					})
				} else {
					content = append(content, contentPart{
						Type:      "tool_result",
						ToolUseID: part.ToolID,
						Content:   toolResultContent(part),
						IsError:   part.Error != "",
					})
				}
			}
		}
		if len(content) == 0 {
			continue
		}

		if n := len(msgs); n > 0 && msgs[n-1].Role == role {
			msgs[n-1].Content = append(msgs[n-1].Content, content...)
			continue
		}
		msgs = append(msgs, anthropicMessage{Role: role, Content: content})
	}
	return msgs
}

func (a *Anthropic) Chat(ctx context.Context, req *llm.ChatRequest) (<-chan domain.StreamEvent, error) {
	var tools []anthropicTool
	for _, t := range req.Tools {
		tools = append(tools, anthropicTool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.Parameters,
		})
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	body := anthropicRequest{
		Model:       req.Model,
		MaxTokens:   maxTokens,
		System:      req.SystemPrompt,
		Messages:    anthropicMessages(req),
		Tools:       tools,
		Stream:      true,
		Temperature: req.Temperature,
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", a.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, readAPIError("Anthropic", resp)
	}

	events := make(chan domain.StreamEvent, 100)
	go a.streamResponse(ctx, resp.Body, events)
	return events, nil
}

func anthropicFinish(reason string) domain.FinishReason {
	switch reason {
	case "tool_use":
		return domain.FinishToolCalls
	case "max_tokens":
		return domain.FinishLength
	default:
		return domain.FinishStop
	}
}

func (a *Anthropic) streamResponse(ctx context.Context, body io.ReadCloser, events chan<- domain.StreamEvent) {
	defer close(events)
	defer body.Close()

	out := emitter{ctx: ctx, events: events}

	var currentToolID, currentToolName string
	var toolInput bytes.Buffer
	var usage anthropicUsage
	var finish domain.FinishReason
	var streamErr error
	stopped := false

	scanErr := scanSSE(body, func(data string) bool {
		var event anthropicStreamEvent
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			return true
		}

		switch event.Type {
		case "message_start":
			if event.Message != nil && event.Message.Usage != nil {
				usage.InputTokens = event.Message.Usage.InputTokens
			}

		case "content_block_start":
			if event.ContentBlock != nil && event.ContentBlock.Type == "tool_use" {
				currentToolID = event.ContentBlock.ID
				currentToolName = event.ContentBlock.Name
				toolInput.Reset()
			}

		case "content_block_delta":
			var delta struct {
				Type        string `json:"type"`
				Text        string `json:"text"`
				PartialJSON string `json:"partial_json"`
			}
			if err := json.Unmarshal(event.Delta, &delta); err != nil {
				return true
			}
			switch delta.Type {
			case "text_delta":
				return out.text(delta.Text)
			case "input_json_delta":
				toolInput.WriteString(delta.PartialJSON)
			}

		case "content_block_stop":
			if currentToolID == "" {
				return true
			}
			part := llm.ToolCall(currentToolID, currentToolName, toolInput.Bytes())
			currentToolID, currentToolName = "", ""
			return out.toolCall(part)

		case "message_delta":
			var delta struct {
				StopReason string `json:"stop_reason"`
			}
			if err := json.Unmarshal(event.Delta, &delta); err == nil && delta.StopReason != "" {
				finish = anthropicFinish(delta.StopReason)
			}
			if event.Usage != nil {
				usage.OutputTokens = event.Usage.OutputTokens
			}

		case "message_stop":
			stopped = true
			return false

		case "error":
			msg := "unknown error"
			if event.Error != nil {
				msg = event.Error.Message
			}
			streamErr = fmt.Errorf("Anthropic stream error: %s", msg)
			return false
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
	if stopped && (usage.InputTokens > 0 || usage.OutputTokens > 0) {
		if !out.usage(usage.InputTokens, usage.OutputTokens) {
			return
		}
	}
	out.finish(scanErr, finish)
}

var _ llm.Provider = (*Anthropic)(nil)
