package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/joss/navigator/internal/domain"
	"github.com/joss/navigator/pkg/llm"
)

const googleAPIURL = "https://generativelanguage.googleapis.com/v1beta/models"

type Google struct {
	apiKey  string
	baseURL string
	client  HTTPClient
}

func NewGoogle(apiKey, baseURL string, client HTTPClient) *Google {
	if baseURL == "" {
		baseURL = googleAPIURL
	}
	return &Google{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

func (g *Google) ID() string   { return string(ProviderGoogle) }
func (g *Google) Name() string { return "Google" }

func (g *Google) Models() []domain.Model {
	return []domain.Model{
		{ID: "gemini-2.0-flash", Name: "Gemini 2.0 Flash", ContextSize: 1000000},
		{ID: "gemini-2.5-flash", Name: "Gemini 2.5 Flash", ContextSize: 1000000},
		{ID: "gemini-2.5-pro", Name: "Gemini 2.5 Pro", ContextSize: 1000000},
	}
}

type googleRequest struct {
	Contents          []googleContent  `json:"contents"`
	SystemInstruction *googleContent   `json:"systemInstruction,omitempty"`
	Tools             []googleToolDef  `json:"tools,omitempty"`
	GenerationConfig  *googleGenConfig `json:"generationConfig,omitempty"`
}

type googleContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []googlePart `json:"parts"`
}

type googlePart struct {
	Text             string              `json:"text,omitempty"`
	FunctionCall     *googleFunctionCall `json:"functionCall,omitempty"`
	FunctionResponse *googleFunctionResp `json:"functionResponse,omitempty"`
}

type googleFunctionCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

type googleFunctionResp struct {
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

type googleToolDef struct {
	FunctionDeclarations []googleFuncDecl `json:"functionDeclarations"`
}

type googleFuncDecl struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Parameters  domain.JSONSchema `json:"parameters,omitempty"`
}

type googleGenConfig struct {
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
	Temperature     float64 `json:"temperature,omitempty"`
}

// geminiSchema drops JSON Schema keywords the Gemini API rejects.
func geminiSchema(schema map[string]any) map[string]any {
	if schema == nil {
		return nil
	}
	out := make(map[string]any, len(schema))
	for k, v := range schema {
		switch k {
		case "additionalProperties", "$schema":
			continue
		case "properties":
			if props, ok := v.(map[string]any); ok {
				cleaned := make(map[string]any, len(props))
				for name, p := range props {
					if pm, ok := p.(map[string]any); ok {
						cleaned[name] = geminiSchema(pm)
					} else {
						cleaned[name] = p
					}
				}
				v = cleaned
			}
		}
		out[k] = v
	}
	return out
}

// functionResponse wraps a JSON tool result as the object Gemini expects.
func functionResponse(call domain.ToolCallPart) map[string]any {
	var obj map[string]any
	if err := json.Unmarshal([]byte(toolResultContent(call)), &obj); err == nil && obj != nil {
		return obj
	}
	return map[string]any{"result": toolResultContent(call)}
}

func googleContents(req *llm.ChatRequest) []googleContent {
	var contents []googleContent
	for _, m := range req.Messages {
		if m.Role == domain.RoleSystem {
			continue
		}
		role := "user"
		if m.Role == domain.RoleAssistant {
			role = "model"
		}

		var parts []googlePart
		for _, p := range m.Parts {
			switch part := p.(type) {
			case domain.TextPart:
				if part.Text != "" {
					parts = append(parts, googlePart{Text: part.Text})
				}
			case domain.ToolCallPart:
				if m.Role == domain.RoleAssistant {
					parts = append(parts, googlePart{
						FunctionCall: &googleFunctionCall{Name: part.Name, Args: argsOrEmpty(part.Args)},
					})
				} else {
					parts = append(parts, googlePart{
						FunctionResponse: &googleFunctionResp{Name: part.Name, Response: functionResponse(part)},
					})
				}
			}
		}
		if len(parts) == 0 {
			continue
		}
		if n := len(contents); n > 0 && contents[n-1].Role == role {
			contents[n-1].Parts = append(contents[n-1].Parts, parts...)
			continue
		}
		contents = append(contents, googleContent{Role: role, Parts: parts})
	}
	return contents
}

func (g *Google) Chat(ctx context.Context, req *llm.ChatRequest) (<-chan domain.StreamEvent, error) {
	body := googleRequest{
		Contents: googleContents(req),
		GenerationConfig: &googleGenConfig{
			MaxOutputTokens: req.MaxTokens,
			Temperature:     req.Temperature,
		},
	}
	if req.SystemPrompt != "" {
		body.SystemInstruction = &googleContent{Parts: []googlePart{{Text: req.SystemPrompt}}}
	}
	if len(req.Tools) > 0 {
		funcs := make([]googleFuncDecl, 0, len(req.Tools))
		for _, t := range req.Tools {
			funcs = append(funcs, googleFuncDecl{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  geminiSchema(t.Parameters),
			})
		}
		body.Tools = []googleToolDef{{FunctionDeclarations: funcs}}
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s:streamGenerateContent?alt=sse", g.baseURL, req.Model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, readAPIError("Google", resp)
	}

	events := make(chan domain.StreamEvent, 100)
	go g.streamResponse(ctx, resp.Body, events)
	return events, nil
}

type googleStreamResponse struct {
	Candidates []struct {
		Content struct {
			Parts []googlePart `json:"parts"`
			Role  string       `json:"role"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata *googleUsage `json:"usageMetadata,omitempty"`
}

type googleUsage struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

func (g *Google) streamResponse(ctx context.Context, body io.ReadCloser, events chan<- domain.StreamEvent) {
	defer close(events)
	defer body.Close()

	out := emitter{ctx: ctx, events: events}
	var usage *googleUsage
	var finish domain.FinishReason
	sawCall := false

	scanErr := scanSSE(body, func(data string) bool {
		var resp googleStreamResponse
		if err := json.Unmarshal([]byte(data), &resp); err != nil {
			return true
		}
		// usage is cumulative; keep the last one
		if resp.UsageMetadata != nil {
			usage = resp.UsageMetadata
		}

		for _, candidate := range resp.Candidates {
			for _, part := range candidate.Content.Parts {
				if !out.text(part.Text) {
					return false
				}
				if part.FunctionCall != nil {
					sawCall = true
					// Gemini does not assign call ids.
					if !out.toolCall(domain.ToolCallPart{
						ToolID: "call_" + ulid.Make().String(),
						Name:   part.FunctionCall.Name,
						Args:   part.FunctionCall.Args,
					}) {
						return false
					}
				}
			}

			switch candidate.FinishReason {
			case "":
			case "MAX_TOKENS":
				finish = domain.FinishLength
			default:
				finish = domain.FinishStop
			}
		}
		return true
	})

	if ctx.Err() != nil {
		return
	}
	if sawCall && finish != domain.FinishLength {
		finish = domain.FinishToolCalls
	}
	if scanErr == nil && usage != nil {
		if !out.usage(usage.PromptTokenCount, usage.CandidatesTokenCount) {
			return
		}
	}
	out.finish(scanErr, finish)
}

var _ llm.Provider = (*Google)(nil)
