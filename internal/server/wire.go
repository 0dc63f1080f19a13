package server

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/joss/navigator/internal/domain"
)

// chatRequest is the body posted by the web client's chat hook.
type chatRequest struct {
	Messages         []uiMessage          `json:"messages"`
	CurrentMedia     *domain.MediaContext `json:"currentMedia,omitempty"`
	CurrentTimestamp *float64             `json:"currentTimestamp,omitempty"`
	AIProvider       string               `json:"aiProvider,omitempty"`
	BaseURL          string               `json:"baseUrl,omitempty"`
	Model            string               `json:"model,omitempty"`
	APIKey           string               `json:"apiKey,omitempty"`
}

type uiMessage struct {
	ID              string           `json:"id"`
	Role            string           `json:"role"`
	Content         string           `json:"content"`
	CreatedAt       *time.Time       `json:"createdAt,omitempty"`
	Parts           []uiPart         `json:"parts,omitempty"`
	ToolInvocations []toolInvocation `json:"toolInvocations,omitempty"`
}

type uiPart struct {
	Type           string          `json:"type"`
	Text           string          `json:"text,omitempty"`
	ToolInvocation *toolInvocation `json:"toolInvocation,omitempty"`
}

type toolInvocation struct {
	State      string          `json:"state"`
	ToolCallID string          `json:"toolCallId"`
	ToolName   string          `json:"toolName"`
	Args       map[string]any  `json:"args"`
	Result     json.RawMessage `json:"result,omitempty"`
}

func (r chatRequest) session() domain.SessionContext {
	return domain.SessionContext{CurrentMedia: r.CurrentMedia, CurrentTimestamp: r.CurrentTimestamp}
}

func (r chatRequest) selection() domain.ProviderSelection {
	return domain.ProviderSelection{
		Provider: r.AIProvider,
		BaseURL:  r.BaseURL,
		Model:    r.Model,
		APIKey:   r.APIKey,
	}
}

// text prefers the parts list and falls back to the flat content field.
func (m uiMessage) text() string {
	var sb strings.Builder
	for _, p := range m.Parts {
		if p.Type == "text" {
			sb.WriteString(p.Text)
		}
	}
	if sb.Len() == 0 {
		return m.Content
	}
	return sb.String()
}

func (m uiMessage) invocations() []toolInvocation {
	if len(m.ToolInvocations) > 0 {
		return m.ToolInvocations
	}
	var out []toolInvocation
	for _, p := range m.Parts {
		if p.Type == "tool-invocation" && p.ToolInvocation != nil {
			out = append(out, *p.ToolInvocation)
		}
	}
	return out
}

// domainMessages converts the echoed history. Client-side system messages
// are dropped since the server owns the system prompt, and tool calls that
// never got a result are left out so every call in history is answered.
func domainMessages(in []uiMessage) []domain.Message {
	out := make([]domain.Message, 0, len(in))
	for _, m := range in {
		ts := time.Now()
		if m.CreatedAt != nil {
			ts = *m.CreatedAt
		}

		switch m.Role {
		case "user":
			if text := m.text(); text != "" {
				out = append(out, domain.Message{
					ID: m.ID, Role: domain.RoleUser, Timestamp: ts,
					Parts: []domain.Part{domain.TextPart{Text: text}},
				})
			}

		case "assistant":
			var calls, results []domain.Part
			for _, inv := range m.invocations() {
				if inv.State != "result" || len(inv.Result) == 0 {
					continue
				}
				call := domain.ToolCallPart{ToolID: inv.ToolCallID, Name: inv.ToolName, Args: inv.Args}
				calls = append(calls, call)
				call.Result = string(inv.Result)
				results = append(results, call)
			}

			parts := calls
			if text := m.text(); text != "" {
				parts = append([]domain.Part{domain.TextPart{Text: text}}, calls...)
			}
			if len(parts) == 0 {
				continue
			}
			out = append(out, domain.Message{ID: m.ID, Role: domain.RoleAssistant, Parts: parts, Timestamp: ts})
			if len(results) > 0 {
				out = append(out, domain.Message{ID: m.ID + "-tools", Role: domain.RoleTool, Parts: results, Timestamp: ts})
			}
		}
	}
	return out
}
