package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/joss/navigator/internal/domain"
)

// ErrEmptyResponse is returned when a stream ends without any text.
var ErrEmptyResponse = errors.New("model returned an empty response")

// Collect sends req and drains the stream into a single string. Tool calls
// in the stream are ignored.
func Collect(ctx context.Context, p Provider, req *ChatRequest) (string, error) {
	events, err := p.Chat(ctx, req)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	var streamErr error
	for event := range events {
		switch event.Type {
		case domain.StreamEventText:
			sb.WriteString(event.Content)
		case domain.StreamEventError:
			if streamErr == nil {
				streamErr = event.Error
			}
		}
	}
	if streamErr != nil {
		return "", streamErr
	}

	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// Completer runs single-shot, tool-free prompts against a provider. It is
// used for the secondary model calls made by tools.
type Completer struct {
	Provider    Provider
	Model       string
	MaxTokens   int
	Temperature float64
}

// Complete sends one user prompt with the given system instruction.
func (c Completer) Complete(ctx context.Context, system, prompt string) (string, error) {
	maxTokens := c.MaxTokens
	if maxTokens == 0 {
		maxTokens = 512
	}
	return Collect(ctx, c.Provider, &ChatRequest{
		Model:        c.Model,
		SystemPrompt: system,
		MaxTokens:    maxTokens,
		Temperature:  c.Temperature,
		Messages: []domain.Message{{
			ID:        ulid.Make().String(),
			Role:      domain.RoleUser,
			Parts:     []domain.Part{domain.TextPart{Text: prompt}},
			Timestamp: time.Now(),
		}},
	})
}
