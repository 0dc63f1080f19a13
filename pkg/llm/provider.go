package llm

import (
	"context"

	"github.com/joss/navigator/internal/domain"
)

// Provider is the interface all LLM providers must implement
type Provider interface {
	ID() string
	Name() string
	Models() []domain.Model

	// Chat sends messages and returns a streaming response
	Chat(ctx context.Context, req *ChatRequest) (<-chan domain.StreamEvent, error)
}

// ChatRequest represents a request to the LLM
type ChatRequest struct {
	Model        string
	Messages     []domain.Message
	Tools        []domain.Tool
	MaxTokens    int
	Temperature  float64
	SystemPrompt string
}
