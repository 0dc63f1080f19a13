package domain

// Tool describes a capability the model can invoke
type Tool struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Parameters  JSONSchema `json:"parameters"`
}

type JSONSchema map[string]any

// Model describes a model offered by a provider
type Model struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ContextSize int    `json:"contextSize,omitempty"`
}
