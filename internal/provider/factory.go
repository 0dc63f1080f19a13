// Package provider builds the LLM provider for a chat request.
package provider

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/joss/navigator/internal/domain"
	"github.com/joss/navigator/pkg/llm"
)

// ProviderType identifies supported LLM providers.
type ProviderType string

const (
	ProviderOpenAI     ProviderType = "openai"
	ProviderOpenRouter ProviderType = "openrouter"
	ProviderAnthropic  ProviderType = "anthropic"
	ProviderGoogle     ProviderType = "google"
	ProviderOllama     ProviderType = "ollama"
)

// Types lists the providers in display order.
var Types = []ProviderType{ProviderOpenAI, ProviderOpenRouter, ProviderAnthropic, ProviderGoogle, ProviderOllama}

// ErrUnknownProvider is returned for provider names the factory cannot build.
var ErrUnknownProvider = errors.New("unknown provider")

// MissingCredentialError reports a hosted provider selected without a key.
// It names where the key can come from, never the key itself.
type MissingCredentialError struct {
	Provider ProviderType
	Setting  string
}

func (e *MissingCredentialError) Error() string {
	return fmt.Sprintf("%s is not configured: set %s or supply apiKey in the request", e.Provider, e.Setting)
}

// CredentialEnv is the environment variable holding the server-side key.
func CredentialEnv(pt ProviderType) string {
	switch pt {
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	case ProviderOpenRouter:
		return "OPENROUTER_API_KEY"
	case ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	case ProviderGoogle:
		return "GOOGLE_API_KEY"
	}
	return ""
}

// ParseType maps a provider name or alias to its type.
func ParseType(id string) (ProviderType, error) {
	switch strings.ToLower(strings.TrimSpace(id)) {
	case "openai", "gpt":
		return ProviderOpenAI, nil
	case "openrouter":
		return ProviderOpenRouter, nil
	case "anthropic", "claude":
		return ProviderAnthropic, nil
	case "google", "gemini":
		return ProviderGoogle, nil
	case "ollama", "local":
		return ProviderOllama, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownProvider, id)
}

// Config holds provider configuration.
type Config struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

// ConfigOption modifies provider configuration.
type ConfigOption func(*Config)

// WithAPIKey sets the API key.
func WithAPIKey(key string) ConfigOption {
	return func(c *Config) { c.APIKey = key }
}

// WithBaseURL sets the base URL.
func WithBaseURL(url string) ConfigOption {
	return func(c *Config) { c.BaseURL = url }
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(client *http.Client) ConfigOption {
	return func(c *Config) { c.HTTPClient = client }
}

// Defaults are the server-side settings of one provider.
type Defaults struct {
	APIKey  string
	BaseURL string
	Model   string
}

// ProviderBuilder constructs a provider from config.
type ProviderBuilder func(cfg Config) (llm.Provider, error)

// Factory creates a fresh provider per call. Nothing is cached, so request
// credentials never leak into later requests.
type Factory struct {
	builders    map[ProviderType]ProviderBuilder
	defaults    map[ProviderType]Defaults
	defaultType ProviderType
	httpClient  *http.Client
}

// NewFactory creates a factory with the built-in providers.
func NewFactory(defaultType ProviderType, defaults map[ProviderType]Defaults) *Factory {
	if defaultType == "" {
		defaultType = ProviderOpenAI
	}
	if defaults == nil {
		defaults = map[ProviderType]Defaults{}
	}
	f := &Factory{
		builders:    make(map[ProviderType]ProviderBuilder),
		defaults:    defaults,
		defaultType: defaultType,
		httpClient:  &http.Client{Timeout: 5 * time.Minute},
	}
	f.RegisterDefaults()
	return f
}

// RegisterDefaults registers the built-in provider builders.
func (f *Factory) RegisterDefaults() {
	f.Register(ProviderOpenAI, func(cfg Config) (llm.Provider, error) {
		return NewOpenAI(cfg.APIKey, cfg.BaseURL, cfg.HTTPClient), nil
	})
	f.Register(ProviderOpenRouter, func(cfg Config) (llm.Provider, error) {
		return NewOpenRouter(cfg.APIKey, cfg.BaseURL, cfg.HTTPClient), nil
	})
	f.Register(ProviderAnthropic, func(cfg Config) (llm.Provider, error) {
		return NewAnthropic(cfg.APIKey, cfg.BaseURL, cfg.HTTPClient), nil
	})
	f.Register(ProviderGoogle, func(cfg Config) (llm.Provider, error) {
		return NewGoogle(cfg.APIKey, cfg.BaseURL, cfg.HTTPClient), nil
	})
	f.Register(ProviderOllama, func(cfg Config) (llm.Provider, error) {
		return NewOllama(cfg.BaseURL, cfg.HTTPClient)
	})
}

// Register adds a provider builder. Allows extension with custom providers.
func (f *Factory) Register(pt ProviderType, builder ProviderBuilder) {
	f.builders[pt] = builder
}

// DefaultType is the provider used when a request names none.
func (f *Factory) DefaultType() ProviderType { return f.defaultType }

// DefaultModel is the model used for pt when a request names none.
func (f *Factory) DefaultModel(pt ProviderType) string {
	if m := f.defaults[pt].Model; m != "" {
		return m
	}
	switch pt {
	case ProviderOpenAI:
		return "gpt-4o-mini"
	case ProviderOpenRouter:
		return "openai/gpt-4o-mini"
	case ProviderAnthropic:
		return "claude-sonnet-4-20250514"
	case ProviderGoogle:
		return "gemini-2.0-flash"
	case ProviderOllama:
		return "llama3.1"
	}
	return ""
}

// Create builds a provider. Options override the server defaults.
func (f *Factory) Create(pt ProviderType, opts ...ConfigOption) (llm.Provider, error) {
	builder, ok := f.builders[pt]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, pt)
	}

	cfg := Config{HTTPClient: f.httpClient}
	for _, opt := range opts {
		opt(&cfg)
	}

	def := f.defaults[pt]
	if cfg.APIKey == "" {
		cfg.APIKey = def.APIKey
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.APIKey == "" && pt != ProviderOllama {
		return nil, &MissingCredentialError{Provider: pt, Setting: CredentialEnv(pt)}
	}

	return builder(cfg)
}

// Resolved is the provider and model chosen for one request.
type Resolved struct {
	Type     ProviderType
	Model    string
	Provider llm.Provider
}

// Resolve builds the provider a request asked for, falling back to the
// server defaults for anything it left out.
func (f *Factory) Resolve(sel domain.ProviderSelection) (*Resolved, error) {
	pt := f.defaultType
	if sel.Provider != "" {
		var err error
		if pt, err = ParseType(sel.Provider); err != nil {
			return nil, err
		}
	}

	p, err := f.Create(pt, WithAPIKey(sel.APIKey), WithBaseURL(sel.BaseURL))
	if err != nil {
		return nil, err
	}

	model := sel.Model
	if model == "" {
		model = f.DefaultModel(pt)
	}
	return &Resolved{Type: pt, Model: model, Provider: p}, nil
}
