// Package chat binds one chat request to its provider, library and tools
// and starts the orchestrator. The HTTP server and the CLI both use it.
package chat

import (
	"context"
	"errors"
	"time"

	"github.com/joss/navigator/internal/agent"
	"github.com/joss/navigator/internal/audit"
	"github.com/joss/navigator/internal/domain"
	"github.com/joss/navigator/internal/logging"
	"github.com/joss/navigator/internal/media"
	"github.com/joss/navigator/internal/metrics"
	"github.com/joss/navigator/internal/prompt"
	"github.com/joss/navigator/internal/provider"
	"github.com/joss/navigator/internal/subtitle"
	"github.com/joss/navigator/internal/tool"
	"github.com/joss/navigator/pkg/llm"
)

// ErrUnauthorized is returned when a request carries no Jellyfin session.
var ErrUnauthorized = errors.New("Unauthorized: missing Jellyfin session")

// ErrEmptyConversation is returned for requests without messages.
var ErrEmptyConversation = errors.New("conversation has no messages")

// ProviderResolver picks the model backend for a request.
type ProviderResolver interface {
	Resolve(sel domain.ProviderSelection) (*provider.Resolved, error)
}

// LibraryFunc returns the media library as seen by one user.
type LibraryFunc func(auth media.Auth) media.Library

// JellyfinLibraries adapts a shared client to a LibraryFunc.
func JellyfinLibraries(c *media.Client) LibraryFunc {
	return func(auth media.Auth) media.Library { return c.ForUser(auth) }
}

// Settings are the tunables copied from configuration.
type Settings struct {
	MaxSteps        int
	MaxTokens       int
	Temperature     float64
	ToolParallelism int
	ToolTimeout     time.Duration
	ResultLimit     int
	Subtitle        subtitle.Options
}

// Request is everything a single chat turn needs. Nothing in it outlives
// the request.
type Request struct {
	ID        string
	Auth      media.Auth
	Messages  []domain.Message
	Session   domain.SessionContext
	Selection domain.ProviderSelection
}

// Service starts chat runs.
type Service struct {
	providers ProviderResolver
	libraries LibraryFunc
	prompts   *prompt.Builder
	settings  Settings

	metrics *metrics.Metrics
	audit   audit.Recorder
	log     *logging.Logger
}

// Option configures a Service.
type Option func(*Service)

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithAudit(r audit.Recorder) Option {
	return func(s *Service) { s.audit = r }
}

func New(providers ProviderResolver, libraries LibraryFunc, prompts *prompt.Builder, settings Settings, opts ...Option) *Service {
	if prompts == nil {
		prompts = prompt.NewBuilder(prompt.DefaultAliases())
	}
	s := &Service{
		providers: providers,
		libraries: libraries,
		prompts:   prompts,
		settings:  settings,
		log:       logging.New("chat"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Tools returns the tool catalog definitions. They do not depend on the
// user, so no library is bound.
func (s *Service) Tools() []domain.Tool {
	return tool.NewCatalog(tool.CatalogDeps{}, domain.SessionContext{}).All()
}

// SystemPrompt returns the prompt a request with session would get.
func (s *Service) SystemPrompt(session domain.SessionContext) string {
	return s.prompts.Build(session)
}

// Start validates req, binds its collaborators and starts the loop.
// Errors returned here happen before any output was produced; the caller
// maps them to a status code.
func (s *Service) Start(ctx context.Context, req Request) (<-chan domain.StreamEvent, error) {
	start := time.Now()
	if req.Auth.Token == "" || req.Auth.UserID == "" {
		return nil, ErrUnauthorized
	}
	if len(req.Messages) == 0 {
		return nil, ErrEmptyConversation
	}

	resolved, err := s.providers.Resolve(req.Selection)
	if err != nil {
		s.recordChat(false, start)
		return nil, err
	}

	log := s.log.With("request_id", req.ID)
	log.Info("chat_start", map[string]any{
		"provider": resolved.Type,
		"model":    resolved.Model,
		"messages": len(req.Messages),
		"playing":  req.Session.Playing(),
	})

	completer := llm.Completer{Provider: resolved.Provider, Model: resolved.Model}
	registry := tool.NewCatalog(tool.CatalogDeps{
		Library:  s.libraries(req.Auth),
		Resolver: subtitle.NewResolver(completer, s.settings.Subtitle),
		Limit:    s.settings.ResultLimit,
	}, req.Session)

	opts := []agent.Option{agent.WithLogger(logging.New("agent"))}
	if s.metrics != nil {
		opts = append(opts, agent.WithMetrics(s.metrics))
	}
	if s.audit != nil {
		opts = append(opts, agent.WithAudit(s.audit))
	}
	orchestrator := agent.New(resolved.Provider, registry, s.prompts.Build(req.Session), agent.Config{
		Model:       resolved.Model,
		MaxSteps:    s.settings.MaxSteps,
		MaxTokens:   s.settings.MaxTokens,
		Temperature: s.settings.Temperature,
		Parallelism: s.settings.ToolParallelism,
		ToolTimeout: s.settings.ToolTimeout,
		RequestID:   req.ID,
	}, opts...)

	events, err := orchestrator.Run(ctx, req.Messages)
	if err != nil {
		log.Error("chat_failed", map[string]any{"stage": "first_generation"}, err)
		s.recordChat(false, start)
		return nil, err
	}

	out := make(chan domain.StreamEvent, 100)
	logging.SafeGo("chat", func() {
		defer close(out)
		success := false
		for ev := range events {
			switch ev.Type {
			case domain.StreamEventDone:
				success = true
			case domain.StreamEventError:
				success = false
			}
			out <- ev
		}
		s.recordChat(success, start)
		log.TimedEvent("chat_end", start, map[string]any{"success": success})
	})
	return out, nil
}

func (s *Service) recordChat(success bool, start time.Time) {
	if s.metrics != nil {
		s.metrics.RecordChat(success, time.Since(start).Milliseconds())
	}
}
