package main

import (
	"fmt"

	"github.com/joss/navigator/internal/audit"
	"github.com/joss/navigator/internal/chat"
	"github.com/joss/navigator/internal/config"
	"github.com/joss/navigator/internal/media"
	"github.com/joss/navigator/internal/metrics"
	"github.com/joss/navigator/internal/prompt"
	"github.com/joss/navigator/internal/provider"
	"github.com/joss/navigator/internal/selftest"
	"github.com/joss/navigator/internal/subtitle"
)

// services are the long lived collaborators shared by serve and ask.
type services struct {
	chat     *chat.Service
	metrics  *metrics.Metrics
	audit    *audit.Store
	jellyfin *media.Client
	factory  *provider.Factory
}

func (s *services) Close() error {
	if s.audit != nil {
		return s.audit.Close()
	}
	return nil
}

func newPromptBuilder(c *config.Config) (*prompt.Builder, error) {
	aliases, err := prompt.LoadAliases(c.Prompt.AliasesFile)
	if err != nil {
		return nil, err
	}
	return prompt.NewBuilder(aliases), nil
}

// buildServices wires configuration into a chat service. The audit store
// is opened only when audit.path is set.
func buildServices(c *config.Config) (*services, error) {
	if err := c.RequireJellyfin(); err != nil {
		return nil, err
	}

	prompts, err := newPromptBuilder(c)
	if err != nil {
		return nil, err
	}

	jellyfin := media.NewClient(media.ClientConfig{
		BaseURL:  c.Jellyfin.URL,
		Timeout:  c.Jellyfin.Timeout,
		Retries:  c.Jellyfin.Retries,
		CacheTTL: c.Jellyfin.CacheTTL,
	})
	factory := provider.NewFactory(c.DefaultProvider(), c.ProviderDefaults())

	svc := &services{metrics: metrics.Global(), jellyfin: jellyfin, factory: factory}
	opts := []chat.Option{chat.WithMetrics(svc.metrics)}
	if c.Audit.Path != "" {
		store, err := audit.Open(c.Audit.Path)
		if err != nil {
			return nil, fmt.Errorf("open audit store: %w", err)
		}
		svc.audit = store
		opts = append(opts, chat.WithAudit(store))
	}

	svc.chat = chat.New(factory, chat.JellyfinLibraries(jellyfin), prompts, chat.Settings{
		MaxSteps:        c.Chat.MaxSteps,
		MaxTokens:       c.Chat.MaxTokens,
		Temperature:     c.Chat.Temperature,
		ToolParallelism: c.Chat.ToolParallelism,
		ToolTimeout:     c.Chat.ToolTimeout,
		ResultLimit:     c.Chat.ResultLimit,
		Subtitle: subtitle.Options{
			Tolerance:     c.Subtitle.Tolerance,
			ContextWindow: c.Subtitle.ContextWindow,
		},
	}, opts...)
	return svc, nil
}

// checker probes the dependencies a chat request needs.
func (s *services) checker() *selftest.Checker {
	c := selftest.NewChecker()
	c.Add("jellyfin", selftest.JellyfinCheck(s.jellyfin))
	c.Add("provider", selftest.ProviderCheck(s.factory))
	return c
}
