// Package config loads Navigator settings from an optional YAML file and
// the environment. The loaded *Config is passed down explicitly; nothing in
// the request path reads the environment on its own.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/joss/navigator/internal/logging"
	"github.com/joss/navigator/internal/provider"
)

// EnvPrefix prefixes every setting in the environment, e.g.
// NAVIGATOR_SERVER_ADDR for server.addr.
const EnvPrefix = "NAVIGATOR"

// ProviderConfig is the server side fallback for one model backend.
type ProviderConfig struct {
	APIKey       string `mapstructure:"api_key"`
	BaseURL      string `mapstructure:"base_url"`
	DefaultModel string `mapstructure:"default_model"`
}

// Config holds all Navigator settings.
type Config struct {
	Server struct {
		Addr            string        `mapstructure:"addr"`
		MetricsAddr     string        `mapstructure:"metrics_addr"`
		AllowedOrigins  []string      `mapstructure:"allowed_origins"`
		ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	} `mapstructure:"server"`

	Jellyfin struct {
		URL      string        `mapstructure:"url"`
		Timeout  time.Duration `mapstructure:"timeout"`
		Retries  int           `mapstructure:"retries"`
		CacheTTL time.Duration `mapstructure:"cache_ttl"`
	} `mapstructure:"jellyfin"`

	Chat struct {
		MaxSteps        int           `mapstructure:"max_steps"`
		MaxTokens       int           `mapstructure:"max_tokens"`
		Temperature     float64       `mapstructure:"temperature"`
		DefaultProvider string        `mapstructure:"default_provider"`
		ToolParallelism int           `mapstructure:"tool_parallelism"`
		ToolTimeout     time.Duration `mapstructure:"tool_timeout"`
		ResultLimit     int           `mapstructure:"result_limit"`
	} `mapstructure:"chat"`

	Providers struct {
		OpenAI     ProviderConfig `mapstructure:"openai"`
		OpenRouter ProviderConfig `mapstructure:"openrouter"`
		Anthropic  ProviderConfig `mapstructure:"anthropic"`
		Google     ProviderConfig `mapstructure:"google"`
		Ollama     ProviderConfig `mapstructure:"ollama"`
	} `mapstructure:"providers"`

	Subtitle struct {
		Tolerance     float64 `mapstructure:"tolerance"`
		ContextWindow float64 `mapstructure:"context_window"`
	} `mapstructure:"subtitle"`

	Prompt struct {
		AliasesFile string `mapstructure:"aliases_file"`
	} `mapstructure:"prompt"`

	Audit struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"audit"`

	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`

	// File is the config file that was read, empty when none was found.
	File string `mapstructure:"-"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.metrics_addr", "")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("jellyfin.url", "")
	v.SetDefault("jellyfin.timeout", 15*time.Second)
	v.SetDefault("jellyfin.retries", 2)
	v.SetDefault("jellyfin.cache_ttl", 10*time.Minute)

	v.SetDefault("chat.max_steps", 10)
	v.SetDefault("chat.max_tokens", 2048)
	v.SetDefault("chat.temperature", 0.2)
	v.SetDefault("chat.default_provider", string(provider.ProviderOpenAI))
	v.SetDefault("chat.tool_parallelism", 4)
	v.SetDefault("chat.tool_timeout", 60*time.Second)
	v.SetDefault("chat.result_limit", 20)

	for _, pt := range provider.Types {
		v.SetDefault("providers."+string(pt)+".api_key", "")
		v.SetDefault("providers."+string(pt)+".base_url", "")
		v.SetDefault("providers."+string(pt)+".default_model", "")
	}

	v.SetDefault("subtitle.tolerance", 5.0)
	v.SetDefault("subtitle.context_window", 30.0)
	v.SetDefault("prompt.aliases_file", "")
	v.SetDefault("audit.path", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Load reads path, or navigator.yaml from the working directory or
// ~/.navigator when path is empty, and overlays the environment. A missing
// default file is not an error; a missing explicit one is.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	bindEnv(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("navigator")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".navigator"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()
	cfg.Jellyfin.URL = strings.TrimRight(cfg.Jellyfin.URL, "/")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail deep inside a request.
func (c *Config) Validate() error {
	var problems []string
	if c.Server.Addr == "" {
		problems = append(problems, "server.addr must not be empty")
	}
	if c.Chat.MaxSteps < 1 {
		problems = append(problems, "chat.max_steps must be at least 1")
	}
	if c.Chat.ToolParallelism < 1 {
		problems = append(problems, "chat.tool_parallelism must be at least 1")
	}
	if _, err := provider.ParseType(c.Chat.DefaultProvider); err != nil {
		problems = append(problems, fmt.Sprintf("chat.default_provider: %v", err))
	}
	if c.Subtitle.Tolerance < 0 || c.Subtitle.ContextWindow <= 0 {
		problems = append(problems, "subtitle.tolerance must be >= 0 and subtitle.context_window > 0")
	}
	switch logging.Level(strings.ToLower(c.Log.Level)) {
	case logging.LevelDebug, logging.LevelInfo, logging.LevelWarn, logging.LevelError:
	default:
		problems = append(problems, fmt.Sprintf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// RequireJellyfin reports a missing Jellyfin server URL.
func (c *Config) RequireJellyfin() error {
	if c.Jellyfin.URL == "" {
		return fmt.Errorf("jellyfin.url is not set: add it to navigator.yaml or set %s_JELLYFIN_URL", EnvPrefix)
	}
	return nil
}

// DefaultProvider returns the parsed chat.default_provider.
func (c *Config) DefaultProvider() provider.ProviderType {
	pt, err := provider.ParseType(c.Chat.DefaultProvider)
	if err != nil {
		return provider.ProviderOpenAI
	}
	return pt
}

// ProviderDefaults converts the providers section for provider.NewFactory.
func (c *Config) ProviderDefaults() map[provider.ProviderType]provider.Defaults {
	entry := func(p ProviderConfig) provider.Defaults {
		return provider.Defaults{APIKey: p.APIKey, BaseURL: p.BaseURL, Model: p.DefaultModel}
	}
	return map[provider.ProviderType]provider.Defaults{
		provider.ProviderOpenAI:     entry(c.Providers.OpenAI),
		provider.ProviderOpenRouter: entry(c.Providers.OpenRouter),
		provider.ProviderAnthropic:  entry(c.Providers.Anthropic),
		provider.ProviderGoogle:     entry(c.Providers.Google),
		provider.ProviderOllama:     entry(c.Providers.Ollama),
	}
}
