package config

import (
	"strings"

	"github.com/spf13/viper"

	"github.com/joss/navigator/internal/provider"
)

// conventionalEnv lists the well known variables each backend's SDKs read,
// accepted in addition to the NAVIGATOR_ prefixed names.
var conventionalEnv = map[string][]string{
	"providers.openai.api_key":     {provider.CredentialEnv(provider.ProviderOpenAI)},
	"providers.openai.base_url":    {"OPENAI_BASE_URL"},
	"providers.openrouter.api_key": {provider.CredentialEnv(provider.ProviderOpenRouter)},
	"providers.anthropic.api_key":  {provider.CredentialEnv(provider.ProviderAnthropic)},
	"providers.anthropic.base_url": {"ANTHROPIC_BASE_URL"},
	"providers.google.api_key":     {provider.CredentialEnv(provider.ProviderGoogle), "GEMINI_API_KEY"},
	"providers.ollama.base_url":    {"OLLAMA_HOST"},
	"jellyfin.url":                 {"JELLYFIN_URL"},
}

// envKey maps a setting key to its prefixed variable name.
func envKey(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// the prefixed name wins over the conventional ones
	for key, names := range conventionalEnv {
		v.BindEnv(append([]string{key, envKey(key)}, names...)...)
	}
}
