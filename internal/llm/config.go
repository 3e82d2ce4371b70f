package llm

import "time"

// Config defines provider configuration for the LLM link layer.
//
// This is intentionally self-contained so it can later be extracted as a
// standalone library configuration subtree.
type Config struct {
	DefaultTimeout time.Duration `mapstructure:"default_timeout"`

	// PromptsDir allows applications to override the built-in prompt set.
	PromptsDir string `mapstructure:"prompts_dir"`

	// OpenRouter serves marketplace models (free and paid tiers).
	OpenRouter ProviderConfig `mapstructure:"openrouter"`

	// Gemini serves first-party native models.
	Gemini ProviderConfig `mapstructure:"gemini"`
}

// ProviderConfig defines a configured provider instance.
type ProviderConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
}
