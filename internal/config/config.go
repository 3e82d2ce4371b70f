package config

import (
	"strings"

	"github.com/storyloom/storyloom/internal/core"
	"github.com/storyloom/storyloom/internal/core/engine"
	"github.com/storyloom/storyloom/internal/llm"
)

// Config represents the complete application configuration.
// Defaults come from the CLI layer; user config files and environment
// variables override them.
type Config struct {
	Logging LoggingConfig `mapstructure:"logging"`
	Store   StoreConfig   `mapstructure:"store"`
	LLM     llm.Config    `mapstructure:"llm"`
	Engine  EngineConfig  `mapstructure:"engine"`
	Story   StoryConfig   `mapstructure:"story"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level controls the minimum log level.
	// Valid values: trace, debug, info, warn, error
	Level string `mapstructure:"level"`
}

// StoreConfig contains database configuration for libsql/Turso.
type StoreConfig struct {
	Driver    string `mapstructure:"driver"`
	Path      string `mapstructure:"path"`
	URL       string `mapstructure:"url"`
	AuthToken string `mapstructure:"auth_token"`
}

// EngineConfig tunes the rate limiter, router, and planner. Tier and mode
// keys are strings in the file; the accessors convert them to typed maps.
type EngineConfig struct {
	RateLimits       map[string]engine.BucketConfig `mapstructure:"rate_limits"`
	Concurrency      map[string]map[string]int      `mapstructure:"concurrency"`
	ProviderCeilings map[string]int                 `mapstructure:"provider_ceilings"`
	Retry            engine.RetryConfig             `mapstructure:"retry"`
	Fallbacks        engine.CascadeConfig           `mapstructure:"fallbacks"`
	Mode             string                         `mapstructure:"mode"`
	EarlyStart       bool                           `mapstructure:"early_start"`
}

// StoryConfig holds story pipeline defaults.
type StoryConfig struct {
	Model          string `mapstructure:"model"`
	CoverModel     string `mapstructure:"cover_model"`
	CharacterSlots int    `mapstructure:"character_slots"`
}

// Buckets converts the configured rate limits into typed tier keys,
// ignoring entries whose tier name is unknown.
func (c EngineConfig) Buckets() map[core.Tier]engine.BucketConfig {
	if len(c.RateLimits) == 0 {
		return nil
	}
	buckets := make(map[core.Tier]engine.BucketConfig, len(c.RateLimits))
	for name, bucket := range c.RateLimits {
		tier := core.Tier(strings.ToLower(strings.TrimSpace(name)))
		if !tier.Valid() {
			continue
		}
		buckets[tier] = bucket
	}
	return buckets
}

// Matrix converts the configured concurrency table into typed keys.
func (c EngineConfig) Matrix() engine.ConcurrencyMatrix {
	if len(c.Concurrency) == 0 {
		return nil
	}
	matrix := engine.ConcurrencyMatrix{}
	for tierName, modes := range c.Concurrency {
		tier := core.Tier(strings.ToLower(strings.TrimSpace(tierName)))
		if !tier.Valid() {
			continue
		}
		row := map[engine.Mode]int{}
		for modeName, limit := range modes {
			mode := engine.Mode(strings.ToLower(strings.TrimSpace(modeName)))
			if !mode.Valid() {
				continue
			}
			row[mode] = limit
		}
		matrix[tier] = row
	}
	return matrix
}

// Ceilings converts the configured provider ceilings into typed keys.
func (c EngineConfig) Ceilings() map[core.Tier]int {
	if len(c.ProviderCeilings) == 0 {
		return nil
	}
	ceilings := make(map[core.Tier]int, len(c.ProviderCeilings))
	for name, ceiling := range c.ProviderCeilings {
		tier := core.Tier(strings.ToLower(strings.TrimSpace(name)))
		if !tier.Valid() {
			continue
		}
		ceilings[tier] = ceiling
	}
	return ceilings
}
