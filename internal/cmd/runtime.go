package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/storyloom/storyloom/internal/config"
	"github.com/storyloom/storyloom/internal/core/engine"
	"github.com/storyloom/storyloom/internal/core/store"
	"github.com/storyloom/storyloom/internal/llm"
	"github.com/storyloom/storyloom/internal/llm/prompt"
	"github.com/storyloom/storyloom/internal/observability"
)

// loadConfig decodes the merged viper settings into the typed config.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Decode(viper.AllSettings())
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	return cfg, nil
}

// buildRouter assembles the rate limiter, provider registry, and router
// from the typed configuration.
func buildRouter(cfg *config.Config) *engine.Router {
	return &engine.Router{
		Limiter:   engine.NewLimiter(cfg.Engine.Buckets()),
		Providers: llm.NewRegistry(cfg.LLM),
		Retry:     cfg.Engine.Retry,
		Cascade:   cfg.Engine.Fallbacks,
		Logger:    observability.CLILogger,
	}
}

// buildPlanner assembles the execution planner from the typed configuration.
func buildPlanner(cfg *config.Config) *engine.Planner {
	return &engine.Planner{
		Matrix:   cfg.Engine.Matrix(),
		Ceilings: cfg.Engine.Ceilings(),
		Logger:   observability.CLILogger,
	}
}

// promptRegistry loads prompts from the configured directory, falling back
// to the embedded set.
func promptRegistry(cfg *config.Config) (prompt.Registry, error) {
	if dir := strings.TrimSpace(cfg.LLM.PromptsDir); dir != "" {
		prompts, err := prompt.LoadFromDir(dir)
		if err != nil {
			return nil, err
		}
		return prompt.NewRegistry(prompts)
	}
	return prompt.DefaultRegistry()
}

// openStore opens and migrates the run store.
func openStore(ctx context.Context, cfg *config.Config) (*store.Store, error) {
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}
