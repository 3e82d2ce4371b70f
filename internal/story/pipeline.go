// Package story builds the structured-story pipeline: an outline and cast
// prefix, a per-character and setting fan-out, and an assembly suffix.
package story

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/storyloom/storyloom/internal/core"
	"github.com/storyloom/storyloom/internal/core/engine"
	"github.com/storyloom/storyloom/internal/llm/content"
	"github.com/storyloom/storyloom/internal/llm/driver"
	"github.com/storyloom/storyloom/internal/llm/prompt"
)

// Step ids used across the pipeline. The assembly step reads earlier
// payloads out of the run state by these names.
const (
	StepOutline  = "outline"
	StepCast     = "cast"
	StepSetting  = "setting"
	StepTheme    = "theme"
	StepAssembly = "assembly"
)

// defaultCharacterSlots bounds the character fan-out when the options do
// not say otherwise. Slots beyond the identified cast are skipped.
const defaultCharacterSlots = 6

// Options describes one story generation request.
type Options struct {
	Premise string
	Genre   string
	Tone    string

	// Model is the requested model id for every step; the router may
	// substitute fallbacks per call.
	Model string

	// CharacterSlots caps the per-character fan-out.
	CharacterSlots int
}

// Builder turns options into an executable pipeline spec.
type Builder struct {
	Prompts prompt.Registry
}

// Spec builds the story pipeline for the given options.
func (b *Builder) Spec(opts Options) (engine.Spec, error) {
	if b == nil || b.Prompts == nil {
		return engine.Spec{}, fmt.Errorf("prompt registry is required")
	}
	if strings.TrimSpace(opts.Premise) == "" {
		return engine.Spec{}, fmt.Errorf("premise is required")
	}
	if strings.TrimSpace(opts.Model) == "" {
		return engine.Spec{}, fmt.Errorf("model is required")
	}

	slots := opts.CharacterSlots
	if slots <= 0 {
		slots = defaultCharacterSlots
	}

	spec := engine.Spec{
		Name: "story",
		Prefix: []engine.Step{
			{ID: StepOutline, Build: b.buildOutline(opts)},
			{ID: StepCast, Build: b.buildCast(opts)},
		},
		Suffix: []engine.Step{
			{ID: StepAssembly, Build: b.buildAssembly(opts, slots)},
		},
	}

	for i := 0; i < slots; i++ {
		idx := i
		spec.Batch = append(spec.Batch, engine.Step{
			ID:          CharacterStepID(idx),
			DependsOn:   []string{StepCast},
			Placeholder: characterPlaceholder(idx),
			Build:       b.buildCharacter(opts, idx),
		})
	}
	spec.Batch = append(spec.Batch, engine.Step{
		ID:          StepSetting,
		DependsOn:   []string{StepOutline},
		Placeholder: settingPlaceholder(),
		Build:       b.buildSetting(opts),
	})
	spec.Batch = append(spec.Batch, engine.Step{
		ID:          StepTheme,
		DependsOn:   []string{StepOutline},
		Placeholder: themePlaceholder(),
		Build:       b.buildTheme(opts),
	})

	return spec, nil
}

// CharacterStepID names the batch slot for the nth cast member.
func CharacterStepID(idx int) string {
	return fmt.Sprintf("character-%d", idx+1)
}

func (b *Builder) buildOutline(opts Options) func(*core.State) (engine.Call, error) {
	return func(_ *core.State) (engine.Call, error) {
		return b.call("story-outline", opts.Model, map[string]string{
			"premise": opts.Premise,
			"genre":   defaultString(opts.Genre, "any"),
			"tone":    defaultString(opts.Tone, "neutral"),
		}, validateOutline)
	}
}

func (b *Builder) buildCast(opts Options) func(*core.State) (engine.Call, error) {
	return func(state *core.State) (engine.Call, error) {
		outline := state.Payload(StepOutline)
		if len(outline) == 0 {
			return engine.Call{}, fmt.Errorf("outline payload missing")
		}
		return b.call("story-cast", opts.Model, map[string]string{
			"outline": string(outline),
		}, validateCast)
	}
}

func (b *Builder) buildCharacter(opts Options, idx int) func(*core.State) (engine.Call, error) {
	return func(state *core.State) (engine.Call, error) {
		cast, err := decodeCast(state.Payload(StepCast))
		if err != nil {
			return engine.Call{}, err
		}
		if idx >= len(cast.Characters) {
			return engine.Call{}, engine.ErrSkipStep
		}

		member, err := json.Marshal(cast.Characters[idx])
		if err != nil {
			return engine.Call{}, fmt.Errorf("encode cast member: %w", err)
		}
		return b.call("story-character", opts.Model, map[string]string{
			"character": string(member),
			"outline":   string(state.Payload(StepOutline)),
		}, validateProfile)
	}
}

func (b *Builder) buildSetting(opts Options) func(*core.State) (engine.Call, error) {
	return func(state *core.State) (engine.Call, error) {
		outline := state.Payload(StepOutline)
		if len(outline) == 0 {
			return engine.Call{}, fmt.Errorf("outline payload missing")
		}
		return b.call("story-setting", opts.Model, map[string]string{
			"outline": string(outline),
		}, validateSetting)
	}
}

func (b *Builder) buildTheme(opts Options) func(*core.State) (engine.Call, error) {
	return func(state *core.State) (engine.Call, error) {
		outline := state.Payload(StepOutline)
		if len(outline) == 0 {
			return engine.Call{}, fmt.Errorf("outline payload missing")
		}
		return b.call("story-theme", opts.Model, map[string]string{
			"outline": string(outline),
		}, validateTheme)
	}
}

func (b *Builder) buildAssembly(opts Options, slots int) func(*core.State) (engine.Call, error) {
	return func(state *core.State) (engine.Call, error) {
		profiles := make([]json.RawMessage, 0, slots)
		for i := 0; i < slots; i++ {
			result, ok := state.Get(CharacterStepID(i))
			if !ok || result.Status == core.StepStatusSkipped {
				continue
			}
			profiles = append(profiles, result.Payload)
		}
		characters, err := json.Marshal(profiles)
		if err != nil {
			return engine.Call{}, fmt.Errorf("encode profiles: %w", err)
		}

		return b.call("story-assembly", opts.Model, map[string]string{
			"outline":    string(state.Payload(StepOutline)),
			"characters": string(characters),
			"setting":    string(state.Payload(StepSetting)),
			"theme":      string(state.Payload(StepTheme)),
		}, validateDocument)
	}
}

// call renders a prompt into a routed JSON-mode completion call.
func (b *Builder) call(slug, model string, vars map[string]string, validate func([]byte) error) (engine.Call, error) {
	def, err := b.Prompts.Get(slug)
	if err != nil {
		return engine.Call{}, err
	}
	system, user, err := prompt.Render(def, vars)
	if err != nil {
		return engine.Call{}, err
	}

	return engine.Call{
		Model: model,
		Messages: []content.Message{
			content.Text("system", system),
			content.Text("user", user),
		},
		ResponseFormat: &driver.ResponseFormat{Type: "json_object"},
		PromptSlug:     slug,
		Validate:       validate,
	}, nil
}

func decodeCast(payload json.RawMessage) (*Cast, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("cast payload missing")
	}
	var cast Cast
	if err := json.Unmarshal(payload, &cast); err != nil {
		return nil, fmt.Errorf("decode cast: %w", err)
	}
	return &cast, nil
}

func characterPlaceholder(idx int) json.RawMessage {
	placeholder, _ := json.Marshal(Profile{
		Name:        fmt.Sprintf("(undeveloped character %d)", idx+1),
		Voice:       "unknown",
		Motivation:  "unknown",
		Placeholder: true,
	})
	return placeholder
}

func settingPlaceholder() json.RawMessage {
	placeholder, _ := json.Marshal(Setting{
		World:       "(setting unavailable)",
		Placeholder: true,
	})
	return placeholder
}

func themePlaceholder() json.RawMessage {
	placeholder, _ := json.Marshal(Theme{
		Statement:   "(theme unavailable)",
		Placeholder: true,
	})
	return placeholder
}

func defaultString(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
