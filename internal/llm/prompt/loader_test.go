package prompt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	prompts, err := LoadDefaults()
	require.NoError(t, err)
	require.NotEmpty(t, prompts)

	reg, err := NewRegistry(prompts)
	require.NoError(t, err)

	prompt, err := reg.Get("story-outline")
	require.NoError(t, err)
	require.NotEmpty(t, prompt.Config.SystemTemplate)
	require.Contains(t, prompt.Config.UserTemplate, "{{premise}}")
}

func TestLoadBodyBecomesSystemTemplate(t *testing.T) {
	data := []byte("---\nslug: sample\n---\nYou are a helpful assistant.\n")

	prompt, err := Load("sample.md", data)
	require.NoError(t, err)
	require.Equal(t, "You are a helpful assistant.", prompt.Config.SystemTemplate)
}

func TestLoadRejectsMissingSystemTemplate(t *testing.T) {
	data := []byte("---\nslug: sample\n---\n")

	_, err := Load("sample.md", data)
	require.Error(t, err)
	require.Contains(t, err.Error(), "missing system_template")
}

func TestLoadRejectsUnreferencedRequiredVariable(t *testing.T) {
	data := []byte("---\nslug: sample\ninput:\n  required_variables: [topic]\n---\nWrite something.\n")

	_, err := Load("sample.md", data)
	require.Error(t, err)
	require.Contains(t, err.Error(), "topic")
}

func TestRegistryRejectsDuplicateSlugs(t *testing.T) {
	p := &Prompt{Config: Config{Slug: "dup", SystemTemplate: "x"}}

	_, err := NewRegistry([]*Prompt{p, p})
	require.Error(t, err)
	require.Contains(t, err.Error(), "duplicate")
}

func TestRenderSubstitutesVariables(t *testing.T) {
	def := &Prompt{Config: Config{
		Slug:           "sample",
		SystemTemplate: "You write about {{topic}}.",
		UserTemplate:   "Topic: {{topic}}",
		Input:          InputSpec{RequiredVariables: []string{"topic"}},
	}}

	system, user, err := Render(def, map[string]string{"topic": "lighthouses"})
	require.NoError(t, err)
	require.Equal(t, "You write about lighthouses.", system)
	require.Equal(t, "Topic: lighthouses", user)
}

func TestRenderRequiresVariables(t *testing.T) {
	def := &Prompt{Config: Config{
		Slug:           "sample",
		SystemTemplate: "About {{topic}}.",
		Input:          InputSpec{RequiredVariables: []string{"topic"}},
	}}

	_, _, err := Render(def, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "topic")
}
