package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/storyloom/storyloom/internal/config"
	"github.com/storyloom/storyloom/internal/observability"
)

func coverTestConfig(t *testing.T, promptsDir string) *config.Config {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	observability.InitCLILogger("storyloom-test", false)

	setDefaults()
	cfg, err := loadConfig()
	require.NoError(t, err)
	cfg.LLM.PromptsDir = promptsDir
	return cfg
}

func TestCoverPromptTextFallsBackWhenRegistryFails(t *testing.T) {
	dir := t.TempDir()
	// A prompt with no slug makes the whole directory fail to load.
	broken := "---\nname: Broken\n---\nBody without a slug.\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.md"), []byte(broken), 0644))

	cfg := coverTestConfig(t, dir)

	const description = "a lighthouse on a stormy coast"
	require.Equal(t, description, coverPromptText(cfg, description))
}

func TestCoverPromptTextRendersTemplate(t *testing.T) {
	dir := t.TempDir()
	cover := `---
slug: story-cover
input:
  required_variables:
    - input
user_template: "Book cover illustration: {{input}}"
---
Render a single striking scene.
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "story-cover.md"), []byte(cover), 0644))

	cfg := coverTestConfig(t, dir)

	rendered := coverPromptText(cfg, "a lighthouse on a stormy coast")
	require.Equal(t, "Book cover illustration: a lighthouse on a stormy coast", rendered)
}

func TestCoverPromptTextWithoutCoverPromptKeepsInput(t *testing.T) {
	// An empty prompts directory loads fine but has no cover template.
	cfg := coverTestConfig(t, t.TempDir())

	const description = "a lighthouse on a stormy coast"
	require.Equal(t, description, coverPromptText(cfg, description))
}
