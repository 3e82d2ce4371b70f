package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/storyloom/storyloom/internal/config"
	"github.com/storyloom/storyloom/internal/llm/content"
	"github.com/storyloom/storyloom/internal/llm/prompt"
	"github.com/storyloom/storyloom/internal/observability"
)

var (
	coverModel string
	coverCount int
	coverOut   string
)

var coverCmd = &cobra.Command{
	Use:   "cover <description>",
	Short: "Render cover art for a story",
	Long: `Render cover art for a story.

The description is expanded through the cover prompt template and sent to
the image model. Rendering goes through the same rate limiter and retry
behavior as text calls.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		model := strings.TrimSpace(coverModel)
		if model == "" {
			model = cfg.Story.CoverModel
		}

		imagePrompt := coverPromptText(cfg, strings.Join(args, " "))

		router := buildRouter(cfg)
		resp, err := router.Render(ctx, model, imagePrompt, coverCount)
		if err != nil {
			return fmt.Errorf("render cover: %w", err)
		}

		outDir := strings.TrimSpace(coverOut)
		if outDir == "" {
			outDir = "."
		}
		if err := os.MkdirAll(outDir, 0755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}

		for i, image := range resp.Images {
			if image.Type != content.ContentTypePNG || len(image.Data) == 0 {
				continue
			}
			path := filepath.Join(outDir, fmt.Sprintf("cover-%d.png", i+1))
			if err := os.WriteFile(path, image.Data, 0644); err != nil {
				return fmt.Errorf("write image file: %w", err)
			}
			observability.CLILogger.Info("Cover image written", zap.String("file", path))
		}
		return nil
	},
}

// coverPromptText expands the description through the cover prompt
// template. A registry that fails to load is reported, not fatal: the
// raw description still makes a usable image prompt.
func coverPromptText(cfg *config.Config, input string) string {
	registry, err := promptRegistry(cfg)
	if err != nil {
		observability.CLILogger.Warn("Prompt registry unavailable, sending raw cover description",
			zap.Error(err))
		return input
	}
	if rendered, ok := renderCoverPrompt(registry, input); ok {
		return rendered
	}
	return input
}

// renderCoverPrompt expands the raw description through the cover template.
func renderCoverPrompt(registry prompt.Registry, input string) (string, bool) {
	def, err := registry.Get("story-cover")
	if err != nil {
		return "", false
	}
	_, user, err := prompt.Render(def, map[string]string{"input": input})
	if err != nil || strings.TrimSpace(user) == "" {
		return "", false
	}
	return user, true
}

func init() {
	rootCmd.AddCommand(coverCmd)

	coverCmd.Flags().StringVarP(&coverModel, "model", "m", "", "image model id (default from config)")
	coverCmd.Flags().IntVarP(&coverCount, "count", "n", 1, "number of images to render")
	coverCmd.Flags().StringVarP(&coverOut, "output", "o", "", "output directory (default current directory)")
}
