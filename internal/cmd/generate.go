package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/storyloom/storyloom/internal/core"
	"github.com/storyloom/storyloom/internal/core/engine"
	"github.com/storyloom/storyloom/internal/core/store"
	"github.com/storyloom/storyloom/internal/observability"
	"github.com/storyloom/storyloom/internal/output"
	"github.com/storyloom/storyloom/internal/story"
)

var (
	generateGenre      string
	generateTone       string
	generateModel      string
	generateMode       string
	generateSlots      int
	generateStream     bool
	generateEarlyStart bool
	generateNoStore    bool
	generateFormat     string
	generateOutput     string
)

var generateCmd = &cobra.Command{
	Use:   "generate <premise>",
	Short: "Generate a structured story from a premise",
	Long: `Generate a structured story from a premise.

The pipeline drafts an outline and cast first, develops each character and
the setting in parallel under the resolved concurrency plan, then assembles
the final document. Failed fan-out steps degrade to placeholders instead of
aborting the run.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		format, err := output.ParseFormat(generateFormat)
		if err != nil {
			return err
		}

		model := strings.TrimSpace(generateModel)
		if model == "" {
			model = cfg.Story.Model
		}
		mode := engine.Mode(strings.ToLower(strings.TrimSpace(generateMode)))
		if mode == "" {
			mode = engine.Mode(cfg.Engine.Mode)
		}
		slots := generateSlots
		if slots <= 0 {
			slots = cfg.Story.CharacterSlots
		}

		plan, err := buildPlanner(cfg).Build(model, mode)
		if err != nil {
			return err
		}

		registry, err := promptRegistry(cfg)
		if err != nil {
			return err
		}

		builder := &story.Builder{Prompts: registry}
		spec, err := builder.Spec(story.Options{
			Premise:        strings.Join(args, " "),
			Genre:          generateGenre,
			Tone:           generateTone,
			Model:          model,
			CharacterSlots: slots,
		})
		if err != nil {
			return err
		}

		orch := &engine.Orchestrator{
			Router:     buildRouter(cfg),
			Plan:       plan,
			Logger:     observability.CLILogger,
			EarlyStart: generateEarlyStart || cfg.Engine.EarlyStart,
		}

		var st *store.Store
		if !generateNoStore {
			st, err = openStore(ctx, cfg)
			if err != nil {
				observability.CLILogger.Warn("Run store unavailable, results will not be persisted", zap.Error(err))
				st = nil
			} else {
				defer func() { _ = st.Close() }()
				orch.Recorder = st
			}
		}

		var (
			run    *core.RunResult
			runErr error
		)
		if generateStream {
			for event := range orch.Stream(ctx, spec) {
				if event.Step != nil {
					observability.CLILogger.Info("Step finished",
						zap.String("step", event.Step.StepID),
						zap.String("status", string(event.Step.Status)),
						zap.String("run_status", string(event.RunStatus)),
						zap.String("model", event.Step.Model))
					continue
				}
				run, runErr = event.Run, event.Err
			}
		} else {
			run, runErr = orch.Run(ctx, spec)
		}
		if run != nil && st != nil {
			if err := st.SaveRun(ctx, spec.Name, model, string(mode), run); err != nil {
				observability.CLILogger.Warn("Failed to persist run header", zap.Error(err))
			}
		}

		if run != nil {
			rendered, err := output.NewFormatter(format).FormatRun(run)
			if err != nil {
				return err
			}
			if err := writeOutput(rendered); err != nil {
				return err
			}
		}

		if runErr != nil {
			return fmt.Errorf("story run failed: %w", runErr)
		}
		return nil
	},
}

func writeOutput(rendered string) error {
	if strings.TrimSpace(generateOutput) == "" {
		fmt.Println(rendered)
		return nil
	}
	if err := os.WriteFile(generateOutput, []byte(rendered+"\n"), 0644); err != nil {
		return fmt.Errorf("write output file: %w", err)
	}
	observability.CLILogger.Info("Output written", zap.String("file", generateOutput))
	return nil
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().StringVar(&generateGenre, "genre", "", "story genre hint")
	generateCmd.Flags().StringVar(&generateTone, "tone", "", "story tone hint")
	generateCmd.Flags().StringVarP(&generateModel, "model", "m", "", "model id (default from config)")
	generateCmd.Flags().StringVar(&generateMode, "mode", "", "execution mode: sequential, normal, aggressive, max")
	generateCmd.Flags().IntVar(&generateSlots, "characters", 0, "maximum characters to develop")
	generateCmd.Flags().BoolVar(&generateStream, "stream", false, "report each step as it completes")
	generateCmd.Flags().BoolVar(&generateEarlyStart, "early-start", false, "start fan-out steps as soon as their inputs are ready")
	generateCmd.Flags().BoolVar(&generateNoStore, "no-store", false, "skip persisting run results")
	generateCmd.Flags().StringVarP(&generateFormat, "format", "f", "table", "output format: table, json, markdown")
	generateCmd.Flags().StringVarP(&generateOutput, "output", "o", "", "write output to file instead of stdout")
}
