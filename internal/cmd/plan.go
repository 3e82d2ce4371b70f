package cmd

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/storyloom/storyloom/internal/core"
	"github.com/storyloom/storyloom/internal/core/engine"
)

var (
	planModel string
	planMode  string
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show the resolved execution plan for a model and mode",
	Long: `Show the resolved execution plan for a model and mode.

The plan reflects the model's tier, the configured concurrency matrix, and
the provider ceiling that caps max mode.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		model := strings.TrimSpace(planModel)
		if model == "" {
			model = cfg.Story.Model
		}
		mode := engine.Mode(strings.ToLower(strings.TrimSpace(planMode)))
		if mode == "" {
			mode = engine.Mode(cfg.Engine.Mode)
		}

		plan, err := buildPlanner(cfg).Build(model, mode)
		if err != nil {
			return err
		}

		t := table.NewWriter()
		t.SetStyle(table.StyleRounded)
		t.AppendHeader(table.Row{"Model", "Tier", "Mode", "Max Concurrent", "Parallel Fan-Out"})
		t.AppendRow(table.Row{model, string(plan.Tier), string(plan.Mode), plan.MaxConcurrent, plan.ParallelFanOut})
		fmt.Println(t.Render())

		if plan.Tier == core.TierFree && !plan.ParallelFanOut && plan.Mode != engine.ModeSequential {
			fmt.Println("Free tier fan-out is serialized regardless of mode.")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(planCmd)

	planCmd.Flags().StringVarP(&planModel, "model", "m", "", "model id (default from config)")
	planCmd.Flags().StringVar(&planMode, "mode", "", "execution mode: sequential, normal, aggressive, max")
}
