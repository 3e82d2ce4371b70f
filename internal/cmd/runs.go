package cmd

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs [run-id]",
	Short: "List persisted pipeline runs",
	Long: `List persisted pipeline runs.

With a run id argument, shows the step results recorded for that run.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		if len(args) == 1 {
			steps, err := st.GetRunSteps(ctx, args[0])
			if err != nil {
				return err
			}
			if len(steps) == 0 {
				fmt.Println("No step results recorded for that run.")
				return nil
			}

			t := table.NewWriter()
			t.SetStyle(table.StyleRounded)
			t.AppendHeader(table.Row{"Step", "Status", "Model", "Latency", "Notes"})
			for _, step := range steps {
				t.AppendRow(table.Row{step.StepID, string(step.Status), step.Model, step.Latency.Round(time.Millisecond), step.Message})
			}
			fmt.Println(t.Render())
			return nil
		}

		runs, err := st.ListRuns(ctx, runsLimit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No runs recorded yet.")
			return nil
		}

		t := table.NewWriter()
		t.SetStyle(table.StyleRounded)
		t.AppendHeader(table.Row{"Run", "Pipeline", "Model", "Mode", "Status", "Started", "Duration"})
		for _, run := range runs {
			duration := ""
			if run.CompletedAt != nil {
				duration = run.CompletedAt.Sub(run.StartedAt).Round(time.Second).String()
			}
			t.AppendRow(table.Row{
				run.RunID,
				run.Pipeline,
				run.Model,
				run.Mode,
				string(run.Status),
				run.StartedAt.Format(time.RFC3339),
				duration,
			})
		}
		fmt.Println(t.Render())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runsCmd)

	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "maximum runs to list")
}
