package cmd

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var promptsCmd = &cobra.Command{
	Use:   "prompts",
	Short: "List the available prompt definitions",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		registry, err := promptRegistry(cfg)
		if err != nil {
			return err
		}

		t := table.NewWriter()
		t.SetStyle(table.StyleRounded)
		t.AppendHeader(table.Row{"Slug", "Name", "Version", "Required Variables"})
		for _, p := range registry.List() {
			t.AppendRow(table.Row{
				p.Config.Slug,
				p.Config.Name,
				p.Config.Version,
				strings.Join(p.Config.Input.RequiredVariables, ", "),
			})
		}
		fmt.Println(t.Render())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(promptsCmd)
}
