package output

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/storyloom/storyloom/internal/core"
)

// TableFormatter renders run results as an ASCII table.
type TableFormatter struct{}

// FormatRun renders a run summary as a table.
func (f *TableFormatter) FormatRun(run *core.RunResult) (string, error) {
	if run == nil {
		return "", nil
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Step", "Status", "Model", "Latency", "Notes"})

	for _, step := range run.Steps {
		t.AppendRow(table.Row{
			step.StepID,
			statusLabel(step.Status),
			step.Model,
			formatLatency(step.Latency),
			step.Message,
		})
	}

	t.AppendFooter(table.Row{
		"",
		runSummary(run),
		"",
		formatLatency(run.CompletedAt.Sub(run.StartedAt)),
		"",
	})

	return t.Render(), nil
}

func formatLatency(d time.Duration) string {
	if d <= 0 {
		return ""
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}
