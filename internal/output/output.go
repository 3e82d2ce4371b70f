package output

import (
	"fmt"
	"strings"

	"github.com/storyloom/storyloom/internal/core"
)

// Format represents an output format.
type Format string

const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// Formatter renders pipeline run results.
type Formatter interface {
	FormatRun(run *core.RunResult) (string, error)
}

// ParseFormat validates and normalizes a format string.
func ParseFormat(value string) (Format, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case "", string(FormatTable):
		return FormatTable, nil
	case string(FormatJSON):
		return FormatJSON, nil
	case string(FormatMarkdown):
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", value)
	}
}

// NewFormatter returns a formatter for the requested format.
func NewFormatter(format Format) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Indent: true}
	case FormatMarkdown:
		return &MarkdownFormatter{}
	default:
		return &TableFormatter{}
	}
}

func statusLabel(status core.StepStatus) string {
	switch status {
	case core.StepStatusOK:
		return "ok"
	case core.StepStatusFallback:
		return "ok (fallback)"
	case core.StepStatusSkipped:
		return "skipped"
	case core.StepStatusFailed:
		return "failed"
	default:
		return string(status)
	}
}

func runSummary(run *core.RunResult) string {
	summary := string(run.Status)
	if run.Degraded() {
		summary += fmt.Sprintf(" (%d placeholder)", len(run.DegradedSteps))
	}
	return summary
}
