package output

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/storyloom/storyloom/internal/core"
	"github.com/storyloom/storyloom/internal/story"
)

// MarkdownFormatter renders the assembled story as a markdown document,
// followed by a run summary table.
type MarkdownFormatter struct{}

// FormatRun renders a run result as Markdown.
func (f *MarkdownFormatter) FormatRun(run *core.RunResult) (string, error) {
	if run == nil {
		return "", nil
	}

	var sb strings.Builder

	if doc, ok := assembledDocument(run); ok {
		sb.WriteString(RenderDocument(doc))
		sb.WriteString("\n---\n\n")
	}

	sb.WriteString("## Run summary\n\n")
	sb.WriteString("| Step | Status | Model | Notes |\n")
	sb.WriteString("|------|--------|-------|-------|\n")
	for _, step := range run.Steps {
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n",
			escapeMarkdownCell(step.StepID),
			escapeMarkdownCell(statusLabel(step.Status)),
			escapeMarkdownCell(step.Model),
			escapeMarkdownCell(step.Message),
		))
	}
	sb.WriteString(fmt.Sprintf("\n**Run**: %s\n", runSummary(run)))

	return sb.String(), nil
}

// RenderDocument renders an assembled story document as markdown.
func RenderDocument(doc *story.Document) string {
	if doc == nil {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# %s\n\n", strings.TrimSpace(doc.Title)))
	if synopsis := strings.TrimSpace(doc.Synopsis); synopsis != "" {
		sb.WriteString(fmt.Sprintf("*%s*\n\n", synopsis))
	}
	for _, chapter := range doc.Chapters {
		sb.WriteString(fmt.Sprintf("## %s\n\n", strings.TrimSpace(chapter.Heading)))
		sb.WriteString(strings.TrimSpace(chapter.Prose))
		sb.WriteString("\n\n")
	}
	return sb.String()
}

func assembledDocument(run *core.RunResult) (*story.Document, bool) {
	for _, step := range run.Steps {
		if step.StepID != story.StepAssembly || len(step.Payload) == 0 {
			continue
		}
		var doc story.Document
		if err := json.Unmarshal(step.Payload, &doc); err != nil {
			return nil, false
		}
		return &doc, true
	}
	return nil, false
}

func escapeMarkdownCell(value string) string {
	return strings.ReplaceAll(value, "|", "\\|")
}
