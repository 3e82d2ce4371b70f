package output

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/storyloom/storyloom/internal/core"
	"github.com/storyloom/storyloom/internal/story"
)

func sampleRun() *core.RunResult {
	started := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	doc := story.Document{
		Title:    "The Glass Harbor",
		Synopsis: "A lighthouse keeper discovers the tide is rewinding.",
		Chapters: []story.Chapter{
			{Heading: "Ebb", Prose: "The water pulled back and did not return."},
		},
	}
	payload, _ := json.Marshal(doc)

	return &core.RunResult{
		RunID:  "run-1",
		Status: core.RunStatusDegradedCompleted,
		Steps: []core.StepResult{
			{StepID: "outline", Status: core.StepStatusOK, Model: "paid/model", Latency: 1500 * time.Millisecond},
			{StepID: "character-1", Status: core.StepStatusFailed, Message: "fallback cascade exhausted"},
			{StepID: story.StepAssembly, Status: core.StepStatusOK, Model: "paid/model", Payload: payload},
		},
		DegradedSteps: []string{"character-1"},
		StartedAt:     started,
		CompletedAt:   started.Add(12 * time.Second),
	}
}

func TestParseFormat(t *testing.T) {
	format, err := ParseFormat("")
	require.NoError(t, err)
	require.Equal(t, FormatTable, format)

	format, err = ParseFormat("  JSON ")
	require.NoError(t, err)
	require.Equal(t, FormatJSON, format)

	_, err = ParseFormat("xml")
	require.Error(t, err)
}

func TestTableFormatterIncludesStepsAndSummary(t *testing.T) {
	rendered, err := (&TableFormatter{}).FormatRun(sampleRun())
	require.NoError(t, err)
	require.Contains(t, rendered, "outline")
	require.Contains(t, rendered, "failed")
	require.Contains(t, rendered, "degraded_completed (1 placeholder)")
	require.Contains(t, rendered, "12.0s")
}

func TestJSONFormatterRoundTrips(t *testing.T) {
	rendered, err := (&JSONFormatter{Indent: true}).FormatRun(sampleRun())
	require.NoError(t, err)

	var decoded core.RunResult
	require.NoError(t, json.Unmarshal([]byte(rendered), &decoded))
	require.Equal(t, "run-1", decoded.RunID)
	require.Len(t, decoded.Steps, 3)
}

func TestMarkdownFormatterRendersStory(t *testing.T) {
	rendered, err := (&MarkdownFormatter{}).FormatRun(sampleRun())
	require.NoError(t, err)
	require.Contains(t, rendered, "# The Glass Harbor")
	require.Contains(t, rendered, "## Ebb")
	require.Contains(t, rendered, "| character-1 | failed |")
}

func TestMarkdownFormatterWithoutDocument(t *testing.T) {
	run := sampleRun()
	run.Steps = run.Steps[:2]

	rendered, err := (&MarkdownFormatter{}).FormatRun(run)
	require.NoError(t, err)
	require.NotContains(t, rendered, "# The Glass Harbor")
	require.Contains(t, rendered, "## Run summary")
}
