//go:build cgo

package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/storyloom/storyloom/internal/config"
	"github.com/storyloom/storyloom/internal/core"
)

func openMemoryStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	s, err := Open(ctx, config.StoreConfig{Driver: "libsql", Path: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, s.Migrate(ctx))
	t.Cleanup(func() { require.NoError(t, s.Close()) })
	return s
}

func TestOpenMemoryStore(t *testing.T) {
	s := openMemoryStore(t)
	require.Equal(t, "libsql", s.Driver())
}

func TestRunLifecycle(t *testing.T) {
	ctx := context.Background()
	s := openMemoryStore(t)

	started := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.RecordStep(ctx, "run-1", core.StepResult{
		StepID:      "outline",
		Status:      core.StepStatusOK,
		Payload:     json.RawMessage(`{"title":"T"}`),
		Model:       "paid/model",
		Latency:     1200 * time.Millisecond,
		CompletedAt: started.Add(2 * time.Second),
	}))
	require.NoError(t, s.RecordStep(ctx, "run-1", core.StepResult{
		StepID:      "character-1",
		Status:      core.StepStatusFailed,
		Message:     "fallback cascade exhausted",
		CompletedAt: started.Add(3 * time.Second),
	}))

	// A second write for the same step violates the unique constraint.
	require.Error(t, s.RecordStep(ctx, "run-1", core.StepResult{StepID: "outline"}))

	steps, err := s.GetRunSteps(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, steps, 2)
	require.Equal(t, "outline", steps[0].StepID)
	require.JSONEq(t, `{"title":"T"}`, string(steps[0].Payload))
	require.Equal(t, 1200*time.Millisecond, steps[0].Latency)
	require.Equal(t, core.StepStatusFailed, steps[1].Status)

	require.NoError(t, s.SaveRun(ctx, "story", "paid/model", "normal", &core.RunResult{
		RunID:         "run-1",
		Status:        core.RunStatusDegradedCompleted,
		DegradedSteps: []string{"character-1"},
		StartedAt:     started,
		CompletedAt:   started.Add(5 * time.Second),
	}))

	runs, err := s.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, core.RunStatusDegradedCompleted, runs[0].Status)
	require.NotNil(t, runs[0].CompletedAt)
}

func TestListRunsNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := openMemoryStore(t)

	base := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.SaveRun(ctx, "story", "m", "normal", &core.RunResult{
		RunID: "run-old", Status: core.RunStatusCompleted, StartedAt: base, CompletedAt: base.Add(time.Minute),
	}))
	require.NoError(t, s.SaveRun(ctx, "story", "m", "normal", &core.RunResult{
		RunID: "run-new", Status: core.RunStatusCompleted, StartedAt: base.Add(time.Hour), CompletedAt: base.Add(2 * time.Hour),
	}))

	runs, err := s.ListRuns(ctx, 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, "run-new", runs[0].RunID)
}
