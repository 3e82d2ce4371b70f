package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/storyloom/storyloom/internal/core"
)

func TestBuildSequentialAlwaysOne(t *testing.T) {
	planner := &Planner{}

	for _, model := range []string{"meta/llama:free", "anthropic/claude", "gemini-2.0-flash"} {
		plan, err := planner.Build(model, ModeSequential)
		require.NoError(t, err)
		require.Equal(t, 1, plan.MaxConcurrent)
		require.False(t, plan.ParallelFanOut)
	}
}

func TestBuildMaxClampsToCeiling(t *testing.T) {
	planner := &Planner{}

	// Free tier: matrix says 4 but the ceiling is 3, so max stays at 2.
	plan, err := planner.Build("meta/llama:free", ModeMax)
	require.NoError(t, err)
	require.Equal(t, core.TierFree, plan.Tier)
	require.Equal(t, 2, plan.MaxConcurrent)

	// Paid tier: matrix 12 clamps to ceiling 10 minus one.
	plan, err = planner.Build("anthropic/claude", ModeMax)
	require.NoError(t, err)
	require.Equal(t, 9, plan.MaxConcurrent)

	// Native tier: matrix 16 already fits under ceiling 20.
	plan, err = planner.Build("gemini-2.0-pro", ModeMax)
	require.NoError(t, err)
	require.Equal(t, 16, plan.MaxConcurrent)
}

func TestBuildFreeTierSerializesFanOut(t *testing.T) {
	planner := &Planner{}

	for _, mode := range []Mode{ModeNormal, ModeAggressive, ModeMax} {
		plan, err := planner.Build("meta/llama:free", mode)
		require.NoError(t, err)
		require.False(t, plan.ParallelFanOut, "mode %s", mode)
	}

	plan, err := planner.Build("anthropic/claude", ModeNormal)
	require.NoError(t, err)
	require.True(t, plan.ParallelFanOut)
}

func TestPlanAllowsEarlyStartOnlyInUpperModes(t *testing.T) {
	cases := map[Mode]bool{
		ModeSequential: false,
		ModeNormal:     false,
		ModeAggressive: true,
		ModeMax:        true,
	}

	for mode, want := range cases {
		require.Equal(t, want, Plan{Mode: mode}.AllowsEarlyStart(), "mode %s", mode)
	}
}

func TestBuildRejectsUnknownMode(t *testing.T) {
	planner := &Planner{}

	_, err := planner.Build("anthropic/claude", Mode("turbo"))
	require.Error(t, err)
}

func TestBuildCustomMatrixAndCeilings(t *testing.T) {
	planner := &Planner{
		Matrix: ConcurrencyMatrix{
			core.TierPaid: {ModeNormal: 7, ModeMax: 50},
		},
		Ceilings: map[core.Tier]int{core.TierPaid: 20},
	}

	plan, err := planner.Build("anthropic/claude", ModeNormal)
	require.NoError(t, err)
	require.Equal(t, 7, plan.MaxConcurrent)

	plan, err = planner.Build("anthropic/claude", ModeMax)
	require.NoError(t, err)
	require.Equal(t, 19, plan.MaxConcurrent)
}
