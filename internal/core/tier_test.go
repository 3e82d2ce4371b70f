package core

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		model string
		want  Tier
	}{
		{"meta-llama/llama-3.3-70b-instruct:free", TierFree},
		{"deepseek/deepseek-chat:FREE", TierFree},
		{"gemini-2.0-flash", TierNative},
		{"models/gemini-1.5-pro", TierNative},
		{"imagen-3.0-generate-002", TierNative},
		{"models/imagen-3.0-generate-002", TierNative},
		{"anthropic/claude-sonnet-4", TierPaid},
		{"mistralai/mistral-large", TierPaid},
		{"", TierPaid},
		{"something-unrecognized", TierPaid},
	}

	for _, tc := range cases {
		require.Equal(t, tc.want, Classify(tc.model), "model %q", tc.model)
	}
}

func TestClassifyIdempotent(t *testing.T) {
	models := []string{
		"meta-llama/llama-3.3-70b-instruct:free",
		"gemini-2.0-flash",
		"anthropic/claude-sonnet-4",
	}

	for _, model := range models {
		first := Classify(model)
		for i := 0; i < 10; i++ {
			require.Equal(t, first, Classify(model))
		}
	}
}

func TestStateAppendOnce(t *testing.T) {
	state := NewState("run-1")

	require.NoError(t, state.Append(StepResult{StepID: "outline", Status: StepStatusOK}))
	err := state.Append(StepResult{StepID: "outline", Status: StepStatusFailed})
	require.Error(t, err)

	result, ok := state.Get("outline")
	require.True(t, ok)
	require.Equal(t, StepStatusOK, result.Status)
	require.Len(t, state.Results(), 1)
}
