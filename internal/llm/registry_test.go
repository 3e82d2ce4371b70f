package llm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/storyloom/storyloom/internal/core"
	"github.com/storyloom/storyloom/internal/llm/driver"
)

func TestResolveRoutesNativeModelsToGemini(t *testing.T) {
	reg := NewRegistry(Config{
		OpenRouter: ProviderConfig{Enabled: true, APIKey: "or-key"},
		Gemini:     ProviderConfig{Enabled: true, APIKey: "g-key"},
	})

	resolved, err := reg.Resolve("gemini-2.0-flash")
	require.NoError(t, err)
	require.Equal(t, "gemini", resolved.ProviderID)
	require.Equal(t, core.TierNative, resolved.Tier)
}

func TestImageModelResolvesToImageCapableDriver(t *testing.T) {
	reg := NewRegistry(Config{
		OpenRouter: ProviderConfig{Enabled: true, APIKey: "or-key"},
		Gemini:     ProviderConfig{Enabled: true, APIKey: "g-key"},
	})

	resolved, err := reg.Resolve("imagen-3.0-generate-002")
	require.NoError(t, err)
	require.Equal(t, "gemini", resolved.ProviderID)
	require.Equal(t, core.TierNative, resolved.Tier)

	drv, err := reg.DriverFor("imagen-3.0-generate-002")
	require.NoError(t, err)
	_, ok := drv.(driver.ImageDriver)
	require.True(t, ok, "image model must resolve to a driver that can render images")
}

func TestResolveRoutesMarketplaceModelsToOpenRouter(t *testing.T) {
	reg := NewRegistry(Config{
		OpenRouter: ProviderConfig{Enabled: true, APIKey: "or-key"},
		Gemini:     ProviderConfig{Enabled: true, APIKey: "g-key"},
	})

	for model, tier := range map[string]core.Tier{
		"meta-llama/llama-3-8b:free": core.TierFree,
		"anthropic/claude-sonnet":    core.TierPaid,
	} {
		resolved, err := reg.Resolve(model)
		require.NoError(t, err)
		require.Equal(t, "openrouter", resolved.ProviderID)
		require.Equal(t, tier, resolved.Tier)
	}
}

func TestResolveCachesDriverInstances(t *testing.T) {
	reg := NewRegistry(Config{OpenRouter: ProviderConfig{Enabled: true, APIKey: "or-key"}})

	first, err := reg.Resolve("some/model")
	require.NoError(t, err)
	second, err := reg.Resolve("other/model")
	require.NoError(t, err)
	require.Same(t, first.Driver, second.Driver)
}

func TestResolveRejectsDisabledProvider(t *testing.T) {
	reg := NewRegistry(Config{Gemini: ProviderConfig{Enabled: false}})

	_, err := reg.Resolve("gemini-2.0-flash")
	require.Error(t, err)
	require.Contains(t, err.Error(), "disabled")
}

func TestResolveRequiresModel(t *testing.T) {
	reg := NewRegistry(Config{})

	_, err := reg.Resolve("  ")
	require.Error(t, err)
}
