package llm

import (
	"fmt"
	"strings"
	"sync"

	"github.com/storyloom/storyloom/internal/core"
	"github.com/storyloom/storyloom/internal/llm/driver"
	"github.com/storyloom/storyloom/internal/llm/driver/gemini"
	"github.com/storyloom/storyloom/internal/llm/driver/openrouter"
)

// Registry maps model tiers to configured drivers, caching instances
// across calls.
type Registry struct {
	cfg Config

	mu      sync.Mutex
	drivers map[string]driver.Driver
}

// ResolvedProvider carries a driver bound to a concrete model.
type ResolvedProvider struct {
	ProviderID string
	Driver     driver.Driver
	Model      string
	Tier       core.Tier
}

func NewRegistry(cfg Config) *Registry {
	return &Registry{cfg: cfg}
}

// Resolve returns the driver serving the given model. Free and paid tier
// models route through the marketplace; native tier models route to the
// first-party driver.
func (r *Registry) Resolve(model string) (*ResolvedProvider, error) {
	if r == nil {
		return nil, fmt.Errorf("llm registry not configured")
	}

	model = strings.TrimSpace(model)
	if model == "" {
		return nil, fmt.Errorf("model is required")
	}

	tier := core.Classify(model)

	var providerID string
	switch tier {
	case core.TierNative:
		providerID = "gemini"
	default:
		providerID = "openrouter"
	}

	drv, err := r.driverFor(providerID)
	if err != nil {
		return nil, err
	}

	return &ResolvedProvider{
		ProviderID: providerID,
		Driver:     drv,
		Model:      model,
		Tier:       tier,
	}, nil
}

// DriverFor returns just the driver for a model, satisfying resolver
// interfaces that do not need the full provider binding.
func (r *Registry) DriverFor(model string) (driver.Driver, error) {
	resolved, err := r.Resolve(model)
	if err != nil {
		return nil, err
	}
	return resolved.Driver, nil
}

func (r *Registry) driverFor(providerID string) (driver.Driver, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.drivers == nil {
		r.drivers = map[string]driver.Driver{}
	}
	if drv, ok := r.drivers[providerID]; ok {
		return drv, nil
	}

	switch providerID {
	case "gemini":
		if !r.cfg.Gemini.Enabled {
			return nil, fmt.Errorf("provider %q is disabled", providerID)
		}
		client := gemini.NewClient(r.cfg.Gemini.BaseURL, r.cfg.Gemini.APIKey)
		client.Timeout = r.cfg.DefaultTimeout
		r.drivers[providerID] = client
		return client, nil
	case "openrouter":
		if !r.cfg.OpenRouter.Enabled {
			return nil, fmt.Errorf("provider %q is disabled", providerID)
		}
		client := openrouter.NewClient(r.cfg.OpenRouter.BaseURL, r.cfg.OpenRouter.APIKey)
		client.Timeout = r.cfg.DefaultTimeout
		r.drivers[providerID] = client
		return client, nil
	default:
		return nil, fmt.Errorf("unsupported provider %q", providerID)
	}
}
