package engine

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/storyloom/storyloom/internal/core"
	"github.com/storyloom/storyloom/internal/llm/driver"
)

// Render routes an image generation request through the limiter with the
// same retry behavior as text calls. Image models have no cross-tier
// stand-ins, so there is no fallback cascade.
func (r *Router) Render(ctx context.Context, model, prompt string, count int) (*driver.ImageResponse, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if r == nil {
		return nil, fmt.Errorf("router not configured")
	}
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("model is required")
	}

	tier := core.Classify(model)
	maxAttempts := r.Retry.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultRetry.MaxAttempts
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			if err := r.sleep(ctx, r.backoff(attempt)); err != nil {
				return nil, err
			}
		}

		if err := r.Limiter.Acquire(ctx, tier); err != nil {
			return nil, err
		}

		drv, err := r.Providers.DriverFor(model)
		if err != nil {
			return nil, err
		}
		renderer, ok := drv.(driver.ImageDriver)
		if !ok {
			return nil, fmt.Errorf("driver %s cannot render images", drv.Name())
		}

		resp, err := renderer.Render(ctx, &driver.ImageRequest{Model: model, Prompt: prompt, Count: count})
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if ClassifyError(err) == ErrorClassFatal {
			return nil, err
		}
		if r.Logger != nil {
			r.Logger.Debug("Transient render failure, retrying",
				zap.String("model", model),
				zap.Int("attempt", attempt+1),
				zap.Error(err))
		}
	}

	return nil, lastErr
}
