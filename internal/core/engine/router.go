package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/storyloom/storyloom/internal/core"
	"github.com/storyloom/storyloom/internal/llm/content"
	"github.com/storyloom/storyloom/internal/llm/driver"
)

// RetryConfig controls per-model retry behavior for transient failures.
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BackoffBase time.Duration `mapstructure:"backoff_base"`
	BackoffCap  time.Duration `mapstructure:"backoff_cap"`
}

// DefaultRetry retries up to five times with exponential backoff between
// two seconds and two minutes.
var DefaultRetry = RetryConfig{
	MaxAttempts: 5,
	BackoffBase: 2 * time.Second,
	BackoffCap:  120 * time.Second,
}

// CascadeConfig names the stand-in models tried after the requested model
// fails: first the paid fallback, then the native fallback.
type CascadeConfig struct {
	PaidFallback   string `mapstructure:"paid_fallback"`
	NativeFallback string `mapstructure:"native_fallback"`
}

// ProviderResolver maps a model id to a driver that can serve it.
type ProviderResolver interface {
	DriverFor(model string) (driver.Driver, error)
}

// Call is a single routed completion request.
type Call struct {
	// Model is the requested model id; the cascade may substitute others.
	Model string
	// Messages is the conversation to send.
	Messages []content.Message
	// ResponseFormat, Temperature and MaxTokens pass through to the driver.
	ResponseFormat *driver.ResponseFormat
	Temperature    *float64
	MaxTokens      *int
	// PromptSlug tags the call for tracing.
	PromptSlug string
	// Validate, when set, checks the response payload. A validation
	// failure is fatal for the model that produced it.
	Validate func(payload []byte) error
}

// Result describes a completed routed call.
type Result struct {
	Model        string
	Tier         core.Tier
	Payload      []byte
	Attempts     int
	CascadeHops  int
	Latency      time.Duration
	UsedFallback bool
	Usage        *driver.Usage
}

// Router sends calls through the rate limiter to a resolved provider,
// retrying transient failures and cascading across fallback models.
//
// Every attempt, on every model, acquires a limiter token first. The
// limiter is consulted even for fallback models so a cascading call can
// never bypass tier pacing.
type Router struct {
	Limiter   *Limiter
	Providers ProviderResolver
	Retry     RetryConfig
	Cascade   CascadeConfig
	Logger    *logging.Logger
	Clock     func() time.Time
	Sleep     func(ctx context.Context, d time.Duration) error
}

// Call routes one completion request. The requested model is tried first;
// on failure the paid fallback and then the native fallback are tried, each
// with its own retry budget. Duplicate models in the cascade are attempted
// once.
func (r *Router) Call(ctx context.Context, call Call) (*Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if r == nil {
		return nil, fmt.Errorf("router not configured")
	}
	if strings.TrimSpace(call.Model) == "" {
		return nil, fmt.Errorf("model is required")
	}

	started := r.now()
	cascade := r.cascadeModels(call.Model)

	var (
		attempted []string
		lastErr   error
		lastClass ErrorClass
		attempts  int
	)

	for hop, model := range cascade {
		tier := core.Classify(model)
		attempted = append(attempted, model)

		payload, usage, stageAttempts, err := r.callModel(ctx, model, tier, call)
		attempts += stageAttempts
		if err == nil {
			result := &Result{
				Model:        model,
				Tier:         tier,
				Payload:      payload,
				Attempts:     attempts,
				CascadeHops:  hop,
				Latency:      r.now().Sub(started),
				UsedFallback: hop > 0,
				Usage:        usage,
			}
			if hop > 0 && r.Logger != nil {
				r.Logger.Warn("Call served by fallback model",
					zap.String("requested", call.Model),
					zap.String("served_by", model),
					zap.Int("cascade_hops", hop))
			}
			return result, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		lastErr = err
		lastClass = ClassifyError(err)
		if r.Logger != nil {
			r.Logger.Warn("Model exhausted, cascading",
				zap.String("model", model),
				zap.String("class", string(lastClass)),
				zap.Error(err))
		}
	}

	return nil, &CascadeExhaustedError{Attempted: attempted, LastClass: lastClass, LastErr: lastErr}
}

// callModel runs the retry loop for a single cascade stage.
func (r *Router) callModel(ctx context.Context, model string, tier core.Tier, call Call) ([]byte, *driver.Usage, int, error) {
	maxAttempts := r.Retry.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultRetry.MaxAttempts
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			if err := r.sleep(ctx, r.backoff(attempt)); err != nil {
				return nil, nil, attempt, err
			}
		}

		if err := r.Limiter.Acquire(ctx, tier); err != nil {
			return nil, nil, attempt + 1, err
		}

		payload, usage, err := r.attempt(ctx, model, call)
		if err == nil {
			return payload, usage, attempt + 1, nil
		}
		lastErr = err

		if ClassifyError(err) == ErrorClassFatal {
			return nil, nil, attempt + 1, err
		}
		if r.Logger != nil {
			r.Logger.Debug("Transient failure, retrying",
				zap.String("model", model),
				zap.Int("attempt", attempt+1),
				zap.Error(err))
		}
	}

	return nil, nil, maxAttempts, lastErr
}

func (r *Router) attempt(ctx context.Context, model string, call Call) ([]byte, *driver.Usage, error) {
	drv, err := r.Providers.DriverFor(model)
	if err != nil {
		return nil, nil, err
	}

	resp, err := drv.Complete(ctx, &driver.Request{
		Model:          model,
		Messages:       call.Messages,
		ResponseFormat: call.ResponseFormat,
		Temperature:    call.Temperature,
		MaxTokens:      call.MaxTokens,
		PromptSlug:     call.PromptSlug,
	})
	if err != nil {
		return nil, nil, err
	}

	payload := []byte(textContent(resp))
	if call.Validate != nil {
		if err := call.Validate(payload); err != nil {
			return nil, nil, &ValidationError{Model: model, Err: err}
		}
	}
	return payload, resp.Usage, nil
}

// cascadeModels returns the ordered, deduplicated model list for a call.
func (r *Router) cascadeModels(model string) []string {
	candidates := []string{model, r.Cascade.PaidFallback, r.Cascade.NativeFallback}

	seen := map[string]bool{}
	models := make([]string, 0, len(candidates))
	for _, m := range candidates {
		m = strings.TrimSpace(m)
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		models = append(models, m)
	}
	return models
}

// backoff returns the pause before the given retry attempt (1-based),
// doubling from the base up to the cap.
func (r *Router) backoff(attempt int) time.Duration {
	base := r.Retry.BackoffBase
	if base <= 0 {
		base = DefaultRetry.BackoffBase
	}
	cap := r.Retry.BackoffCap
	if cap <= 0 {
		cap = DefaultRetry.BackoffCap
	}

	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= cap {
			return cap
		}
	}
	if d > cap {
		return cap
	}
	return d
}

func textContent(resp *driver.Response) string {
	if resp == nil {
		return ""
	}
	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == content.ContentTypeText {
			sb.WriteString(block.Text)
		}
	}
	return sb.String()
}

func (r *Router) now() time.Time {
	if r != nil && r.Clock != nil {
		return r.Clock()
	}
	return time.Now()
}

func (r *Router) sleep(ctx context.Context, d time.Duration) error {
	if r != nil && r.Sleep != nil {
		return r.Sleep(ctx, d)
	}
	return sleepContext(ctx, d)
}
