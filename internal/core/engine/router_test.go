package engine

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/storyloom/storyloom/internal/core"
	"github.com/storyloom/storyloom/internal/llm/content"
	"github.com/storyloom/storyloom/internal/llm/driver"
)

// scriptedDriver replays a response sequence per model.
type scriptedDriver struct {
	responses map[string][]scriptedResponse
	calls     map[string]int
}

type scriptedResponse struct {
	text string
	err  error
}

func (d *scriptedDriver) Complete(_ context.Context, req *driver.Request) (*driver.Response, error) {
	if d.calls == nil {
		d.calls = map[string]int{}
	}
	script := d.responses[req.Model]
	idx := d.calls[req.Model]
	d.calls[req.Model]++

	if idx >= len(script) {
		return nil, fmt.Errorf("no scripted response for %s call %d", req.Model, idx)
	}
	step := script[idx]
	if step.err != nil {
		return nil, step.err
	}
	return &driver.Response{
		Content: []content.ContentBlock{{Type: content.ContentTypeText, Text: step.text}},
	}, nil
}

func (d *scriptedDriver) Name() string { return "scripted" }

func (d *scriptedDriver) Capabilities() driver.Capabilities { return driver.Capabilities{} }

type fakeResolver struct {
	driver driver.Driver
}

func (r *fakeResolver) DriverFor(string) (driver.Driver, error) { return r.driver, nil }

func newTestRouter(drv driver.Driver) (*Router, *fakeTime) {
	ft := newFakeTime()
	limiter := NewLimiter(nil)
	limiter.Clock = ft.Now
	limiter.Sleep = ft.Sleep
	return &Router{
		Limiter:   limiter,
		Providers: &fakeResolver{driver: drv},
		Retry:     RetryConfig{MaxAttempts: 3, BackoffBase: 2 * time.Second, BackoffCap: 120 * time.Second},
		Cascade:   CascadeConfig{PaidFallback: "paid/fallback", NativeFallback: "gemini-fallback"},
		Clock:     ft.Now,
		Sleep:     ft.Sleep,
	}, ft
}

func TestCallFirstAttemptSucceeds(t *testing.T) {
	drv := &scriptedDriver{responses: map[string][]scriptedResponse{
		"anthropic/claude": {{text: `{"ok":true}`}},
	}}
	router, _ := newTestRouter(drv)

	result, err := router.Call(context.Background(), Call{
		Model:    "anthropic/claude",
		Messages: []content.Message{content.Text("user", "hi")},
	})
	require.NoError(t, err)
	require.Equal(t, "anthropic/claude", result.Model)
	require.Equal(t, core.TierPaid, result.Tier)
	require.Equal(t, []byte(`{"ok":true}`), result.Payload)
	require.Equal(t, 1, result.Attempts)
	require.Zero(t, result.CascadeHops)
	require.False(t, result.UsedFallback)
}

func TestCallRetriesTransientWithBackoff(t *testing.T) {
	rateLimited := &driver.ProviderError{Provider: "scripted", StatusCode: 429, Message: "slow down"}
	drv := &scriptedDriver{responses: map[string][]scriptedResponse{
		"paid/model": {{err: rateLimited}, {err: rateLimited}, {text: "done"}},
	}}
	router, ft := newTestRouter(drv)

	result, err := router.Call(context.Background(), Call{
		Model:    "paid/model",
		Messages: []content.Message{content.Text("user", "hi")},
	})
	require.NoError(t, err)
	require.Equal(t, 3, result.Attempts)

	// Backoff doubles: 2s before the second attempt, 4s before the third.
	require.Contains(t, ft.sleeps, 2*time.Second)
	require.Contains(t, ft.sleeps, 4*time.Second)
}

func TestCallFatalErrorSkipsRetries(t *testing.T) {
	badRequest := &driver.ProviderError{Provider: "scripted", StatusCode: 400, Message: "bad request"}
	drv := &scriptedDriver{responses: map[string][]scriptedResponse{
		"paid/model":      {{err: badRequest}},
		"paid/fallback":   {{text: "rescued"}},
		"gemini-fallback": nil,
	}}
	router, _ := newTestRouter(drv)

	result, err := router.Call(context.Background(), Call{
		Model:    "paid/model",
		Messages: []content.Message{content.Text("user", "hi")},
	})
	require.NoError(t, err)
	require.Equal(t, "paid/fallback", result.Model)
	require.Equal(t, 1, result.CascadeHops)
	require.True(t, result.UsedFallback)
	// The fatal error burned exactly one attempt on the requested model.
	require.Equal(t, 1, drv.calls["paid/model"])
}

func TestCallExhaustsCascade(t *testing.T) {
	serverErr := &driver.ProviderError{Provider: "scripted", StatusCode: 503, Message: "unavailable"}
	always := []scriptedResponse{{err: serverErr}, {err: serverErr}, {err: serverErr}}
	drv := &scriptedDriver{responses: map[string][]scriptedResponse{
		"paid/model":      always,
		"paid/fallback":   always,
		"gemini-fallback": always,
	}}
	router, _ := newTestRouter(drv)

	_, err := router.Call(context.Background(), Call{
		Model:    "paid/model",
		Messages: []content.Message{content.Text("user", "hi")},
	})
	require.Error(t, err)

	var exhausted *CascadeExhaustedError
	require.ErrorAs(t, err, &exhausted)
	require.Equal(t, []string{"paid/model", "paid/fallback", "gemini-fallback"}, exhausted.Attempted)
	require.Equal(t, ErrorClassTransient, exhausted.LastClass)
}

func TestCallDeduplicatesCascade(t *testing.T) {
	serverErr := &driver.ProviderError{Provider: "scripted", StatusCode: 500, Message: "boom"}
	drv := &scriptedDriver{responses: map[string][]scriptedResponse{
		"paid/fallback":   {{err: serverErr}, {err: serverErr}, {err: serverErr}},
		"gemini-fallback": {{text: "served"}},
	}}
	router, _ := newTestRouter(drv)

	// Requesting the paid fallback directly must not try it twice.
	result, err := router.Call(context.Background(), Call{
		Model:    "paid/fallback",
		Messages: []content.Message{content.Text("user", "hi")},
	})
	require.NoError(t, err)
	require.Equal(t, "gemini-fallback", result.Model)
	require.Equal(t, 3, drv.calls["paid/fallback"])
}

func TestCallValidationFailureIsFatal(t *testing.T) {
	drv := &scriptedDriver{responses: map[string][]scriptedResponse{
		"paid/model":      {{text: "not json"}},
		"paid/fallback":   {{text: `{"ok":true}`}},
		"gemini-fallback": nil,
	}}
	router, _ := newTestRouter(drv)

	result, err := router.Call(context.Background(), Call{
		Model:    "paid/model",
		Messages: []content.Message{content.Text("user", "hi")},
		Validate: func(payload []byte) error {
			if string(payload) != `{"ok":true}` {
				return fmt.Errorf("unexpected payload")
			}
			return nil
		},
	})
	require.NoError(t, err)
	require.Equal(t, "paid/fallback", result.Model)
	// Validation failures do not retry the same model.
	require.Equal(t, 1, drv.calls["paid/model"])
}

func TestCallRequiresModel(t *testing.T) {
	router, _ := newTestRouter(&scriptedDriver{})

	_, err := router.Call(context.Background(), Call{})
	require.Error(t, err)
}

func TestClassifyErrorTable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want ErrorClass
	}{
		{"rate limit", &driver.ProviderError{StatusCode: 429}, ErrorClassTransient},
		{"server error", &driver.ProviderError{StatusCode: 502}, ErrorClassTransient},
		{"bad request", &driver.ProviderError{StatusCode: 400}, ErrorClassFatal},
		{"unauthorized", &driver.ProviderError{StatusCode: 401}, ErrorClassFatal},
		{"deadline", context.DeadlineExceeded, ErrorClassTransient},
		{"validation", &ValidationError{Model: "m", Err: fmt.Errorf("bad shape")}, ErrorClassFatal},
		{"unknown", fmt.Errorf("weird"), ErrorClassFatal},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, ClassifyError(tc.err))
		})
	}
}
