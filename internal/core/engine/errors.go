package engine

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/storyloom/storyloom/internal/llm/driver"
)

// ErrorClass buckets provider-call failures for retry/cascade decisions.
type ErrorClass string

const (
	// ErrorClassTransient errors are retried with backoff, then cascaded.
	ErrorClassTransient ErrorClass = "transient"
	// ErrorClassFatal errors skip further retries on the same model and go
	// straight to the cascade.
	ErrorClassFatal ErrorClass = "fatal"
)

// ValidationError marks a provider response that could not be coerced into
// the expected structure. Always fatal for the attempt that produced it.
type ValidationError struct {
	Model string
	Err   error
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "response validation failed"
	}
	return fmt.Sprintf("%s response validation failed: %v", e.Model, e.Err)
}

func (e *ValidationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ClassifyError decides whether a provider-call failure is worth retrying.
//
// Transient: rate-limit responses, server-side 5xx, network timeouts.
// Everything else (bad requests, auth failures, structural validation) is
// fatal for the current model and moves the router to the next cascade stage.
func ClassifyError(err error) ErrorClass {
	if err == nil {
		return ErrorClassFatal
	}

	var verr *ValidationError
	if errors.As(err, &verr) {
		return ErrorClassFatal
	}

	var perr *driver.ProviderError
	if errors.As(err, &perr) && perr != nil {
		switch {
		case perr.StatusCode == 429:
			return ErrorClassTransient
		case perr.StatusCode >= 500 && perr.StatusCode <= 599:
			return ErrorClassTransient
		default:
			return ErrorClassFatal
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorClassTransient
	}

	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return ErrorClassTransient
	}

	return ErrorClassFatal
}

// CascadeExhaustedError is returned when every model in the fallback cascade
// has been tried and failed. It names each model attempted, in order, and
// carries the last error class observed.
type CascadeExhaustedError struct {
	Attempted []string
	LastClass ErrorClass
	LastErr   error
}

func (e *CascadeExhaustedError) Error() string {
	if e == nil {
		return "fallback cascade exhausted"
	}
	return fmt.Sprintf("fallback cascade exhausted after %s (%s): %v",
		strings.Join(e.Attempted, ", "), e.LastClass, e.LastErr)
}

func (e *CascadeExhaustedError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.LastErr
}

// PipelineFatalError aborts a run: a sequential prefix or suffix step
// exhausted its cascade and no placeholder can stand in for it.
type PipelineFatalError struct {
	StepID string
	Cause  error
}

func (e *PipelineFatalError) Error() string {
	if e == nil {
		return "pipeline step failed"
	}
	return fmt.Sprintf("pipeline step %q failed: %v", e.StepID, e.Cause)
}

func (e *PipelineFatalError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}
