package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/storyloom/storyloom/internal/core"
)

// ErrSkipStep tells the orchestrator a step has nothing to do for this
// run. Returned from Step.Build; the step records a skipped result and
// the pipeline moves on.
var ErrSkipStep = errors.New("step skipped")

// Caller routes one completion call. Satisfied by *Router.
type Caller interface {
	Call(ctx context.Context, call Call) (*Result, error)
}

// Recorder persists step results as they complete.
type Recorder interface {
	RecordStep(ctx context.Context, runID string, result core.StepResult) error
}

// Step is one unit of pipeline work. Build constructs the call from the
// results accumulated so far, so a step declared after its inputs can read
// their payloads out of the run state.
type Step struct {
	ID string

	// DependsOn names the prefix steps whose results this batch step
	// reads. Only consulted under early-start scheduling.
	DependsOn []string

	// Placeholder stands in for a batch step whose fallback cascade
	// exhausted. Prefix and suffix steps have no placeholder: their
	// failure aborts the run.
	Placeholder json.RawMessage

	Build func(state *core.State) (Call, error)
}

// Spec describes a pipeline run: a sequential prefix, a fan-out batch
// bounded by the plan's concurrency limit, and a sequential suffix.
type Spec struct {
	Name   string
	Prefix []Step
	Batch  []Step
	Suffix []Step
}

// StepEvent is one streamed pipeline observation. Step is set for each
// completed step; the terminal event carries the run aggregate instead.
// RunStatus reports where the run stands at the moment of the event:
// running while steps are still completing, then the terminal status, or
// not_started when the run was rejected before any step executed.
type StepEvent struct {
	Step      *core.StepResult
	Run       *core.RunResult
	RunStatus core.RunStatus
	Err       error
}

// Orchestrator executes pipeline specs under a concurrency plan.
//
// With EarlyStart set, batch steps begin as soon as the prefix steps they
// depend on have completed instead of waiting for the whole prefix. The
// overlap only takes effect under aggressive and max plans; lower modes
// always run the staged schedule so the prefix and batch never contend
// for the plan's ceiling. The batch semaphore still bounds in-flight
// batch calls either way.
type Orchestrator struct {
	Router     Caller
	Plan       Plan
	Recorder   Recorder
	Logger     *logging.Logger
	Clock      func() time.Time
	EarlyStart bool
}

// Run executes the spec and blocks until the run reaches a terminal state.
// Batch step failures degrade the run with their placeholders; prefix and
// suffix failures abort it.
func (o *Orchestrator) Run(ctx context.Context, spec Spec) (*core.RunResult, error) {
	return o.run(ctx, spec, nil)
}

// Stream executes the spec and emits each step result as it completes,
// followed by a terminal event with the run aggregate. The channel is
// unbuffered: the pipeline does not advance past an event until the
// consumer has accepted it.
func (o *Orchestrator) Stream(ctx context.Context, spec Spec) <-chan StepEvent {
	if ctx == nil {
		ctx = context.Background()
	}
	events := make(chan StepEvent)

	go func() {
		defer close(events)
		emit := func(result core.StepResult) {
			select {
			case events <- StepEvent{Step: &result, RunStatus: core.RunStatusRunning}:
			case <-ctx.Done():
			}
		}
		run, err := o.run(ctx, spec, emit)
		status := core.RunStatusNotStarted
		if run != nil {
			status = run.Status
		}
		select {
		case events <- StepEvent{Run: run, RunStatus: status, Err: err}:
		case <-ctx.Done():
		}
	}()

	return events
}

func (o *Orchestrator) run(ctx context.Context, spec Spec, emit func(core.StepResult)) (*core.RunResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if o == nil || o.Router == nil {
		return nil, fmt.Errorf("orchestrator not configured")
	}
	if err := validateSpec(spec); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	state := core.NewState(runID)
	started := o.now()

	if o.Logger != nil {
		o.Logger.Info("Pipeline run starting",
			zap.String("run_id", runID),
			zap.String("pipeline", spec.Name),
			zap.Int("prefix_steps", len(spec.Prefix)),
			zap.Int("batch_steps", len(spec.Batch)),
			zap.Int("suffix_steps", len(spec.Suffix)))
	}

	var err error
	if o.EarlyStart && o.Plan.AllowsEarlyStart() {
		err = o.runOverlapped(ctx, spec, state, emit)
	} else {
		err = o.runStaged(ctx, spec, state, emit)
	}
	if err == nil {
		err = o.runSequential(ctx, spec.Suffix, state, emit)
	}

	result := o.finalize(runID, state, started, err)
	if o.Logger != nil {
		o.Logger.Info("Pipeline run finished",
			zap.String("run_id", runID),
			zap.String("status", string(result.Status)),
			zap.Int("degraded_steps", len(result.DegradedSteps)))
	}
	return result, err
}

// runStaged is the standard schedule: the whole prefix completes before
// any batch step starts.
func (o *Orchestrator) runStaged(ctx context.Context, spec Spec, state *core.State, emit func(core.StepResult)) error {
	if err := o.runSequential(ctx, spec.Prefix, state, emit); err != nil {
		return err
	}
	return o.runBatch(ctx, spec.Batch, state, emit, nil)
}

// runOverlapped is the early-start schedule: the prefix runs alongside the
// batch, and each batch step blocks only on the prefix steps it declares.
func (o *Orchestrator) runOverlapped(ctx context.Context, spec Spec, state *core.State, emit func(core.StepResult)) error {
	done := make(map[string]chan struct{}, len(spec.Prefix))
	for _, step := range spec.Prefix {
		done[step.ID] = make(chan struct{})
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for _, step := range spec.Prefix {
			if err := o.runAbortable(gctx, step, state, emit); err != nil {
				return err
			}
			close(done[step.ID])
		}
		return nil
	})

	g.Go(func() error {
		return o.runBatch(gctx, spec.Batch, state, emit, done)
	})

	return g.Wait()
}

// runSequential executes steps in order; any failure aborts the run.
func (o *Orchestrator) runSequential(ctx context.Context, steps []Step, state *core.State, emit func(core.StepResult)) error {
	for _, step := range steps {
		if err := o.runAbortable(ctx, step, state, emit); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) runAbortable(ctx context.Context, step Step, state *core.State, emit func(core.StepResult)) error {
	result, err := o.executeStep(ctx, step, state)
	if err != nil {
		return &PipelineFatalError{StepID: step.ID, Cause: err}
	}
	return o.finishStep(ctx, state, result, emit)
}

// runBatch fans the batch out under the plan's semaphore. A nil done map
// means all dependencies are already satisfied. Failed steps record their
// placeholder and the batch continues.
func (o *Orchestrator) runBatch(ctx context.Context, steps []Step, state *core.State, emit func(core.StepResult), done map[string]chan struct{}) error {
	if len(steps) == 0 {
		return nil
	}

	limit := o.Plan.MaxConcurrent
	if limit < 1 || !o.Plan.ParallelFanOut {
		limit = 1
	}

	if limit == 1 {
		// Serialized fan-out keeps declaration order.
		for _, step := range steps {
			if err := waitForDeps(ctx, step, done); err != nil {
				return err
			}
			if err := o.runDegradable(ctx, step, state, emit); err != nil {
				return err
			}
		}
		return nil
	}

	sem := semaphore.NewWeighted(int64(limit))
	g, gctx := errgroup.WithContext(ctx)
	for _, step := range steps {
		step := step
		g.Go(func() error {
			if err := waitForDeps(gctx, step, done); err != nil {
				return err
			}
			if err := sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)
			return o.runDegradable(gctx, step, state, emit)
		})
	}
	return g.Wait()
}

// runDegradable executes one batch step, substituting the placeholder on
// failure. Only a cancelled context or a state bookkeeping error is fatal.
func (o *Orchestrator) runDegradable(ctx context.Context, step Step, state *core.State, emit func(core.StepResult)) error {
	result, err := o.executeStep(ctx, step, state)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if o.Logger != nil {
			o.Logger.Warn("Batch step degraded to placeholder",
				zap.String("step", step.ID),
				zap.Error(err))
		}
		result = core.StepResult{
			StepID:      step.ID,
			Status:      core.StepStatusFailed,
			Payload:     step.Placeholder,
			Message:     err.Error(),
			CompletedAt: o.now(),
		}
	}
	return o.finishStep(ctx, state, result, emit)
}

func (o *Orchestrator) executeStep(ctx context.Context, step Step, state *core.State) (core.StepResult, error) {
	if step.Build == nil {
		return core.StepResult{}, fmt.Errorf("step %q has no builder", step.ID)
	}
	call, err := step.Build(state)
	if errors.Is(err, ErrSkipStep) {
		return core.StepResult{
			StepID:      step.ID,
			Status:      core.StepStatusSkipped,
			CompletedAt: o.now(),
		}, nil
	}
	if err != nil {
		return core.StepResult{}, fmt.Errorf("build call: %w", err)
	}

	res, err := o.Router.Call(ctx, call)
	if err != nil {
		return core.StepResult{}, err
	}

	status := core.StepStatusOK
	if res.UsedFallback {
		status = core.StepStatusFallback
	}
	return core.StepResult{
		StepID:      step.ID,
		Status:      status,
		Payload:     res.Payload,
		Model:       res.Model,
		Latency:     res.Latency,
		CompletedAt: o.now(),
	}, nil
}

// finishStep records the result exactly once, persists it, and emits it.
func (o *Orchestrator) finishStep(ctx context.Context, state *core.State, result core.StepResult, emit func(core.StepResult)) error {
	if err := state.Append(result); err != nil {
		return err
	}
	if o.Recorder != nil {
		if err := o.Recorder.RecordStep(ctx, state.RunID, result); err != nil && o.Logger != nil {
			o.Logger.Warn("Failed to persist step result",
				zap.String("run_id", state.RunID),
				zap.String("step", result.StepID),
				zap.Error(err))
		}
	}
	if emit != nil {
		emit(result)
	}
	return nil
}

func (o *Orchestrator) finalize(runID string, state *core.State, started time.Time, runErr error) *core.RunResult {
	steps := state.Results()

	var degraded []string
	for _, step := range steps {
		if step.Status == core.StepStatusFailed {
			degraded = append(degraded, step.StepID)
		}
	}

	status := core.RunStatusCompleted
	switch {
	case runErr != nil:
		status = core.RunStatusFailed
	case len(degraded) > 0:
		status = core.RunStatusDegradedCompleted
	}

	return &core.RunResult{
		RunID:         runID,
		Status:        status,
		Steps:         steps,
		DegradedSteps: degraded,
		StartedAt:     started,
		CompletedAt:   o.now(),
	}
}

func waitForDeps(ctx context.Context, step Step, done map[string]chan struct{}) error {
	if done == nil {
		return nil
	}
	for _, dep := range step.DependsOn {
		ch, ok := done[dep]
		if !ok {
			continue
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func validateSpec(spec Spec) error {
	seen := map[string]bool{}
	prefix := map[string]bool{}

	for _, step := range spec.Prefix {
		if step.ID == "" {
			return fmt.Errorf("pipeline step missing id")
		}
		if seen[step.ID] {
			return fmt.Errorf("duplicate pipeline step id %q", step.ID)
		}
		seen[step.ID] = true
		prefix[step.ID] = true
	}
	for _, step := range append(append([]Step{}, spec.Batch...), spec.Suffix...) {
		if step.ID == "" {
			return fmt.Errorf("pipeline step missing id")
		}
		if seen[step.ID] {
			return fmt.Errorf("duplicate pipeline step id %q", step.ID)
		}
		seen[step.ID] = true
	}
	for _, step := range spec.Batch {
		for _, dep := range step.DependsOn {
			if !prefix[dep] {
				return fmt.Errorf("batch step %q depends on unknown prefix step %q", step.ID, dep)
			}
		}
	}
	return nil
}

func (o *Orchestrator) now() time.Time {
	if o != nil && o.Clock != nil {
		return o.Clock()
	}
	return time.Now()
}
