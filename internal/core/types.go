package core

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// StepStatus reports how a pipeline step finished.
type StepStatus string

const (
	StepStatusOK       StepStatus = "ok"
	StepStatusFallback StepStatus = "fallback"
	StepStatusSkipped  StepStatus = "skipped"
	StepStatusFailed   StepStatus = "failed"
)

// RunStatus tracks the pipeline run state machine.
type RunStatus string

const (
	RunStatusNotStarted        RunStatus = "not_started"
	RunStatusRunning           RunStatus = "running"
	RunStatusCompleted         RunStatus = "completed"
	RunStatusDegradedCompleted RunStatus = "degraded_completed"
	RunStatusFailed            RunStatus = "failed"
)

// StepResult records the outcome of a single pipeline step.
// It is written exactly once, by the task that executed the step.
type StepResult struct {
	StepID      string          `json:"step_id"`
	Status      StepStatus      `json:"status"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Model       string          `json:"model,omitempty"`
	Latency     time.Duration   `json:"latency"`
	Message     string          `json:"message,omitempty"`
	CompletedAt time.Time       `json:"completed_at"`
}

// State is the append-only accumulator of step results for one run.
// Later steps read it to build their inputs; each slot is written once.
type State struct {
	RunID string

	mu      sync.Mutex
	results []StepResult
	index   map[string]int
}

// NewState returns an empty state for a run.
func NewState(runID string) *State {
	return &State{RunID: runID, index: map[string]int{}}
}

// Append records a step result. A second write to the same step is an error.
func (s *State) Append(result StepResult) error {
	if s == nil {
		return fmt.Errorf("pipeline state not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index == nil {
		s.index = map[string]int{}
	}
	if _, ok := s.index[result.StepID]; ok {
		return fmt.Errorf("step %q already recorded", result.StepID)
	}
	s.index[result.StepID] = len(s.results)
	s.results = append(s.results, result)
	return nil
}

// Get returns the recorded result for a step, if present.
func (s *State) Get(stepID string) (StepResult, bool) {
	if s == nil {
		return StepResult{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.index[stepID]
	if !ok {
		return StepResult{}, false
	}
	return s.results[idx], true
}

// Payload returns the payload recorded for a step, or nil.
func (s *State) Payload(stepID string) json.RawMessage {
	result, ok := s.Get(stepID)
	if !ok {
		return nil
	}
	return result.Payload
}

// Results returns a snapshot of the recorded results in append order.
func (s *State) Results() []StepResult {
	if s == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := make([]StepResult, len(s.results))
	copy(snapshot, s.results)
	return snapshot
}

// RunResult is the final aggregate for a pipeline run.
type RunResult struct {
	RunID         string       `json:"run_id"`
	Status        RunStatus    `json:"status"`
	Steps         []StepResult `json:"steps"`
	DegradedSteps []string     `json:"degraded_steps,omitempty"`
	StartedAt     time.Time    `json:"started_at"`
	CompletedAt   time.Time    `json:"completed_at"`
}

// Degraded reports whether any step fell back to a placeholder.
func (r *RunResult) Degraded() bool {
	return r != nil && len(r.DegradedSteps) > 0
}
