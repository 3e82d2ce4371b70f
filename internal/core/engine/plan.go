package engine

import (
	"fmt"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/storyloom/storyloom/internal/core"
)

// Mode selects how aggressively a run schedules parallel work.
type Mode string

const (
	ModeSequential Mode = "sequential"
	ModeNormal     Mode = "normal"
	ModeAggressive Mode = "aggressive"
	ModeMax        Mode = "max"
)

// Valid reports whether the mode is a known value.
func (m Mode) Valid() bool {
	switch m {
	case ModeSequential, ModeNormal, ModeAggressive, ModeMax:
		return true
	}
	return false
}

// Plan is the resolved concurrency envelope for one run.
type Plan struct {
	Mode          Mode
	Tier          core.Tier
	MaxConcurrent int
	// ParallelFanOut is false when the batch phase must run its steps
	// one at a time even though they have no mutual dependencies.
	ParallelFanOut bool
}

// AllowsEarlyStart reports whether the plan's mode permits overlapping
// the prefix with batch steps whose dependencies are already satisfied.
// Only the aggressive and max modes trade the simpler staged schedule
// for lower latency.
func (p Plan) AllowsEarlyStart() bool {
	return p.Mode == ModeAggressive || p.Mode == ModeMax
}

// ConcurrencyMatrix maps tier and mode to a concurrent-call limit.
type ConcurrencyMatrix map[core.Tier]map[Mode]int

// DefaultMatrix holds the stock limits. Sequential is 1 everywhere by
// definition; the remaining values scale with what each tier tolerates.
var DefaultMatrix = ConcurrencyMatrix{
	core.TierFree:   {ModeSequential: 1, ModeNormal: 2, ModeAggressive: 3, ModeMax: 4},
	core.TierPaid:   {ModeSequential: 1, ModeNormal: 4, ModeAggressive: 8, ModeMax: 12},
	core.TierNative: {ModeSequential: 1, ModeNormal: 6, ModeAggressive: 12, ModeMax: 16},
}

// DefaultCeilings is the provider-enforced concurrent connection limit per
// tier. Max mode stays one below the ceiling to leave headroom for
// out-of-band calls.
var DefaultCeilings = map[core.Tier]int{
	core.TierFree:   3,
	core.TierPaid:   10,
	core.TierNative: 20,
}

// Planner resolves a (tier, mode) pair into a Plan.
type Planner struct {
	Matrix   ConcurrencyMatrix
	Ceilings map[core.Tier]int
	Logger   *logging.Logger
}

// Build resolves the concurrency plan for a run and logs it once so the
// chosen limits are visible in run output.
func (p *Planner) Build(modelID string, mode Mode) (Plan, error) {
	if !mode.Valid() {
		return Plan{}, fmt.Errorf("unknown execution mode %q", mode)
	}

	tier := core.Classify(modelID)

	limit := p.limit(tier, mode)
	if mode == ModeSequential {
		limit = 1
	}
	if mode == ModeMax {
		if ceiling := p.ceiling(tier); ceiling > 0 && limit > ceiling-1 {
			limit = ceiling - 1
		}
	}
	if limit < 1 {
		limit = 1
	}

	plan := Plan{
		Mode:          mode,
		Tier:          tier,
		MaxConcurrent: limit,
		// Free tier fan-out always serializes: parallel bursts trip the
		// provider's per-key limits even under the token bucket.
		ParallelFanOut: mode != ModeSequential && tier != core.TierFree,
	}

	if p != nil && p.Logger != nil {
		p.Logger.Info("Execution plan resolved",
			zap.String("model", modelID),
			zap.String("tier", string(tier)),
			zap.String("mode", string(mode)),
			zap.Int("max_concurrent", plan.MaxConcurrent),
			zap.Bool("parallel_fan_out", plan.ParallelFanOut))
	}

	return plan, nil
}

func (p *Planner) limit(tier core.Tier, mode Mode) int {
	matrix := DefaultMatrix
	if p != nil && p.Matrix != nil {
		matrix = p.Matrix
	}
	if limits, ok := matrix[tier]; ok {
		if limit, ok := limits[mode]; ok {
			return limit
		}
	}
	// Unknown tier or mode entry: fall back to the stock limits.
	if limits, ok := DefaultMatrix[tier]; ok {
		return limits[mode]
	}
	return 1
}

func (p *Planner) ceiling(tier core.Tier) int {
	ceilings := DefaultCeilings
	if p != nil && p.Ceilings != nil {
		ceilings = p.Ceilings
	}
	return ceilings[tier]
}
