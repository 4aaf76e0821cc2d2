// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package router

import (
	"math"

	"github.com/pdiddy/screening-engine/internal/aggregate"
	"github.com/pdiddy/screening-engine/internal/evaluate"
	"github.com/pdiddy/screening-engine/pkg/types"
)

// Optimizer defaults.
const (
	DefaultGridStep       = 0.05
	DefaultMinSensitivity = 0.95
)

// ThresholdOptimizer searches a threshold grid for the triple that automates
// the most records while keeping sensitivity at or above MinSensitivity.
type ThresholdOptimizer struct {
	// Step is the grid resolution (default 0.05).
	Step float64

	// MinSensitivity is the recall floor (default 0.95).
	MinSensitivity float64

	// Fallback is returned when no grid point is feasible (default
	// types.DefaultThresholds).
	Fallback *types.Thresholds
}

// OptimizerFromConfig returns an optimizer for the optimizer config section.
func OptimizerFromConfig(cfg types.OptimizerConfig) ThresholdOptimizer {
	return ThresholdOptimizer{Step: cfg.GridStep, MinSensitivity: cfg.MinSensitivity}
}

// SearchResult is the outcome of a grid search.
type SearchResult struct {
	Thresholds     types.Thresholds `json:"thresholds" yaml:"thresholds"`
	Sensitivity    float64          `json:"sensitivity" yaml:"sensitivity"`
	AutomationRate float64          `json:"automation_rate" yaml:"automation_rate"`

	// Feasible is false when no candidate met the sensitivity floor and the
	// fallback thresholds were returned.
	Feasible bool `json:"feasible" yaml:"feasible"`

	// Candidates is the number of grid triples evaluated.
	Candidates int `json:"candidates" yaml:"candidates"`
}

// Optimize runs the grid search over a labeled validation set. Each item is
// routed with a clean rule result, so only the thresholds vary.
//
// Triples are visited with τ_low, then τ_mid, then τ_high ascending. A
// candidate replaces the incumbent only with strictly higher automation, so
// the first triple found wins ties.
func (o ThresholdOptimizer) Optimize(validation []types.LabeledOutputs) SearchResult {
	step := o.Step
	if step <= 0 || step >= 0.5 {
		step = DefaultGridStep
	}
	minSens := o.MinSensitivity
	if minSens <= 0 {
		minSens = DefaultMinSensitivity
	}

	confidence := make([]float64, len(validation))
	for i, item := range validation {
		confidence[i] = aggregate.EnsembleConfidence(item.Outputs)
	}

	simulate := func(t types.Thresholds) (sens, auto float64) {
		outcomes := make([]evaluate.Outcome, len(validation))
		for i, item := range validation {
			d, tier := route(t, item.Outputs, types.RuleCheckResult{}, confidence[i])
			outcomes[i] = evaluate.Outcome{RecordID: item.RecordID, Decision: d, Tier: tier, Include: item.Include}
		}
		return evaluate.Sensitivity(outcomes), evaluate.AutomationRate(outcomes)
	}

	grid := gridValues(step)
	var best SearchResult
	for li := 0; li < len(grid); li++ {
		for mi := li + 1; mi < len(grid); mi++ {
			for hi := mi + 1; hi < len(grid); hi++ {
				t := types.Thresholds{TauHigh: grid[hi], TauMid: grid[mi], TauLow: grid[li]}
				best.Candidates++
				sens, auto := simulate(t)
				if sens < minSens {
					continue
				}
				if !best.Feasible || auto > best.AutomationRate {
					best.Thresholds = t
					best.Sensitivity = sens
					best.AutomationRate = auto
					best.Feasible = true
				}
			}
		}
	}
	if best.Feasible {
		return best
	}

	fallback := types.DefaultThresholds()
	if o.Fallback != nil {
		fallback = *o.Fallback
	}
	best.Thresholds = fallback
	best.Sensitivity, best.AutomationRate = simulate(fallback)
	return best
}

// gridValues returns step, 2·step, … up to 1, rounded to suppress
// accumulated floating-point error.
func gridValues(step float64) []float64 {
	n := int(math.Round(1 / step))
	vals := make([]float64, 0, n)
	for k := 1; k <= n; k++ {
		v := math.Round(float64(k)*step*1e6) / 1e6
		if v > 1 {
			break
		}
		vals = append(vals, v)
	}
	return vals
}
