// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/screening-engine/internal/aggregate"
	"github.com/pdiddy/screening-engine/pkg/types"
)

func confidenceOf(it types.LabeledOutputs) float64 {
	return aggregate.EnsembleConfidence(it.Outputs)
}

func item(include bool, decisions ...types.Decision) types.LabeledOutputs {
	var outs []types.ModelOutput
	for i, d := range decisions {
		score := 0.2
		if d == types.DecisionInclude {
			score = 0.8
		}
		outs = append(outs, types.ModelOutput{ModelID: string(rune('a' + i)), Decision: d, Score: score, Confidence: 0.9})
	}
	return types.LabeledOutputs{Outputs: outs, Include: include}
}

const (
	inc = types.DecisionInclude
	exc = types.DecisionExclude
)

// separated returns a validation set where positives draw mostly INCLUDE
// votes and negatives mostly EXCLUDE votes.
func separated() []types.LabeledOutputs {
	var v []types.LabeledOutputs
	for i := 0; i < 20; i++ {
		v = append(v, item(true, inc, inc, inc))
		v = append(v, item(false, exc, exc, exc))
	}
	for i := 0; i < 5; i++ {
		v = append(v, item(true, inc, inc, exc, inc, inc, inc, inc, inc, inc, inc))
		v = append(v, item(false, exc, exc, inc))
	}
	return v
}

func TestOptimizeMeetsSensitivityFloor(t *testing.T) {
	opt := ThresholdOptimizer{MinSensitivity: 0.95}
	res := opt.Optimize(separated())

	require.True(t, res.Feasible)
	require.NoError(t, res.Thresholds.Validate())
	assert.GreaterOrEqual(t, res.Sensitivity, 0.95)
	assert.Equal(t, 1140, res.Candidates, "C(20,3) triples at step 0.05")

	// Re-route the validation set under the chosen thresholds.
	r, err := New(res.Thresholds)
	require.NoError(t, err)
	var auto int
	for _, it := range separated() {
		d, _ := r.Route(it.Outputs, types.RuleCheckResult{}, confidenceOf(it))
		if d != types.DecisionHumanReview {
			auto++
		}
	}
	assert.InDelta(t, float64(auto)/float64(len(separated())), res.AutomationRate, 1e-12)
	// The 2:1 negatives (confidence ≈ 0.08) sit below the lowest τ_mid.
	assert.InDelta(t, 0.9, res.AutomationRate, 1e-12)
	assert.Equal(t, types.Thresholds{TauHigh: 0.15, TauMid: 0.1, TauLow: 0.05}, res.Thresholds)
}

func TestOptimizeFirstFoundWinsTies(t *testing.T) {
	// Even splits have zero confidence, so automation is the same for every
	// triple and the first one visited is kept.
	v := []types.LabeledOutputs{
		item(true, inc, inc),
		item(false, exc, exc),
		item(true, inc, exc),
	}
	res := ThresholdOptimizer{}.Optimize(v)
	require.True(t, res.Feasible)
	assert.Equal(t, types.Thresholds{TauHigh: 0.15, TauMid: 0.1, TauLow: 0.05}, res.Thresholds)
	assert.InDelta(t, 2.0/3, res.AutomationRate, 1e-12)
}

func TestOptimizeFallsBackWhenInfeasible(t *testing.T) {
	// Every positive is unanimously excluded, which no threshold can rescue.
	v := []types.LabeledOutputs{
		item(true, exc, exc),
		item(true, exc, exc),
		item(false, exc, exc),
	}
	res := ThresholdOptimizer{MinSensitivity: 0.9}.Optimize(v)
	assert.False(t, res.Feasible)
	assert.Equal(t, types.DefaultThresholds(), res.Thresholds)
	assert.Equal(t, 0.0, res.Sensitivity)

	custom := types.Thresholds{TauHigh: 0.9, TauMid: 0.5, TauLow: 0.2}
	res = ThresholdOptimizer{MinSensitivity: 0.9, Fallback: &custom}.Optimize(v)
	assert.Equal(t, custom, res.Thresholds)
}

func TestOptimizeCoarseGrid(t *testing.T) {
	res := ThresholdOptimizer{Step: 0.25}.Optimize(separated())
	// Grid {0.25, 0.5, 0.75, 1}: four triples.
	assert.Equal(t, 4, res.Candidates)
	require.NoError(t, res.Thresholds.Validate())
}

func TestGridValues(t *testing.T) {
	assert.Equal(t, []float64{0.25, 0.5, 0.75, 1}, gridValues(0.25))
	g := gridValues(0.05)
	assert.Len(t, g, 20)
	assert.Equal(t, 0.05, g[0])
	assert.Equal(t, 0.35, g[6])
	assert.Equal(t, 1.0, g[19])
}

func TestOptimizerFromConfig(t *testing.T) {
	o := OptimizerFromConfig(types.OptimizerConfig{GridStep: 0.1, MinSensitivity: 0.99})
	assert.Equal(t, 0.1, o.Step)
	assert.Equal(t, 0.99, o.MinSensitivity)
}
