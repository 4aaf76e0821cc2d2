// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package aggregate

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/screening-engine/internal/calibrate"
	"github.com/pdiddy/screening-engine/pkg/types"
)

func out(id string, d types.Decision, score, conf float64) types.ModelOutput {
	return types.ModelOutput{ModelID: id, Decision: d, Score: score, Confidence: conf}
}

func failed(id string) types.ModelOutput {
	return types.ModelOutput{ModelID: id, Decision: types.DecisionInclude, Score: 0.5, Confidence: 0, Error: "timed out"}
}

func TestEnsembleConfidence(t *testing.T) {
	tests := []struct {
		name    string
		outputs []types.ModelOutput
		want    float64
	}{
		{"no outputs", nil, 1},
		{"single model", []types.ModelOutput{out("a", types.DecisionExclude, 0.2, 0.1)}, 1},
		{"unanimous include ignores self-reported confidence", []types.ModelOutput{
			out("a", types.DecisionInclude, 0.9, 0.1),
			out("b", types.DecisionInclude, 0.6, 0.3),
			out("c", types.DecisionInclude, 0.7, 0.99),
		}, 1},
		{"unanimous exclude", []types.ModelOutput{
			out("a", types.DecisionExclude, 0.1, 0.5),
			out("b", types.DecisionExclude, 0.2, 0.5),
		}, 1},
		{"even split", []types.ModelOutput{
			out("a", types.DecisionInclude, 0.9, 0.6),
			out("b", types.DecisionExclude, 0.1, 0.6),
		}, 0},
		{"two to one", []types.ModelOutput{
			out("a", types.DecisionInclude, 0.9, 0.9),
			out("b", types.DecisionInclude, 0.8, 0.9),
			out("c", types.DecisionExclude, 0.2, 0.9),
		}, 0.08170416594551055},
		{"failed output is not a vote", []types.ModelOutput{
			out("a", types.DecisionExclude, 0.1, 0.9),
			failed("b"),
		}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, EnsembleConfidence(tt.outputs), 1e-12)
		})
	}
}

func TestRawScoreEqualWeights(t *testing.T) {
	a := New(nil, nil)
	outs := []types.ModelOutput{
		out("a", types.DecisionInclude, 0.9, 0.95),
		out("b", types.DecisionExclude, 0.1, 0.8),
	}
	num := 0.9*0.95*0.9 + 0.1*0.8*0.1
	den := 0.95*0.9 + 0.8*0.1
	assert.InDelta(t, num/den, a.RawScore(outs), 1e-12)
}

func TestRawScoreExcludesFailedOutputs(t *testing.T) {
	a := New(nil, nil)
	withFailure := []types.ModelOutput{
		out("a", types.DecisionInclude, 0.8, 0.9),
		{ModelID: "b", Decision: types.DecisionInclude, Score: 0.5, Confidence: 1, Error: "bad json"},
	}
	assert.InDelta(t, 0.8, a.RawScore(withFailure), 1e-12)
	assert.Equal(t, 0.0, a.RawScore([]types.ModelOutput{failed("a"), failed("b")}))
}

func TestRawScoreZeroConfidence(t *testing.T) {
	a := New(nil, nil)
	outs := []types.ModelOutput{
		out("a", types.DecisionInclude, 0.9, 0),
		out("b", types.DecisionInclude, 0.7, 0),
	}
	assert.Equal(t, 0.0, a.RawScore(outs))
}

func TestRawScoreFixedWeights(t *testing.T) {
	outs := []types.ModelOutput{
		out("a", types.DecisionInclude, 0.9, 1),
		out("b", types.DecisionExclude, 0.2, 1),
	}
	a := New(NewWeightLookup(types.Weights{"a": 0.9, "b": 0.1}), nil)
	num := 0.9*0.9*0.9 + 0.1*0.2*0.2
	den := 0.9*0.9 + 0.1*0.2
	assert.InDelta(t, num/den, a.RawScore(outs), 1e-12)

	// A model missing from the fitted map gets the equal share.
	a = New(NewWeightLookup(types.Weights{"a": 0.5}), nil)
	assert.InDelta(t, (0.9*0.9+0.2*0.2)/(0.9+0.2), a.RawScore(outs), 1e-12)

	_, ok := NewWeightLookup(nil).Weight("a")
	assert.False(t, ok)
}

func TestRawScoreAppliesCalibrators(t *testing.T) {
	iso := &calibrate.Isotonic{}
	require.NoError(t, iso.Fit([]float64{0.1, 0.9}, []bool{false, true}))

	outs := []types.ModelOutput{
		out("a", types.DecisionInclude, 0.9, 1),
		out("b", types.DecisionExclude, 0.1, 1),
	}
	a := New(nil, calibrate.Set{"b": iso})
	assert.InDelta(t, 0.9, a.RawScore(outs), 1e-12, "b is calibrated to zero and drops out")
}

func TestFinalScoreClamps(t *testing.T) {
	assert.Equal(t, 0.0, FinalScore(0.7, 1.5))
	assert.Equal(t, 0.0, FinalScore(0.1, 0.15))
	assert.InDelta(t, 0.55, FinalScore(0.7, 0.15), 1e-12)
	assert.Equal(t, 1.0, FinalScore(1.2, 0))
}

func TestAggregateStaysInUnitInterval(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	decisions := []types.Decision{types.DecisionInclude, types.DecisionExclude}
	a := New(NewWeightLookup(types.Weights{"m0": 0.7, "m1": 0.2, "m2": 0.1}), nil)

	for i := 0; i < 500; i++ {
		var outs []types.ModelOutput
		n := 1 + rng.Intn(3)
		for j := 0; j < n; j++ {
			o := out([]string{"m0", "m1", "m2"}[j], decisions[rng.Intn(2)], rng.Float64(), rng.Float64())
			if rng.Intn(5) == 0 {
				o.Error = "timeout"
			}
			outs = append(outs, o)
		}
		penalty := rng.Float64() * 2
		res := a.Aggregate(outs, types.RuleCheckResult{TotalPenalty: penalty})

		assert.GreaterOrEqual(t, res.FinalScore, 0.0)
		assert.LessOrEqual(t, res.FinalScore, 1.0)
		assert.GreaterOrEqual(t, res.Confidence, 0.0)
		assert.LessOrEqual(t, res.Confidence, 1.0)
		assert.LessOrEqual(t, res.FinalScore, res.RawScore)
	}
}

func TestAggregateScenarioUnanimous(t *testing.T) {
	outs := []types.ModelOutput{
		out("a", types.DecisionInclude, 0.9, 0.95),
		out("b", types.DecisionInclude, 0.9, 0.95),
	}
	res := New(nil, nil).Aggregate(outs, types.RuleCheckResult{})
	assert.InDelta(t, 0.9, res.FinalScore, 1e-12)
	assert.Equal(t, 1.0, res.Confidence)
}
