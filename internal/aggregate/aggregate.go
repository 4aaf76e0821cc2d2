// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package aggregate is Layer 3 of the screening pipeline: Calibrated
// Confidence Aggregation of per-model scores and the entropy-based ensemble
// confidence. Everything here is a pure function of its inputs.
package aggregate

import (
	"math"

	"github.com/pdiddy/screening-engine/internal/calibrate"
	"github.com/pdiddy/screening-engine/pkg/types"
)

// Epsilon guards the CCA denominator when every confidence is zero.
const Epsilon = 1e-9

// WeightLookup returns a model's ensemble weight. ok is false when the
// lookup has no weight for the model.
type WeightLookup interface {
	Weight(modelID string) (w float64, ok bool)
}

// EqualWeights gives every model the same share.
type EqualWeights struct{}

func (EqualWeights) Weight(string) (float64, bool) { return 0, false }

// FixedWeights looks weights up in a fitted Weights map.
type FixedWeights types.Weights

func (f FixedWeights) Weight(modelID string) (float64, bool) {
	w, ok := f[modelID]
	return w, ok
}

// NewWeightLookup returns the lookup for a possibly empty Weights map.
func NewWeightLookup(w types.Weights) WeightLookup {
	if len(w) == 0 {
		return EqualWeights{}
	}
	return FixedWeights(w)
}

// Result is the Layer 3 output for one record.
type Result struct {
	RawScore   float64 `json:"raw_score"`
	FinalScore float64 `json:"final_score"`
	Confidence float64 `json:"confidence"`
}

// Aggregator combines model outputs under fixed weights and calibrators.
type Aggregator struct {
	weights     WeightLookup
	calibrators calibrate.Lookup
}

// New returns an Aggregator. Nil arguments select equal weights and identity
// calibration.
func New(weights WeightLookup, calibrators calibrate.Lookup) *Aggregator {
	if weights == nil {
		weights = EqualWeights{}
	}
	if calibrators == nil {
		calibrators = calibrate.Set(nil)
	}
	return &Aggregator{weights: weights, calibrators: calibrators}
}

// Aggregate scores one record's outputs after the rule penalty.
func (a *Aggregator) Aggregate(outputs []types.ModelOutput, rules types.RuleCheckResult) Result {
	raw := a.RawScore(outputs)
	return Result{
		RawScore:   raw,
		FinalScore: FinalScore(raw, rules.TotalPenalty),
		Confidence: EnsembleConfidence(outputs),
	}
}

// RawScore computes Σ(w·s·c·φ) / max(Σ(w·c·φ), ε) over the valid outputs,
// where φ is the model's calibrated score. A model with no fitted weight
// receives the equal share 1/n.
func (a *Aggregator) RawScore(outputs []types.ModelOutput) float64 {
	valid := types.ValidOutputs(outputs)
	if len(valid) == 0 {
		return 0
	}
	equal := 1 / float64(len(valid))

	var num, den float64
	for _, o := range valid {
		w, ok := a.weights.Weight(o.ModelID)
		if !ok {
			w = equal
		}
		phi := a.calibrators.For(o.ModelID).Calibrate(o.Score)
		num += w * o.Score * o.Confidence * phi
		den += w * o.Confidence * phi
	}
	return clamp01(num / math.Max(den, Epsilon))
}

// FinalScore subtracts the soft-rule penalty and clamps to [0,1].
func FinalScore(raw, penalty float64) float64 {
	return clamp01(raw - penalty)
}

// EnsembleConfidence is 1 − H(p_inc, p_exc)/ln 2 over the valid outputs'
// decisions, and exactly 1 when at most one output is valid or all valid
// decisions agree. Self-reported model confidence plays no part.
func EnsembleConfidence(outputs []types.ModelOutput) float64 {
	valid := types.ValidOutputs(outputs)
	n := len(valid)
	if n <= 1 {
		return 1
	}
	var inc int
	for _, o := range valid {
		if o.Decision == types.DecisionInclude {
			inc++
		}
	}
	if inc == 0 || inc == n {
		return 1
	}
	pInc := float64(inc) / float64(n)
	pExc := 1 - pInc
	h := -(pInc*math.Log(pInc) + pExc*math.Log(pExc))
	return clamp01(1 - h/math.Ln2)
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
