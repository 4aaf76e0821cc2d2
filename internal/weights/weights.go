// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package weights fits per-model ensemble weights from labeled history.
//
// Weights minimize the binary cross-entropy of the weighted score S·w
// against ground-truth labels subject to w_i ≥ ε and Σw_i = 1. The
// constraints are enforced exactly by the parametrization
// w = ε + (1 − nε)·softmax(z), which turns the problem into an
// unconstrained one solved with BFGS.
package weights

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"

	"github.com/pdiddy/screening-engine/pkg/types"
)

// DefaultEpsilon is the default weight floor.
const DefaultEpsilon = 0.01

// probClip keeps predicted probabilities away from 0 and 1 inside the loss.
const probClip = 1e-7

// ErrInsufficientLabels is returned by Fit when the labels contain a single
// class. Fit then returns equal weights alongside the error.
var ErrInsufficientLabels = errors.New("weights: labels must contain both classes")

// Equal returns equal weights over ids.
func Equal(ids []string) types.Weights {
	w := make(types.Weights, len(ids))
	for _, id := range ids {
		w[id] = 1 / float64(len(ids))
	}
	return w
}

// Optimizer fits ensemble weights. The zero value uses DefaultEpsilon and
// seed 0.
type Optimizer struct {
	// Epsilon is the minimum weight any model may receive.
	Epsilon float64

	// Seed perturbs the starting point to break symmetry between models.
	Seed int64

	Logger *slog.Logger
}

func (o Optimizer) epsilon() float64 {
	if o.Epsilon > 0 {
		return o.Epsilon
	}
	return DefaultEpsilon
}

func (o Optimizer) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// Fit returns weights for modelIDs given a records × models score matrix and
// one label per record.
func (o Optimizer) Fit(modelIDs []string, scores [][]float64, labels []bool) (types.Weights, error) {
	n := len(modelIDs)
	if n == 0 {
		return nil, errors.New("weights: no models")
	}
	if len(scores) != len(labels) {
		return nil, fmt.Errorf("weights: %d score rows but %d labels", len(scores), len(labels))
	}
	for i, row := range scores {
		if len(row) != n {
			return nil, fmt.Errorf("weights: row %d has %d scores, want %d", i, len(row), n)
		}
	}
	eps := o.epsilon()
	if float64(n)*eps >= 1 {
		return nil, fmt.Errorf("weights: floor %.3f is infeasible for %d models", eps, n)
	}

	var pos int
	for _, l := range labels {
		if l {
			pos++
		}
	}
	if pos == 0 || pos == len(labels) {
		o.logger().Warn("weights not fitted, using equal weights", "models", n, "records", len(labels), "reason", ErrInsufficientLabels)
		return Equal(modelIDs), ErrInsufficientLabels
	}
	if n == 1 {
		return Equal(modelIDs), nil
	}

	y := make([]float64, len(labels))
	for i, l := range labels {
		if l {
			y[i] = 1
		}
	}
	scale := 1 - float64(n)*eps
	m := float64(len(labels))

	w := make([]float64, n)
	soft := make([]float64, n)
	gw := make([]float64, n)

	problem := optimize.Problem{
		Func: func(z []float64) float64 {
			toWeights(w, soft, z, eps, scale)
			var loss float64
			for i, row := range scores {
				p := clip(floats.Dot(row, w))
				loss -= y[i]*math.Log(p) + (1-y[i])*math.Log(1-p)
			}
			return loss / m
		},
		Grad: func(grad, z []float64) {
			toWeights(w, soft, z, eps, scale)
			for j := range gw {
				gw[j] = 0
			}
			for i, row := range scores {
				p := clip(floats.Dot(row, w))
				dp := (p - y[i]) / (p * (1 - p) * m)
				floats.AddScaled(gw, dp, row)
			}
			// Chain through the softmax: ∂w_j/∂z_k = scale·s_j(δ_jk − s_k).
			mean := floats.Dot(soft, gw)
			for k := range grad {
				grad[k] = scale * soft[k] * (gw[k] - mean)
			}
		},
	}

	rng := rand.New(rand.NewSource(o.Seed))
	z0 := make([]float64, n)
	for k := range z0 {
		z0[k] = rng.NormFloat64() * 0.01
	}

	res, err := optimize.Minimize(problem, z0, &optimize.Settings{GradientThreshold: 1e-8}, &optimize.BFGS{})
	if res == nil || !finite(res.X) {
		if err == nil {
			err = errors.New("solver returned a non-finite optimum")
		}
		return nil, fmt.Errorf("fitting weights: %w", err)
	}
	if err != nil {
		o.logger().Debug("weight solver stopped early", "status", res.Status, "error", err)
	}

	toWeights(w, soft, res.X, eps, scale)
	out := make(types.Weights, n)
	for j, id := range modelIDs {
		out[id] = w[j]
	}
	return out, nil
}

// FitHistory builds the score matrix from labeled history and fits weights
// over every model seen. Records where any model's output is missing or
// failed are left out of the matrix.
func (o Optimizer) FitHistory(history []types.LabeledOutputs) (types.Weights, error) {
	seen := make(map[string]bool)
	for _, h := range history {
		for _, out := range h.Outputs {
			seen[out.ModelID] = true
		}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	col := make(map[string]int, len(ids))
	for j, id := range ids {
		col[id] = j
	}

	var scores [][]float64
	var labels []bool
	skipped := 0
	for _, h := range history {
		row := make([]float64, len(ids))
		got := 0
		for _, out := range types.ValidOutputs(h.Outputs) {
			row[col[out.ModelID]] = out.Score
			got++
		}
		if got != len(ids) {
			skipped++
			continue
		}
		scores = append(scores, row)
		labels = append(labels, h.Include)
	}
	if skipped > 0 {
		o.logger().Info("records skipped for weight fitting", "skipped", skipped, "used", len(scores))
	}
	return o.Fit(ids, scores, labels)
}

// toWeights writes ε + scale·softmax(z) into w, keeping softmax(z) in soft.
func toWeights(w, soft, z []float64, eps, scale float64) {
	maxZ := floats.Max(z)
	for k, v := range z {
		soft[k] = math.Exp(v - maxZ)
	}
	floats.Scale(1/floats.Sum(soft), soft)
	for k := range w {
		w[k] = eps + scale*soft[k]
	}
}

func clip(p float64) float64 {
	return math.Max(probClip, math.Min(1-probClip, p))
}

func finite(xs []float64) bool {
	for _, x := range xs {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return len(xs) > 0
}

// Load reads weights from a JSON object of model id to weight. Weights must
// be positive; they are renormalized to sum to 1. A missing file yields nil,
// which callers treat as equal weights.
func Load(path string) (types.Weights, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading weights: %w", err)
	}
	var w types.Weights
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decoding weights: %w", err)
	}
	var sum float64
	for id, v := range w {
		if !(v > 0) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("weight for %s must be positive, got %v", id, v)
		}
		sum += v
	}
	for id := range w {
		w[id] /= sum
	}
	return w, nil
}

// Save writes weights as indented JSON, creating parent directories.
func Save(path string, w types.Weights) error {
	data, err := json.MarshalIndent(w, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating weights directory: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing weights: %w", err)
	}
	return nil
}
