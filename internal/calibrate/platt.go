// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package calibrate

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/optimize"
)

// Platt maps x to σ(A·x + B). The zero value is unfitted and acts as the
// identity.
type Platt struct {
	A, B   float64
	fitted bool
}

func (p *Platt) Kind() Kind { return KindPlatt }

func (p *Platt) Fitted() bool { return p.fitted }

// Calibrate returns σ(A·x + B), or clamp01(x) when unfitted.
func (p *Platt) Calibrate(x float64) float64 {
	if !p.fitted {
		return clamp01(x)
	}
	return sigmoid(p.A*x + p.B)
}

// Fit estimates A and B by maximum likelihood with Platt's smoothed targets,
// (N₊+1)/(N₊+2) for positives and 1/(N₋+2) for negatives, which keeps the
// optimum finite on separable data.
func (p *Platt) Fit(scores []float64, labels []bool) error {
	if err := checkTraining(scores, labels); err != nil {
		return err
	}

	var nPos, nNeg float64
	for _, l := range labels {
		if l {
			nPos++
		} else {
			nNeg++
		}
	}
	hi := (nPos + 1) / (nPos + 2)
	lo := 1 / (nNeg + 2)
	targets := make([]float64, len(labels))
	for i, l := range labels {
		if l {
			targets[i] = hi
		} else {
			targets[i] = lo
		}
	}

	problem := optimize.Problem{
		Func: func(w []float64) float64 {
			var nll float64
			for i, x := range scores {
				z := w[0]*x + w[1]
				nll += targets[i]*softplus(-z) + (1-targets[i])*softplus(z)
			}
			return nll
		},
		Grad: func(grad, w []float64) {
			grad[0], grad[1] = 0, 0
			for i, x := range scores {
				d := sigmoid(w[0]*x+w[1]) - targets[i]
				grad[0] += d * x
				grad[1] += d
			}
		},
	}

	x0 := []float64{0, math.Log((nPos + 1) / (nNeg + 1))}
	res, err := optimize.Minimize(problem, x0, &optimize.Settings{GradientThreshold: 1e-9}, &optimize.BFGS{})
	if res == nil || !finite(res.X) {
		if err == nil {
			err = errors.New("solver returned a non-finite optimum")
		}
		return fmt.Errorf("fitting platt calibrator: %w", err)
	}

	p.A, p.B = res.X[0], res.X[1]
	p.fitted = true
	return nil
}

func (p *Platt) MarshalJSON() ([]byte, error) {
	doc := document{Type: KindPlatt, IsFitted: p.fitted}
	if p.fitted {
		a, b := p.A, p.B
		doc.A, doc.B = &a, &b
	}
	return json.Marshal(doc)
}

func (p *Platt) UnmarshalJSON(data []byte) error {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("decoding platt calibrator: %w", err)
	}
	if doc.Type != "" && doc.Type != KindPlatt {
		return fmt.Errorf("decoding platt calibrator: type is %q", doc.Type)
	}
	*p = Platt{}
	if !doc.IsFitted {
		return nil
	}
	if doc.A == nil || doc.B == nil {
		return errors.New("decoding platt calibrator: fitted document lacks a or b")
	}
	p.A, p.B, p.fitted = *doc.A, *doc.B, true
	return nil
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

// softplus returns log(1 + e^z) without overflow.
func softplus(z float64) float64 {
	if z > 0 {
		return z + math.Log1p(math.Exp(-z))
	}
	return math.Log1p(math.Exp(z))
}

func finite(xs []float64) bool {
	for _, x := range xs {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return len(xs) > 0
}
