// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package calibrate

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// Isotonic is a non-decreasing piecewise-linear calibration curve given by
// breakpoints (X[i], Y[i]) with X strictly increasing. The zero value is
// unfitted and acts as the identity.
type Isotonic struct {
	X, Y   []float64
	fitted bool
}

func (c *Isotonic) Kind() Kind { return KindIsotonic }

func (c *Isotonic) Fitted() bool { return c.fitted }

// Calibrate interpolates linearly between breakpoints. x is clipped to
// [X[0], X[n-1]] so the curve is never extrapolated.
func (c *Isotonic) Calibrate(x float64) float64 {
	if !c.fitted || len(c.X) == 0 {
		return clamp01(x)
	}
	n := len(c.X)
	if x <= c.X[0] {
		return clamp01(c.Y[0])
	}
	if x >= c.X[n-1] {
		return clamp01(c.Y[n-1])
	}
	// First breakpoint strictly greater than x; 1 <= j <= n-1 here.
	j := sort.Search(n, func(i int) bool { return c.X[i] > x })
	x0, x1 := c.X[j-1], c.X[j]
	y0, y1 := c.Y[j-1], c.Y[j]
	return clamp01(y0 + (y1-y0)*(x-x0)/(x1-x0))
}

// block is one pooled run of the pool-adjacent-violators algorithm, covering
// unique x values lo..hi.
type block struct {
	sum    float64
	weight float64
	lo, hi int
}

func (b block) mean() float64 { return b.sum / b.weight }

// Fit runs pool-adjacent-violators over the scores sorted ascending, pooling
// ties in x first.
func (c *Isotonic) Fit(scores []float64, labels []bool) error {
	if err := checkTraining(scores, labels); err != nil {
		return err
	}

	idx := make([]int, len(scores))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return scores[idx[a]] < scores[idx[b]] })

	// Collapse equal x values into one weighted point.
	var xs []float64
	var blocks []block
	for _, i := range idx {
		y := 0.0
		if labels[i] {
			y = 1
		}
		if n := len(xs); n > 0 && xs[n-1] == scores[i] {
			blocks[n-1].sum += y
			blocks[n-1].weight++
			continue
		}
		xs = append(xs, scores[i])
		blocks = append(blocks, block{sum: y, weight: 1, lo: len(xs) - 1, hi: len(xs) - 1})
	}

	// Merge adjacent blocks while their means decrease.
	stack := blocks[:0:0]
	for _, b := range blocks {
		stack = append(stack, b)
		for len(stack) > 1 && stack[len(stack)-2].mean() > stack[len(stack)-1].mean() {
			top := stack[len(stack)-1]
			prev := &stack[len(stack)-2]
			prev.sum += top.sum
			prev.weight += top.weight
			prev.hi = top.hi
			stack = stack[:len(stack)-1]
		}
	}

	// Each pooled block contributes its end points; interior points of a flat
	// run are redundant under linear interpolation.
	var bx, by []float64
	for _, b := range stack {
		y := b.mean()
		bx = append(bx, xs[b.lo])
		by = append(by, y)
		if b.hi != b.lo {
			bx = append(bx, xs[b.hi])
			by = append(by, y)
		}
	}

	c.X, c.Y, c.fitted = bx, by, true
	return nil
}

func (c *Isotonic) MarshalJSON() ([]byte, error) {
	doc := document{Type: KindIsotonic, IsFitted: c.fitted}
	if c.fitted {
		doc.XThresholds, doc.YThresholds = c.X, c.Y
	}
	return json.Marshal(doc)
}

func (c *Isotonic) UnmarshalJSON(data []byte) error {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("decoding isotonic calibrator: %w", err)
	}
	if doc.Type != "" && doc.Type != KindIsotonic {
		return fmt.Errorf("decoding isotonic calibrator: type is %q", doc.Type)
	}
	*c = Isotonic{}
	if !doc.IsFitted {
		return nil
	}
	if len(doc.XThresholds) == 0 || len(doc.XThresholds) != len(doc.YThresholds) {
		return errors.New("decoding isotonic calibrator: x_thresholds and y_thresholds must be non-empty and equal length")
	}
	for i := 1; i < len(doc.XThresholds); i++ {
		if doc.XThresholds[i] <= doc.XThresholds[i-1] {
			return errors.New("decoding isotonic calibrator: x_thresholds must be strictly increasing")
		}
		if doc.YThresholds[i] < doc.YThresholds[i-1] {
			return errors.New("decoding isotonic calibrator: y_thresholds must be non-decreasing")
		}
	}
	c.X, c.Y, c.fitted = doc.XThresholds, doc.YThresholds, true
	return nil
}
