// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package calibrate maps raw per-model scores to calibrated probabilities.
//
// Two fitted calibrators are provided: Platt scaling (a 1-D logistic
// regression) and isotonic regression (pool-adjacent-violators). An unfitted
// calibrator of either kind is the identity map, so a model without history
// passes its scores through unchanged.
package calibrate

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// Kind names a calibrator type in its persisted JSON form.
type Kind string

const (
	KindIdentity Kind = "identity"
	KindPlatt    Kind = "platt"
	KindIsotonic Kind = "isotonic"
)

// ErrInsufficientLabels is returned by Fit when the labels contain a single
// class. The calibrator is left unfitted.
var ErrInsufficientLabels = errors.New("calibrate: labels must contain both classes")

// Calibrator maps a raw score in [0,1] to a calibrated score in [0,1].
type Calibrator interface {
	Kind() Kind
	Fit(scores []float64, labels []bool) error
	Calibrate(x float64) float64
	Fitted() bool
	json.Marshaler
	json.Unmarshaler
}

// New returns an unfitted calibrator of the given kind.
func New(kind Kind) (Calibrator, error) {
	switch kind {
	case KindPlatt, "":
		return &Platt{}, nil
	case KindIsotonic:
		return &Isotonic{}, nil
	case KindIdentity:
		return Identity{}, nil
	default:
		return nil, fmt.Errorf("unknown calibrator type %q", kind)
	}
}

// Decode reads one persisted calibrator document, dispatching on its type.
func Decode(data []byte) (Calibrator, error) {
	var head struct {
		Type Kind `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decoding calibrator: %w", err)
	}
	if head.Type == "" {
		return nil, errors.New("decoding calibrator: missing type")
	}
	c, err := New(head.Type)
	if err != nil {
		return nil, err
	}
	if err := c.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return c, nil
}

// Identity is the no-op calibrator.
type Identity struct{}

func (Identity) Kind() Kind                  { return KindIdentity }
func (Identity) Fit([]float64, []bool) error { return nil }
func (Identity) Calibrate(x float64) float64 { return clamp01(x) }
func (Identity) Fitted() bool                { return false }

func (Identity) MarshalJSON() ([]byte, error) {
	return json.Marshal(document{Type: KindIdentity})
}

func (Identity) UnmarshalJSON([]byte) error { return nil }

// document is the shared JSON layout of every calibrator.
type document struct {
	Type        Kind      `json:"type"`
	A           *float64  `json:"a,omitempty"`
	B           *float64  `json:"b,omitempty"`
	XThresholds []float64 `json:"x_thresholds,omitempty"`
	YThresholds []float64 `json:"y_thresholds,omitempty"`
	IsFitted    bool      `json:"is_fitted"`
}

// checkTraining validates a training set and reports whether both classes
// are present.
func checkTraining(scores []float64, labels []bool) error {
	if len(scores) != len(labels) {
		return fmt.Errorf("calibrate: %d scores but %d labels", len(scores), len(labels))
	}
	var pos, neg int
	for _, l := range labels {
		if l {
			pos++
		} else {
			neg++
		}
	}
	if pos == 0 || neg == 0 {
		return ErrInsufficientLabels
	}
	return nil
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
