// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package screen

import (
	"fmt"

	"github.com/pdiddy/screening-engine/internal/calibrate"
	"github.com/pdiddy/screening-engine/internal/router"
	"github.com/pdiddy/screening-engine/internal/weights"
	"github.com/pdiddy/screening-engine/pkg/types"
)

// Artifacts are the fitted parameters read by Layers 3 and 4. A Screener
// swaps them as one unit so a record never mixes two generations.
type Artifacts struct {
	// Weights is nil for equal weighting.
	Weights types.Weights

	// Calibrators is nil for identity calibration.
	Calibrators calibrate.Set

	Thresholds types.Thresholds
}

// DefaultArtifacts returns equal weights, identity calibrators and the
// default thresholds.
func DefaultArtifacts() *Artifacts {
	return &Artifacts{Thresholds: types.DefaultThresholds()}
}

// LoadArtifacts reads the artifact files named in cfg. Empty paths and
// missing files fall back to the defaults.
func LoadArtifacts(cfg types.ArtifactConfig) (*Artifacts, error) {
	a := DefaultArtifacts()
	if cfg.WeightsPath != "" {
		w, err := weights.Load(cfg.WeightsPath)
		if err != nil {
			return nil, fmt.Errorf("loading weights: %w", err)
		}
		a.Weights = w
	}
	if cfg.CalibratorsPath != "" {
		s, err := calibrate.Load(cfg.CalibratorsPath)
		if err != nil {
			return nil, fmt.Errorf("loading calibrators: %w", err)
		}
		a.Calibrators = s
	}
	if cfg.ThresholdsPath != "" {
		t, err := router.LoadThresholds(cfg.ThresholdsPath)
		if err != nil {
			return nil, fmt.Errorf("loading thresholds: %w", err)
		}
		a.Thresholds = t
	}
	return a, nil
}
