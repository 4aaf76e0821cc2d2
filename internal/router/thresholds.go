// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package router

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/pdiddy/screening-engine/pkg/types"
)

// NewThresholds returns validated thresholds. It rejects any triple that
// does not satisfy high > mid > low within [0,1].
func NewThresholds(high, mid, low float64) (types.Thresholds, error) {
	t := types.Thresholds{TauHigh: high, TauMid: mid, TauLow: low}
	if err := t.Validate(); err != nil {
		return types.Thresholds{}, err
	}
	return t, nil
}

// Normalize reorders the three values so that TauHigh > TauMid > TauLow.
// Triples with repeated values cannot be ordered strictly and are rejected.
func Normalize(t types.Thresholds) (types.Thresholds, error) {
	v := []float64{t.TauHigh, t.TauMid, t.TauLow}
	sort.Sort(sort.Reverse(sort.Float64Slice(v)))
	return NewThresholds(v[0], v[1], v[2])
}

// LoadThresholds reads thresholds from JSON, reordering them if needed. A
// missing file yields the defaults.
func LoadThresholds(path string) (types.Thresholds, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return types.DefaultThresholds(), nil
	}
	if err != nil {
		return types.Thresholds{}, fmt.Errorf("reading thresholds: %w", err)
	}
	var t types.Thresholds
	if err := json.Unmarshal(data, &t); err != nil {
		return types.Thresholds{}, fmt.Errorf("decoding thresholds: %w", err)
	}
	return Normalize(t)
}

// SaveThresholds writes thresholds as indented JSON after validating them.
func SaveThresholds(path string, t types.Thresholds) error {
	if err := t.Validate(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating thresholds directory: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing thresholds: %w", err)
	}
	return nil
}
