// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package calibrate

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/pdiddy/screening-engine/pkg/types"
)

// Lookup returns the calibrator for a model. Implementations return Identity
// for unknown models.
type Lookup interface {
	For(modelID string) Calibrator
}

// Set maps model ids to calibrators. A nil Set is valid and calibrates
// nothing.
type Set map[string]Calibrator

// For returns the model's calibrator, or Identity when none is set.
func (s Set) For(modelID string) Calibrator {
	if c, ok := s[modelID]; ok && c != nil {
		return c
	}
	return Identity{}
}

func (s Set) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(s))
	for id, c := range s {
		if c == nil {
			continue
		}
		b, err := c.MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("encoding calibrator for %s: %w", id, err)
		}
		out[id] = b
	}
	return json.Marshal(out)
}

func (s *Set) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decoding calibrator set: %w", err)
	}
	set := make(Set, len(raw))
	for id, doc := range raw {
		c, err := Decode(doc)
		if err != nil {
			return fmt.Errorf("calibrator for %s: %w", id, err)
		}
		set[id] = c
	}
	*s = set
	return nil
}

// Load reads a calibrator set from a JSON file. A missing file yields an
// empty set.
func Load(path string) (Set, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Set{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading calibrators: %w", err)
	}
	var s Set
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return s, nil
}

// Save writes the set as indented JSON, creating parent directories.
func Save(path string, s Set) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating calibrator directory: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing calibrators: %w", err)
	}
	return nil
}

// FitSet fits one calibrator of the given kind per model from labeled
// history. Failed outputs are skipped. A model whose history holds a single
// class is logged and left out of the set, so it stays at identity.
func FitSet(history []types.LabeledOutputs, kind Kind, logger *slog.Logger) (Set, error) {
	if logger == nil {
		logger = slog.Default()
	}
	type sample struct {
		scores []float64
		labels []bool
	}
	byModel := make(map[string]*sample)
	for _, h := range history {
		for _, out := range types.ValidOutputs(h.Outputs) {
			s := byModel[out.ModelID]
			if s == nil {
				s = &sample{}
				byModel[out.ModelID] = s
			}
			s.scores = append(s.scores, out.Score)
			s.labels = append(s.labels, h.Include)
		}
	}

	ids := make([]string, 0, len(byModel))
	for id := range byModel {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	set := make(Set, len(ids))
	for _, id := range ids {
		s := byModel[id]
		c, err := New(kind)
		if err != nil {
			return nil, err
		}
		err = c.Fit(s.scores, s.labels)
		if errors.Is(err, ErrInsufficientLabels) {
			logger.Warn("calibrator not fitted", "model_id", id, "samples", len(s.scores), "reason", err)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("fitting calibrator for %s: %w", id, err)
		}
		set[id] = c
	}
	return set, nil
}

// Apply returns a copy of history with every valid score replaced by its
// calibrated value. Failed outputs are copied unchanged.
func (s Set) Apply(history []types.LabeledOutputs) []types.LabeledOutputs {
	out := make([]types.LabeledOutputs, len(history))
	for i, h := range history {
		outputs := make([]types.ModelOutput, len(h.Outputs))
		for j, o := range h.Outputs {
			if !o.Failed() {
				o.Score = s.For(o.ModelID).Calibrate(o.Score)
			}
			outputs[j] = o
		}
		out[i] = types.LabeledOutputs{RecordID: h.RecordID, Outputs: outputs, Include: h.Include}
	}
	return out
}
