// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package screen

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/screening-engine/pkg/types"
)

// decodeFile decodes a YAML or JSON file into v, chosen by extension.
func decodeFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		if err := json.Unmarshal(data, v); err != nil {
			return fmt.Errorf("parsing %s: %w", path, err)
		}
		return nil
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// LoadRecords reads a list of records. Records without an id are rejected,
// as are duplicate ids.
func LoadRecords(path string) ([]types.Record, error) {
	var records []types.Record
	if err := decodeFile(path, &records); err != nil {
		return nil, fmt.Errorf("loading records: %w", err)
	}
	seen := make(map[string]bool, len(records))
	for i, r := range records {
		if r.ID == "" {
			return nil, fmt.Errorf("record %d has no id", i)
		}
		if seen[r.ID] {
			return nil, fmt.Errorf("duplicate record id %q", r.ID)
		}
		seen[r.ID] = true
	}
	return records, nil
}

// criteriaProbe holds the keys that distinguish a canonical criteria file
// from the flat legacy layout.
type criteriaProbe struct {
	Framework  string         `json:"framework" yaml:"framework"`
	Elements   map[string]any `json:"elements" yaml:"elements"`
	Population []string       `json:"population" yaml:"population"`
}

// LoadCriteria reads a criteria file. Files with top-level population terms
// and no framework or elements are read as legacy PICO criteria and
// converted.
func LoadCriteria(path string) (types.Criteria, error) {
	var probe criteriaProbe
	if err := decodeFile(path, &probe); err != nil {
		return types.Criteria{}, fmt.Errorf("loading criteria: %w", err)
	}

	if probe.Framework == "" && len(probe.Elements) == 0 && len(probe.Population) > 0 {
		var legacy types.LegacyCriteria
		if err := decodeFile(path, &legacy); err != nil {
			return types.Criteria{}, fmt.Errorf("loading legacy criteria: %w", err)
		}
		return types.FromLegacy(legacy), nil
	}

	var c types.Criteria
	if err := decodeFile(path, &c); err != nil {
		return types.Criteria{}, fmt.Errorf("loading criteria: %w", err)
	}
	if c.Framework == "" {
		c.Framework = types.FrameworkPICO
	}
	c.Framework = c.Framework.Normalize()
	return c, nil
}

// LoadLabels reads a list of ground-truth labels.
func LoadLabels(path string) ([]types.Label, error) {
	var labels []types.Label
	if err := decodeFile(path, &labels); err != nil {
		return nil, fmt.Errorf("loading labels: %w", err)
	}
	return labels, nil
}

// LoadHistory reads labeled model outputs exported from another ledger or
// prepared by hand.
func LoadHistory(path string) ([]types.LabeledOutputs, error) {
	var history []types.LabeledOutputs
	if err := decodeFile(path, &history); err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}
	return history, nil
}
