// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/screening-engine/pkg/types"
)

// ExportEntry is the flattened decision row written by the exporters.
type ExportEntry struct {
	RunID              string         `json:"run_id" yaml:"run_id"`
	RecordID           string         `json:"record_id" yaml:"record_id"`
	Timestamp          time.Time      `json:"timestamp" yaml:"timestamp"`
	Decision           types.Decision `json:"decision" yaml:"decision"`
	Tier               types.Tier     `json:"tier" yaml:"tier"`
	FinalScore         float64        `json:"final_score" yaml:"final_score"`
	EnsembleConfidence float64        `json:"ensemble_confidence" yaml:"ensemble_confidence"`
	HardRules          []string       `json:"hard_rules,omitempty" yaml:"hard_rules,omitempty"`
	SoftRules          []string       `json:"soft_rules,omitempty" yaml:"soft_rules,omitempty"`
	FailedModels       []string       `json:"failed_models,omitempty" yaml:"failed_models,omitempty"`
}

const exportLimit = 1000000

// ExportYAML writes the matching decisions to <dir>/export.yaml and returns
// the path written.
func (s *Store) ExportYAML(ctx context.Context, opts QueryOptions) (string, error) {
	entries, err := s.exportEntries(ctx, opts)
	if err != nil {
		return "", err
	}

	path := filepath.Join(s.dir, "export.yaml")
	data, err := yaml.Marshal(entries)
	if err != nil {
		return "", fmt.Errorf("marshaling YAML: %w", err)
	}
	return path, os.WriteFile(path, data, 0o644)
}

// ExportJSON writes the matching decisions to <dir>/export.json and returns
// the path written.
func (s *Store) ExportJSON(ctx context.Context, opts QueryOptions) (string, error) {
	entries, err := s.exportEntries(ctx, opts)
	if err != nil {
		return "", err
	}

	path := filepath.Join(s.dir, "export.json")
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling JSON: %w", err)
	}
	return path, os.WriteFile(path, data, 0o644)
}

func (s *Store) exportEntries(ctx context.Context, opts QueryOptions) ([]ExportEntry, error) {
	opts.MaxResults = exportLimit
	audits, err := s.Entries(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("querying for export: %w", err)
	}

	entries := make([]ExportEntry, len(audits))
	for i, a := range audits {
		e := ExportEntry{
			RunID:              a.RunID,
			RecordID:           a.RecordID,
			Timestamp:          a.Timestamp,
			Decision:           a.Decision,
			Tier:               a.Tier,
			FinalScore:         a.FinalScore,
			EnsembleConfidence: a.EnsembleConfidence,
		}
		for _, v := range a.Rules.Hard {
			e.HardRules = append(e.HardRules, v.Rule)
		}
		for _, v := range a.Rules.Soft {
			e.SoftRules = append(e.SoftRules, v.Rule)
		}
		for _, o := range a.Outputs {
			if o.Failed() {
				e.FailedModels = append(e.FailedModels, o.ModelID)
			}
		}
		entries[i] = e
	}
	return entries, nil
}
