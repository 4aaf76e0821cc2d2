// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"time"
)

// Decision is a screening outcome for one record.
type Decision string

const (
	DecisionInclude     Decision = "INCLUDE"
	DecisionExclude     Decision = "EXCLUDE"
	DecisionHumanReview Decision = "HUMAN_REVIEW"
)

// Tier is the router level that produced a decision. Lower tiers are more
// deterministic: 0 is a hard rule, 1 a unanimous confident ensemble,
// 2 a recall-biased include, 3 a human review referral.
type Tier int

const (
	TierHardRule    Tier = 0
	TierUnanimous   Tier = 1
	TierRecallBias  Tier = 2
	TierHumanReview Tier = 3
)

// ElementMatch is a model's assessment of one criteria element.
type ElementMatch string

const (
	MatchYes     ElementMatch = "match"
	MatchNo      ElementMatch = "mismatch"
	MatchUnclear ElementMatch = "unclear"
)

// ModelOutput is one backend's parsed answer for one record.
//
// When Error is non-empty the call failed; Decision and Score are then safe
// placeholders (INCLUDE, 0.5) and Confidence is 0. Such outputs count toward
// simple majority tallies only and never enter calibrated statistics.
type ModelOutput struct {
	ModelID    string                  `json:"model_id" yaml:"model_id"`
	Decision   Decision                `json:"decision" yaml:"decision"`
	Score      float64                 `json:"score" yaml:"score"`
	Confidence float64                 `json:"confidence" yaml:"confidence"`
	Elements   map[string]ElementMatch `json:"elements,omitempty" yaml:"elements,omitempty"`
	Rationale  string                  `json:"rationale,omitempty" yaml:"rationale,omitempty"`
	Error      string                  `json:"error,omitempty" yaml:"error,omitempty"`
}

// Failed reports whether the output stands in for a failed backend call.
func (o ModelOutput) Failed() bool {
	return o.Error != ""
}

// ValidOutputs returns the outputs that came from successful backend calls.
func ValidOutputs(outputs []ModelOutput) []ModelOutput {
	valid := make([]ModelOutput, 0, len(outputs))
	for _, o := range outputs {
		if !o.Failed() {
			valid = append(valid, o)
		}
	}
	return valid
}

// RuleKind separates rules that force an exclusion from rules that only
// penalize the aggregated score.
type RuleKind string

const (
	RuleHard RuleKind = "hard"
	RuleSoft RuleKind = "soft"
)

// RuleViolation records one rule firing for a record. Penalty is always 0
// for hard violations.
type RuleViolation struct {
	Rule        string   `json:"rule" yaml:"rule"`
	Kind        RuleKind `json:"kind" yaml:"kind"`
	Description string   `json:"description" yaml:"description"`
	Penalty     float64  `json:"penalty" yaml:"penalty"`
}

// RuleCheckResult collects every violation raised for a record, in rule order.
type RuleCheckResult struct {
	Hard         []RuleViolation `json:"hard" yaml:"hard"`
	Soft         []RuleViolation `json:"soft" yaml:"soft"`
	TotalPenalty float64         `json:"total_penalty" yaml:"total_penalty"`
}

// HasHardViolation reports whether any hard rule fired.
func (r RuleCheckResult) HasHardViolation() bool {
	return len(r.Hard) > 0
}

// ScreeningDecision is the terminal artifact of one pipeline execution.
type ScreeningDecision struct {
	RecordID           string          `json:"record_id" yaml:"record_id"`
	Decision           Decision        `json:"decision" yaml:"decision"`
	Tier               Tier            `json:"tier" yaml:"tier"`
	FinalScore         float64         `json:"final_score" yaml:"final_score"`
	EnsembleConfidence float64         `json:"ensemble_confidence" yaml:"ensemble_confidence"`
	Outputs            []ModelOutput   `json:"outputs" yaml:"outputs"`
	Rules              RuleCheckResult `json:"rules" yaml:"rules"`
}

// AuditEntry is the reproducibility record written for every screened record:
// enough to replay the decision given the same backends and seed.
type AuditEntry struct {
	RunID              string            `json:"run_id" yaml:"run_id"`
	Timestamp          time.Time         `json:"timestamp" yaml:"timestamp"`
	RecordID           string            `json:"record_id" yaml:"record_id"`
	CriteriaID         string            `json:"criteria_id" yaml:"criteria_id"`
	CriteriaVersion    string            `json:"criteria_version" yaml:"criteria_version"`
	Framework          Framework         `json:"framework" yaml:"framework"`
	ModelVersions      map[string]string `json:"model_versions" yaml:"model_versions"`
	PromptHashes       map[string]string `json:"prompt_hashes" yaml:"prompt_hashes"`
	Outputs            []ModelOutput     `json:"outputs" yaml:"outputs"`
	Rules              RuleCheckResult   `json:"rules" yaml:"rules"`
	Decision           Decision          `json:"decision" yaml:"decision"`
	Tier               Tier              `json:"tier" yaml:"tier"`
	FinalScore         float64           `json:"final_score" yaml:"final_score"`
	EnsembleConfidence float64           `json:"ensemble_confidence" yaml:"ensemble_confidence"`
	Seed               int64             `json:"seed" yaml:"seed"`
	Thresholds         Thresholds        `json:"thresholds" yaml:"thresholds"`
}

// Thresholds are the router's confidence cut points. They must satisfy
// TauHigh > TauMid > TauLow.
type Thresholds struct {
	TauHigh float64 `json:"tau_high" yaml:"tau_high" mapstructure:"tau_high"`
	TauMid  float64 `json:"tau_mid" yaml:"tau_mid" mapstructure:"tau_mid"`
	TauLow  float64 `json:"tau_low" yaml:"tau_low" mapstructure:"tau_low"`
}

// DefaultThresholds returns the thresholds used until an optimized set is loaded.
func DefaultThresholds() Thresholds {
	return Thresholds{TauHigh: 0.85, TauMid: 0.65, TauLow: 0.45}
}

// Validate checks the ordering invariant and the [0,1] range.
func (t Thresholds) Validate() error {
	for _, v := range []float64{t.TauHigh, t.TauMid, t.TauLow} {
		if v < 0 || v > 1 {
			return fmt.Errorf("threshold %v outside [0,1]", v)
		}
	}
	if !(t.TauHigh > t.TauMid && t.TauMid > t.TauLow) {
		return fmt.Errorf("thresholds must satisfy tau_high > tau_mid > tau_low, got (%.3f, %.3f, %.3f)",
			t.TauHigh, t.TauMid, t.TauLow)
	}
	return nil
}

// Weights maps a model id to its ensemble weight. Fitted weights are positive
// and sum to 1.
type Weights map[string]float64

// Label is a ground-truth screening outcome used by the offline optimizers.
type Label struct {
	RecordID string `json:"record_id" yaml:"record_id"`
	Include  bool   `json:"include" yaml:"include"`
}

// LabeledOutputs pairs the Layer 1 outputs recorded for one record with its
// ground-truth label. It is the unit of history consumed by the offline
// calibrator, weight, and threshold fitting.
type LabeledOutputs struct {
	RecordID string        `json:"record_id" yaml:"record_id"`
	Outputs  []ModelOutput `json:"outputs" yaml:"outputs"`
	Include  bool          `json:"include" yaml:"include"`
}
