// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package router is Layer 4 of the screening pipeline. It maps the rule
// result and ensemble confidence of a record to a decision and tier, and
// tunes its thresholds offline by grid search.
//
// Tiers are evaluated in strict priority:
//
//	0  any hard rule violation             EXCLUDE
//	   no valid model output               HUMAN_REVIEW (tier 3)
//	1  unanimous and confidence ≥ τ_high   the unanimous decision
//	2  confidence ≥ τ_mid                  INCLUDE
//	3  otherwise                           HUMAN_REVIEW
//
// Tier 2 resolves to INCLUDE even when most models voted EXCLUDE. The router
// never excludes a record automatically without either a hard rule or a
// confident unanimous vote.
package router

import (
	"github.com/pdiddy/screening-engine/pkg/types"
)

// Router routes records under fixed thresholds.
type Router struct {
	t types.Thresholds
}

// New returns a Router. Thresholds violating high > mid > low are rejected.
func New(t types.Thresholds) (*Router, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &Router{t: t}, nil
}

// Thresholds returns the router's thresholds.
func (r *Router) Thresholds() types.Thresholds { return r.t }

// Route returns the decision and tier for one record.
func (r *Router) Route(outputs []types.ModelOutput, rules types.RuleCheckResult, confidence float64) (types.Decision, types.Tier) {
	return route(r.t, outputs, rules, confidence)
}

func route(t types.Thresholds, outputs []types.ModelOutput, rules types.RuleCheckResult, confidence float64) (types.Decision, types.Tier) {
	if rules.HasHardViolation() {
		return types.DecisionExclude, types.TierHardRule
	}
	valid := types.ValidOutputs(outputs)
	if len(valid) == 0 {
		return types.DecisionHumanReview, types.TierHumanReview
	}
	if d, ok := unanimous(valid); ok && confidence >= t.TauHigh {
		return d, types.TierUnanimous
	}
	if confidence >= t.TauMid {
		return types.DecisionInclude, types.TierRecallBias
	}
	return types.DecisionHumanReview, types.TierHumanReview
}

// unanimous reports the shared decision of a non-empty output list.
func unanimous(outputs []types.ModelOutput) (types.Decision, bool) {
	d := outputs[0].Decision
	for _, o := range outputs[1:] {
		if o.Decision != d {
			return "", false
		}
	}
	return d, true
}
