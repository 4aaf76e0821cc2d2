// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package evaluate

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pdiddy/screening-engine/pkg/types"
)

func sample() []Outcome {
	return []Outcome{
		{RecordID: "p1", Decision: types.DecisionInclude, Tier: types.TierUnanimous, FinalScore: 0.9, Include: true},
		{RecordID: "p2", Decision: types.DecisionHumanReview, Tier: types.TierHumanReview, FinalScore: 0.6, Include: true},
		{RecordID: "p3", Decision: types.DecisionExclude, Tier: types.TierHardRule, FinalScore: 0.4, Include: true},
		{RecordID: "n1", Decision: types.DecisionExclude, Tier: types.TierUnanimous, FinalScore: 0.1, Include: false},
		{RecordID: "n2", Decision: types.DecisionExclude, Tier: types.TierHardRule, FinalScore: 0.2, Include: false},
		{RecordID: "n3", Decision: types.DecisionInclude, Tier: types.TierRecallBias, FinalScore: 0.5, Include: false},
	}
}

func TestSensitivityCountsHumanReviewAsRetained(t *testing.T) {
	assert.InDelta(t, 2.0/3, Sensitivity(sample()), 1e-12)
	assert.Equal(t, 1.0, Sensitivity([]Outcome{{Decision: types.DecisionExclude}}), "no positives")
}

func TestAutomationRate(t *testing.T) {
	assert.InDelta(t, 5.0/6, AutomationRate(sample()), 1e-12)
	assert.Equal(t, 0.0, AutomationRate(nil))
}

func TestEvaluate(t *testing.T) {
	r := Evaluate(sample())

	assert.Equal(t, 6, r.Records)
	assert.Equal(t, 3, r.Positives)
	assert.Equal(t, 3, r.Negatives)
	assert.Equal(t, 2, r.RetainedPositives)
	assert.Equal(t, 1, r.MissedPositives)
	assert.Equal(t, 2, r.ExcludedNegatives)
	assert.Equal(t, 1, r.HumanReview)

	assert.InDelta(t, 2.0/3, r.Specificity, 1e-12)
	// 3 auto-excluded of 6, minus the 1/3 of positives lost.
	assert.InDelta(t, 0.5-1.0/3, r.WSS, 1e-12)

	brier := (0.01 + 0.16 + 0.36 + 0.01 + 0.04 + 0.25) / 6
	assert.InDelta(t, brier, r.Brier, 1e-12)
	assert.InDelta(t, (0.9+0.6+0.4)/3, r.MeanScorePositive, 1e-12)
	assert.InDelta(t, (0.1+0.2+0.5)/3, r.MeanScoreNegative, 1e-12)

	assert.Equal(t, 2, r.TierCounts[types.TierHardRule])
	assert.Equal(t, 2, r.TierCounts[types.TierUnanimous])
	assert.Equal(t, 1, r.TierCounts[types.TierRecallBias])
	assert.Equal(t, 1, r.TierCounts[types.TierHumanReview])

	assert.Less(t, r.SensitivityCI.Lower, r.Sensitivity)
	assert.Greater(t, r.SensitivityCI.Upper, r.Sensitivity)
}

func TestEvaluateEmpty(t *testing.T) {
	r := Evaluate(nil)
	assert.Equal(t, 0, r.Records)
	assert.Equal(t, 0.0, r.Brier)
	assert.Equal(t, 1.0, r.Sensitivity)
	assert.Equal(t, Interval{Lower: 0, Upper: 1}, r.SensitivityCI)
}

func TestClopperPearson(t *testing.T) {
	edge := math.Pow(0.025, 0.1)

	all := ClopperPearson(10, 10, 0.95)
	assert.InDelta(t, edge, all.Lower, 1e-6)
	assert.Equal(t, 1.0, all.Upper)

	none := ClopperPearson(0, 10, 0.95)
	assert.Equal(t, 0.0, none.Lower)
	assert.InDelta(t, 1-edge, none.Upper, 1e-6)

	half := ClopperPearson(50, 100, 0.95)
	assert.InDelta(t, 0.3983, half.Lower, 1e-3)
	assert.InDelta(t, 0.6017, half.Upper, 1e-3)
}

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	Write(&buf, Evaluate(sample()))
	out := buf.String()
	assert.Contains(t, out, "Sensitivity:      0.667")
	assert.Contains(t, out, "Automation rate:  0.833 (1 sent to human review)")
	assert.Contains(t, out, "Tier 3:           1")
}

func TestJoin(t *testing.T) {
	entries := []types.AuditEntry{
		{RecordID: "a", Decision: types.DecisionInclude, Tier: types.TierUnanimous, FinalScore: 0.9},
		{RecordID: "b", Decision: types.DecisionExclude, Tier: types.TierUnanimous, FinalScore: 0.1},
		{RecordID: "c", Decision: types.DecisionHumanReview, Tier: types.TierHumanReview},
		{RecordID: "a", Decision: types.DecisionExclude, Tier: types.TierHardRule, FinalScore: 0.2},
	}
	got := Join(entries, map[string]bool{"a": true, "b": false})
	assert.Equal(t, []Outcome{
		{RecordID: "a", Decision: types.DecisionExclude, Tier: types.TierHardRule, FinalScore: 0.2, Include: true},
		{RecordID: "b", Decision: types.DecisionExclude, Tier: types.TierUnanimous, FinalScore: 0.1, Include: false},
	}, got)
}
