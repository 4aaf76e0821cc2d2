// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromLegacy(t *testing.T) {
	l := LegacyCriteria{
		ID:                  "crit-1",
		Version:             "2",
		Population:          []string{"adults", "type 2 diabetes"},
		ExcludePopulation:   []string{"children"},
		Intervention:        []string{"metformin"},
		Outcome:             []string{"HbA1c"},
		ExcludeStudyDesigns: []string{"case report"},
		Languages:           []string{"en"},
	}

	c := FromLegacy(l)

	assert.Equal(t, FrameworkPICO, c.Framework)
	assert.Equal(t, "crit-1", c.ID)
	assert.Equal(t, "2", c.Version)
	require.Contains(t, c.Elements, "population")
	assert.Equal(t, []string{"children"}, c.Elements["population"].Exclude)
	assert.NotContains(t, c.Elements, "comparison", "empty elements are dropped")
	assert.Equal(t, []string{"case report"}, c.StudyDesignExclude)
	assert.Equal(t, []string{"intervention", "outcome", "population"}, c.ElementNames())
}

func TestThresholdsValidate(t *testing.T) {
	tests := []struct {
		name    string
		th      Thresholds
		wantErr bool
	}{
		{"defaults", DefaultThresholds(), false},
		{"equal high and mid", Thresholds{0.8, 0.8, 0.4}, true},
		{"inverted", Thresholds{0.4, 0.6, 0.8}, true},
		{"out of range", Thresholds{1.2, 0.6, 0.4}, true},
		{"negative low", Thresholds{0.9, 0.6, -0.1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.th.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidOutputsAndHardViolation(t *testing.T) {
	outs := []ModelOutput{
		{ModelID: "a", Decision: DecisionInclude},
		{ModelID: "b", Decision: DecisionInclude, Error: "timeout"},
		{ModelID: "c", Decision: DecisionExclude},
	}
	valid := ValidOutputs(outs)
	require.Len(t, valid, 2)
	assert.Equal(t, "a", valid[0].ModelID)
	assert.Equal(t, "c", valid[1].ModelID)

	assert.False(t, RuleCheckResult{}.HasHardViolation())
	assert.True(t, RuleCheckResult{Hard: []RuleViolation{{Rule: "language", Kind: RuleHard}}}.HasHardViolation())
}
