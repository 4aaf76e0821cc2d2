// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/screening-engine/pkg/types"
)

func testRecord() types.Record {
	return types.Record{
		ID:        "pmid-1",
		Title:     "Metformin and HbA1c in adults with type 2 diabetes",
		Abstract:  "A randomized trial of 400 adults.",
		StudyType: "randomized controlled trial",
		Language:  "en",
	}
}

func testCriteria(f types.Framework) types.Criteria {
	return types.Criteria{
		ID:        "crit-1",
		Version:   "1",
		Framework: f,
		Elements: map[string]types.ElementTerms{
			"population":   {Include: []string{"adults"}, Exclude: []string{"children"}},
			"intervention": {Include: []string{"metformin"}},
			"outcome":      {Include: []string{"HbA1c"}},
		},
		StudyDesignExclude: []string{"case report"},
	}
}

func TestBuildSelectsFrameworkTemplate(t *testing.T) {
	tests := []struct {
		framework types.Framework
		wantTag   types.Framework
		wantText  string
	}{
		{types.FrameworkPICO, types.FrameworkPICO, "follow PICO."},
		{"picos", types.FrameworkPICOS, "follow PICOS."},
		{types.FrameworkPECO, types.FrameworkPECO, "Exposure"},
		{types.FrameworkPCC, types.FrameworkPCC, "scoping review"},
		{types.FrameworkSPIDER, types.FrameworkSPIDER, "Phenomenon of Interest"},
		{"ECLIPSE", Generic, "matches each criteria element"},
		{"", Generic, "matches each criteria element"},
	}

	b := NewBuilder()
	for _, tt := range tests {
		t.Run(string(tt.framework), func(t *testing.T) {
			p, err := b.Build(testRecord(), testCriteria(tt.framework))
			require.NoError(t, err)
			assert.Equal(t, tt.wantTag, p.Framework)
			assert.Contains(t, p.Text, tt.wantText)
		})
	}
}

func TestBuildRendersCriteriaAndRecord(t *testing.T) {
	p, err := NewBuilder().Build(testRecord(), testCriteria(types.FrameworkPICO))
	require.NoError(t, err)

	assert.Contains(t, p.Text, "- population: include adults; exclude children")
	assert.Contains(t, p.Text, "- intervention: include metformin")
	assert.Contains(t, p.Text, "study designs excluded: case report")
	assert.Contains(t, p.Text, `"intervention": "match|mismatch|unclear"`)
	assert.Contains(t, p.Text, "Title: Metformin and HbA1c")
	assert.Contains(t, p.Text, "Publication type: randomized controlled trial")
	assert.NotContains(t, p.Text, "<no value>")

	// Elements are rendered in sorted order.
	iInt := strings.Index(p.Text, "- intervention:")
	iOut := strings.Index(p.Text, "- outcome:")
	iPop := strings.Index(p.Text, "- population:")
	assert.True(t, iInt < iOut && iOut < iPop)
}

func TestBuildMissingAbstract(t *testing.T) {
	r := testRecord()
	r.Abstract = "   "
	p, err := NewBuilder().Build(r, testCriteria(types.FrameworkPICO))
	require.NoError(t, err)
	assert.Contains(t, p.Text, "Abstract: (no abstract available)")
}

func TestHashIsStable(t *testing.T) {
	b := NewBuilder()
	p1, err := b.Build(testRecord(), testCriteria(types.FrameworkPICO))
	require.NoError(t, err)
	p2, err := b.Build(testRecord(), testCriteria(types.FrameworkPICO))
	require.NoError(t, err)

	assert.Equal(t, p1.Hash, p2.Hash)
	assert.Len(t, p1.Hash, 64)
	assert.Equal(t, Hash(p1.Text), p1.Hash)

	r := testRecord()
	r.Title = "Different title"
	p3, err := b.Build(r, testCriteria(types.FrameworkPICO))
	require.NoError(t, err)
	assert.NotEqual(t, p1.Hash, p3.Hash)
}
