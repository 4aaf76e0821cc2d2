// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the screening-engine pipeline:
// the candidate records and criteria consumed by the core, the per-model outputs
// and rule results produced along the way, and the decisions and audit entries
// handed to export and reporting.
package types

import (
	"sort"
	"strings"
)

// Record is one candidate citation to be screened. Records are created by the
// upstream reader and never modified by the core.
type Record struct {
	// ID is the reader-assigned identifier (PMID, DOI, or file row key).
	ID string `json:"id" yaml:"id"`

	// Title is the citation title.
	Title string `json:"title" yaml:"title"`

	// Abstract is the citation abstract. Empty when the source has none.
	Abstract string `json:"abstract,omitempty" yaml:"abstract,omitempty"`

	// StudyType is the publication or study design label reported by the
	// source database (e.g. "randomized controlled trial", "editorial").
	// Empty when unknown.
	StudyType string `json:"study_type,omitempty" yaml:"study_type,omitempty"`

	// Language is the publication language (ISO code or name). Empty when unknown.
	Language string `json:"language,omitempty" yaml:"language,omitempty"`

	Authors  []string `json:"authors,omitempty" yaml:"authors,omitempty"`
	Year     int      `json:"year,omitempty" yaml:"year,omitempty"`
	Keywords []string `json:"keywords,omitempty" yaml:"keywords,omitempty"`
}

// HasAbstract reports whether the record carries a non-blank abstract.
func (r Record) HasAbstract() bool {
	return strings.TrimSpace(r.Abstract) != ""
}

// Framework tags the structure used to express inclusion criteria.
type Framework string

const (
	FrameworkPICO   Framework = "PICO"
	FrameworkPICOS  Framework = "PICOS"
	FrameworkPECO   Framework = "PECO"
	FrameworkPCC    Framework = "PCC"
	FrameworkSPIDER Framework = "SPIDER"
)

// Normalize returns the upper-cased, trimmed framework tag.
func (f Framework) Normalize() Framework {
	return Framework(strings.ToUpper(strings.TrimSpace(string(f))))
}

// ElementTerms holds the include and exclude terms for one criteria element.
type ElementTerms struct {
	Include []string `json:"include" yaml:"include"`
	Exclude []string `json:"exclude,omitempty" yaml:"exclude,omitempty"`
}

// Criteria is the canonical description of what a screening run includes.
// One Criteria value is shared, read-only, by every record in a run.
type Criteria struct {
	// ID identifies the criteria document; Version distinguishes revisions.
	ID      string `json:"id" yaml:"id"`
	Version string `json:"version" yaml:"version"`

	// Framework selects the prompt template (PICO, PCC, SPIDER, ...).
	Framework Framework `json:"framework" yaml:"framework"`

	// Elements maps an element name (population, intervention, concept, ...)
	// to its include and exclude terms.
	Elements map[string]ElementTerms `json:"elements" yaml:"elements"`

	// StudyDesignInclude and StudyDesignExclude list accepted and rejected
	// study designs.
	StudyDesignInclude []string `json:"study_design_include,omitempty" yaml:"study_design_include,omitempty"`
	StudyDesignExclude []string `json:"study_design_exclude,omitempty" yaml:"study_design_exclude,omitempty"`

	// Languages restricts accepted publication languages. Empty means the
	// rule engine's default allow-list applies.
	Languages []string `json:"languages,omitempty" yaml:"languages,omitempty"`
}

// ElementNames returns the criteria element names in sorted order so that
// prompts and audit output are stable across runs.
func (c Criteria) ElementNames() []string {
	names := make([]string, 0, len(c.Elements))
	for name := range c.Elements {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LegacyCriteria is the flat PICO layout used by older criteria files. It is
// converted once at the I/O boundary with FromLegacy and never reaches the core.
type LegacyCriteria struct {
	ID                  string   `json:"id" yaml:"id"`
	Version             string   `json:"version" yaml:"version"`
	Population          []string `json:"population" yaml:"population"`
	Intervention        []string `json:"intervention" yaml:"intervention"`
	Comparison          []string `json:"comparison,omitempty" yaml:"comparison,omitempty"`
	Outcome             []string `json:"outcome" yaml:"outcome"`
	ExcludePopulation   []string `json:"exclude_population,omitempty" yaml:"exclude_population,omitempty"`
	ExcludeIntervention []string `json:"exclude_intervention,omitempty" yaml:"exclude_intervention,omitempty"`
	ExcludeOutcome      []string `json:"exclude_outcome,omitempty" yaml:"exclude_outcome,omitempty"`
	StudyDesigns        []string `json:"study_designs,omitempty" yaml:"study_designs,omitempty"`
	ExcludeStudyDesigns []string `json:"exclude_study_designs,omitempty" yaml:"exclude_study_designs,omitempty"`
	Languages           []string `json:"languages,omitempty" yaml:"languages,omitempty"`
}

// FromLegacy converts a flat legacy criteria document into the canonical
// PICO-framework Criteria. Elements without any terms are omitted.
func FromLegacy(l LegacyCriteria) Criteria {
	c := Criteria{
		ID:                 l.ID,
		Version:            l.Version,
		Framework:          FrameworkPICO,
		Elements:           make(map[string]ElementTerms),
		StudyDesignInclude: l.StudyDesigns,
		StudyDesignExclude: l.ExcludeStudyDesigns,
		Languages:          l.Languages,
	}
	add := func(name string, include, exclude []string) {
		if len(include) == 0 && len(exclude) == 0 {
			return
		}
		c.Elements[name] = ElementTerms{Include: include, Exclude: exclude}
	}
	add("population", l.Population, l.ExcludePopulation)
	add("intervention", l.Intervention, l.ExcludeIntervention)
	add("comparison", l.Comparison, nil)
	add("outcome", l.Outcome, l.ExcludeOutcome)
	return c
}
