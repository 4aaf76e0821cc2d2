// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package rules

import (
	"fmt"

	"github.com/pdiddy/screening-engine/pkg/types"
)

// Soft rule penalties.
const (
	populationMismatchPenalty    = 0.15
	outcomeMismatchPenalty       = 0.10
	interventionAmbiguityPenalty = 0.05

	// mismatchQuorum is the share of valid outputs that must report a
	// mismatch before a mismatch rule fires.
	mismatchQuorum = 0.5
)

// concept is a criteria role that different frameworks name differently.
type concept int

const (
	conceptPopulation concept = iota
	conceptIntervention
	conceptOutcome
)

// elementAliases lists, per framework, the element names that play each role.
// The first alias found in an output's element map is used.
var elementAliases = map[types.Framework]map[concept][]string{
	types.FrameworkPICO: {
		conceptPopulation:   {"population", "p", "participants", "patients"},
		conceptIntervention: {"intervention", "i"},
		conceptOutcome:      {"outcome", "o", "outcomes"},
	},
	types.FrameworkPICOS: {
		conceptPopulation:   {"population", "p", "participants", "patients"},
		conceptIntervention: {"intervention", "i"},
		conceptOutcome:      {"outcome", "o", "outcomes"},
	},
	types.FrameworkPECO: {
		conceptPopulation:   {"population", "p", "participants"},
		conceptIntervention: {"exposure", "e", "intervention"},
		conceptOutcome:      {"outcome", "o", "outcomes"},
	},
	types.FrameworkPCC: {
		conceptPopulation:   {"population", "p", "participants"},
		conceptIntervention: {"concept", "c"},
		conceptOutcome:      {"context"},
	},
	types.FrameworkSPIDER: {
		conceptPopulation:   {"sample", "s", "population"},
		conceptIntervention: {"phenomenon_of_interest", "phenomenon of interest", "pi"},
		conceptOutcome:      {"evaluation", "e", "outcome"},
	},
}

// genericAliases is used for unrecognized frameworks.
var genericAliases = map[concept][]string{
	conceptPopulation:   {"population", "participants", "sample", "patients"},
	conceptIntervention: {"intervention", "exposure", "concept", "phenomenon_of_interest"},
	conceptOutcome:      {"outcome", "outcomes", "evaluation"},
}

func aliasesFor(f types.Framework, c concept) []string {
	if m, ok := elementAliases[f.Normalize()]; ok {
		return m[c]
	}
	return genericAliases[c]
}

// assessment returns the output's match for concept c, and false when the
// output did not assess it.
func assessment(out types.ModelOutput, f types.Framework, c concept) (types.ElementMatch, bool) {
	for _, name := range aliasesFor(f, c) {
		if m, ok := out.Elements[name]; ok {
			return m, true
		}
	}
	return "", false
}

// tally counts match and mismatch assessments of c across valid outputs.
func tally(outputs []types.ModelOutput, f types.Framework, c concept) (matches, mismatches, valid int) {
	for _, out := range types.ValidOutputs(outputs) {
		valid++
		m, ok := assessment(out, f, c)
		if !ok {
			continue
		}
		switch m {
		case types.MatchYes:
			matches++
		case types.MatchNo:
			mismatches++
		}
	}
	return matches, mismatches, valid
}

func mismatchViolation(name string, outputs []types.ModelOutput, f types.Framework, c concept, penalty float64, what string) *types.RuleViolation {
	_, mismatches, valid := tally(outputs, f, c)
	if valid == 0 || float64(mismatches)/float64(valid) < mismatchQuorum {
		return nil
	}
	return &types.RuleViolation{
		Rule:        name,
		Kind:        types.RuleSoft,
		Description: fmt.Sprintf("%d of %d models report a %s mismatch", mismatches, valid, what),
		Penalty:     penalty,
	}
}

type populationMismatchRule struct{}

func (populationMismatchRule) Name() string         { return PopulationMismatch }
func (populationMismatchRule) Kind() types.RuleKind { return types.RuleSoft }

func (populationMismatchRule) Check(_ types.Record, criteria types.Criteria, outputs []types.ModelOutput) *types.RuleViolation {
	return mismatchViolation(PopulationMismatch, outputs, criteria.Framework, conceptPopulation, populationMismatchPenalty, "population")
}

type outcomeMismatchRule struct{}

func (outcomeMismatchRule) Name() string         { return OutcomeMismatch }
func (outcomeMismatchRule) Kind() types.RuleKind { return types.RuleSoft }

func (outcomeMismatchRule) Check(_ types.Record, criteria types.Criteria, outputs []types.ModelOutput) *types.RuleViolation {
	return mismatchViolation(OutcomeMismatch, outputs, criteria.Framework, conceptOutcome, outcomeMismatchPenalty, "outcome")
}

type interventionAmbiguityRule struct{}

func (interventionAmbiguityRule) Name() string         { return InterventionAmbiguity }
func (interventionAmbiguityRule) Kind() types.RuleKind { return types.RuleSoft }

func (interventionAmbiguityRule) Check(_ types.Record, criteria types.Criteria, outputs []types.ModelOutput) *types.RuleViolation {
	matches, mismatches, _ := tally(outputs, criteria.Framework, conceptIntervention)
	if matches == 0 || mismatches == 0 {
		return nil
	}
	return &types.RuleViolation{
		Rule:        InterventionAmbiguity,
		Kind:        types.RuleSoft,
		Description: fmt.Sprintf("models disagree on the intervention (%d match, %d mismatch)", matches, mismatches),
		Penalty:     interventionAmbiguityPenalty,
	}
}
