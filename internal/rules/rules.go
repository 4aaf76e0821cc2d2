// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package rules is Layer 2 of the screening pipeline: deterministic checks
// that either force an exclusion (hard rules) or subtract a penalty from the
// aggregated score (soft rules).
//
// Rules are a closed set registered by name. An Engine resolves its rule list
// once at construction and runs every rule for every record, even after a
// hard violation, so the audit trail shows all reasons a record failed.
package rules

import (
	"fmt"
	"strings"

	"github.com/pdiddy/screening-engine/pkg/types"
)

// Rule is one deterministic check over a record, its criteria, and the
// Layer 1 outputs. Check returns nil when the rule does not fire.
type Rule interface {
	Name() string
	Kind() types.RuleKind
	Check(record types.Record, criteria types.Criteria, outputs []types.ModelOutput) *types.RuleViolation
}

// Rule names.
const (
	PublicationType       = "publication_type"
	StudyDesign           = "study_design"
	Language              = "language"
	PopulationMismatch    = "population_mismatch"
	OutcomeMismatch       = "outcome_mismatch"
	InterventionAmbiguity = "intervention_ambiguity"
)

// Options tunes rule construction.
type Options struct {
	// DefaultLanguages is the allow-list used when criteria name no languages.
	DefaultLanguages []string
}

// DefaultLanguages is the language allow-list applied when neither the
// criteria nor the configuration name one.
func DefaultLanguages() []string {
	return []string{"en", "english"}
}

// Factory constructs a rule.
type Factory func(Options) Rule

var registry = map[string]Factory{
	PublicationType:       func(Options) Rule { return publicationTypeRule{} },
	StudyDesign:           func(Options) Rule { return studyDesignRule{} },
	Language:              func(o Options) Rule { return newLanguageRule(o.DefaultLanguages) },
	PopulationMismatch:    func(Options) Rule { return populationMismatchRule{} },
	OutcomeMismatch:       func(Options) Rule { return outcomeMismatchRule{} },
	InterventionAmbiguity: func(Options) Rule { return interventionAmbiguityRule{} },
}

// DefaultNames returns the default rule order: hard rules first, then soft.
func DefaultNames() []string {
	return []string{
		PublicationType,
		StudyDesign,
		Language,
		PopulationMismatch,
		OutcomeMismatch,
		InterventionAmbiguity,
	}
}

// FromNames resolves rule names against the registry, preserving order.
// An unknown name is an error.
func FromNames(names []string, opts Options) ([]Rule, error) {
	rules := make([]Rule, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, raw := range names {
		name := strings.ToLower(strings.TrimSpace(raw))
		f, ok := registry[name]
		if !ok {
			return nil, fmt.Errorf("unknown rule %q", raw)
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		rules = append(rules, f(opts))
	}
	return rules, nil
}

// DefaultRules returns the default rule set.
func DefaultRules(opts Options) []Rule {
	rules, _ := FromNames(DefaultNames(), opts)
	return rules
}

// Engine runs an ordered rule list.
type Engine struct {
	rules []Rule
}

// NewEngine creates an engine over rules. A nil list means DefaultRules with
// default options.
func NewEngine(rules []Rule) *Engine {
	if rules == nil {
		rules = DefaultRules(Options{})
	}
	return &Engine{rules: append([]Rule(nil), rules...)}
}

// FromConfig builds an engine from the rules section of the pipeline config.
func FromConfig(cfg types.RulesConfig) (*Engine, error) {
	names := cfg.Enabled
	if len(names) == 0 {
		names = DefaultNames()
	}
	rules, err := FromNames(names, Options{DefaultLanguages: cfg.DefaultLanguages})
	if err != nil {
		return nil, err
	}
	return NewEngine(rules), nil
}

// Rules returns the engine's rules in evaluation order.
func (e *Engine) Rules() []Rule {
	return append([]Rule(nil), e.rules...)
}

// Check runs every rule and collects the violations in rule order.
func (e *Engine) Check(record types.Record, criteria types.Criteria, outputs []types.ModelOutput) types.RuleCheckResult {
	var res types.RuleCheckResult
	for _, r := range e.rules {
		v := r.Check(record, criteria, outputs)
		if v == nil {
			continue
		}
		switch v.Kind {
		case types.RuleHard:
			v.Penalty = 0
			res.Hard = append(res.Hard, *v)
		default:
			res.Soft = append(res.Soft, *v)
			res.TotalPenalty += v.Penalty
		}
	}
	return res
}

// normalizeTerm lower-cases s and folds underscores and hyphens to spaces so
// "Narrative_Review" and "narrative-review" compare equal.
func normalizeTerm(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("_", " ", "-", " ").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}
