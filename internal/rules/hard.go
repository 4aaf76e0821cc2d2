// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package rules

import (
	"fmt"
	"slices"
	"strings"

	"github.com/pdiddy/screening-engine/pkg/types"
)

// excludedPublicationTypes are study types that never report primary results.
var excludedPublicationTypes = []string{
	"editorial",
	"letter",
	"comment",
	"commentary",
	"review",
	"narrative review",
	"erratum",
	"retraction",
	"news",
	"note",
	"conference abstract",
}

// excludedTitleKeywords mark non-research items when the study type is missing.
var excludedTitleKeywords = []string{
	"erratum",
	"corrigendum",
	"retraction",
	"retracted:",
	"letter to the editor",
	"editorial:",
	"comment on",
	"reply to",
	"in response to",
}

type publicationTypeRule struct{}

func (publicationTypeRule) Name() string         { return PublicationType }
func (publicationTypeRule) Kind() types.RuleKind { return types.RuleHard }

func (publicationTypeRule) Check(record types.Record, _ types.Criteria, _ []types.ModelOutput) *types.RuleViolation {
	if st := normalizeTerm(record.StudyType); st != "" && slices.Contains(excludedPublicationTypes, st) {
		return &types.RuleViolation{
			Rule:        PublicationType,
			Kind:        types.RuleHard,
			Description: fmt.Sprintf("publication type %q is not primary research", record.StudyType),
		}
	}
	title := strings.ToLower(record.Title)
	for _, kw := range excludedTitleKeywords {
		if strings.Contains(title, kw) {
			return &types.RuleViolation{
				Rule:        PublicationType,
				Kind:        types.RuleHard,
				Description: fmt.Sprintf("title contains exclusion keyword %q", kw),
			}
		}
	}
	return nil
}

type studyDesignRule struct{}

func (studyDesignRule) Name() string         { return StudyDesign }
func (studyDesignRule) Kind() types.RuleKind { return types.RuleHard }

func (studyDesignRule) Check(record types.Record, criteria types.Criteria, _ []types.ModelOutput) *types.RuleViolation {
	st := normalizeTerm(record.StudyType)
	if st == "" {
		return nil
	}
	for _, excluded := range criteria.StudyDesignExclude {
		if normalizeTerm(excluded) == st {
			return &types.RuleViolation{
				Rule:        StudyDesign,
				Kind:        types.RuleHard,
				Description: fmt.Sprintf("study design %q is excluded by the criteria", record.StudyType),
			}
		}
	}
	return nil
}

// languageAliases folds language names onto ISO 639-1 codes.
var languageAliases = map[string]string{
	"english":    "en",
	"german":     "de",
	"french":     "fr",
	"spanish":    "es",
	"portuguese": "pt",
	"italian":    "it",
	"dutch":      "nl",
	"russian":    "ru",
	"chinese":    "zh",
	"japanese":   "ja",
	"korean":     "ko",
}

func canonicalLanguage(s string) string {
	s = normalizeTerm(s)
	if code, ok := languageAliases[s]; ok {
		return code
	}
	return s
}

type languageRule struct {
	defaults []string
}

func newLanguageRule(defaults []string) languageRule {
	if len(defaults) == 0 {
		defaults = DefaultLanguages()
	}
	return languageRule{defaults: defaults}
}

func (languageRule) Name() string         { return Language }
func (languageRule) Kind() types.RuleKind { return types.RuleHard }

func (r languageRule) Check(record types.Record, criteria types.Criteria, _ []types.ModelOutput) *types.RuleViolation {
	lang := canonicalLanguage(record.Language)
	if lang == "" {
		return nil
	}
	allowed := criteria.Languages
	if len(allowed) == 0 {
		allowed = r.defaults
	}
	for _, a := range allowed {
		if canonicalLanguage(a) == lang {
			return nil
		}
	}
	return &types.RuleViolation{
		Rule:        Language,
		Kind:        types.RuleHard,
		Description: fmt.Sprintf("language %q is not in the allow-list %v", record.Language, allowed),
	}
}
