// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package prompt

import (
	"text/template"

	"github.com/pdiddy/screening-engine/pkg/types"
)

// baseText is shared by every framework. The "guidance" block is supplied
// per framework.
const baseText = `You are screening a citation for a systematic review.
{{template "guidance" .}}
Inclusion criteria:
{{- range .Elements}}
- {{.Name}}: include {{if .Include}}{{.Include}}{{else}}(any){{end}}{{if .Exclude}}; exclude {{.Exclude}}{{end}}
{{- end}}
{{- if .StudyDesignInclude}}
- study designs accepted: {{.StudyDesignInclude}}
{{- end}}
{{- if .StudyDesignExclude}}
- study designs excluded: {{.StudyDesignExclude}}
{{- end}}
{{- if .Languages}}
- languages accepted: {{.Languages}}
{{- end}}

When the title and abstract do not give enough information to rule the
citation out, decide INCLUDE. Excluding a relevant study costs more than
reviewing an irrelevant one.

Respond with a single JSON object and no other text:
{"decision": "INCLUDE|EXCLUDE", "score": <probability of relevance 0.0-1.0>, "confidence": <0.0-1.0>, "elements": { {{- .ElementKeys -}} }, "rationale": "<one or two sentences>"}

Citation:
Title: {{.Title}}
{{- if .StudyType}}
Publication type: {{.StudyType}}
{{- end}}
{{- if .Language}}
Language: {{.Language}}
{{- end}}
{{- if .Keywords}}
Keywords: {{.Keywords}}
{{- end}}
Abstract: {{.Abstract}}
`

var guidance = map[types.Framework]string{
	types.FrameworkPICO: `The criteria follow PICO. Judge whether the study's Population,
Intervention, Comparison and Outcome match the criteria below.`,
	types.FrameworkPICOS: `The criteria follow PICOS. Judge whether the study's Population,
Intervention, Comparison, Outcome and Study design match the criteria below.`,
	types.FrameworkPECO: `The criteria follow PECO for exposure studies. Judge whether the study's
Population, Exposure, Comparator and Outcome match the criteria below.`,
	types.FrameworkPCC: `The criteria follow PCC for a scoping review. Judge whether the study's
Population, Concept and Context match the criteria below. Scoping reviews
accept broad evidence types.`,
	types.FrameworkSPIDER: `The criteria follow SPIDER for qualitative evidence. Judge whether the
study's Sample, Phenomenon of Interest, Design, Evaluation and Research type
match the criteria below.`,
	Generic: `Judge whether the study matches each criteria element below.`,
}

// DefaultTemplates returns a fresh template registry keyed by framework tag.
func DefaultTemplates() map[types.Framework]*template.Template {
	base := template.Must(template.New("screening").Parse(baseText))
	registry := make(map[types.Framework]*template.Template, len(guidance))
	for tag, text := range guidance {
		t := template.Must(base.Clone())
		template.Must(t.New("guidance").Parse(text))
		registry[tag] = t
	}
	return registry
}
