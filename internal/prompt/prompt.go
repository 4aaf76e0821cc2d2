// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package prompt renders the screening prompt sent to every inference backend.
//
// Each criteria framework (PICO, PICOS, PECO, PCC, SPIDER) has its own template
// registered under its tag. Unrecognized tags use the generic template. The
// template set is resolved once when a Builder is created.
package prompt

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"text/template"

	"github.com/pdiddy/screening-engine/pkg/types"
)

// Generic is the tag of the fallback template.
const Generic types.Framework = "GENERIC"

// Prompt is a rendered screening prompt.
type Prompt struct {
	// Framework is the template actually used (Generic for unknown tags).
	Framework types.Framework
	Text      string
	// Hash is the hex SHA-256 of Text, recorded in the audit trail.
	Hash string
}

// Builder renders prompts from a fixed template registry.
type Builder struct {
	templates map[types.Framework]*template.Template
	fallback  *template.Template
}

// NewBuilder returns a Builder over the default template registry.
func NewBuilder() *Builder {
	return NewBuilderWith(DefaultTemplates())
}

// NewBuilderWith returns a Builder over a caller-supplied registry. The
// registry must contain a Generic entry; DefaultTemplates' generic template
// is used otherwise.
func NewBuilderWith(registry map[types.Framework]*template.Template) *Builder {
	b := &Builder{templates: make(map[types.Framework]*template.Template, len(registry))}
	for tag, t := range registry {
		b.templates[tag.Normalize()] = t
	}
	b.fallback = b.templates[Generic]
	if b.fallback == nil {
		b.fallback = DefaultTemplates()[Generic]
	}
	return b
}

// Resolve returns the framework tag whose template will render criteria
// using framework f.
func (b *Builder) Resolve(f types.Framework) types.Framework {
	if _, ok := b.templates[f.Normalize()]; ok && f.Normalize() != "" {
		return f.Normalize()
	}
	return Generic
}

// Build renders the prompt for one record under the given criteria.
func (b *Builder) Build(record types.Record, criteria types.Criteria) (Prompt, error) {
	tag := b.Resolve(criteria.Framework)
	tmpl := b.templates[tag]
	if tmpl == nil {
		tmpl = b.fallback
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, newView(record, criteria)); err != nil {
		return Prompt{}, fmt.Errorf("rendering %s prompt: %w", tag, err)
	}
	text := buf.String()
	return Prompt{Framework: tag, Text: text, Hash: Hash(text)}, nil
}

// Hash returns the hex SHA-256 digest of a prompt text.
func Hash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// view is the template data.
type view struct {
	Title              string
	Abstract           string
	StudyType          string
	Language           string
	Keywords           string
	Elements           []elementView
	StudyDesignInclude string
	StudyDesignExclude string
	Languages          string
	ElementKeys        string
}

type elementView struct {
	Name    string
	Include string
	Exclude string
}

func newView(r types.Record, c types.Criteria) view {
	v := view{
		Title:              strings.TrimSpace(r.Title),
		Abstract:           strings.TrimSpace(r.Abstract),
		StudyType:          r.StudyType,
		Language:           r.Language,
		Keywords:           strings.Join(r.Keywords, "; "),
		StudyDesignInclude: strings.Join(c.StudyDesignInclude, "; "),
		StudyDesignExclude: strings.Join(c.StudyDesignExclude, "; "),
		Languages:          strings.Join(c.Languages, ", "),
	}
	if v.Abstract == "" {
		v.Abstract = "(no abstract available)"
	}
	names := c.ElementNames()
	keys := make([]string, 0, len(names))
	for _, name := range names {
		terms := c.Elements[name]
		v.Elements = append(v.Elements, elementView{
			Name:    name,
			Include: strings.Join(terms.Include, "; "),
			Exclude: strings.Join(terms.Exclude, "; "),
		})
		keys = append(keys, fmt.Sprintf("%q: \"match|mismatch|unclear\"", name))
	}
	v.ElementKeys = strings.Join(keys, ", ")
	return v
}
