// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package orchestrator

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/pdiddy/screening-engine/pkg/types"
)

// rawOutput mirrors the JSON object backends are asked to return. Pointer
// fields distinguish "absent" from zero.
type rawOutput struct {
	Decision   string            `json:"decision"`
	Score      *float64          `json:"score"`
	Confidence *float64          `json:"confidence"`
	Elements   map[string]string `json:"elements"`
	Rationale  string            `json:"rationale"`
}

// ParseOutput converts raw completion text into a ModelOutput. Markdown code
// fences and prose around the JSON object are tolerated. Score and confidence
// are clamped to [0,1].
func ParseOutput(modelID, raw string) (types.ModelOutput, error) {
	obj, err := extractObject(raw)
	if err != nil {
		return types.ModelOutput{}, &ResponseParseError{ModelID: modelID, Raw: raw, Err: err}
	}

	var ro rawOutput
	if err := json.Unmarshal([]byte(obj), &ro); err != nil {
		return types.ModelOutput{}, &ResponseParseError{ModelID: modelID, Raw: raw, Err: err}
	}

	decision, err := parseDecision(ro.Decision)
	if err != nil {
		return types.ModelOutput{}, &ResponseParseError{ModelID: modelID, Raw: raw, Err: err}
	}
	if ro.Score == nil {
		return types.ModelOutput{}, &ResponseParseError{ModelID: modelID, Raw: raw, Err: errors.New("missing score")}
	}
	if ro.Confidence == nil {
		return types.ModelOutput{}, &ResponseParseError{ModelID: modelID, Raw: raw, Err: errors.New("missing confidence")}
	}

	out := types.ModelOutput{
		ModelID:    modelID,
		Decision:   decision,
		Score:      clamp01(*ro.Score),
		Confidence: clamp01(*ro.Confidence),
		Rationale:  strings.TrimSpace(ro.Rationale),
	}
	if len(ro.Elements) > 0 {
		out.Elements = make(map[string]types.ElementMatch, len(ro.Elements))
		for name, v := range ro.Elements {
			out.Elements[strings.ToLower(strings.TrimSpace(name))] = parseMatch(v)
		}
	}
	return out, nil
}

// extractObject returns the outermost {...} span of s.
func extractObject(s string) (string, error) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", errors.New("no JSON object in response")
	}
	return s[start : end+1], nil
}

func parseDecision(s string) (types.Decision, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "INCLUDE", "INCLUDED":
		return types.DecisionInclude, nil
	case "EXCLUDE", "EXCLUDED":
		return types.DecisionExclude, nil
	default:
		return "", fmt.Errorf("invalid decision %q", s)
	}
}

func parseMatch(s string) types.ElementMatch {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "match", "yes", "true", "matched":
		return types.MatchYes
	case "mismatch", "no", "false", "not_match", "no_match":
		return types.MatchNo
	default:
		return types.MatchUnclear
	}
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
