// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package evaluate scores screening decisions against ground truth.
//
// HUMAN_REVIEW counts as retaining a record: a positive sent to review is not
// lost, so it counts toward sensitivity, while automation rate measures how
// many records the pipeline decided without a reviewer.
package evaluate

import (
	"fmt"
	"io"
	"math"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/pdiddy/screening-engine/pkg/types"
)

// Outcome is one screened record with its ground-truth label.
type Outcome struct {
	RecordID   string
	Decision   types.Decision
	Tier       types.Tier
	FinalScore float64
	Include    bool
}

// Interval is a two-sided confidence interval.
type Interval struct {
	Lower float64 `json:"lower" yaml:"lower"`
	Upper float64 `json:"upper" yaml:"upper"`
}

// Report summarizes screening performance over a labeled set.
type Report struct {
	Records   int `json:"records" yaml:"records"`
	Positives int `json:"positives" yaml:"positives"`
	Negatives int `json:"negatives" yaml:"negatives"`

	// Confusion counts. Retained = INCLUDE or HUMAN_REVIEW.
	RetainedPositives int `json:"retained_positives" yaml:"retained_positives"`
	MissedPositives   int `json:"missed_positives" yaml:"missed_positives"`
	ExcludedNegatives int `json:"excluded_negatives" yaml:"excluded_negatives"`
	HumanReview       int `json:"human_review" yaml:"human_review"`

	Sensitivity    float64  `json:"sensitivity" yaml:"sensitivity"`
	SensitivityCI  Interval `json:"sensitivity_ci" yaml:"sensitivity_ci"`
	Specificity    float64  `json:"specificity" yaml:"specificity"`
	AutomationRate float64  `json:"automation_rate" yaml:"automation_rate"`

	// WSS is work saved over sampling at the achieved sensitivity:
	// (records auto-excluded)/N − (1 − sensitivity).
	WSS float64 `json:"wss" yaml:"wss"`

	// Brier is the mean squared error of FinalScore against the label.
	Brier float64 `json:"brier" yaml:"brier"`

	MeanScorePositive float64 `json:"mean_score_positive" yaml:"mean_score_positive"`
	MeanScoreNegative float64 `json:"mean_score_negative" yaml:"mean_score_negative"`

	TierCounts map[types.Tier]int `json:"tier_counts" yaml:"tier_counts"`
}

// confidenceLevel is the coverage of SensitivityCI.
const confidenceLevel = 0.95

func retained(d types.Decision) bool {
	return d == types.DecisionInclude || d == types.DecisionHumanReview
}

// Sensitivity returns retained positives over all positives, or 1 when the
// set has no positives.
func Sensitivity(outcomes []Outcome) float64 {
	var pos, kept int
	for _, o := range outcomes {
		if !o.Include {
			continue
		}
		pos++
		if retained(o.Decision) {
			kept++
		}
	}
	if pos == 0 {
		return 1
	}
	return float64(kept) / float64(pos)
}

// AutomationRate returns the share of records not sent to human review, or
// 0 for an empty set.
func AutomationRate(outcomes []Outcome) float64 {
	if len(outcomes) == 0 {
		return 0
	}
	var auto int
	for _, o := range outcomes {
		if o.Decision != types.DecisionHumanReview {
			auto++
		}
	}
	return float64(auto) / float64(len(outcomes))
}

// Evaluate computes the full report.
func Evaluate(outcomes []Outcome) Report {
	r := Report{Records: len(outcomes), TierCounts: make(map[types.Tier]int)}
	var posScores, negScores, sqErr []float64
	var autoExcluded int

	for _, o := range outcomes {
		r.TierCounts[o.Tier]++
		if o.Decision == types.DecisionHumanReview {
			r.HumanReview++
		}
		if o.Decision == types.DecisionExclude {
			autoExcluded++
		}
		y := 0.0
		if o.Include {
			y = 1
			r.Positives++
			posScores = append(posScores, o.FinalScore)
			if retained(o.Decision) {
				r.RetainedPositives++
			} else {
				r.MissedPositives++
			}
		} else {
			r.Negatives++
			negScores = append(negScores, o.FinalScore)
			if o.Decision == types.DecisionExclude {
				r.ExcludedNegatives++
			}
		}
		sqErr = append(sqErr, (o.FinalScore-y)*(o.FinalScore-y))
	}

	r.Sensitivity = Sensitivity(outcomes)
	r.SensitivityCI = ClopperPearson(r.RetainedPositives, r.Positives, confidenceLevel)
	r.Specificity = 1
	if r.Negatives > 0 {
		r.Specificity = float64(r.ExcludedNegatives) / float64(r.Negatives)
	}
	r.AutomationRate = AutomationRate(outcomes)
	if r.Records > 0 {
		r.WSS = float64(autoExcluded)/float64(r.Records) - (1 - r.Sensitivity)
	}

	r.Brier = mean(sqErr)
	r.MeanScorePositive = mean(posScores)
	r.MeanScoreNegative = mean(negScores)
	return r
}

// mean returns the arithmetic mean, or 0 for empty input where stats.Mean
// reports NaN.
func mean(xs []float64) float64 {
	m, err := stats.Mean(xs)
	if err != nil || math.IsNaN(m) {
		return 0
	}
	return m
}

// ClopperPearson returns the exact binomial interval for k successes in n
// trials at the given confidence level. n == 0 yields [0, 1].
func ClopperPearson(k, n int, level float64) Interval {
	if n <= 0 {
		return Interval{Lower: 0, Upper: 1}
	}
	alpha := 1 - level
	iv := Interval{Lower: 0, Upper: 1}
	if k > 0 {
		iv.Lower = distuv.Beta{Alpha: float64(k), Beta: float64(n - k + 1)}.Quantile(alpha / 2)
	}
	if k < n {
		iv.Upper = distuv.Beta{Alpha: float64(k + 1), Beta: float64(n - k)}.Quantile(1 - alpha/2)
	}
	return iv
}

// Write prints the report as aligned text lines.
func Write(w io.Writer, r Report) {
	fmt.Fprintf(w, "Records:          %d (%d positive, %d negative)\n", r.Records, r.Positives, r.Negatives)
	fmt.Fprintf(w, "Sensitivity:      %.3f (95%% CI %.3f-%.3f)\n", r.Sensitivity, r.SensitivityCI.Lower, r.SensitivityCI.Upper)
	fmt.Fprintf(w, "Specificity:      %.3f\n", r.Specificity)
	fmt.Fprintf(w, "Automation rate:  %.3f (%d sent to human review)\n", r.AutomationRate, r.HumanReview)
	fmt.Fprintf(w, "WSS:              %.3f\n", r.WSS)
	fmt.Fprintf(w, "Brier score:      %.4f\n", r.Brier)
	fmt.Fprintf(w, "Mean final score: %.3f positive, %.3f negative\n", r.MeanScorePositive, r.MeanScoreNegative)
	for tier := types.TierHardRule; tier <= types.TierHumanReview; tier++ {
		fmt.Fprintf(w, "Tier %d:           %d\n", tier, r.TierCounts[tier])
	}
}

// Join pairs audit entries with ground-truth labels. Entries without a label
// are skipped; when a record appears more than once the last entry wins.
// Outcomes are returned in first-seen record order.
func Join(entries []types.AuditEntry, labels map[string]bool) []Outcome {
	index := make(map[string]int)
	var outcomes []Outcome
	for _, e := range entries {
		include, ok := labels[e.RecordID]
		if !ok {
			continue
		}
		o := Outcome{
			RecordID:   e.RecordID,
			Decision:   e.Decision,
			Tier:       e.Tier,
			FinalScore: e.FinalScore,
			Include:    include,
		}
		if i, seen := index[e.RecordID]; seen {
			outcomes[i] = o
			continue
		}
		index[e.RecordID] = len(outcomes)
		outcomes = append(outcomes, o)
	}
	return outcomes
}
