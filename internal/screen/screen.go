// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package screen composes the four pipeline layers into a Screener: model
// inference, rule checks, weighted aggregation and tiered routing.
package screen

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/screening-engine/internal/aggregate"
	"github.com/pdiddy/screening-engine/internal/orchestrator"
	"github.com/pdiddy/screening-engine/internal/router"
	"github.com/pdiddy/screening-engine/internal/rules"
	"github.com/pdiddy/screening-engine/pkg/types"
)

const defaultWorkers = 4

// Sink receives audit entries as records are screened.
type Sink interface {
	RecordEntries(ctx context.Context, entries []types.AuditEntry) error
}

// Screener runs records through the pipeline. It is safe for concurrent use.
type Screener struct {
	orch      *orchestrator.Orchestrator
	rules     *rules.Engine
	artifacts atomic.Pointer[Artifacts]
	metrics   *Metrics
	sink      Sink
	logger    *slog.Logger
	workers   int
	runID     string
	now       func() time.Time
}

// Option configures a Screener.
type Option func(*Screener)

// WithRules replaces the default rule engine.
func WithRules(e *rules.Engine) Option {
	return func(s *Screener) {
		if e != nil {
			s.rules = e
		}
	}
}

// WithArtifacts sets the initial artifacts.
func WithArtifacts(a *Artifacts) Option {
	return func(s *Screener) {
		if a != nil {
			s.artifacts.Store(a)
		}
	}
}

// WithMetrics records every decision in m.
func WithMetrics(m *Metrics) Option {
	return func(s *Screener) { s.metrics = m }
}

// WithSink writes every audit entry to sink.
func WithSink(sink Sink) Option {
	return func(s *Screener) { s.sink = sink }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Screener) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithWorkers bounds how many records ScreenBatch screens at once.
func WithWorkers(n int) Option {
	return func(s *Screener) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithRunID fixes the run id stamped on audit entries.
func WithRunID(id string) Option {
	return func(s *Screener) {
		if id != "" {
			s.runID = id
		}
	}
}

// New creates a Screener around an orchestrator.
func New(orch *orchestrator.Orchestrator, opts ...Option) (*Screener, error) {
	if orch == nil {
		return nil, errors.New("screener requires an orchestrator")
	}
	s := &Screener{
		orch:    orch,
		rules:   rules.NewEngine(nil),
		logger:  slog.Default(),
		workers: defaultWorkers,
		runID:   uuid.NewString(),
		now:     time.Now,
	}
	s.artifacts.Store(DefaultArtifacts())
	for _, opt := range opts {
		opt(s)
	}
	if err := s.Artifacts().Thresholds.Validate(); err != nil {
		return nil, fmt.Errorf("initial artifacts: %w", err)
	}
	return s, nil
}

// RunID returns the id stamped on this screener's audit entries.
func (s *Screener) RunID() string { return s.runID }

// Artifacts returns the artifacts currently in use.
func (s *Screener) Artifacts() *Artifacts { return s.artifacts.Load() }

// SetArtifacts replaces the weights, calibrators and thresholds in one step.
// Records already in flight finish with the artifacts they started with.
func (s *Screener) SetArtifacts(a *Artifacts) error {
	if a == nil {
		return errors.New("nil artifacts")
	}
	if err := a.Thresholds.Validate(); err != nil {
		return err
	}
	s.artifacts.Store(a)
	return nil
}

// Screen runs one record through every layer. Backend failures never fail the
// call; an error is returned only for an invalid record or a cancelled ctx.
func (s *Screener) Screen(ctx context.Context, record types.Record, criteria types.Criteria) (types.ScreeningDecision, types.AuditEntry, error) {
	if record.ID == "" {
		return types.ScreeningDecision{}, types.AuditEntry{}, errors.New("record id is required")
	}
	start := s.now()
	art := s.artifacts.Load()

	inf := s.orch.Infer(ctx, record, criteria)
	if err := ctx.Err(); err != nil {
		return types.ScreeningDecision{}, types.AuditEntry{}, err
	}

	check := s.rules.Check(record, criteria, inf.Outputs)
	agg := aggregate.New(aggregate.NewWeightLookup(art.Weights), art.Calibrators).Aggregate(inf.Outputs, check)

	r, err := router.New(art.Thresholds)
	if err != nil {
		return types.ScreeningDecision{}, types.AuditEntry{}, err
	}
	decision, tier := r.Route(inf.Outputs, check, agg.Confidence)

	d := types.ScreeningDecision{
		RecordID:           record.ID,
		Decision:           decision,
		Tier:               tier,
		FinalScore:         agg.FinalScore,
		EnsembleConfidence: agg.Confidence,
		Outputs:            inf.Outputs,
		Rules:              check,
	}
	entry := types.AuditEntry{
		RunID:              s.runID,
		Timestamp:          start.UTC(),
		RecordID:           record.ID,
		CriteriaID:         criteria.ID,
		CriteriaVersion:    criteria.Version,
		Framework:          criteria.Framework.Normalize(),
		ModelVersions:      inf.ModelVersions,
		PromptHashes:       inf.PromptHashes,
		Outputs:            inf.Outputs,
		Rules:              check,
		Decision:           decision,
		Tier:               tier,
		FinalScore:         agg.FinalScore,
		EnsembleConfidence: agg.Confidence,
		Seed:               s.orch.Seed(),
		Thresholds:         art.Thresholds,
	}

	s.metrics.observe(d, s.now().Sub(start))
	s.logger.Debug("record screened",
		"record_id", record.ID, "decision", decision, "tier", int(tier),
		"final_score", agg.FinalScore, "confidence", agg.Confidence)
	return d, entry, nil
}

// BatchSummary counts the outcomes of a ScreenBatch call.
type BatchSummary struct {
	Included    int
	Excluded    int
	HumanReview int
	Failed      int
}

// Total returns the number of records processed.
func (s BatchSummary) Total() int {
	return s.Included + s.Excluded + s.HumanReview + s.Failed
}

// ScreenBatch screens records with at most the configured number of workers
// and writes one progress line per record to w. Decisions are returned in
// input order; a record that could not be screened leaves a zero decision in
// its slot and is counted as failed. The audit sink receives every screened
// entry in input order once all records finish.
func (s *Screener) ScreenBatch(ctx context.Context, records []types.Record, criteria types.Criteria, w io.Writer) ([]types.ScreeningDecision, BatchSummary, error) {
	decisions := make([]types.ScreeningDecision, len(records))
	entries := make([]types.AuditEntry, len(records))
	errs := make([]error, len(records))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, rec := range records {
		g.Go(func() error {
			d, e, err := s.Screen(gctx, rec, criteria)
			if err != nil && gctx.Err() != nil {
				return err
			}
			decisions[i], entries[i], errs[i] = d, e, err
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return decisions, BatchSummary{}, err
	}

	var summary BatchSummary
	screened := make([]types.AuditEntry, 0, len(records))
	for i, rec := range records {
		if errs[i] != nil {
			summary.Failed++
			fmt.Fprintf(w, "failed:  %s (%v)\n", rec.ID, errs[i])
			continue
		}
		d := decisions[i]
		switch d.Decision {
		case types.DecisionInclude:
			summary.Included++
		case types.DecisionExclude:
			summary.Excluded++
		default:
			summary.HumanReview++
		}
		fmt.Fprintf(w, "%-13s %s (tier %d, score %.3f, confidence %.3f)\n",
			d.Decision+":", rec.ID, d.Tier, d.FinalScore, d.EnsembleConfidence)
		screened = append(screened, entries[i])
	}

	if s.sink != nil {
		if err := s.sink.RecordEntries(ctx, screened); err != nil {
			return decisions, summary, fmt.Errorf("recording audit entries: %w", err)
		}
	}

	fmt.Fprintf(w, "\nBatch summary: %d included, %d excluded, %d human review, %d failed (total: %d)\n",
		summary.Included, summary.Excluded, summary.HumanReview, summary.Failed, summary.Total())
	return decisions, summary, nil
}
