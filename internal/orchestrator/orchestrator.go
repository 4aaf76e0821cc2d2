// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package orchestrator is Layer 1 of the screening pipeline. It renders one
// prompt per record, sends it to every configured backend concurrently with
// the same seed, and parses each completion into a ModelOutput.
//
// Individual backend failures never fail a record: a timed-out, erroring, or
// unparseable call yields a degraded INCLUDE output with zero confidence, so
// a transient outage cannot silently drop a relevant citation.
package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/pdiddy/screening-engine/internal/backend"
	"github.com/pdiddy/screening-engine/internal/prompt"
	"github.com/pdiddy/screening-engine/pkg/types"
)

const (
	defaultCallTimeout = 60 * time.Second
	defaultMaxInFlight = 8

	// degradedScore is the placeholder score of a failed call.
	degradedScore = 0.5
)

// Orchestrator fans prompts out to a fixed, ordered list of backends.
type Orchestrator struct {
	backends []backend.Backend
	builder  *prompt.Builder
	timeout  time.Duration
	seed     int64
	limiter  *semaphore.Weighted
	cache    *ResponseCache
	logger   *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithCallTimeout bounds each backend call.
func WithCallTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithSeed sets the seed sent with every call.
func WithSeed(seed int64) Option {
	return func(o *Orchestrator) { o.seed = seed }
}

// WithMaxInFlight caps concurrent backend calls across all records screened
// by this orchestrator.
func WithMaxInFlight(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.limiter = semaphore.NewWeighted(int64(n))
		}
	}
}

// WithCache enables response replay for repeated (model, prompt, seed) calls.
func WithCache(c *ResponseCache) Option {
	return func(o *Orchestrator) { o.cache = c }
}

// WithPromptBuilder replaces the default template registry.
func WithPromptBuilder(b *prompt.Builder) Option {
	return func(o *Orchestrator) {
		if b != nil {
			o.builder = b
		}
	}
}

// WithLogger sets the logger for degraded-call diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// FromConfig returns the options matching an OrchestratorConfig.
func FromConfig(cfg types.OrchestratorConfig) []Option {
	return []Option{
		WithSeed(cfg.Seed),
		WithCallTimeout(cfg.CallTimeout),
		WithMaxInFlight(cfg.MaxInFlight),
	}
}

// New creates an Orchestrator. It fails only when backends is empty.
func New(backends []backend.Backend, opts ...Option) (*Orchestrator, error) {
	if len(backends) == 0 {
		return nil, ErrNoBackends
	}
	o := &Orchestrator{
		backends: append([]backend.Backend(nil), backends...),
		builder:  prompt.NewBuilder(),
		timeout:  defaultCallTimeout,
		limiter:  semaphore.NewWeighted(defaultMaxInFlight),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Seed returns the seed sent with every backend call.
func (o *Orchestrator) Seed() int64 { return o.seed }

// Backends returns the configured backends in order.
func (o *Orchestrator) Backends() []backend.Backend {
	return append([]backend.Backend(nil), o.backends...)
}

// Inference is the Layer 1 result for one record.
type Inference struct {
	Prompt prompt.Prompt

	// Outputs holds exactly one output per backend, in backend order.
	Outputs []types.ModelOutput

	// ModelVersions and PromptHashes are keyed by model id for the audit trail.
	ModelVersions map[string]string
	PromptHashes  map[string]string
}

// Infer screens one record against every backend and waits for all calls to
// finish. It never returns an error: every failure is folded into a degraded
// output for the backend concerned.
func (o *Orchestrator) Infer(ctx context.Context, record types.Record, criteria types.Criteria) Inference {
	inf := Inference{
		Outputs:       make([]types.ModelOutput, len(o.backends)),
		ModelVersions: make(map[string]string, len(o.backends)),
		PromptHashes:  make(map[string]string, len(o.backends)),
	}
	for _, b := range o.backends {
		inf.ModelVersions[b.ModelID()] = b.ModelVersion()
	}

	p, err := o.builder.Build(record, criteria)
	if err != nil {
		for i, b := range o.backends {
			inf.Outputs[i] = o.degraded(record.ID, b.ModelID(), err)
		}
		return inf
	}
	inf.Prompt = p
	for _, b := range o.backends {
		inf.PromptHashes[b.ModelID()] = p.Hash
	}

	var g errgroup.Group
	for i, b := range o.backends {
		g.Go(func() error {
			inf.Outputs[i] = o.call(ctx, record.ID, b, p)
			return nil
		})
	}
	_ = g.Wait()

	return inf
}

// call runs one backend under the limiter and the per-call timeout.
func (o *Orchestrator) call(ctx context.Context, recordID string, b backend.Backend, p prompt.Prompt) types.ModelOutput {
	modelID := b.ModelID()
	key := cacheKey(modelID, b.ModelVersion(), p.Hash, o.seed)

	if raw, ok := o.cache.Get(key); ok {
		if out, err := ParseOutput(modelID, raw); err == nil {
			return out
		}
	}

	if err := o.limiter.Acquire(ctx, 1); err != nil {
		return o.degraded(recordID, modelID, &BackendError{ModelID: modelID, Err: err})
	}
	defer o.limiter.Release(1)

	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	raw, err := b.Complete(callCtx, p.Text, o.seed)
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return o.degraded(recordID, modelID, &BackendTimeout{ModelID: modelID, Timeout: o.timeout})
		}
		return o.degraded(recordID, modelID, &BackendError{ModelID: modelID, Err: err})
	}

	out, err := ParseOutput(modelID, raw)
	if err != nil {
		return o.degraded(recordID, modelID, err)
	}
	o.cache.Put(key, raw)
	return out
}

// degraded returns the recall-biased placeholder for a failed call.
func (o *Orchestrator) degraded(recordID, modelID string, err error) types.ModelOutput {
	o.logger.Warn("backend call degraded", "record_id", recordID, "model_id", modelID, "error", err)
	return types.ModelOutput{
		ModelID:    modelID,
		Decision:   types.DecisionInclude,
		Score:      degradedScore,
		Confidence: 0,
		Error:      err.Error(),
	}
}
