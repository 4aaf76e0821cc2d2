// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package screen

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pdiddy/screening-engine/pkg/types"
)

// Metrics holds the prometheus collectors updated by a Screener.
type Metrics struct {
	registry *prometheus.Registry

	decisions *prometheus.CounterVec
	degraded  *prometheus.CounterVec
	latency   prometheus.Histogram
	penalty   prometheus.Histogram
}

// NewMetrics registers the screening collectors on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "screening",
			Name:      "decisions_total",
			Help:      "Screening decisions by outcome and router tier.",
		}, []string{"decision", "tier"}),
		degraded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "screening",
			Name:      "degraded_outputs_total",
			Help:      "Backend calls replaced by a degraded output.",
		}, []string{"model_id"}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "screening",
			Name:      "record_duration_seconds",
			Help:      "Wall time to screen one record across all backends.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		penalty: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "screening",
			Name:      "soft_penalty",
			Help:      "Total soft-rule penalty applied per record.",
			Buckets:   []float64{0, 0.05, 0.1, 0.15, 0.2, 0.25, 0.3},
		}),
	}
	m.registry.MustRegister(m.decisions, m.degraded, m.latency, m.penalty)
	return m
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// WriteTextfile writes the current metric values in the node-exporter
// textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

func (m *Metrics) observe(d types.ScreeningDecision, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(string(d.Decision), strconv.Itoa(int(d.Tier))).Inc()
	for _, o := range d.Outputs {
		if o.Failed() {
			m.degraded.WithLabelValues(o.ModelID).Inc()
		}
	}
	m.latency.Observe(elapsed.Seconds())
	m.penalty.Observe(d.Rules.TotalPenalty)
}
