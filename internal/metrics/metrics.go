// Package metrics instruments reconciliation passes with prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/phobologic/autofold/internal/model"
)

const namespace = "autofold"

// Metrics records pass outcomes. A nil *Metrics is valid and records nothing.
type Metrics struct {
	passes   *prometheus.CounterVec
	folds    prometheus.Counter
	failures prometheus.Counter
	skips    *prometheus.CounterVec
	duration prometheus.Histogram
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		passes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "passes_total",
			Help:      "Reconciliation passes by branch.",
		}, []string{"branch"}),
		folds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "folds_total",
			Help:      "Call sites folded by the reconciler.",
		}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fold_failures_total",
			Help:      "Fold commands rejected by the host.",
		}),
		skips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "skips_total",
			Help:      "Call sites left alone, by reason.",
		}, []string{"reason"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pass_duration_seconds",
			Help:      "Wall time of reconciliation passes.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		}),
	}

	for _, c := range []prometheus.Collector{m.passes, m.folds, m.failures, m.skips, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObservePass records a finished pass.
func (m *Metrics) ObservePass(r model.PassReport) {
	if m == nil {
		return
	}
	m.passes.WithLabelValues(string(r.Branch)).Inc()
	m.folds.Add(float64(r.Folded))
	m.failures.Add(float64(r.Failed))
	if r.SkippedOverride > 0 {
		m.skips.WithLabelValues("override").Add(float64(r.SkippedOverride))
	}
	if r.SkippedFolded > 0 {
		m.skips.WithLabelValues("already_folded").Add(float64(r.SkippedFolded))
	}
	if r.Branch != model.BranchSkipped {
		m.duration.Observe(r.Duration.Seconds())
	}
}
