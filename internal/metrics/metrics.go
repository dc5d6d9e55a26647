// Package metrics exposes Prometheus collectors for the composition pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "salescomposer"

type Metrics struct {
	compositions     *prometheus.CounterVec
	providerRequests *prometheus.CounterVec
	providerDuration *prometheus.HistogramVec
	feedbackSaved    *prometheus.CounterVec
}

// New registers the collectors with reg. Pass a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		compositions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compositions_total",
			Help:      "Composition requests by outcome (llm, fallback, rate_limited, invalid, error).",
		}, []string{"outcome"}),
		providerRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "LLM provider attempts by provider and outcome.",
		}, []string{"provider", "outcome"}),
		providerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_duration_seconds",
			Help:      "Latency of LLM provider attempts.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 90},
		}, []string{"provider"}),
		feedbackSaved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feedback_saved_total",
			Help:      "Feedback entries saved by priority.",
		}, []string{"priority"}),
	}
	reg.MustRegister(m.compositions, m.providerRequests, m.providerDuration, m.feedbackSaved)
	return m
}

func (m *Metrics) Composition(outcome string) {
	if m == nil {
		return
	}
	m.compositions.WithLabelValues(outcome).Inc()
}

// ObserveProvider satisfies llm.Observer.
func (m *Metrics) ObserveProvider(provider, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.providerRequests.WithLabelValues(provider, outcome).Inc()
	if outcome != "skipped" {
		m.providerDuration.WithLabelValues(provider).Observe(elapsed.Seconds())
	}
}

func (m *Metrics) FeedbackSaved(priority string) {
	if m == nil {
		return
	}
	m.feedbackSaved.WithLabelValues(priority).Inc()
}
