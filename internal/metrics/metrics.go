// Package metrics provides the centralized Prometheus metrics registry for
// the value-lay engine.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Global registry instance
var (
	registry *prometheus.Registry
	once     sync.Once
)

// Counter metrics
var (
	EvaluationCyclesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "value_lay",
		Name:      "evaluation_cycles_total",
		Help:      "Total number of evaluation cycles run",
	})
	AnchorsCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "value_lay",
		Name:      "anchors_created_total",
		Help:      "Total number of opening anchors established",
	})
	AnchorRacesLostTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "value_lay",
		Name:      "anchor_races_lost_total",
		Help:      "Total number of opening inserts lost to a concurrent cycle",
	})
	SignalsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "value_lay",
		Name:      "signals_total",
		Help:      "Total number of compression signals by tier",
	}, []string{"tier"})
	LayVerdictsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "value_lay",
		Name:      "lay_verdicts_total",
		Help:      "Total number of place-lay verdicts",
	})
	ProviderRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "value_lay",
		Name:      "provider_requests_total",
		Help:      "Total number of provider fetches by provider and outcome",
	}, []string{"provider", "outcome"})
)

// Gauge metrics
var (
	ProviderQuotaRemaining = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "value_lay",
		Name:      "provider_quota_remaining",
		Help:      "API requests remaining as reported by each provider",
	}, []string{"provider"})
	RunnersEvaluated = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "value_lay",
		Name:      "runners_evaluated",
		Help:      "Runners evaluated in the most recent cycle",
	})
)

// Histogram metrics
var (
	CycleDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "value_lay",
		Name:      "cycle_duration_seconds",
		Help:      "Duration of a full evaluation cycle in seconds",
		Buckets:   prometheus.DefBuckets,
	})
)

// GetRegistry returns the global metrics registry, registering all metrics
// on first use.
func GetRegistry() *prometheus.Registry {
	once.Do(func() {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			EvaluationCyclesTotal,
			AnchorsCreatedTotal,
			AnchorRacesLostTotal,
			SignalsTotal,
			LayVerdictsTotal,
			ProviderRequestsTotal,
			ProviderQuotaRemaining,
			RunnersEvaluated,
			CycleDuration,
		)
	})
	return registry
}

// InitRegistry ensures the registry is initialized.
func InitRegistry() {
	GetRegistry()
}

// Handler returns the HTTP handler serving the registry.
func Handler() http.Handler {
	return promhttp.HandlerFor(GetRegistry(), promhttp.HandlerOpts{})
}

// RecordCycle records a completed evaluation cycle.
func RecordCycle(durationSeconds float64, runnersEvaluated int) {
	EvaluationCyclesTotal.Inc()
	CycleDuration.Observe(durationSeconds)
	RunnersEvaluated.Set(float64(runnersEvaluated))
}

// RecordSignal records a compression signal by tier.
func RecordSignal(tier string) {
	SignalsTotal.WithLabelValues(tier).Inc()
}

// RecordProviderRequest records the outcome of a provider fetch and, when
// the provider reported quota, the remaining allowance.
func RecordProviderRequest(provider, outcome string, quotaRemaining int, quotaKnown bool) {
	ProviderRequestsTotal.WithLabelValues(provider, outcome).Inc()
	if quotaKnown {
		ProviderQuotaRemaining.WithLabelValues(provider).Set(float64(quotaRemaining))
	}
}
